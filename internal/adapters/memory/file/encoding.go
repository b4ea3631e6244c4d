package file

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

const (
	bytesKey = "$bytes"
	mapKey   = "$map"
)

var ErrUnsupportedPayload = errors.New("payload member cannot be stored")

// encodePayload turns payload into a tree encoding/json can write without
// losing information. Byte slices become {"$bytes": base64}, maps that would
// be mistaken for those markers are wrapped in {"$map": ...}, and floats keep a
// fractional part so they do not reload as integers.
func encodePayload(payload any) (json.RawMessage, error) {
	tree, err := encodeValue(reflect.ValueOf(payload), "payload")
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedPayload, err)
	}
	return encoded, nil
}

func encodeValue(value reflect.Value, path string) (any, error) {
	if !value.IsValid() {
		return nil, nil
	}

	if value.Kind() == reflect.Slice && value.Type().Elem().Kind() == reflect.Uint8 {
		if value.IsNil() {
			return nil, nil
		}
		return map[string]any{bytesKey: base64.StdEncoding.EncodeToString(value.Bytes())}, nil
	}

	if value.CanInterface() {
		switch v := value.Interface().(type) {
		case json.Number:
			return v, nil
		case time.Time:
			return v.UTC().Format(time.RFC3339Nano), nil
		}
	}

	switch value.Kind() {
	case reflect.Bool:
		return value.Bool(), nil
	case reflect.String:
		return value.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return value.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := value.Uint()
		if u > math.MaxInt64 {
			return json.Number(strconv.FormatUint(u, 10)), nil
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return encodeFloat(value.Float(), path)
	case reflect.Interface, reflect.Pointer:
		if value.IsNil() {
			return nil, nil
		}
		return encodeValue(value.Elem(), path)
	case reflect.Slice:
		if value.IsNil() {
			return nil, nil
		}
		return encodeList(value, path)
	case reflect.Array:
		return encodeList(value, path)
	case reflect.Map:
		return encodeMap(value, path)
	case reflect.Struct:
		return encodeStruct(value, path)
	default:
		return nil, fmt.Errorf("%w: %s has kind %s", ErrUnsupportedPayload, path, value.Kind())
	}
}

func encodeFloat(f float64, path string) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %s is not a finite number", ErrUnsupportedPayload, path)
	}
	text := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(text, ".eE") {
		text += ".0"
	}
	return json.Number(text), nil
}

func encodeList(value reflect.Value, path string) (any, error) {
	out := make([]any, value.Len())
	for i := range out {
		item, err := encodeValue(value.Index(i), fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out[i] = item
	}
	return out, nil
}

func encodeMap(value reflect.Value, path string) (any, error) {
	if value.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("%w: %s has non-string keys", ErrUnsupportedPayload, path)
	}
	if value.IsNil() {
		return nil, nil
	}

	out := make(map[string]any, value.Len())
	iter := value.MapRange()
	for iter.Next() {
		key := iter.Key().String()
		item, err := encodeValue(iter.Value(), path+"."+key)
		if err != nil {
			return nil, err
		}
		out[key] = item
	}

	if _, reserved := out[bytesKey]; reserved {
		return map[string]any{mapKey: out}, nil
	}
	if _, reserved := out[mapKey]; reserved {
		return map[string]any{mapKey: out}, nil
	}
	return out, nil
}

var jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()

// Structs reload as maps keyed by their json names. Fields are walked one by
// one so byte slices inside them keep the $bytes escape.
func encodeStruct(value reflect.Value, path string) (any, error) {
	if value.Type().Implements(jsonMarshalerType) {
		if !value.CanInterface() {
			return nil, fmt.Errorf("%w: %s is an unexported %s", ErrUnsupportedPayload, path, value.Type())
		}
		return encodeMarshaler(value, path)
	}

	out := make(map[string]any)
	if err := encodeFields(value, path, out); err != nil {
		return nil, err
	}
	if _, reserved := out[bytesKey]; reserved {
		return map[string]any{mapKey: out}, nil
	}
	if _, reserved := out[mapKey]; reserved {
		return map[string]any{mapKey: out}, nil
	}
	return out, nil
}

// encodeFields writes direct fields before promoted ones so an outer field
// shadows an embedded field of the same name.
func encodeFields(value reflect.Value, path string, out map[string]any) error {
	typ := value.Type()
	var embedded []reflect.Value

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, options, _ := strings.Cut(tag, ",")

		fieldValue := value.Field(i)
		if field.Anonymous && name == "" {
			inner, ok := embeddedStruct(field, fieldValue)
			if ok {
				embedded = append(embedded, inner)
			}
			if ok || !field.IsExported() || structOrPointer(field.Type) {
				continue
			}
		}
		if !field.IsExported() {
			continue
		}
		if name == "" {
			name = field.Name
		}
		if hasOption(options, "omitempty") && isEmptyValue(fieldValue) {
			continue
		}

		item, err := encodeValue(fieldValue, path+"."+name)
		if err != nil {
			return err
		}
		out[name] = item
	}

	for _, inner := range embedded {
		promoted := make(map[string]any)
		if err := encodeFields(inner, path, promoted); err != nil {
			return err
		}
		for name, item := range promoted {
			if _, taken := out[name]; !taken {
				out[name] = item
			}
		}
	}
	return nil
}

// embeddedStruct reports whether an untagged embedded field promotes its
// fields. Nil pointers and pointers to unexported types promote nothing.
func embeddedStruct(field reflect.StructField, value reflect.Value) (reflect.Value, bool) {
	if value.Kind() == reflect.Pointer {
		if value.IsNil() || !field.IsExported() {
			return reflect.Value{}, false
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct || value.Type().Implements(jsonMarshalerType) {
		return reflect.Value{}, false
	}
	return value, true
}

func structOrPointer(typ reflect.Type) bool {
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	return typ.Kind() == reflect.Struct && !typ.Implements(jsonMarshalerType)
}

// encodeMarshaler stores types with their own JSON form as generic values.
func encodeMarshaler(value reflect.Value, path string) (any, error) {
	encoded, err := json.Marshal(value.Interface())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnsupportedPayload, path, err)
	}
	decoder := json.NewDecoder(bytes.NewReader(encoded))
	decoder.UseNumber()
	var generic any
	if err := decoder.Decode(&generic); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnsupportedPayload, path, err)
	}
	return encodeValue(reflect.ValueOf(generic), path)
}

func hasOption(options string, want string) bool {
	for options != "" {
		var option string
		option, options, _ = strings.Cut(options, ",")
		if option == want {
			return true
		}
	}
	return false
}

func isEmptyValue(value reflect.Value) bool {
	switch value.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return value.Len() == 0
	case reflect.Bool:
		return !value.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return value.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return value.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return value.Float() == 0
	case reflect.Interface, reflect.Pointer:
		return value.IsNil()
	}
	return false
}

func decodePayload(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var tree any
	if err := decoder.Decode(&tree); err != nil {
		return nil, err
	}
	return restoreValue(tree)
}

func restoreValue(value any) (any, error) {
	switch v := value.(type) {
	case json.Number:
		return restoreNumber(v)
	case []any:
		for i, item := range v {
			restored, err := restoreValue(item)
			if err != nil {
				return nil, err
			}
			v[i] = restored
		}
		return v, nil
	case map[string]any:
		if len(v) == 1 {
			if encoded, ok := v[bytesKey].(string); ok {
				decoded, err := base64.StdEncoding.DecodeString(encoded)
				if err != nil {
					return nil, fmt.Errorf("decode %s: %w", bytesKey, err)
				}
				return decoded, nil
			}
			if inner, ok := v[mapKey].(map[string]any); ok {
				return restoreMap(inner)
			}
		}
		return restoreMap(v)
	default:
		return v, nil
	}
}

func restoreMap(m map[string]any) (any, error) {
	for key, item := range m {
		restored, err := restoreValue(item)
		if err != nil {
			return nil, err
		}
		m[key] = restored
	}
	return m, nil
}

// restoreNumber loads integral literals as int64 and everything else as
// float64. Integers beyond int64 stay uint64.
func restoreNumber(n json.Number) (any, error) {
	text := n.String()
	if !strings.ContainsAny(text, ".eE") {
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return i, nil
		}
		if u, err := strconv.ParseUint(text, 10, 64); err == nil {
			return u, nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("decode number %q: %w", text, err)
	}
	return f, nil
}
