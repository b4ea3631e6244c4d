package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type ToolCall struct {
	ID        string
	Name      string
	Arguments Arguments
}

// Arguments is the shape a backend used for a tool call's arguments. It is
// one of StringArguments, ObjectArguments or InvalidArguments.
type Arguments interface {
	// JSON returns the arguments as they appeared on the wire.
	JSON() json.RawMessage
	isArguments()
}

// StringArguments holds an argument object encoded inside a JSON string.
type StringArguments struct {
	Encoded string
}

// ObjectArguments holds an argument object the backend sent already decoded.
type ObjectArguments struct {
	Values map[string]any
}

// InvalidArguments holds anything else: lists, scalars, null or broken JSON.
type InvalidArguments struct {
	Raw   json.RawMessage
	Shape string
}

func (StringArguments) isArguments()  {}
func (ObjectArguments) isArguments()  {}
func (InvalidArguments) isArguments() {}

func (a StringArguments) JSON() json.RawMessage {
	encoded, _ := json.Marshal(a.Encoded)
	return encoded
}

func (a ObjectArguments) JSON() json.RawMessage {
	values := a.Values
	if values == nil {
		values = map[string]any{}
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return encoded
}

func (a InvalidArguments) JSON() json.RawMessage {
	if len(a.Raw) == 0 {
		return json.RawMessage(`null`)
	}
	return a.Raw
}

// ArgumentsFromJSON classifies raw wire arguments. An absent value is treated
// as an empty encoded object.
func ArgumentsFromJSON(raw json.RawMessage) Arguments {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return StringArguments{}
	}

	switch trimmed[0] {
	case '"':
		var encoded string
		if err := json.Unmarshal(trimmed, &encoded); err != nil {
			return InvalidArguments{Raw: cloneRaw(trimmed), Shape: "malformed string"}
		}
		return StringArguments{Encoded: encoded}
	case '{':
		var values map[string]any
		if err := json.Unmarshal(trimmed, &values); err != nil {
			return InvalidArguments{Raw: cloneRaw(trimmed), Shape: "malformed object"}
		}
		return ObjectArguments{Values: values}
	case '[':
		return InvalidArguments{Raw: cloneRaw(trimmed), Shape: "list"}
	case 'n':
		return InvalidArguments{Raw: cloneRaw(trimmed), Shape: "null"}
	case 't', 'f':
		return InvalidArguments{Raw: cloneRaw(trimmed), Shape: "boolean"}
	default:
		return InvalidArguments{Raw: cloneRaw(trimmed), Shape: "number"}
	}
}

// ArgumentsString renders arguments as an encoded JSON object string, the form
// chat-completions style backends expect to see echoed back.
func ArgumentsString(args Arguments) string {
	switch a := args.(type) {
	case StringArguments:
		return a.Encoded
	case ObjectArguments:
		return string(a.JSON())
	case InvalidArguments:
		return string(a.JSON())
	case nil:
		return ""
	default:
		panic(fmt.Sprintf("domain: unhandled arguments variant %T", args))
	}
}

// ArgumentsObject renders arguments as a decoded object, the form native chat
// backends expect to see echoed back. Undecodable arguments become empty.
func ArgumentsObject(args Arguments) map[string]any {
	switch a := args.(type) {
	case StringArguments:
		var values map[string]any
		if err := json.Unmarshal([]byte(a.Encoded), &values); err != nil || values == nil {
			return map[string]any{}
		}
		return values
	case ObjectArguments:
		if a.Values == nil {
			return map[string]any{}
		}
		return a.Values
	case InvalidArguments, nil:
		return map[string]any{}
	default:
		panic(fmt.Sprintf("domain: unhandled arguments variant %T", args))
	}
}

func cloneRaw(raw []byte) json.RawMessage {
	out := make([]byte, len(raw))
	copy(out, raw)
	return out
}
