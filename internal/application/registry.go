package application

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/bnema/askdb/internal/domain"
	"github.com/bnema/askdb/internal/ports"
)

const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

type Property struct {
	Type        string
	Description string
	Enum        []string
	Items       *Property
}

type Schema struct {
	Properties map[string]Property
	Required   []string
}

type InvokeFunc func(ctx context.Context, args map[string]any) (any, error)

type Tool struct {
	Name        string
	Description string
	Parameters  Schema
	Write       bool
	Invoke      InvokeFunc
}

// Registry is the immutable set of tools a conversation may call.
type Registry struct {
	tools map[string]Tool
	names []string
}

func NewRegistry(tools ...Tool) (*Registry, error) {
	registry := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, tool := range tools {
		name := strings.TrimSpace(tool.Name)
		if name == "" {
			return nil, errors.New("tool name is required")
		}
		if tool.Invoke == nil {
			return nil, fmt.Errorf("tool %q has no implementation", name)
		}
		if _, exists := registry.tools[name]; exists {
			return nil, fmt.Errorf("tool %q registered twice", name)
		}
		if err := tool.Parameters.check(); err != nil {
			return nil, fmt.Errorf("tool %q: %w", name, err)
		}
		tool.Name = name
		registry.tools[name] = tool
		registry.names = append(registry.names, name)
	}
	sort.Strings(registry.names)
	return registry, nil
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

func (r *Registry) Definitions() []ports.ToolDefinition {
	definitions := make([]ports.ToolDefinition, 0, len(r.names))
	for _, name := range r.names {
		tool := r.tools[name]
		definitions = append(definitions, ports.ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters.JSONSchema(),
		})
	}
	return definitions
}

// Validate checks args against the tool's schema before it is invoked and
// returns a copy with integer parameters converted to int.
func (r *Registry) Validate(name string, args map[string]any) (Tool, map[string]any, error) {
	tool, ok := r.tools[name]
	if !ok {
		return Tool{}, nil, fmt.Errorf("%w: %q", domain.ErrUnknownTool, name)
	}

	validated := make(map[string]any, len(args))
	for key, value := range args {
		property, known := tool.Parameters.Properties[key]
		if !known {
			return Tool{}, nil, fmt.Errorf("%w: %s: unknown parameter %q", domain.ErrInvalidArguments, name, key)
		}
		if value == nil {
			if slices.Contains(tool.Parameters.Required, key) {
				return Tool{}, nil, fmt.Errorf("%w: %s: parameter %q is null", domain.ErrInvalidArguments, name, key)
			}
			continue
		}
		converted, err := property.coerce(value, key)
		if err != nil {
			return Tool{}, nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidArguments, name, err)
		}
		validated[key] = converted
	}

	for _, key := range tool.Parameters.Required {
		if _, present := validated[key]; !present {
			return Tool{}, nil, fmt.Errorf("%w: %s: missing required parameter %q", domain.ErrInvalidArguments, name, key)
		}
	}

	return tool, validated, nil
}

func (s Schema) check() error {
	for _, key := range s.Required {
		if _, ok := s.Properties[key]; !ok {
			return fmt.Errorf("required parameter %q is not declared", key)
		}
	}
	for key, property := range s.Properties {
		if err := property.check(key); err != nil {
			return err
		}
	}
	return nil
}

func (p Property) check(path string) error {
	switch p.Type {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeObject:
	case TypeArray:
		if p.Items != nil {
			return p.Items.check(path + "[]")
		}
	default:
		return fmt.Errorf("parameter %q has unsupported type %q", path, p.Type)
	}
	return nil
}

// JSONSchema renders the schema in the form tool-calling backends accept.
func (s Schema) JSONSchema() map[string]any {
	properties := make(map[string]any, len(s.Properties))
	for key, property := range s.Properties {
		properties[key] = property.jsonSchema()
	}
	out := map[string]any{
		"type":       TypeObject,
		"properties": properties,
	}
	if len(s.Required) > 0 {
		out["required"] = slices.Clone(s.Required)
	}
	return out
}

func (p Property) jsonSchema() map[string]any {
	out := map[string]any{"type": p.Type}
	if p.Description != "" {
		out["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		out["enum"] = slices.Clone(p.Enum)
	}
	if p.Items != nil {
		out["items"] = p.Items.jsonSchema()
	}
	return out
}

// maxIntFloat is 2^63, the first float64 above every int64.
const maxIntFloat = float64(1 << 63)

func (p Property) coerce(value any, path string) (any, error) {
	switch p.Type {
	case TypeString:
		text, ok := value.(string)
		if !ok {
			return nil, typeMismatch(path, p.Type, value)
		}
		if len(p.Enum) > 0 && !slices.Contains(p.Enum, text) {
			return nil, fmt.Errorf("parameter %q must be one of %s", path, strings.Join(p.Enum, ", "))
		}
		return text, nil
	case TypeInteger:
		switch n := value.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case float64:
			if n != math.Trunc(n) || math.IsInf(n, 0) || n >= maxIntFloat || n < -maxIntFloat {
				return nil, fmt.Errorf("parameter %q must be an integer", path)
			}
			return int(n), nil
		}
		return nil, typeMismatch(path, p.Type, value)
	case TypeNumber:
		switch n := value.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
		return nil, typeMismatch(path, p.Type, value)
	case TypeBoolean:
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return nil, typeMismatch(path, p.Type, value)
	case TypeObject:
		if m, ok := value.(map[string]any); ok {
			return m, nil
		}
		return nil, typeMismatch(path, p.Type, value)
	case TypeArray:
		items, ok := value.([]any)
		if !ok {
			return nil, typeMismatch(path, p.Type, value)
		}
		if p.Items == nil {
			return items, nil
		}
		out := make([]any, len(items))
		for i, item := range items {
			converted, err := p.Items.coerce(item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	default:
		return nil, fmt.Errorf("parameter %q has unsupported type %q", path, p.Type)
	}
}

func typeMismatch(path string, want string, value any) error {
	return fmt.Errorf("parameter %q must be %s, got %s", path, article(want), jsonTypeName(value))
}

func article(typeName string) string {
	switch typeName {
	case TypeInteger, TypeArray, TypeObject:
		return "an " + typeName
	default:
		return "a " + typeName
	}
}

func jsonTypeName(value any) string {
	switch value.(type) {
	case string:
		return TypeString
	case bool:
		return TypeBoolean
	case float64, int, int64:
		return TypeNumber
	case []any:
		return TypeArray
	case map[string]any:
		return TypeObject
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", value)
	}
}
