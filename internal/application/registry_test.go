package application

import (
	"context"
	"testing"

	"github.com/bnema/askdb/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, map[string]any) (any, error) {
	return nil, nil
}

func searchTool() Tool {
	return Tool{
		Name:        "search_records",
		Description: "Search records",
		Parameters: Schema{
			Properties: map[string]Property{
				"query": {Type: TypeString, Description: "text to look for"},
				"limit": {Type: TypeInteger},
				"order": {Type: TypeString, Enum: []string{"asc", "desc"}},
				"ids":   {Type: TypeArray, Items: &Property{Type: TypeInteger}},
				"boost": {Type: TypeNumber},
			},
			Required: []string{"query"},
		},
		Invoke: noop,
	}
}

func TestNewRegistryRejectsBadTools(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(Tool{Name: " ", Invoke: noop})
	assert.ErrorContains(t, err, "name is required")

	_, err = NewRegistry(Tool{Name: "a"})
	assert.ErrorContains(t, err, "no implementation")

	_, err = NewRegistry(Tool{Name: "a", Invoke: noop}, Tool{Name: "a", Invoke: noop})
	assert.ErrorContains(t, err, "registered twice")

	_, err = NewRegistry(Tool{Name: "a", Invoke: noop, Parameters: Schema{Required: []string{"x"}}})
	assert.ErrorContains(t, err, "not declared")

	_, err = NewRegistry(Tool{Name: "a", Invoke: noop, Parameters: Schema{Properties: map[string]Property{"x": {Type: "date"}}}})
	assert.ErrorContains(t, err, "unsupported type")
}

func TestRegistryDefinitionsSortedByName(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry(searchTool(), Tool{Name: "create_tag", Write: true, Invoke: noop})
	require.NoError(t, err)

	definitions := registry.Definitions()
	require.Len(t, definitions, 2)
	assert.Equal(t, "create_tag", definitions[0].Name)
	assert.Equal(t, "search_records", definitions[1].Name)

	schema := definitions[1].Parameters
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"query"}, schema["required"])
	properties := schema["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "string", "description": "text to look for"}, properties["query"])
	assert.Equal(t, map[string]any{"type": "array", "items": map[string]any{"type": "integer"}}, properties["ids"])
}

func TestRegistryValidate(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry(searchTool())
	require.NoError(t, err)

	tool, args, err := registry.Validate("search_records", map[string]any{
		"query": "ada",
		"limit": float64(5),
		"ids":   []any{float64(1), float64(2)},
		"boost": float64(2),
		"order": nil,
	})
	require.NoError(t, err)
	assert.Equal(t, "search_records", tool.Name)
	assert.Equal(t, map[string]any{
		"query": "ada",
		"limit": 5,
		"ids":   []any{1, 2},
		"boost": float64(2),
	}, args)
}

func TestRegistryValidateRejections(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry(searchTool())
	require.NoError(t, err)

	tests := []struct {
		name    string
		tool    string
		args    map[string]any
		wantErr error
		message string
	}{
		{name: "unknown tool", tool: "drop_table", args: map[string]any{}, wantErr: domain.ErrUnknownTool},
		{name: "unknown parameter", tool: "search_records", args: map[string]any{"query": "a", "sql": "x"}, wantErr: domain.ErrInvalidArguments, message: `unknown parameter "sql"`},
		{name: "missing required", tool: "search_records", args: map[string]any{"limit": float64(1)}, wantErr: domain.ErrInvalidArguments, message: `missing required parameter "query"`},
		{name: "null required", tool: "search_records", args: map[string]any{"query": nil}, wantErr: domain.ErrInvalidArguments, message: "is null"},
		{name: "wrong type", tool: "search_records", args: map[string]any{"query": float64(3)}, wantErr: domain.ErrInvalidArguments, message: "must be a string, got number"},
		{name: "fractional integer", tool: "search_records", args: map[string]any{"query": "a", "limit": 2.5}, wantErr: domain.ErrInvalidArguments, message: "must be an integer"},
		{name: "integer overflow", tool: "search_records", args: map[string]any{"query": "a", "limit": 9223372036854775808.0}, wantErr: domain.ErrInvalidArguments, message: "must be an integer"},
		{name: "integer underflow", tool: "search_records", args: map[string]any{"query": "a", "limit": -1e19}, wantErr: domain.ErrInvalidArguments, message: "must be an integer"},
		{name: "enum", tool: "search_records", args: map[string]any{"query": "a", "order": "random"}, wantErr: domain.ErrInvalidArguments, message: "must be one of asc, desc"},
		{name: "array item", tool: "search_records", args: map[string]any{"query": "a", "ids": []any{"x"}}, wantErr: domain.ErrInvalidArguments, message: `"ids[0]"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := registry.Validate(tt.tool, tt.args)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.message != "" {
				assert.Contains(t, err.Error(), tt.message)
			}
		})
	}
}
