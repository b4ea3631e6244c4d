package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationAppendKeepsOrderAndIsolation(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	conv := NewConversation("s-1", now)

	conv.Append(Message{Role: RoleUser, Content: "hi"}, now.Add(time.Second))
	conv.Append(Message{
		Role:      RoleAssistant,
		ToolCalls: []ToolCall{{ID: "c1", Name: "search_records", Arguments: StringArguments{Encoded: `{}`}}},
	}, now.Add(2*time.Second))

	messages := conv.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, RoleUser, messages[0].Role)
	assert.Equal(t, now.Add(2*time.Second), conv.UpdatedAt)

	messages[1].ToolCalls[0].Name = "mutated"
	assert.Equal(t, "search_records", conv.Messages()[1].ToolCalls[0].Name)
}

func TestConversationLastAssistant(t *testing.T) {
	now := time.Now()
	conv := NewConversation("s-1", now)

	_, ok := conv.LastAssistant()
	assert.False(t, ok)

	conv.Append(Message{Role: RoleAssistant, Content: "first"}, now)
	conv.Append(Message{Role: RoleTool, Content: "{}"}, now)
	conv.Append(Message{Role: RoleAssistant, Content: "second"}, now)

	last, ok := conv.LastAssistant()
	require.True(t, ok)
	assert.Equal(t, "second", last.Content)
}

func TestArgumentsFromJSONClassifiesShapes(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantShape string
		check     func(t *testing.T, args Arguments)
	}{
		{
			name: "encoded string",
			raw:  `"{\"query\": \"a\"}"`,
			check: func(t *testing.T, args Arguments) {
				require.IsType(t, StringArguments{}, args)
				assert.Equal(t, `{"query": "a"}`, args.(StringArguments).Encoded)
			},
		},
		{
			name: "object",
			raw:  `{"query": "a"}`,
			check: func(t *testing.T, args Arguments) {
				require.IsType(t, ObjectArguments{}, args)
				assert.Equal(t, map[string]any{"query": "a"}, args.(ObjectArguments).Values)
			},
		},
		{
			name: "absent",
			raw:  ``,
			check: func(t *testing.T, args Arguments) {
				assert.Equal(t, StringArguments{}, args)
			},
		},
		{name: "list", raw: `[1,2]`, wantShape: "list"},
		{name: "null", raw: `null`, wantShape: "null"},
		{name: "number", raw: `42`, wantShape: "number"},
		{name: "boolean", raw: `true`, wantShape: "boolean"},
		{name: "broken object", raw: `{"query":`, wantShape: "malformed object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := ArgumentsFromJSON(json.RawMessage(tt.raw))
			if tt.check != nil {
				tt.check(t, args)
				return
			}
			invalid, ok := args.(InvalidArguments)
			require.True(t, ok, "expected InvalidArguments, got %T", args)
			assert.Equal(t, tt.wantShape, invalid.Shape)
			assert.JSONEq(t, tt.raw, string(invalid.JSON()))
		})
	}
}

func TestArgumentsRenderingForBothWireForms(t *testing.T) {
	str := StringArguments{Encoded: `{"limit": 2}`}
	obj := ObjectArguments{Values: map[string]any{"limit": float64(2)}}

	assert.Equal(t, `{"limit": 2}`, ArgumentsString(str))
	assert.JSONEq(t, `{"limit": 2}`, ArgumentsString(obj))
	assert.Equal(t, map[string]any{"limit": float64(2)}, ArgumentsObject(str))
	assert.Equal(t, map[string]any{"limit": float64(2)}, ArgumentsObject(obj))
	assert.Equal(t, map[string]any{}, ArgumentsObject(InvalidArguments{Raw: json.RawMessage(`[1]`)}))
}

func TestToolResultContent(t *testing.T) {
	ok := ToolResult{ToolName: "get_record", Result: map[string]any{"photo": []byte{0x01, 0x02}}}
	assert.JSONEq(t, `{"photo":"AQI="}`, ok.Content())

	text := ToolResult{ToolName: "echo", Result: "plain"}
	assert.Equal(t, "plain", text.Content())

	failed := ToolFailure(ToolCall{ID: "c1", Name: "tag_record"}, KindBackup, errors.New("disk full"))
	assert.JSONEq(t, `{"error":"disk full","kind":"backup"}`, failed.Content())
	msg := failed.Message()
	assert.Equal(t, RoleTool, msg.Role)
	assert.Equal(t, "c1", msg.ToolCallID)
}

func TestTurnErrorKind(t *testing.T) {
	cause := errors.New("connection refused")
	err := &TurnError{Kind: KindTransport, Message: "backend request failed", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindTransport, KindOf(err))
	assert.Equal(t, "transport error: backend request failed", err.Error())
	assert.Equal(t, ErrorKind(""), KindOf(cause))
}

func TestItemCount(t *testing.T) {
	assert.Equal(t, 0, ItemCount(nil))
	assert.Equal(t, 2, ItemCount([]any{1, 2}))
	assert.Equal(t, 3, ItemCount([]map[string]any{{}, {}, {}}))
	assert.Equal(t, 1, ItemCount(map[string]any{"a": 1}))
	assert.Equal(t, 1, ItemCount([]byte("blob")))
}

func TestRecordMatches(t *testing.T) {
	r := Record{Name: "Ada Lovelace", Email: "ada@example.com", Tags: []string{"vip"}}

	assert.True(t, r.Matches("ada"))
	assert.True(t, r.Matches("VIP"))
	assert.True(t, r.Matches(""))
	assert.False(t, r.Matches("grace"))
	assert.True(t, r.HasTag("Vip"))
}
