package domain

import (
	"encoding/json"
	"fmt"
)

type ToolResult struct {
	ToolName string
	CallID   string
	Result   any
	IsError  bool
	Kind     ErrorKind
}

func ToolFailure(call ToolCall, kind ErrorKind, err error) ToolResult {
	return ToolResult{
		ToolName: call.Name,
		CallID:   call.ID,
		Result:   err.Error(),
		IsError:  true,
		Kind:     kind,
	}
}

// Content serializes the result into a tool message body. Byte slices are
// carried as base64 strings.
func (r ToolResult) Content() string {
	if r.IsError {
		encoded, _ := json.Marshal(map[string]any{
			"error": fmt.Sprint(r.Result),
			"kind":  string(r.Kind),
		})
		return string(encoded)
	}

	if text, ok := r.Result.(string); ok {
		return text
	}

	encoded, err := json.Marshal(r.Result)
	if err != nil {
		return fmt.Sprintf("%v", r.Result)
	}
	return string(encoded)
}

func (r ToolResult) Message() Message {
	return Message{
		Role:       RoleTool,
		Content:    r.Content(),
		ToolCallID: r.CallID,
		ToolName:   r.ToolName,
	}
}
