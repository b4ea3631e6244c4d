package ports

import (
	"context"

	"github.com/bnema/askdb/internal/domain"
)

type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type ChatRequest struct {
	System   string
	Messages []domain.Message
	Tools    []ToolDefinition
}

type ChatReply struct {
	Content   string
	ToolCalls []domain.ToolCall
}

// Backend is the inference service. Chat returns *domain.TurnError values
// carrying KindTransport or KindValidation on failure.
type Backend interface {
	Chat(ctx context.Context, req ChatRequest) (ChatReply, error)
	Ping(ctx context.Context) error
}
