package ports

import (
	"context"

	"github.com/bnema/askdb/internal/domain"
)

type ConversationRepository interface {
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Conversation, error)
	Save(ctx context.Context, conversation *domain.Conversation) error
	List(ctx context.Context) ([]string, error)
}
