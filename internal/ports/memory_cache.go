package ports

import (
	"context"

	"github.com/bnema/askdb/internal/domain"
)

type MemoryCache interface {
	Save(ctx context.Context, payload any, kind string, description string) (string, error)
	Load(ctx context.Context, id string) (domain.MemoryRecord, error)
	List(ctx context.Context, kind string) ([]domain.RecordSummary, error)
	Delete(ctx context.Context, id string) (bool, error)
}
