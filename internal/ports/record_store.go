package ports

import (
	"context"

	"github.com/bnema/askdb/internal/domain"
)

type RecordStore interface {
	GetByID(ctx context.Context, id domain.RecordID) (domain.Record, error)
	List(ctx context.Context) ([]domain.Record, error)
	Search(ctx context.Context, query string, limit int) ([]domain.Record, error)
	Save(ctx context.Context, record domain.Record) error
	Delete(ctx context.Context, id domain.RecordID) error
	CreateTag(ctx context.Context, name string) (bool, error)
	Tags(ctx context.Context) ([]string, error)
}
