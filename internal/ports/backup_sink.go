package ports

import (
	"context"

	"github.com/bnema/askdb/internal/domain"
)

type BackupSink interface {
	CreateBackup(ctx context.Context, comment string, auto bool) (domain.BackupRecord, error)
	ListBackups(ctx context.Context) ([]domain.BackupRecord, error)
}
