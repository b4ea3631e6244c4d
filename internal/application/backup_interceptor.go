package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bnema/askdb/internal/domain"
	"github.com/bnema/askdb/internal/metrics"
	"github.com/bnema/askdb/internal/ports"
	"github.com/rs/zerolog"
)

const autoBackupCommentPrefix = "auto backup before "

// BackupInterceptor snapshots the data store before every write tool runs.
// Backups are taken one at a time across all sessions.
type BackupInterceptor struct {
	mu      sync.Mutex
	sink    ports.BackupSink
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewBackupInterceptor(sink ports.BackupSink, logger zerolog.Logger, m *metrics.Metrics) *BackupInterceptor {
	return &BackupInterceptor{
		sink:    sink,
		logger:  logger,
		metrics: m,
	}
}

// BeforeWrite must return without error before the named write tool may
// run. Any failure means the tool must not run.
func (b *BackupInterceptor) BeforeWrite(ctx context.Context, toolName string) (domain.BackupRecord, error) {
	if b == nil || b.sink == nil {
		return domain.BackupRecord{}, errors.New("no backup sink configured")
	}
	if err := ctx.Err(); err != nil {
		return domain.BackupRecord{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	comment := autoBackupCommentPrefix + strings.TrimSpace(toolName)
	record, err := b.sink.CreateBackup(ctx, comment, true)
	if err != nil {
		b.metrics.RecordBackup("error")
		b.logger.Error().Err(err).Str("tool", toolName).Msg("auto backup failed, write blocked")
		return domain.BackupRecord{}, fmt.Errorf("create backup before %s: %w", toolName, err)
	}

	b.metrics.RecordBackup("ok")
	b.logger.Info().
		Str("tool", toolName).
		Str("backup_id", record.ID).
		Msg("auto backup created")
	return record, nil
}
