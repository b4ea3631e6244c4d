package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/askdb/internal/domain"
	"github.com/bnema/askdb/internal/ports/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeforeWriteNamesTheTool(t *testing.T) {
	sink := mocks.NewMockBackupSink(t)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	sink.EXPECT().
		CreateBackup(mockAnyContext(), "auto backup before delete_record", true).
		Return(domain.BackupRecord{ID: "b-1", IsAuto: true, Comment: "auto backup before delete_record", CreatedAt: created}, nil).
		Once()

	record, err := NewBackupInterceptor(sink, zerolog.Nop(), nil).BeforeWrite(context.Background(), "delete_record")
	require.NoError(t, err)
	assert.True(t, record.IsAuto)
	assert.Contains(t, record.Comment, "delete_record")
}

func TestBeforeWriteFailsClosed(t *testing.T) {
	sink := mocks.NewMockBackupSink(t)
	sink.EXPECT().CreateBackup(mockAnyContext(), "auto backup before tag_record", true).Return(domain.BackupRecord{}, errors.New("read-only filesystem")).Once()

	_, err := NewBackupInterceptor(sink, zerolog.Nop(), nil).BeforeWrite(context.Background(), "tag_record")
	require.Error(t, err)
	assert.ErrorContains(t, err, "read-only filesystem")

	var nilInterceptor *BackupInterceptor
	_, err = nilInterceptor.BeforeWrite(context.Background(), "tag_record")
	assert.ErrorContains(t, err, "no backup sink")
}

func TestBeforeWriteHonoursCancelledContext(t *testing.T) {
	sink := mocks.NewMockBackupSink(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBackupInterceptor(sink, zerolog.Nop(), nil).BeforeWrite(ctx, "create_tag")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBeforeWriteSerializesBackups(t *testing.T) {
	sink := mocks.NewMockBackupSink(t)
	var inFlight, maxInFlight atomic.Int32
	sink.EXPECT().CreateBackup(mockAnyContext(), "auto backup before create_tag", true).
		RunAndReturn(func(context.Context, string, bool) (domain.BackupRecord, error) {
			current := inFlight.Add(1)
			for {
				seen := maxInFlight.Load()
				if current <= seen || maxInFlight.CompareAndSwap(seen, current) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return domain.BackupRecord{IsAuto: true}, nil
		}).
		Times(4)

	interceptor := NewBackupInterceptor(sink, zerolog.Nop(), nil)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := interceptor.BeforeWrite(context.Background(), "create_tag")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load())
}
