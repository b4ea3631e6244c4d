// Package file is the disk-backed result memory cache: one JSON file per
// record, expired by age.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/bnema/askdb/internal/domain"
	"github.com/bnema/askdb/internal/metrics"
	"github.com/bnema/askdb/internal/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	recordVersion   = 1
	recordExt       = ".json"
	tempPrefix      = ".tmp-"
	idTimeLayout    = "20060102T150405.000"
	maxSlugLength   = 32
	maxIDAttempts   = 8
	defaultTTL      = 24 * time.Hour
	staleTempMaxAge = time.Hour
)

var idPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*-\d{8}T\d{6}\.\d{3}-[0-9a-f]{8}$`)

type Options struct {
	Dir     string
	TTL     time.Duration
	Clock   ports.Clock
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

type Cache struct {
	dir     string
	ttl     time.Duration
	clock   ports.Clock
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

var _ ports.MemoryCache = (*Cache)(nil)

type recordFile struct {
	Version     int             `json:"v"`
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
	ItemCount   int             `json:"item_count"`
	Payload     json.RawMessage `json:"payload"`
}

// CorruptionError marks a record file that exists but cannot be read back.
type CorruptionError struct {
	ID  string
	Err error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("memory record %s is corrupted: %v", e.ID, e.Err)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}

func (e *CorruptionError) ErrorKind() domain.ErrorKind {
	return domain.KindCacheCorruption
}

type SweepResult struct {
	Removed int
	Corrupt int
	Kept    int
}

// New creates the cache directory and sweeps expired records once.
func New(ctx context.Context, opts Options) (*Cache, error) {
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, errors.New("memory dir is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	clock := opts.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}

	cache := &Cache{
		dir:     opts.Dir,
		ttl:     ttl,
		clock:   clock,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}

	if _, err := cache.Sweep(ctx); err != nil {
		return nil, err
	}
	return cache, nil
}

func (c *Cache) Dir() string {
	return c.dir
}

func (c *Cache) Save(ctx context.Context, payload any, kind string, description string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	encoded, err := encodePayload(payload)
	if err != nil {
		c.metrics.RecordMemoryOp("save", "unsupported")
		return "", err
	}

	now := c.clock.Now().UTC()
	record := recordFile{
		Version:     recordVersion,
		Kind:        kind,
		Description: description,
		CreatedAt:   now,
		ItemCount:   domain.ItemCount(payload),
		Payload:     encoded,
	}

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		record.ID = newID(kind, now)
		published, err := c.publish(record)
		if err != nil {
			c.metrics.RecordMemoryOp("save", "error")
			return "", err
		}
		if published {
			c.metrics.RecordMemoryOp("save", "ok")
			c.logger.Debug().
				Str("id", record.ID).
				Str("kind", kind).
				Int("item_count", record.ItemCount).
				Msg("memory record saved")
			return record.ID, nil
		}
	}

	c.metrics.RecordMemoryOp("save", "error")
	return "", fmt.Errorf("allocate memory id for kind %q: too many collisions", kind)
}

// publish writes the record to a temp file and hard-links it into place. A
// link fails when the target exists, so an id is never reused or overwritten.
func (c *Cache) publish(record recordFile) (bool, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return false, fmt.Errorf("encode memory record: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, tempPrefix+"*")
	if err != nil {
		return false, fmt.Errorf("create temp memory record: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return false, fmt.Errorf("chmod temp memory record: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return false, fmt.Errorf("write temp memory record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return false, fmt.Errorf("sync temp memory record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("close temp memory record: %w", err)
	}

	if err := os.Link(tmpPath, c.path(record.ID)); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("publish memory record: %w", err)
	}
	return true, nil
}

func (c *Cache) Load(ctx context.Context, id string) (domain.MemoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.MemoryRecord{}, err
	}
	if !ValidID(id) {
		return domain.MemoryRecord{}, fmt.Errorf("memory record %q: %w", id, domain.ErrMemoryNotFound)
	}

	data, err := os.ReadFile(c.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.metrics.RecordMemoryOp("load", "not_found")
			return domain.MemoryRecord{}, fmt.Errorf("memory record %s: %w", id, domain.ErrMemoryNotFound)
		}
		c.metrics.RecordMemoryOp("load", "error")
		return domain.MemoryRecord{}, fmt.Errorf("read memory record %s: %w", id, err)
	}

	record, err := c.parse(id, data)
	if err != nil {
		return domain.MemoryRecord{}, c.corrupted(id, err)
	}
	if c.expired(record.CreatedAt) {
		c.metrics.RecordMemoryOp("load", "expired")
		return domain.MemoryRecord{}, fmt.Errorf("memory record %s expired: %w", id, domain.ErrMemoryNotFound)
	}

	payload, err := decodePayload(record.Payload)
	if err != nil {
		return domain.MemoryRecord{}, c.corrupted(id, err)
	}

	c.metrics.RecordMemoryOp("load", "ok")
	return domain.MemoryRecord{
		ID:          record.ID,
		Kind:        record.Kind,
		Description: record.Description,
		CreatedAt:   record.CreatedAt,
		ItemCount:   record.ItemCount,
		Payload:     payload,
	}, nil
}

// List returns live records of kind (all kinds when empty), newest first.
// Unreadable files are skipped.
func (c *Cache) List(ctx context.Context, kind string) ([]domain.RecordSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("read memory dir: %w", err)
	}

	summaries := make([]domain.RecordSummary, 0, len(entries))
	for _, entry := range entries {
		id, ok := recordID(entry)
		if !ok {
			continue
		}
		data, err := os.ReadFile(c.path(id))
		if err != nil {
			continue
		}
		summary, err := summarize(id, data)
		if err != nil {
			c.logger.Warn().Str("id", id).Err(err).Msg("skipping unreadable memory record")
			continue
		}
		if kind != "" && summary.Kind != kind {
			continue
		}
		if c.expired(summary.CreatedAt) {
			continue
		}
		summaries = append(summaries, summary)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].ID > summaries[j].ID
		}
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})

	c.metrics.RecordMemoryOp("list", "ok")
	return summaries, nil
}

// Delete reports whether a record file was removed.
func (c *Cache) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !ValidID(id) {
		return false, nil
	}

	if err := os.Remove(c.path(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.metrics.RecordMemoryOp("delete", "not_found")
			return false, nil
		}
		c.metrics.RecordMemoryOp("delete", "error")
		return false, fmt.Errorf("delete memory record %s: %w", id, err)
	}

	c.metrics.RecordMemoryOp("delete", "ok")
	return true, nil
}

// Sweep removes expired records, unparsable records older than the TTL and
// leftover temp files. Failures on single files are logged and skipped.
func (c *Cache) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return result, fmt.Errorf("read memory dir: %w", err)
	}

	now := c.clock.Now()
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if strings.HasPrefix(name, tempPrefix) {
			if info, err := entry.Info(); err == nil && now.Sub(info.ModTime()) > staleTempMaxAge {
				c.remove(filepath.Join(c.dir, name), &result)
			}
			continue
		}

		id, ok := recordID(entry)
		if !ok {
			continue
		}

		data, err := os.ReadFile(c.path(id))
		if err != nil {
			c.logger.Warn().Str("id", id).Err(err).Msg("sweep could not read memory record")
			continue
		}

		summary, err := summarize(id, data)
		if err != nil {
			result.Corrupt++
			info, infoErr := entry.Info()
			if infoErr == nil && now.Sub(info.ModTime()) > c.ttl {
				c.remove(c.path(id), &result)
			} else {
				result.Kept++
			}
			continue
		}

		if c.expired(summary.CreatedAt) {
			c.remove(c.path(id), &result)
			continue
		}
		result.Kept++
	}

	c.metrics.RecordSwept(result.Removed)
	if result.Removed > 0 || result.Corrupt > 0 {
		c.logger.Info().
			Int("removed", result.Removed).
			Int("corrupt", result.Corrupt).
			Int("kept", result.Kept).
			Msg("memory sweep finished")
	}
	return result, nil
}

// RunJanitor sweeps every interval until ctx is done.
func (c *Cache) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Sweep(ctx); err != nil && ctx.Err() == nil {
				c.logger.Warn().Err(err).Msg("memory sweep failed")
			}
		}
	}
}

func (c *Cache) remove(path string, result *SweepResult) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.logger.Warn().Str("path", path).Err(err).Msg("sweep could not remove file")
		return
	}
	result.Removed++
}

func (c *Cache) parse(id string, data []byte) (recordFile, error) {
	var record recordFile
	if err := json.Unmarshal(data, &record); err != nil {
		return recordFile{}, err
	}
	if record.Version != recordVersion {
		return recordFile{}, fmt.Errorf("unsupported record version %d", record.Version)
	}
	if record.ID != id {
		return recordFile{}, fmt.Errorf("record id %q does not match file name", record.ID)
	}
	if record.CreatedAt.IsZero() {
		return recordFile{}, errors.New("record has no created_at")
	}
	return record, nil
}

func (c *Cache) corrupted(id string, err error) error {
	c.metrics.RecordMemoryOp("load", "corrupt")
	c.logger.Warn().Str("id", id).Err(err).Msg("memory record is corrupted, treating as not found")
	return fmt.Errorf("%w: %w", domain.ErrMemoryNotFound, &CorruptionError{ID: id, Err: err})
}

func (c *Cache) expired(createdAt time.Time) bool {
	return !createdAt.Add(c.ttl).After(c.clock.Now())
}

func (c *Cache) path(id string) string {
	return filepath.Join(c.dir, id+recordExt)
}

// summarize reads the header fields without decoding the payload.
func summarize(id string, data []byte) (domain.RecordSummary, error) {
	if !gjson.ValidBytes(data) {
		return domain.RecordSummary{}, errors.New("invalid json")
	}

	fields := gjson.GetManyBytes(data, "v", "id", "kind", "description", "created_at", "item_count")
	if fields[0].Int() != recordVersion {
		return domain.RecordSummary{}, fmt.Errorf("unsupported record version %d", fields[0].Int())
	}
	if fields[1].String() != id {
		return domain.RecordSummary{}, fmt.Errorf("record id %q does not match file name", fields[1].String())
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields[4].String())
	if err != nil {
		return domain.RecordSummary{}, fmt.Errorf("parse created_at: %w", err)
	}

	return domain.RecordSummary{
		ID:          id,
		Kind:        fields[2].String(),
		Description: fields[3].String(),
		CreatedAt:   createdAt,
		ItemCount:   int(fields[5].Int()),
	}, nil
}

func recordID(entry fs.DirEntry) (string, bool) {
	if entry.IsDir() {
		return "", false
	}
	name := entry.Name()
	if !strings.HasSuffix(name, recordExt) {
		return "", false
	}
	id := strings.TrimSuffix(name, recordExt)
	return id, ValidID(id)
}

func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

func newID(kind string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%s-%s", slug(kind), now.UTC().Format(idTimeLayout), suffix)
}

func slug(kind string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(kind) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if b.Len() > 0 && !dash {
				b.WriteByte('-')
				dash = true
			}
		}
		if b.Len() >= maxSlugLength {
			break
		}
	}

	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "memory"
	}
	return out
}
