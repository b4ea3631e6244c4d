// Package bolt keeps the local record store and its backups in a bbolt file.
package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bnema/askdb/internal/domain"
	"github.com/bnema/askdb/internal/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"
)

var (
	recordsBucket = []byte("records")
	tagsBucket    = []byte("tags")
	backupsBucket = []byte("backups")
)

const (
	openTimeout      = time.Second
	backupTimeLayout = "20060102T150405.000"
)

type Options struct {
	Clock  ports.Clock
	Logger zerolog.Logger
}

type Store struct {
	db        *bolt.DB
	path      string
	backupDir string
	clock     ports.Clock
	logger    zerolog.Logger
}

var (
	_ ports.RecordStore = (*Store)(nil)
	_ ports.BackupSink  = (*Store)(nil)
)

type recordDocument struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Photo     []byte    `json:"photo,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type backupDocument struct {
	ID        string    `json:"id"`
	IsAuto    bool      `json:"is_auto"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	File      string    `json:"file"`
}

func Open(path string, backupDir string, opts Options) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store path is required")
	}
	if strings.TrimSpace(backupDir) == "" {
		return nil, errors.New("backup dir is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	if err := os.MkdirAll(backupDir, 0o700); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{recordsBucket, tagsBucket, backupsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	clock := opts.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &Store{
		db:        db,
		path:      path,
		backupDir: backupDir,
		clock:     clock,
		logger:    opts.Logger,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetByID(ctx context.Context, id domain.RecordID) (domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return domain.Record{}, err
	}

	var record domain.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(recordsBucket).Get([]byte(id))
		if raw == nil {
			return fmt.Errorf("record %s: %w", id, domain.ErrRecordNotFound)
		}
		decoded, err := decodeRecord(raw)
		if err != nil {
			return fmt.Errorf("decode record %s: %w", id, err)
		}
		record = decoded
		return nil
	})
	return record, err
}

func (s *Store) List(ctx context.Context) ([]domain.Record, error) {
	return s.Search(ctx, "", 0)
}

// Search returns records matching query in id order. A limit of zero or less
// means no limit. Undecodable entries are skipped.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []domain.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(recordsBucket).Cursor()
		for key, raw := cursor.First(); key != nil; key, raw = cursor.Next() {
			record, err := decodeRecord(raw)
			if err != nil {
				s.logger.Warn().Str("record_id", string(key)).Err(err).Msg("skipping undecodable record")
				continue
			}
			if !record.Matches(query) {
				continue
			}
			records = append(records, record)
			if limit > 0 && len(records) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search records: %w", err)
	}
	return records, nil
}

// Writes check ctx again once they hold the write lock, so a caller that gave
// up while waiting for the lock never commits.
func (s *Store) Save(ctx context.Context, record domain.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(string(record.ID)) == "" {
		return errors.New("record id is required")
	}

	record.UpdatedAt = s.clock.Now()
	tags := make([]string, 0, len(record.Tags))
	for _, tag := range record.Tags {
		if normalized := domain.NormalizeTag(tag); normalized != "" && !containsString(tags, normalized) {
			tags = append(tags, normalized)
		}
	}
	record.Tags = tags

	encoded, err := json.Marshal(recordDocument{
		ID:        string(record.ID),
		Name:      record.Name,
		Email:     record.Email,
		Phone:     record.Phone,
		Notes:     record.Notes,
		Tags:      record.Tags,
		Photo:     record.Photo,
		UpdatedAt: record.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode record %s: %w", record.ID, err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		tagBucket := tx.Bucket(tagsBucket)
		for _, tag := range record.Tags {
			if err := tagBucket.Put([]byte(tag), []byte{}); err != nil {
				return fmt.Errorf("register tag %s: %w", tag, err)
			}
		}
		if err := tx.Bucket(recordsBucket).Put([]byte(record.ID), encoded); err != nil {
			return fmt.Errorf("save record %s: %w", record.ID, err)
		}
		return nil
	})
}

func (s *Store) Delete(ctx context.Context, id domain.RecordID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		bucket := tx.Bucket(recordsBucket)
		if bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("record %s: %w", id, domain.ErrRecordNotFound)
		}
		return bucket.Delete([]byte(id))
	})
}

// CreateTag reports whether the tag was new.
func (s *Store) CreateTag(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	tag := domain.NormalizeTag(name)
	if tag == "" {
		return false, errors.New("tag name is required")
	}

	created := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		bucket := tx.Bucket(tagsBucket)
		if bucket.Get([]byte(tag)) != nil {
			return nil
		}
		created = true
		return bucket.Put([]byte(tag), []byte{})
	})
	return created, err
}

func (s *Store) Tags(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var tags []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(tagsBucket).ForEach(func(k, _ []byte) error {
			tags = append(tags, string(k))
			return nil
		})
	})
	return tags, err
}

// CreateBackup copies the whole database into the backup dir inside a read
// transaction, so the snapshot is consistent with concurrent writers.
func (s *Store) CreateBackup(ctx context.Context, comment string, auto bool) (domain.BackupRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.BackupRecord{}, err
	}

	now := s.clock.Now().UTC()
	id := fmt.Sprintf("backup-%s-%s", now.Format(backupTimeLayout), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	file := filepath.Join(s.backupDir, id+".db")

	if err := s.db.View(func(tx *bolt.Tx) error {
		return tx.CopyFile(file, 0o600)
	}); err != nil {
		_ = os.Remove(file)
		return domain.BackupRecord{}, fmt.Errorf("snapshot record store: %w", err)
	}

	document := backupDocument{
		ID:        id,
		IsAuto:    auto,
		Comment:   comment,
		CreatedAt: now,
		File:      file,
	}
	encoded, err := json.Marshal(document)
	if err != nil {
		return domain.BackupRecord{}, fmt.Errorf("encode backup record: %w", err)
	}

	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(backupsBucket).Put([]byte(id), encoded)
	}); err != nil {
		_ = os.Remove(file)
		return domain.BackupRecord{}, fmt.Errorf("save backup record: %w", err)
	}

	s.logger.Debug().Str("backup_id", id).Str("file", file).Bool("auto", auto).Msg("backup written")
	return document.record(), nil
}

func (s *Store) ListBackups(ctx context.Context) ([]domain.BackupRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var backups []domain.BackupRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(backupsBucket).ForEach(func(k, v []byte) error {
			var document backupDocument
			if err := json.Unmarshal(v, &document); err != nil {
				s.logger.Warn().Str("backup_id", string(k)).Err(err).Msg("skipping undecodable backup record")
				return nil
			}
			backups = append(backups, document.record())
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	sort.SliceStable(backups, func(i, j int) bool {
		if backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].ID > backups[j].ID
		}
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

func (d backupDocument) record() domain.BackupRecord {
	return domain.BackupRecord{
		ID:        d.ID,
		IsAuto:    d.IsAuto,
		Comment:   d.Comment,
		CreatedAt: d.CreatedAt,
	}
}

func decodeRecord(raw []byte) (domain.Record, error) {
	var document recordDocument
	if err := json.Unmarshal(raw, &document); err != nil {
		return domain.Record{}, err
	}
	return domain.Record{
		ID:        domain.RecordID(document.ID),
		Name:      document.Name,
		Email:     document.Email,
		Phone:     document.Phone,
		Notes:     document.Notes,
		Tags:      document.Tags,
		Photo:     document.Photo,
		UpdatedAt: document.UpdatedAt,
	}, nil
}

func containsString(values []string, needle string) bool {
	for _, value := range values {
		if value == needle {
			return true
		}
	}
	return false
}
