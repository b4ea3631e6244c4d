// Package toml persists chat transcripts as one TOML file per session.
package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bnema/askdb/internal/domain"
	"github.com/bnema/askdb/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	transcriptFileMode = 0o600
	transcriptDirMode  = 0o700
	transcriptExt      = ".toml"
	tempFilePattern    = ".session-*.toml.tmp"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// Repository stores only user messages and assistant text. Tool traffic is
// scoped to the turn that produced it.
type Repository struct {
	dir string
	mu  *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.ConversationRepository = (*Repository)(nil)

func NewRepository(dir string) (*Repository, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("sessions dir is empty")
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve sessions dir: %w", err)
	}
	absDir = filepath.Clean(absDir)

	return &Repository{dir: absDir, mu: lockForPath(absDir)}, nil
}

func (r *Repository) Save(ctx context.Context, conversation *domain.Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if conversation == nil {
		return errors.New("conversation is nil")
	}
	path, err := r.pathFor(conversation.SessionID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return writeSchema(path, toSchema(conversation))
}

func (r *Repository) GetBySessionID(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := r.pathFor(sessionID)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := readSchema(path)
	if err != nil {
		return nil, err
	}

	return fromSchema(sessionID, file), nil
}

// List returns stored session ids, most recently written first.
func (r *Repository) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sessions dir: %w", err)
	}

	type session struct {
		id      string
		modTime time.Time
	}
	sessions := make([]session, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, transcriptExt) {
			continue
		}
		id := strings.TrimSuffix(name, transcriptExt)
		if !sessionIDPattern.MatchString(id) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		sessions = append(sessions, session{id: id, modTime: info.ModTime()})
	}

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].modTime.Equal(sessions[j].modTime) {
			return sessions[i].id < sessions[j].id
		}
		return sessions[i].modTime.After(sessions[j].modTime)
	})

	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.id)
	}
	return ids, nil
}

func (r *Repository) pathFor(sessionID string) (string, error) {
	if !sessionIDPattern.MatchString(sessionID) {
		return "", fmt.Errorf("invalid session id %q", sessionID)
	}
	return filepath.Join(r.dir, sessionID+transcriptExt), nil
}

func readSchema(path string) (transcriptSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return transcriptSchema{}, domain.ErrSessionNotFound
		}
		return transcriptSchema{}, fmt.Errorf("read transcript file: %w", err)
	}

	var file transcriptSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return transcriptSchema{}, fmt.Errorf("decode transcript file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return transcriptSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func writeSchema(path string, file transcriptSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(path), transcriptDirMode); err != nil {
		return fmt.Errorf("create sessions directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode transcript file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp transcript file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp transcript file: %w", err)
	}
	if err := tempFile.Chmod(transcriptFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp transcript file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp transcript file: %w", err)
	}

	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("replace transcript file: %w", err)
	}
	cleanup = false

	return nil
}

func toSchema(conversation *domain.Conversation) transcriptSchema {
	file := transcriptSchema{
		Version:   currentSchemaVersion,
		SessionID: conversation.SessionID,
		CreatedAt: formatTime(conversation.CreatedAt),
		UpdatedAt: formatTime(conversation.UpdatedAt),
	}

	for _, message := range conversation.Messages() {
		switch message.Role {
		case domain.RoleUser, domain.RoleAssistant:
		default:
			continue
		}
		if strings.TrimSpace(message.Content) == "" {
			continue
		}
		file.Messages = append(file.Messages, messageSchema{Role: string(message.Role), Content: message.Content})
	}

	return file
}

func fromSchema(sessionID string, file transcriptSchema) *domain.Conversation {
	messages := make([]domain.Message, 0, len(file.Messages))
	for _, entry := range file.Messages {
		role := domain.Role(entry.Role)
		if role != domain.RoleUser && role != domain.RoleAssistant {
			continue
		}
		messages = append(messages, domain.Message{Role: role, Content: entry.Content})
	}

	return domain.RestoreConversation(sessionID, parseTime(file.CreatedAt), parseTime(file.UpdatedAt), messages)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.UTC().Format(time.RFC3339Nano)
}
