package toml

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bnema/askdb/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryRoundTrip(t *testing.T) {
	t.Parallel()

	repo, err := NewRepository(t.TempDir())
	require.NoError(t, err)

	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	conversation := domain.NewConversation("s-1", created)
	conversation.Append(domain.Message{Role: domain.RoleUser, Content: "who is ada?"}, created)
	conversation.Append(domain.Message{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{{ID: "call_1", Name: "search_records"}}}, created)
	conversation.Append(domain.Message{Role: domain.RoleTool, Content: `{"count":1}`, ToolCallID: "call_1", ToolName: "search_records"}, created)
	conversation.Append(domain.Message{Role: domain.RoleAssistant, Content: "Ada is a contact."}, created.Add(time.Second))

	require.NoError(t, repo.Save(context.Background(), conversation))

	got, err := repo.GetBySessionID(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, "s-1", got.SessionID)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.True(t, created.Add(time.Second).Equal(got.UpdatedAt))
	assert.Equal(t, []domain.Message{
		{Role: domain.RoleUser, Content: "who is ada?"},
		{Role: domain.RoleAssistant, Content: "Ada is a contact."},
	}, got.Messages())
}

func TestRepositoryMissingSession(t *testing.T) {
	t.Parallel()

	repo, err := NewRepository(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)

	_, err = repo.GetBySessionID(context.Background(), "s-1")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	ids, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRepositoryRejectsUnsafeSessionIDs(t *testing.T) {
	t.Parallel()

	repo, err := NewRepository(t.TempDir())
	require.NoError(t, err)

	for _, id := range []string{"", "../escape", "a/b", ".hidden"} {
		_, err := repo.GetBySessionID(context.Background(), id)
		assert.ErrorContains(t, err, "invalid session id", id)
	}
}

func TestRepositorySaveEnforcesPermissions(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "sessions")
	repo, err := NewRepository(dir)
	require.NoError(t, err)

	require.NoError(t, repo.Save(context.Background(), domain.NewConversation("s-1", time.Now())))

	info, err := os.Stat(filepath.Join(dir, "s-1.toml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(filepath.Join(dir, "s-1.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "version = 1")
}

func TestRepositoryMalformedTOMLReturnsError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s-1.toml"), []byte("messages = ["), 0o600))

	repo, err := NewRepository(dir)
	require.NoError(t, err)

	_, err = repo.GetBySessionID(context.Background(), "s-1")
	require.Error(t, err)
	assert.ErrorContains(t, err, "decode transcript file")
}

func TestRepositoryFutureSchemaVersionReturnsError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s-1.toml"), []byte(strings.Join([]string{
		"version = 999",
		"session_id = \"s-1\"",
		"",
	}, "\n")), 0o600))

	repo, err := NewRepository(dir)
	require.NoError(t, err)

	_, err = repo.GetBySessionID(context.Background(), "s-1")
	require.Error(t, err)
	assert.ErrorContains(t, err, "unsupported transcript schema version")
}

func TestRepositorySaveCanceledContextReturnsContextError(t *testing.T) {
	t.Parallel()

	repo, err := NewRepository(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = repo.Save(ctx, domain.NewConversation("s-1", time.Now()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRepositoryListSkipsForeignFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	repo, err := NewRepository(dir)
	require.NoError(t, err)

	require.NoError(t, repo.Save(context.Background(), domain.NewConversation("s-1", time.Now())))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.toml"), 0o700))

	ids, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s-1"}, ids)
}

func TestRepositoryConcurrentSavesAcrossInstances(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	newRepo := func() *Repository {
		repo, err := NewRepository(dir)
		require.NoError(t, err)
		return repo
	}

	repoA := newRepo()
	repoB := newRepo()

	const perRepoWrites = 50
	start := make(chan struct{})
	errCh := make(chan error, perRepoWrites*2)
	var wg sync.WaitGroup
	wg.Add(2)

	save := func(repo *Repository, prefix string) {
		defer wg.Done()
		<-start
		for i := 0; i < perRepoWrites; i++ {
			errCh <- repo.Save(context.Background(), domain.NewConversation(prefix+strconv.Itoa(i), time.Now()))
		}
	}
	go save(repoA, "a-")
	go save(repoB, "b-")

	close(start)
	wg.Wait()
	close(errCh)

	for err := range errCh {
		require.NoError(t, err)
	}

	ids, err := repoA.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, ids, perRepoWrites*2)
}
