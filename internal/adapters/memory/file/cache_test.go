package file

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bnema/askdb/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)}
	cache, err := New(context.Background(), Options{
		Dir:    filepath.Join(t.TempDir(), "memory"),
		TTL:    ttl,
		Clock:  clock,
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	return cache, clock
}

func contactsPayload() []any {
	return []any{
		map[string]any{"name": "Ada", "photo": []byte{0x89, 'P', 'N', 'G', 0x00, 0xff}},
		map[string]any{"name": "Grace", "age": int64(85), "score": 9.5, "ratio": 2.0, "tags": []any{"vip", nil, true}},
	}
}

func TestSaveAndListContacts(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	id, err := cache.Save(ctx, contactsPayload(), "contacts", "two contacts")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.True(t, ValidID(id), id)
	assert.Regexp(t, `^contacts-20260301T093000\.000-[0-9a-f]{8}$`, id)

	summaries, err := cache.List(ctx, "contacts")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, id, summaries[0].ID)
	assert.Equal(t, 2, summaries[0].ItemCount)
	assert.Equal(t, "two contacts", summaries[0].Description)

	others, err := cache.List(ctx, "invoices")
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestLoadRoundTripsPayload(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	tests := []struct {
		name    string
		payload any
		want    any
	}{
		{name: "records with binary", payload: contactsPayload(), want: contactsPayload()},
		{name: "bare bytes", payload: []byte("raw"), want: []byte("raw")},
		{name: "nil", payload: nil, want: nil},
		{name: "int normalised", payload: map[string]any{"count": 3}, want: map[string]any{"count": int64(3)}},
		{
			name:    "reserved key",
			payload: map[string]any{"$bytes": "not base64!", "other": 1.25},
			want:    map[string]any{"$bytes": "not base64!", "other": 1.25},
		},
		{
			name:    "lone reserved key",
			payload: map[string]any{"$map": map[string]any{"x": int64(1)}},
			want:    map[string]any{"$map": map[string]any{"x": int64(1)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := cache.Save(ctx, tt.payload, "rt", tt.name)
			require.NoError(t, err)

			record, err := cache.Load(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, record.Payload)
			assert.Equal(t, "rt", record.Kind)
			assert.Equal(t, domain.ItemCount(tt.payload), record.ItemCount)
		})
	}
}

type contactCard struct {
	Name   string `json:"name"`
	Photo  []byte `json:"photo"`
	Note   string `json:"note,omitempty"`
	Secret string `json:"-"`
	hidden string
}

type taggedCard struct {
	contactCard
	Name string   `json:"display_name"`
	Tags []string `json:"tags,omitempty"`
}

func TestStructPayloadKeepsBinaryMembers(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	payload := []contactCard{
		{Name: "Ada", Photo: []byte{0xff, 0x00, 0x01}, Secret: "s", hidden: "h"},
		{Name: "Grace", Note: "admiral"},
	}
	id, err := cache.Save(ctx, payload, "contacts", "structs")
	require.NoError(t, err)

	record, err := cache.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, record.ItemCount)
	assert.Equal(t, []any{
		map[string]any{"name": "Ada", "photo": []byte{0xff, 0x00, 0x01}},
		map[string]any{"name": "Grace", "photo": nil, "note": "admiral"},
	}, record.Payload)

	items := record.Payload.([]any)
	photo, isBytes := items[0].(map[string]any)["photo"].([]byte)
	require.True(t, isBytes)
	assert.Equal(t, []byte{0xff, 0x00, 0x01}, photo)
}

func TestStructPayloadPromotesEmbeddedFields(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	card := &taggedCard{
		contactCard: contactCard{Name: "inner", Photo: []byte("img")},
		Name:        "Ada",
	}
	id, err := cache.Save(ctx, card, "contacts", "embedded")
	require.NoError(t, err)

	record, err := cache.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"display_name": "Ada",
		"name":         "inner",
		"photo":        []byte("img"),
	}, record.Payload)
}

func TestSaveRejectsUnsupportedMembers(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t, time.Hour)

	for _, payload := range []any{
		map[string]any{"fn": func() {}},
		[]any{make(chan int)},
		map[string]any{"nan": math.NaN()},
		map[int]string{1: "a"},
		complex(1, 2),
	} {
		_, err := cache.Save(context.Background(), payload, "bad", "")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnsupportedPayload), err.Error())
	}

	entries, err := os.ReadDir(cache.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDeleteIsIdempotent(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	id, err := cache.Save(ctx, []any{1, 2}, "numbers", "")
	require.NoError(t, err)

	deleted, err := cache.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = cache.Load(ctx, id)
	assert.ErrorIs(t, err, domain.ErrMemoryNotFound)

	deleted, err = cache.Delete(ctx, id)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = cache.Load(ctx, id)
	assert.ErrorIs(t, err, domain.ErrMemoryNotFound)
}

func TestExpiry(t *testing.T) {
	t.Parallel()

	cache, clock := newTestCache(t, time.Hour)
	ctx := context.Background()

	oldID, err := cache.Save(ctx, "old", "notes", "")
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)
	freshID, err := cache.Save(ctx, "fresh", "notes", "")
	require.NoError(t, err)

	clock.Advance(31 * time.Minute)

	_, err = cache.Load(ctx, oldID)
	assert.ErrorIs(t, err, domain.ErrMemoryNotFound)

	summaries, err := cache.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, freshID, summaries[0].ID)

	result, err := cache.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Removed)
	assert.Equal(t, 1, result.Kept)

	_, err = os.Stat(filepath.Join(cache.Dir(), oldID+".json"))
	assert.True(t, os.IsNotExist(err))
	_, err = cache.Load(ctx, oldID)
	assert.ErrorIs(t, err, domain.ErrMemoryNotFound)
}

func TestListNewestFirst(t *testing.T) {
	t.Parallel()

	cache, clock := newTestCache(t, time.Hour)
	ctx := context.Background()

	first, err := cache.Save(ctx, "a", "k", "")
	require.NoError(t, err)
	clock.Advance(time.Second)
	second, err := cache.Save(ctx, "b", "k", "")
	require.NoError(t, err)

	summaries, err := cache.List(ctx, "k")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, second, summaries[0].ID)
	assert.Equal(t, first, summaries[1].ID)
}

func TestCorruptedRecordDegradesToNotFound(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	good, err := cache.Save(ctx, "kept", "k", "")
	require.NoError(t, err)

	brokenID := "k-20260301T093000.000-deadbeef"
	brokenPath := filepath.Join(cache.Dir(), brokenID+".json")
	require.NoError(t, os.WriteFile(brokenPath, []byte(`{"v":1,"id":"k-2026`), 0o600))

	_, err = cache.Load(ctx, brokenID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMemoryNotFound)
	assert.Equal(t, domain.KindCacheCorruption, domain.KindOf(err))

	summaries, err := cache.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, good, summaries[0].ID)

	result, err := cache.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Corrupt)
	assert.FileExists(t, brokenPath)

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(brokenPath, old, old))
	cache.clock = &fakeClock{now: time.Now()}

	result, err = cache.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Corrupt)
	assert.NoFileExists(t, brokenPath)
}

func TestLoadRejectsForeignIDs(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t, time.Hour)

	for _, id := range []string{"", "../etc/passwd", "contacts", ".tmp-123"} {
		_, err := cache.Load(context.Background(), id)
		assert.ErrorIs(t, err, domain.ErrMemoryNotFound, id)

		deleted, err := cache.Delete(context.Background(), id)
		require.NoError(t, err)
		assert.False(t, deleted)
	}
}

func TestConcurrentSavesProduceDistinctIDs(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t, time.Hour)
	ctx := context.Background()

	const workers = 32
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := cache.Save(ctx, []any{int64(i)}, "same kind", "")
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, workers)
	for _, id := range ids {
		require.NotEmpty(t, id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}

	summaries, err := cache.List(ctx, "same kind")
	require.NoError(t, err)
	assert.Len(t, summaries, workers)
}

func TestSlug(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "contacts", slug("contacts"))
	assert.Equal(t, "search-results", slug("  Search Results!! "))
	assert.Equal(t, "memory", slug("***"))
	assert.LessOrEqual(t, len(slug("a very long kind name that keeps going and going")), maxSlugLength)
}

func TestRunJanitorStopsWithContext(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		cache.RunJanitor(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
