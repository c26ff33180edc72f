package store

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertBatches(t *testing.T) {
	catalog := map[string]string{"a": "A", "b": "B", "c": "C", "d": "D", "e": "E"}
	batches := upsertBatches("en", catalog, sortedKeys(catalog), 2)

	require.Len(t, batches, 3)
	assert.Equal(t, 2, batches[0].Len())
	assert.Equal(t, 2, batches[1].Len())
	assert.Equal(t, 1, batches[2].Len())
	assert.Equal(t, []any{"en", "a", "A"}, batches[0].QueuedQueries[0].Arguments)
	assert.Equal(t, []any{"en", "e", "E"}, batches[2].QueuedQueries[0].Arguments)

	assert.Empty(t, upsertBatches("en", nil, nil, 2))
}

// openTestStore connects to G11N_TEST_DATABASE_URL, skipping when unset.
func openTestStore(t *testing.T) *CatalogStore {
	t.Helper()
	url := os.Getenv("G11N_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("G11N_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s := NewCatalogStore(pool, zerolog.Nop())
	require.NoError(t, s.EnsureSchema(ctx))
	_, err = pool.Exec(ctx, `DELETE FROM g11n_messages WHERE locale LIKE 'test-%'`)
	require.NoError(t, err)
	return s
}

func TestPublishRoundTrip(t *testing.T) {
	s := openTestStore(t)
	s.BatchSize = 2
	ctx := context.Background()

	n, err := s.Publish(ctx, "test-fr", map[string]string{"a": "A", "b": "B", "c": "C"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.Publish(ctx, "test-fr", map[string]string{"a": "A", "b": "Bee"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	catalog, err := s.Catalog(ctx, "test-fr")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "A", "b": "Bee"}, catalog)

	fresh := NewCatalogStore(s.db, zerolog.Nop())
	require.NoError(t, fresh.Preload(ctx))
	v, ok := fresh.Get(ctx, "test-fr", "b")
	assert.True(t, ok)
	assert.Equal(t, "Bee", v)
	_, ok = fresh.Get(ctx, "test-fr", "c")
	assert.False(t, ok)
	assert.Contains(t, fresh.Locales(), "test-fr")
}

func TestMirrorAccessors(t *testing.T) {
	s := NewCatalogStore(nil, zerolog.Nop())
	s.memory["fr"] = map[string]string{"a": "Un"}
	s.memory["en"] = map[string]string{"a": "One"}

	assert.Equal(t, []string{"en", "fr"}, s.Locales())

	v, ok := s.Get(context.Background(), "fr", "a")
	assert.True(t, ok)
	assert.Equal(t, "Un", v)

	catalogs := s.Catalogs()
	assert.Equal(t, map[string]map[string]string{"en": {"a": "One"}, "fr": {"a": "Un"}}, catalogs)
	catalogs["fr"]["a"] = "changed"
	v, _ = s.Get(context.Background(), "fr", "a")
	assert.Equal(t, "Un", v)
}
