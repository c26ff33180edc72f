// Package store publishes compiled locale catalogs to PostgreSQL so services
// can serve translations without shipping the JSON files.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"g11n/internal/worker"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

const schema = `
CREATE TABLE IF NOT EXISTS g11n_messages (
	locale     TEXT        NOT NULL,
	key        TEXT        NOT NULL,
	text       TEXT        NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (locale, key)
)`

const upsertMessage = `
INSERT INTO g11n_messages (locale, key, text)
VALUES ($1, $2, $3)
ON CONFLICT (locale, key) DO UPDATE
SET text = EXCLUDED.text, updated_at = now()
WHERE g11n_messages.text IS DISTINCT FROM EXCLUDED.text`

const deleteStale = `DELETE FROM g11n_messages WHERE locale = $1 AND NOT (key = ANY($2))`

const selectLocale = `SELECT key, text FROM g11n_messages WHERE locale = $1`

const selectAll = `SELECT locale, key, text FROM g11n_messages`

// DefaultBatchSize is the number of upserts sent per round trip.
const DefaultBatchSize = 500

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CatalogStore keeps locale catalogs in PostgreSQL with an in-memory mirror.
type CatalogStore struct {
	db        DB
	logger    zerolog.Logger
	BatchSize int

	mu     sync.RWMutex
	memory map[string]map[string]string // locale → key → text
}

// NewCatalogStore creates a store backed by db.
func NewCatalogStore(db DB, logger zerolog.Logger) *CatalogStore {
	return &CatalogStore{
		db:        db,
		logger:    logger,
		BatchSize: DefaultBatchSize,
		memory:    make(map[string]map[string]string),
	}
}

// EnsureSchema creates the messages table if needed.
func (s *CatalogStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Publish replaces the stored catalog of locale with catalog: keys are
// upserted and keys no longer present are deleted, in one transaction.
// It returns the number of rows written or updated.
func (s *CatalogStore) Publish(ctx context.Context, locale string, catalog map[string]string) (int, error) {
	keys := sortedKeys(catalog)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin publish %s: %w", locale, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, deleteStale, locale, keys); err != nil {
		return 0, fmt.Errorf("delete stale messages for %s: %w", locale, err)
	}

	written := 0
	for _, batch := range upsertBatches(locale, catalog, keys, s.BatchSize) {
		n, err := sendBatch(ctx, tx, batch)
		written += n
		if err != nil {
			return written, fmt.Errorf("upsert messages for %s: %w", locale, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return written, fmt.Errorf("commit publish %s: %w", locale, err)
	}

	mirror := make(map[string]string, len(catalog))
	for k, v := range catalog {
		mirror[k] = v
	}
	s.mu.Lock()
	s.memory[locale] = mirror
	s.mu.Unlock()

	s.logger.Info().Str("locale", locale).Int("messages", len(catalog)).Int("written", written).Msg("Published catalog")
	return written, nil
}

// upsertBatches chunks the upserts of catalog, in key order.
func upsertBatches(locale string, catalog map[string]string, keys []string, size int) []*pgx.Batch {
	var batches []*pgx.Batch
	for _, chunk := range worker.Batch(keys, size) {
		b := &pgx.Batch{}
		for _, k := range chunk {
			b.Queue(upsertMessage, locale, k, catalog[k])
		}
		batches = append(batches, b)
	}
	return batches
}

func sendBatch(ctx context.Context, tx pgx.Tx, b *pgx.Batch) (int, error) {
	results := tx.SendBatch(ctx, b)
	written := 0
	for i := 0; i < b.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return written, err
		}
		written += int(tag.RowsAffected())
	}
	return written, results.Close()
}

// Get returns the text of key in locale, reading through to the database
// when the locale is not mirrored yet.
func (s *CatalogStore) Get(ctx context.Context, locale, key string) (string, bool) {
	s.mu.RLock()
	if m, ok := s.memory[locale]; ok {
		v, found := m[key]
		s.mu.RUnlock()
		return v, found
	}
	s.mu.RUnlock()

	catalog, err := s.Catalog(ctx, locale)
	if err != nil {
		s.logger.Warn().Err(err).Str("locale", locale).Msg("Catalog lookup failed")
		return "", false
	}
	v, found := catalog[key]
	return v, found
}

// Catalog loads the catalog of locale and mirrors it in memory.
func (s *CatalogStore) Catalog(ctx context.Context, locale string) (map[string]string, error) {
	rows, err := s.db.Query(ctx, selectLocale, locale)
	if err != nil {
		return nil, fmt.Errorf("query catalog %s: %w", locale, err)
	}
	defer rows.Close()

	catalog := make(map[string]string)
	for rows.Next() {
		var key, text string
		if err := rows.Scan(&key, &text); err != nil {
			return nil, fmt.Errorf("scan catalog %s: %w", locale, err)
		}
		catalog[key] = text
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", locale, err)
	}

	s.mu.Lock()
	s.memory[locale] = catalog
	s.mu.Unlock()
	return catalog, nil
}

// Preload mirrors every stored catalog in memory.
func (s *CatalogStore) Preload(ctx context.Context) error {
	rows, err := s.db.Query(ctx, selectAll)
	if err != nil {
		return fmt.Errorf("preload catalogs: %w", err)
	}
	defer rows.Close()

	loaded := make(map[string]map[string]string)
	count := 0
	for rows.Next() {
		var locale, key, text string
		if err := rows.Scan(&locale, &key, &text); err != nil {
			return fmt.Errorf("scan message: %w", err)
		}
		if loaded[locale] == nil {
			loaded[locale] = make(map[string]string)
		}
		loaded[locale][key] = text
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("preload catalogs: %w", err)
	}

	s.mu.Lock()
	for locale, catalog := range loaded {
		s.memory[locale] = catalog
	}
	s.mu.Unlock()

	s.logger.Info().Int("locales", len(loaded)).Int("count", count).Msg("Preloaded catalogs")
	return nil
}

// Locales returns the mirrored locales, sorted.
func (s *CatalogStore) Locales() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	locales := make([]string, 0, len(s.memory))
	for l := range s.memory {
		locales = append(locales, l)
	}
	sort.Strings(locales)
	return locales
}

// Catalogs returns a copy of the mirrored catalogs keyed by locale.
func (s *CatalogStore) Catalogs() map[string]map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]map[string]string, len(s.memory))
	for locale, catalog := range s.memory {
		copied := make(map[string]string, len(catalog))
		for k, v := range catalog {
			copied[k] = v
		}
		out[locale] = copied
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
