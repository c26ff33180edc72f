package locale

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// Snapshot is a consistent view of a FetchController.
type Snapshot struct {
	State State
	// Locale is the active locale; empty until a catalog is available.
	Locale string
	// Requested is the locale being loaded, or the one that failed.
	Requested string
	Err       *FetchError
}

// FetchController keeps the active locale and loads missing catalogs
// through a Fetcher. Preloaded catalogs are always available; fetched ones
// live in an LRU cache.
type FetchController struct {
	fetcher   Fetcher
	logger    zerolog.Logger
	preloaded map[string]map[string]string
	cache     *lru.Cache[string, map[string]string]

	// OnChange, when set, receives every new snapshot. It runs with the
	// controller locked and must not call back into it.
	OnChange func(Snapshot)

	mu        sync.Mutex
	state     State
	locale    string
	requested string
	err       *FetchError
	token     uint64
	cancel    context.CancelFunc
}

// NewFetchController creates a controller. cacheSize bounds the number of
// fetched catalogs kept in memory.
func NewFetchController(fetcher Fetcher, preloaded map[string]map[string]string, cacheSize int, logger zerolog.Logger) (*FetchController, error) {
	if cacheSize <= 0 {
		cacheSize = 1
	}
	cache, err := lru.New[string, map[string]string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create catalog cache: %w", err)
	}
	copied := make(map[string]map[string]string, len(preloaded))
	for l, m := range preloaded {
		copied[l] = m
	}
	return &FetchController{
		fetcher:   fetcher,
		logger:    logger,
		preloaded: copied,
		cache:     cache,
	}, nil
}

func (c *FetchController) lookup(locale string) (map[string]string, bool) {
	if m, ok := c.preloaded[locale]; ok {
		return m, true
	}
	return c.cache.Get(locale)
}

// apply runs a transition. Callers hold mu.
func (c *FetchController) apply(e Event) error {
	next, err := Next(c.state, e)
	if err != nil {
		return err
	}
	c.logger.Debug().Stringer("from", c.state).Stringer("to", next).Stringer("event", e).Msg("Locale state change")
	c.state = next
	if c.OnChange != nil {
		c.OnChange(c.snapshotLocked())
	}
	return nil
}

func (c *FetchController) snapshotLocked() Snapshot {
	return Snapshot{State: c.state, Locale: c.locale, Requested: c.requested, Err: c.err}
}

// Snapshot returns the current state.
func (c *FetchController) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Messages returns the active locale and its catalog. ok is false until a
// catalog has been loaded.
func (c *FetchController) Messages() (locale string, messages map[string]string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locale == "" {
		return "", nil, false
	}
	messages, ok = c.lookup(c.locale)
	return c.locale, messages, ok
}

// SetLocale makes locale active, fetching its catalog when needed. It
// blocks until the catalog is loaded, the request fails or a newer
// SetLocale supersedes it (ErrSuperseded). Errors are also recorded in the
// snapshot; the previous locale stays active.
func (c *FetchController) SetLocale(ctx context.Context, locale string) error {
	c.mu.Lock()
	if locale == c.locale && c.state == StateLoaded {
		c.mu.Unlock()
		return nil
	}
	c.abortLocked()

	if _, ok := c.lookup(locale); ok {
		c.locale = locale
		c.requested = ""
		c.err = nil
		err := c.apply(EventSelect)
		c.mu.Unlock()
		return err
	}

	c.requested = locale
	c.err = nil
	if err := c.apply(EventRequest); err != nil {
		c.mu.Unlock()
		return err
	}
	token := c.token
	reqCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	c.logger.Info().Str("locale", locale).Msg("Requesting catalog")
	messages, fetchErr := c.fetcher.Fetch(reqCtx, locale)

	c.mu.Lock()
	defer c.mu.Unlock()
	cancel()
	if token != c.token {
		return ErrSuperseded
	}
	c.cancel = nil

	if fetchErr != nil {
		fe := asFetchError(fetchErr, locale)
		c.err = fe
		if err := c.apply(EventFailed); err != nil {
			return err
		}
		c.logger.Warn().Err(fe).Str("code", string(fe.Code)).Msg("Catalog request failed")
		return fe
	}

	c.cache.Add(locale, messages)
	c.locale = locale
	c.requested = ""
	c.err = nil
	if err := c.apply(EventLoaded); err != nil {
		return err
	}
	c.logger.Info().Str("locale", locale).Int("messages", len(messages)).Msg("Catalog loaded")
	return nil
}

// abortLocked cancels the request in flight, if any, and invalidates its
// token.
func (c *FetchController) abortLocked() {
	c.token++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
		c.logger.Debug().Str("locale", c.requested).Msg("Previous request aborted")
	}
}

// Close aborts the request in flight.
func (c *FetchController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abortLocked()
}
