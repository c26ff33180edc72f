package locale

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Fetcher loads the catalog of one locale.
type Fetcher interface {
	Fetch(ctx context.Context, locale string) (map[string]string, error)
}

// HTTPFetcher loads catalogs with GET requests. Failures are *FetchError
// values; a cancelled context is returned as is.
type HTTPFetcher struct {
	// URL maps a locale to the catalog location.
	URL    func(locale string) string
	Header http.Header
	Client *http.Client
	Logger zerolog.Logger
}

// NewHTTPFetcher creates a fetcher reading `<baseURL>/<locale>.json`.
func NewHTTPFetcher(baseURL string, timeout time.Duration, logger zerolog.Logger) *HTTPFetcher {
	base := strings.TrimRight(baseURL, "/")
	return &HTTPFetcher{
		URL: func(locale string) string {
			return base + "/" + locale + ".json"
		},
		Header: http.Header{"Accept": []string{"application/json"}},
		Client: &http.Client{Timeout: timeout},
		Logger: logger,
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, locale string) (map[string]string, error) {
	url := f.URL(locale)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Code: CodeNetworkError, Message: err.Error(), Locale: locale}
	}
	for k, v := range f.Header {
		req.Header[k] = v
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.Logger.Error().Err(err).Str("url", url).Msg("Catalog request failed")
		return nil, &FetchError{Code: CodeNetworkError, Message: err.Error(), Locale: locale}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Code: CodeNotFound, Message: http.StatusText(resp.StatusCode), Locale: locale}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &FetchError{Code: CodeNetworkError, Message: fmt.Sprintf("read response: %v", err), Locale: locale}
	}

	var catalog map[string]string
	if err := json.Unmarshal(body, &catalog); err != nil || catalog == nil {
		msg := "empty catalog"
		if err != nil {
			msg = err.Error()
		}
		return nil, &FetchError{Code: CodeInvalid, Message: msg, Locale: locale}
	}

	f.Logger.Debug().Str("url", url).Int("messages", len(catalog)).Msg("Fetched catalog")
	return catalog, nil
}

// asFetchError wraps errors coming from custom fetchers.
func asFetchError(err error, locale string) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		if fe.Locale == "" {
			fe.Locale = locale
		}
		return fe
	}
	return &FetchError{Code: CodeNetworkError, Message: err.Error(), Locale: locale}
}
