package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"g11n/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		LogLevel:          "debug",
		WorkerCount:       2,
		SourceExt:         "ts,tsx,js,jsx",
		ExtractedFileName: "extracted-messages.json",
		FetchTimeout:      time.Second,
		CatalogCacheSize:  4,
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd(testConfig(), zerolog.Nop())
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestUpdateCommand(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "src")
	langDir := filepath.Join(dir, "lang")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	require.NoError(t, os.MkdirAll(langDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.js"),
		[]byte(`$t("Hello"); formatMessage({defaultMessage: "Generated"})`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(langDir, "fr.json"), []byte(`{"Hello": "Bonjour"}`), 0o644))

	_, err := run(t, "update", srcDir, langDir,
		"--source-ext", "js",
		"--additional-function-names", "$t",
		"--id-interpolation-pattern", "msg.[sha1:contenthash:hex:8]",
	)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(langDir, "fr.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Hello": "Bonjour"`)
	assert.Contains(t, string(data), `"Generated"`)
	assert.FileExists(t, filepath.Join(langDir, "extracted-messages.json"))
}

func TestUpdateCommandWithoutSources(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "update", dir, dir)
	assert.ErrorIs(t, err, ErrNoSourceFiles)
	assert.NoFileExists(t, filepath.Join(dir, "extracted-messages.json"))
}

func TestUpdateCommandArgs(t *testing.T) {
	_, err := run(t, "update", "only-one")
	assert.Error(t, err)
}

func TestFetchCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fr.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"b": "Deux", "a": "<Un>"}`))
	}))
	defer srv.Close()

	out, err := run(t, "fetch", srv.URL, "fr")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": \"<Un>\",\n  \"b\": \"Deux\"\n}\n", out)

	_, err = run(t, "fetch", srv.URL, "de")
	assert.ErrorContains(t, err, "not-found")
}

func TestPublishCommandNeedsDatabase(t *testing.T) {
	_, err := run(t, "publish", t.TempDir(), "--database-url", "")
	assert.ErrorContains(t, err, "no database URL")
}

type recordingPublisher struct {
	catalogs map[string]map[string]string
}

func (r *recordingPublisher) Publish(_ context.Context, locale string, catalog map[string]string) (int, error) {
	r.catalogs[locale] = catalog
	return len(catalog), nil
}

func TestRunPublish(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("en.json", `{"a": "A"}`)
	write("fr.json", ``)
	write("fr.old.json", `{"a": "Vieux"}`)
	write("extracted-messages.json", `{"a": {"__id__": "a"}}`)

	rec := &recordingPublisher{catalogs: map[string]map[string]string{}}
	require.NoError(t, runPublish(context.Background(), rec, dir, "extracted-messages.json", zerolog.Nop()))
	assert.Equal(t, map[string]map[string]string{
		"en": {"a": "A"},
		"fr": {},
	}, rec.catalogs)

	write("de.json", `{"a": {"nested": true}}`)
	assert.Error(t, runPublish(context.Background(), rec, dir, "extracted-messages.json", zerolog.Nop()))
}

func TestUpdateCommandIgnoreKeepsBraceGlobs(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "src")
	langDir := filepath.Join(dir, "lang")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	require.NoError(t, os.MkdirAll(langDir, 0o755))
	for name, msg := range map[string]string{"a.js": "A", "b.js": "B", "c.js": "C"} {
		src := `formatMessage({id: "` + name + `", defaultMessage: "` + msg + `"})`
		require.NoError(t, os.WriteFile(filepath.Join(srcDir, name), []byte(src), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(langDir, "en.json"), []byte(`{}`), 0o644))

	_, err := run(t, "update", srcDir, langDir, "--source-ext", "js", "--ignore", "**/{b,c}.js")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(langDir, "en.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a.js": "A"}`, string(data))
}

func TestFetchCommandPreload(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte(`{"a": "Remote"}`))
	}))
	defer srv.Close()

	langDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(langDir, "en.json"), []byte(`{"a": "One"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(langDir, "fr.json"), []byte(`{"a": "Un"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(langDir, "extracted-messages.json"), []byte(`{}`), 0o644))

	t.Setenv("LC_ALL", "fr_BE.UTF-8")
	out, err := run(t, "fetch", srv.URL, "system", "--preload", langDir)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": \"Un\"\n}\n", out)
	assert.Zero(t, requests.Load())

	out, err = run(t, "fetch", srv.URL, "de", "--preload", langDir)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": \"Remote\"\n}\n", out)
	assert.Equal(t, int32(1), requests.Load())
}

type memoryReader struct {
	catalogs map[string]map[string]string
	err      error
}

func (m *memoryReader) Preload(context.Context) error { return m.err }

func (m *memoryReader) Locales() []string {
	var out []string
	for l := range m.catalogs {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func (m *memoryReader) Catalogs() map[string]map[string]string { return m.catalogs }

func (m *memoryReader) Get(_ context.Context, locale, key string) (string, bool) {
	v, ok := m.catalogs[locale][key]
	return v, ok
}

func TestRunCatalog(t *testing.T) {
	reader := &memoryReader{catalogs: map[string]map[string]string{
		"en": {"a": "One", "b": "Two"},
		"fr": {"a": "Un"},
	}}
	ctx := context.Background()
	catalog := func(req catalogRequest) (string, error) {
		var out bytes.Buffer
		err := runCatalog(ctx, reader, req, &out)
		return out.String(), err
	}

	out, err := catalog(catalogRequest{List: true})
	require.NoError(t, err)
	assert.Equal(t, "en\nfr\n", out)

	out, err = catalog(catalogRequest{Locale: "en"})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": \"One\",\n  \"b\": \"Two\"\n}\n", out)

	out, err = catalog(catalogRequest{Locale: "fr", Key: "a", HasKey: true})
	require.NoError(t, err)
	assert.Equal(t, "Un\n", out)

	_, err = catalog(catalogRequest{Locale: "fr", Key: "b", HasKey: true})
	assert.ErrorContains(t, err, `no message "b" in locale "fr"`)

	_, err = catalog(catalogRequest{Locale: "de"})
	assert.ErrorContains(t, err, "no published catalog")

	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "fr_FR.UTF-8")
	out, err = catalog(catalogRequest{Locale: "system", Key: "a", HasKey: true})
	require.NoError(t, err)
	assert.Equal(t, "Un\n", out)

	reader.err = errors.New("connection lost")
	_, err = catalog(catalogRequest{List: true})
	assert.ErrorContains(t, err, "connection lost")
}

func TestCatalogCommandNeedsDatabase(t *testing.T) {
	_, err := run(t, "catalog", "en", "--database-url", "")
	assert.ErrorContains(t, err, "no database URL")
}
