package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jsonFormatter struct{}

func (jsonFormatter) Format(msgs map[string]Descriptor) (any, error) { return msgs, nil }

func (jsonFormatter) Serialize(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCollectDuplicateIDsLastFileWins(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.tsx", `<FormattedMessage id="dup" defaultMessage="one" />`)
	b := writeSource(t, dir, "b.tsx", `<FormattedMessage id="dup" defaultMessage="two" />`)

	var logs bytes.Buffer
	e := NewExtractor(2, zerolog.New(&logs))
	msgs, err := e.Collect(context.Background(), []string{a, b}, Options{})
	require.NoError(t, err)

	require.Contains(t, msgs, "dup")
	assert.Equal(t, "two", msgs["dup"].DefaultMessage)
	assert.Empty(t, msgs["dup"].ID)
	assert.Contains(t, logs.String(), "Duplicate message id")
}

func TestCollectDuplicateIDsAreNeverFatal(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.tsx", `formatMessage({ id: "dup", defaultMessage: "one" })`)
	b := writeSource(t, dir, "b.tsx", `formatMessage({ id: "dup", defaultMessage: "two" })`)

	e := NewExtractor(1, zerolog.Nop())
	msgs, err := e.Collect(context.Background(), []string{a, b}, Options{Throws: true})
	require.NoError(t, err)
	assert.Equal(t, "two", msgs["dup"].DefaultMessage)
}

func TestCollectMissingID(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.tsx", `<FormattedMessage defaultMessage="anonymous" />
<FormattedMessage id="named" defaultMessage="named" />`)

	var logs bytes.Buffer
	e := NewExtractor(1, zerolog.New(&logs))
	msgs, err := e.Collect(context.Background(), []string{a}, Options{})
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
	assert.Contains(t, msgs, "named")
	assert.Contains(t, logs.String(), "missing message id")

	_, err = e.Collect(context.Background(), []string{a}, Options{Throws: true})
	assert.ErrorContains(t, err, "missing message id")
}

func TestCollectInterpolatesMissingIDs(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.tsx", `<FormattedMessage defaultMessage="anonymous" description="hint" />`)

	want, err := InterpolateID(DefaultIDInterpolationPattern, a, "anonymous", "hint")
	require.NoError(t, err)

	e := NewExtractor(1, zerolog.Nop())
	msgs, err := e.Collect(context.Background(), []string{a}, Options{
		IDInterpolationPattern: DefaultIDInterpolationPattern,
	})
	require.NoError(t, err)
	require.Contains(t, msgs, want)
	assert.Equal(t, "anonymous", msgs[want].DefaultMessage)
	assert.Equal(t, "hint", msgs[want].Description)
}

func TestCollectUnreadableFile(t *testing.T) {
	dir := t.TempDir()
	good := writeSource(t, dir, "good.ts", `formatMessage({ id: "ok", defaultMessage: "fine" })`)
	missing := filepath.Join(dir, "missing.ts")

	var logs bytes.Buffer
	e := NewExtractor(2, zerolog.New(&logs))
	msgs, err := e.Collect(context.Background(), []string{missing, good}, Options{})
	require.NoError(t, err)
	assert.Contains(t, msgs, "ok")
	assert.Contains(t, logs.String(), "Skipping file")

	_, err = e.Collect(context.Background(), []string{missing, good}, Options{Throws: true})
	assert.ErrorContains(t, err, "read source file")
}

func TestCollectSourceLocation(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.ts", "const x = 1;\nconst y = intl.formatMessage({ id: \"loc\" });\n")

	e := NewExtractor(1, zerolog.Nop())
	msgs, err := e.Collect(context.Background(), []string{a}, Options{ExtractSourceLocation: true})
	require.NoError(t, err)

	msg := msgs["loc"]
	assert.Equal(t, a, msg.File)
	require.NotNil(t, msg.Start)
	require.NotNil(t, msg.End)
	require.NotNil(t, msg.Line)
	require.NotNil(t, msg.Col)
	assert.Equal(t, 42, *msg.Start)
	assert.Equal(t, 55, *msg.End)
	assert.Equal(t, 2, *msg.Line)
	assert.Equal(t, 29, *msg.Col)

	msgs, err = e.Collect(context.Background(), []string{a}, Options{})
	require.NoError(t, err)
	assert.Empty(t, msgs["loc"].File)
	assert.Nil(t, msgs["loc"].Start)
	assert.Nil(t, msgs["loc"].Line)
}

func TestCollectWhitespaceFlattenAndRemoval(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.tsx", `<FormattedMessage
  id="dogs"
  defaultMessage="I have   {count, plural,
    one{a dog}
    other{many dogs}}"
/>`)

	e := NewExtractor(1, zerolog.Nop())

	msgs, err := e.Collect(context.Background(), []string{a}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "I have {count, plural, one{a dog} other{many dogs}}", msgs["dogs"].DefaultMessage)

	msgs, err = e.Collect(context.Background(), []string{a}, Options{PreserveWhitespace: true})
	require.NoError(t, err)
	assert.Contains(t, msgs["dogs"].DefaultMessage, "\n")

	msgs, err = e.Collect(context.Background(), []string{a}, Options{Flatten: true})
	require.NoError(t, err)
	assert.Equal(t, "{count, plural, one{I have a dog} other{I have many dogs}}", msgs["dogs"].DefaultMessage)

	msgs, err = e.Collect(context.Background(), []string{a}, Options{RemoveDefaultMessage: true})
	require.NoError(t, err)
	require.Contains(t, msgs, "dogs")
	assert.Empty(t, msgs["dogs"].DefaultMessage)
}

func TestCollectFlattenErrorFollowsThrows(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.ts", `formatMessage({ id: "bad", defaultMessage: "{n, plural, one{x}" })`)

	e := NewExtractor(1, zerolog.Nop())
	msgs, err := e.Collect(context.Background(), []string{a}, Options{Flatten: true})
	require.NoError(t, err)
	assert.Equal(t, "{n, plural, one{x}", msgs["bad"].DefaultMessage)

	_, err = e.Collect(context.Background(), []string{a}, Options{Flatten: true, Throws: true})
	assert.ErrorContains(t, err, "flatten message bad")
}

func TestCollectCallbacks(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.tsx", "// @intl-meta project:web\n<FormattedMessage id=\"x\" defaultMessage=\"y\" />")
	b := writeSource(t, dir, "b.tsx", "<FormattedMessage id=\"z\" defaultMessage=\"w\" />")

	var mu sync.Mutex
	perFile := map[string]int{}
	metas := map[string]map[string]string{}

	e := NewExtractor(2, zerolog.Nop())
	msgs, err := e.Collect(context.Background(), []string{a, b}, Options{
		Pragma: "intl-meta",
		OnMessages: func(file string, msgs []Descriptor) {
			mu.Lock()
			defer mu.Unlock()
			perFile[file] = len(msgs)
		},
		OnMeta: func(file string, meta map[string]string) {
			mu.Lock()
			defer mu.Unlock()
			metas[file] = meta
		},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{a: 1, b: 1}, perFile)
	assert.Equal(t, map[string]map[string]string{a: {"project": "web"}}, metas)
	assert.Equal(t, map[string]string{"project": "web"}, msgs["x"].Meta)
	assert.Nil(t, msgs["z"].Meta)
}

func TestCollectHonoursCancellation(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.ts", `formatMessage({ id: "x" })`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExtractor(1, zerolog.Nop()).Collect(ctx, []string{a}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractAndWrite(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.ts", `formatMessage({ id: "x", defaultMessage: "y" })`)
	out := filepath.Join(dir, "nested", "out.json")

	e := NewExtractor(1, zerolog.Nop())
	require.NoError(t, e.ExtractAndWrite(context.Background(), []string{a}, out, Options{Format: jsonFormatter{}}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"x\": {\n    \"defaultMessage\": \"y\"\n  }\n}\n", string(data))
}

func TestExtractRequiresFormatter(t *testing.T) {
	_, err := NewExtractor(1, zerolog.Nop()).Extract(context.Background(), nil, Options{})
	assert.Error(t, err)
}
