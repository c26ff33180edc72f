package filewalker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"g11n/internal/textutil"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
)

// Walker resolves glob patterns into file lists.
type Walker struct {
	logger zerolog.Logger
}

// NewWalker creates a Walker that reports through logger.
func NewWalker(logger zerolog.Logger) *Walker {
	return &Walker{logger: logger}
}

// SourcePattern builds the pattern `<root>/**/*.{ext1,ext2}` with forward
// slashes, whatever the host separator is. Blank entries and leading dots
// of the extension list are dropped.
func SourcePattern(root, sourceExt string) string {
	exts := textutil.SplitList(sourceExt)
	for i, ext := range exts {
		exts[i] = strings.TrimPrefix(ext, ".")
	}
	pattern := filepath.Join(root, "**", "*.{"+strings.Join(exts, ",")+"}")
	return strings.ReplaceAll(pattern, `\`, "/")
}

// Glob returns the regular files matching pattern, minus those matching any
// of the ignore patterns.
func (w *Walker) Glob(pattern string, ignore []string) ([]string, error) {
	for _, ig := range ignore {
		if !doublestar.ValidatePattern(filepath.ToSlash(ig)) {
			return nil, fmt.Errorf("invalid ignore pattern %q", ig)
		}
	}

	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}

	if len(ignore) == 0 {
		return matches, nil
	}

	kept := matches[:0]
	for _, m := range matches {
		if w.ignored(m, ignore) {
			w.logger.Debug().Str("path", m).Msg("Ignoring file")
			continue
		}
		kept = append(kept, m)
	}
	return kept, nil
}

func (w *Walker) ignored(path string, ignore []string) bool {
	slashed := filepath.ToSlash(path)
	rooted := strings.TrimPrefix(slashed, "/")
	for _, ig := range ignore {
		ig = filepath.ToSlash(ig)
		if ok, _ := doublestar.Match(ig, slashed); ok {
			return true
		}
		if ok, _ := doublestar.Match(ig, rooted); ok {
			return true
		}
	}
	return false
}

// ResolveExtra keeps every entry that names an existing file and expands the
// others as glob patterns. An entry expanding to nothing is only a warning.
func (w *Walker) ResolveExtra(entries []string) ([]string, error) {
	var out []string
	for _, entry := range entries {
		if info, err := os.Stat(entry); err == nil && !info.IsDir() {
			out = append(out, entry)
			continue
		}

		found, err := w.Glob(entry, nil)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			w.logger.Warn().Str("pattern", entry).Msg("No files found for pattern")
		}
		out = append(out, found...)
	}
	return out, nil
}
