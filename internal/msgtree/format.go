package msgtree

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"g11n/internal/extract"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
)

// Builder turns extracted messages into a tree, merging the translations
// already present in the locale files.
type Builder struct {
	Logger zerolog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(logger zerolog.Logger) *Builder {
	return &Builder{Logger: logger}
}

// LocaleFiles lists the `*.json` files of langDir other than the extracted
// messages file, with the locale each one holds (its basename up to the
// first dot).
func LocaleFiles(langDir, extractedFileName string) (files, locales []string, err error) {
	pattern := strings.ReplaceAll(filepath.Join(langDir, "*.json"), `\`, "/")
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, nil, fmt.Errorf("glob locale files: %w", err)
	}
	for _, m := range matches {
		base := filepath.Base(m)
		if base == extractedFileName {
			continue
		}
		locale, _, _ := strings.Cut(base, ".")
		files = append(files, m)
		locales = append(locales, locale)
	}
	return files, locales, nil
}

// Format builds the tree for msgs. Locale files found in langDir are
// returned in scan order; their entries are copied onto the matching leaves
// unless empty or equal to the message id, which marks an untranslated
// placeholder. Ids missing from msgs are dropped.
func (b *Builder) Format(langDir string, msgs map[string]extract.Descriptor, extractedFileName string) (*Node, []string, error) {
	files, locales, err := LocaleFiles(langDir, extractedFileName)
	if err != nil {
		return nil, nil, err
	}

	previous := make([]map[string]any, len(files))
	for i, f := range files {
		data, err := ReadJSONOrDefault(f, map[string]any{})
		if err != nil {
			return nil, nil, err
		}
		previous[i] = data
	}
	b.Logger.Debug().Strs("locales", locales).Msg("Found translation files")

	ids := make([]string, 0, len(msgs))
	for id := range msgs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	root := NewInterior()
	for _, id := range ids {
		leaf := &Leaf{Key: id, Descriptor: msgs[id]}
		for i, locale := range locales {
			existing, _ := previous[i][id].(string)
			if existing == "" || existing == id {
				continue
			}
			if leaf.Translations == nil {
				leaf.Translations = make(map[string]string)
			}
			leaf.Translations[locale] = existing
		}
		b.insert(root, id, leaf)
	}
	return root, locales, nil
}

// insert places leaf at the dotted path id. When one id is a path prefix of
// another, the later insertion replaces the earlier node.
func (b *Builder) insert(root *Node, id string, leaf *Leaf) {
	parts := strings.Split(id, ".")
	node := root
	for _, part := range parts[:len(parts)-1] {
		child := node.Child(part)
		if child == nil || child.IsLeaf() {
			if child != nil {
				b.Logger.Warn().
					Str("id", id).
					Str("replaced", child.Leaf().Key).
					Msg("Message id is nested under another message id; dropping the shorter one")
			}
			child = NewInterior()
			node.Set(part, child)
		}
		node = child
	}

	last := parts[len(parts)-1]
	if existing := node.Child(last); existing != nil && !existing.IsLeaf() {
		b.Logger.Warn().
			Str("id", id).
			Int("nested", existing.Len()).
			Msg("Message id replaces a group of longer message ids")
	}
	node.Set(last, NewLeaf(leaf))
}
