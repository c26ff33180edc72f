// Package update runs the full pipeline: extract messages from the sources,
// merge them into the extracted-messages tree and regenerate every locale
// catalog next to it.
package update

import (
	"context"
	"fmt"
	"path/filepath"

	"g11n/internal/extract"
	"g11n/internal/filewalker"
	"g11n/internal/interpolation"
	"g11n/internal/msgtree"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Options configure one update run.
type Options struct {
	extract.Options

	// SourceExt is the comma separated list of source extensions.
	SourceExt string
	// ExtractedFileName is the tree file written into the locale directory.
	ExtractedFileName string
	// Ignore lists glob patterns excluded from extraction.
	Ignore []string
}

// Updater drives an update run.
type Updater struct {
	Workers int
	Logger  zerolog.Logger
}

// NewUpdater creates an Updater.
func NewUpdater(workers int, logger zerolog.Logger) *Updater {
	return &Updater{Workers: workers, Logger: logger}
}

// treeFormatter renders extracted messages as a msgtree and remembers the
// locales found while doing so.
type treeFormatter struct {
	builder           *msgtree.Builder
	langDir           string
	extractedFileName string
	locales           []string
}

func (f *treeFormatter) Format(msgs map[string]extract.Descriptor) (any, error) {
	root, locales, err := f.builder.Format(f.langDir, msgs, f.extractedFileName)
	if err != nil {
		return nil, err
	}
	f.locales = locales
	return root, nil
}

func (f *treeFormatter) Serialize(v any) ([]byte, error) {
	return msgtree.Serialize(v)
}

// PerformUpdate extracts the messages of the sources under sourceDir, writes
// the tree to outDir and compiles one catalog per locale found in outDir,
// merging the extra tree files in. It returns false when no source file
// matched; nothing is written then.
func (u *Updater) PerformUpdate(ctx context.Context, sourceDir, outDir string, extra []string, opts Options) (bool, error) {
	if opts.SourceExt == "" {
		opts.SourceExt = "ts,tsx,js,jsx"
	}
	if opts.ExtractedFileName == "" {
		opts.ExtractedFileName = "extracted-messages.json"
	}
	if opts.IDInterpolationPattern == "" {
		opts.IDInterpolationPattern = extract.DefaultIDInterpolationPattern
	}

	walker := filewalker.NewWalker(u.Logger)
	pattern := filewalker.SourcePattern(sourceDir, opts.SourceExt)
	files, err := walker.Glob(pattern, opts.Ignore)
	if err != nil {
		return false, err
	}
	if len(files) == 0 {
		u.Logger.Error().Str("pattern", pattern).Strs("ignore", opts.Ignore).Msg("No files found for pattern")
		return false, nil
	}
	u.Logger.Info().Int("files", len(files)).Str("pattern", pattern).Msg("Extracting messages")

	formatter := &treeFormatter{
		builder:           msgtree.NewBuilder(u.Logger),
		langDir:           outDir,
		extractedFileName: opts.ExtractedFileName,
	}
	extractOpts := opts.Options
	extractOpts.Format = formatter

	outFile := filepath.Join(outDir, opts.ExtractedFileName)
	extractor := extract.NewExtractor(u.Workers, u.Logger)
	if err := extractor.ExtractAndWrite(ctx, files, outFile, extractOpts); err != nil {
		return false, err
	}

	extraFiles, err := walker.ResolveExtra(extra)
	if err != nil {
		return false, err
	}

	sources := append([]string{outFile}, extraFiles...)
	trees := make([]*msgtree.Node, len(sources))
	for i, src := range sources {
		tree, err := msgtree.ReadTree(src)
		if err != nil {
			return false, err
		}
		trees[i] = tree
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, locale := range dedupe(formatter.locales) {
		locale := locale
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return u.compileLocale(locale, outDir, sources, trees, opts.Throws)
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}
	return true, nil
}

// compileLocale merges the catalogs compiled from every tree and writes
// <outDir>/<locale>.json.
func (u *Updater) compileLocale(locale, outDir string, sources []string, trees []*msgtree.Node, throws bool) error {
	logger := u.Logger.With().Str("locale", locale).Logger()

	catalog := make(map[string]string)
	origin := make(map[string]string)
	for i, tree := range trees {
		compiled, err := msgtree.Compile(tree, locale)
		if err != nil {
			return fmt.Errorf("compile %s for %s: %w", sources[i], locale, err)
		}
		for key, text := range compiled {
			if prev, ok := catalog[key]; ok && prev != text {
				err := fmt.Errorf("conflicting translations for %q in %s and %s", key, origin[key], sources[i])
				if throws {
					return err
				}
				logger.Warn().Err(err).Msg("Later file wins")
			}
			catalog[key] = text
			origin[key] = sources[i]
		}
	}

	checkPlaceholders(logger, locale, trees)

	path := filepath.Join(outDir, locale+".json")
	if err := msgtree.WriteJSON(path, catalog); err != nil {
		return err
	}
	logger.Info().Str("path", path).Int("messages", len(catalog)).Msg("Wrote locale catalog")
	return nil
}

// checkPlaceholders warns about translations whose arguments differ from
// their default message.
func checkPlaceholders(logger zerolog.Logger, locale string, trees []*msgtree.Node) {
	for _, tree := range trees {
		leaves, err := msgtree.Flatten(tree, nil, "")
		if err != nil {
			continue
		}
		for key, leaf := range leaves {
			translated := leaf.Translations[locale]
			if translated == "" || leaf.DefaultMessage == "" {
				continue
			}
			if m := interpolation.Compare(leaf.DefaultMessage, translated); !m.Empty() {
				logger.Warn().
					Str("key", key).
					Strs("missing", m.Missing).
					Strs("unexpected", m.Unexpected).
					Msg("Translation arguments differ from the default message")
			}
		}
	}
}

// dedupe keeps the first occurrence of every locale; two files such as
// en.json and en.old.json map to the same catalog.
func dedupe(locales []string) []string {
	seen := make(map[string]bool, len(locales))
	out := locales[:0:0]
	for _, l := range locales {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}
