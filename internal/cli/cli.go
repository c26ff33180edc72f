package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"g11n/internal/config"
	"g11n/internal/extract"
	"g11n/internal/locale"
	"g11n/internal/msgtree"
	"g11n/internal/store"
	"g11n/internal/update"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// ErrNoSourceFiles is returned by the update command when nothing matched.
var ErrNoSourceFiles = errors.New("no source files found")

// Execute runs the CLI application.
func Execute() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg := config.Load(logger)
	logger = logger.Level(cfg.Level())

	if err := NewRootCmd(cfg, logger).Execute(); err != nil {
		// PerformUpdate already reported the empty pattern.
		if !errors.Is(err, ErrNoSourceFiles) {
			logger.Error().Err(err).Msg("Command failed")
		}
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree. Flag defaults come from cfg.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "g11n",
		Short:         "Extract, merge and compile translatable messages",
		Long:          "g11n extracts messages from JS/TS sources into a tree of descriptors and translations, and regenerates one catalog per locale from it.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(updateCmd(cfg, logger))
	rootCmd.AddCommand(publishCmd(cfg, logger))
	rootCmd.AddCommand(fetchCmd(cfg, logger))
	rootCmd.AddCommand(catalogCmd(cfg, logger))

	return rootCmd
}

func updateCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	var opts update.Options

	cmd := &cobra.Command{
		Use:   "update <source-dir> <lang-dir> [extra...]",
		Short: "Update the extracted messages and regenerate locale catalogs",
		Long: `Extracts messages from <source-dir> into <lang-dir>/<extracted-file-name>,
keeping the translations found in <lang-dir>/*.json, then rewrites one
<locale>.json catalog per locale. Extra entries are tree files, or globs of
tree files, merged into every catalog.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext(logger)
			defer cancel()

			updater := update.NewUpdater(cfg.WorkerCount, logger)
			ok, err := updater.PerformUpdate(ctx, args[0], args[1], args[2:], opts)
			if err != nil {
				return err
			}
			if !ok {
				return ErrNoSourceFiles
			}
			logger.Info().Str("lang_dir", args[1]).Msg("Update complete")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.SourceExt, "source-ext", cfg.SourceExt,
		"Extensions to include, used to build the source glob")
	f.StringVar(&opts.IDInterpolationPattern, "id-interpolation-pattern", extract.DefaultIDInterpolationPattern,
		"Pattern generating ids for descriptors without one, hashing defaultMessage and description")
	f.BoolVar(&opts.ExtractSourceLocation, "extract-source-location", false,
		"Record file, start, end, line and col of every message")
	f.BoolVar(&opts.RemoveDefaultMessage, "remove-default-message", false,
		"Remove defaultMessage from the extracted file")
	f.StringSliceVar(&opts.AdditionalComponentNames, "additional-component-names", nil,
		"Additional component names to extract messages from, e.g. FormattedFooBarMessage")
	f.StringSliceVar(&opts.AdditionalFunctionNames, "additional-function-names", nil,
		"Additional function names to extract messages from, e.g. $t")
	f.StringArrayVar(&opts.Ignore, "ignore", nil,
		"Glob of files not to extract from; repeat the flag for several globs, commas are kept as part of the glob")
	f.BoolVar(&opts.Throws, "throws", false,
		"Fail when any file of the batch cannot be processed")
	f.StringVar(&opts.Pragma, "pragma", "",
		"Comment pragma whose key:value pairs become message metadata, e.g. intl-meta")
	f.BoolVar(&opts.PreserveWhitespace, "preserve-whitespace", false,
		"Keep whitespace and newlines of default messages")
	f.BoolVar(&opts.Flatten, "flatten", false,
		"Hoist plural and select arguments so every option is a full sentence")
	f.StringVar(&opts.ExtractedFileName, "extracted-file-name", cfg.ExtractedFileName,
		"Name of the file holding the message tree and its translations")

	return cmd
}

func publishCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	var databaseURL, extractedFileName string

	cmd := &cobra.Command{
		Use:   "publish <lang-dir>",
		Short: "Upsert the locale catalogs of <lang-dir> into PostgreSQL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if databaseURL == "" {
				return errors.New("no database URL: set --database-url or G11N_DATABASE_URL")
			}
			ctx, cancel := setupContext(logger)
			defer cancel()

			pool, err := connect(ctx, databaseURL, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			catalogs := store.NewCatalogStore(pool, logger)
			if err := catalogs.EnsureSchema(ctx); err != nil {
				return err
			}
			return runPublish(ctx, catalogs, args[0], extractedFileName, logger)
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", cfg.DatabaseURL, "PostgreSQL connection string")
	cmd.Flags().StringVar(&extractedFileName, "extracted-file-name", cfg.ExtractedFileName,
		"Name of the message tree file, skipped when publishing")
	return cmd
}

// catalogPublisher is the part of store.CatalogStore used by publish.
type catalogPublisher interface {
	Publish(ctx context.Context, locale string, catalog map[string]string) (int, error)
}

// runPublish publishes every `<locale>.json` catalog of langDir.
func runPublish(ctx context.Context, catalogs catalogPublisher, langDir, extractedFileName string, logger zerolog.Logger) error {
	locales, compiled, err := readCatalogs(langDir, extractedFileName, logger)
	if err != nil {
		return err
	}
	for _, l := range locales {
		if _, err := catalogs.Publish(ctx, l, compiled[l]); err != nil {
			return err
		}
	}
	logger.Info().Int("locales", len(locales)).Msg("Publish complete")
	return nil
}

// readCatalogs reads the compiled `<locale>.json` catalogs of langDir.
// Locales are returned in file order.
func readCatalogs(langDir, extractedFileName string, logger zerolog.Logger) ([]string, map[string]map[string]string, error) {
	files, locales, err := msgtree.LocaleFiles(langDir, extractedFileName)
	if err != nil {
		return nil, nil, err
	}

	var found []string
	compiled := make(map[string]map[string]string, len(files))
	for i, file := range files {
		if locales[i]+".json" != filepath.Base(file) {
			logger.Debug().Str("file", file).Msg("Skipping file that is not a compiled catalog")
			continue
		}
		catalog, err := msgtree.ReadJSONOrDefault(file, map[string]string{})
		if err != nil {
			return nil, nil, err
		}
		found = append(found, locales[i])
		compiled[locales[i]] = catalog
	}
	return found, compiled, nil
}

func fetchCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	timeout := cfg.FetchTimeout
	var preloadDir string

	cmd := &cobra.Command{
		Use:   "fetch <base-url> <locale>",
		Short: "Load <base-url>/<locale>.json and print the catalog",
		Long: `Loads <base-url>/<locale>.json and prints the catalog. With --preload, the
compiled catalogs of a locale directory are served without a request. The
locale "system" selects the offered locale closest to LC_ALL, LC_MESSAGES
or LANG.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext(logger)
			defer cancel()

			var offered []string
			var preloaded map[string]map[string]string
			if preloadDir != "" {
				var err error
				offered, preloaded, err = readCatalogs(preloadDir, cfg.ExtractedFileName, logger)
				if err != nil {
					return err
				}
				sort.Strings(offered)
			}
			target := locale.Resolve(args[1], offered)
			if target != args[1] {
				logger.Info().Str("locale", target).Msg("Resolved system locale")
			}

			fetcher := locale.NewHTTPFetcher(args[0], timeout, logger)
			controller, err := locale.NewFetchController(fetcher, preloaded, cfg.CatalogCacheSize, logger)
			if err != nil {
				return err
			}
			defer controller.Close()

			if err := controller.SetLocale(ctx, target); err != nil {
				return err
			}
			_, messages, _ := controller.Messages()
			return printJSON(cmd.OutOrStdout(), messages)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", cfg.FetchTimeout, "HTTP request timeout")
	cmd.Flags().StringVar(&preloadDir, "preload", "", "Locale directory whose compiled catalogs need no request")
	return cmd
}

func catalogCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	var databaseURL string
	var list bool

	cmd := &cobra.Command{
		Use:   "catalog <locale> [key]",
		Short: "Print a published catalog, or one of its messages",
		Long: `Reads the catalogs published to PostgreSQL and prints the one of <locale>,
or only the text of [key]. The locale "system" selects the published locale
closest to LC_ALL, LC_MESSAGES or LANG.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if list {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.RangeArgs(1, 2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if databaseURL == "" {
				return errors.New("no database URL: set --database-url or G11N_DATABASE_URL")
			}
			ctx, cancel := setupContext(logger)
			defer cancel()

			pool, err := connect(ctx, databaseURL, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			catalogs := store.NewCatalogStore(pool, logger)
			if err := catalogs.EnsureSchema(ctx); err != nil {
				return err
			}
			req := catalogRequest{List: list}
			if len(args) > 0 {
				req.Locale = args[0]
			}
			if len(args) > 1 {
				req.Key, req.HasKey = args[1], true
			}
			return runCatalog(ctx, catalogs, req, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", cfg.DatabaseURL, "PostgreSQL connection string")
	cmd.Flags().BoolVar(&list, "list", false, "List the published locales instead")
	return cmd
}

// catalogReader is the read side of store.CatalogStore.
type catalogReader interface {
	Preload(ctx context.Context) error
	Locales() []string
	Catalogs() map[string]map[string]string
	Get(ctx context.Context, locale, key string) (string, bool)
}

type catalogRequest struct {
	Locale string
	Key    string
	HasKey bool
	List   bool
}

// runCatalog prints the published locales, a catalog or a single message.
func runCatalog(ctx context.Context, catalogs catalogReader, req catalogRequest, out io.Writer) error {
	if err := catalogs.Preload(ctx); err != nil {
		return err
	}
	if req.List {
		for _, l := range catalogs.Locales() {
			if _, err := fmt.Fprintln(out, l); err != nil {
				return err
			}
		}
		return nil
	}

	controller := locale.NewSimpleController(req.Locale, catalogs.Catalogs())
	active := controller.Locale()
	if req.HasKey {
		text, ok := catalogs.Get(ctx, active, req.Key)
		if !ok {
			return fmt.Errorf("no message %q in locale %q", req.Key, active)
		}
		_, err := fmt.Fprintln(out, text)
		return err
	}

	messages := controller.Messages()
	if messages == nil {
		return fmt.Errorf("no published catalog for locale %q", active)
	}
	return printJSON(out, messages)
}

func printJSON(w io.Writer, v any) error {
	data, err := msgtree.Serialize(v)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// connect opens and pings a PostgreSQL pool.
func connect(ctx context.Context, url string, logger zerolog.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect PostgreSQL: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping PostgreSQL: %w", err)
	}
	logger.Info().Msg("Connected to PostgreSQL")
	return pool, nil
}

// setupContext creates a cancellable context with signal handling.
func setupContext(logger zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			logger.Warn().Msg("Received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
