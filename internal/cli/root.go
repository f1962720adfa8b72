package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"kavitanotes/internal/config"
	"kavitanotes/internal/kavita"
	"kavitanotes/internal/logger"
	"kavitanotes/internal/storage/runs"
	"kavitanotes/internal/syncer"
	"kavitanotes/internal/vault"
)

type flags struct {
	configPath     string
	output         string
	comments       bool
	spoilers       bool
	tags           bool
	tagPrefix      string
	links          bool
	seriesMetadata bool
}

func NewRootCmd() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "kavita-notes",
		Short: "Export Kavita annotations into a Markdown note",
		Long: `kavita-notes collects every highlight and note from a Kavita server and
writes them into a single Markdown document grouped by series, book and chapter.

Settings come from an optional yaml file (--config or CONFIG_PATH), the
environment (.env is loaded when present) and finally the flags below.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "yaml configuration file (default $CONFIG_PATH)")
	pf.StringVarP(&f.output, "output", "o", "", "document path (default "+config.DefaultOutputPath+")")
	pf.BoolVar(&f.comments, "comments", true, "include annotation comments")
	pf.BoolVar(&f.spoilers, "spoilers", false, "include annotations marked as spoilers")
	pf.BoolVar(&f.tags, "tags", true, "emit series, book and author tags")
	pf.StringVar(&f.tagPrefix, "tag-prefix", "", "prefix for every emitted tag")
	pf.BoolVar(&f.links, "links", true, "emit wikilinks for authors")
	pf.BoolVar(&f.seriesMetadata, "series-metadata", false, "look up series metadata for chapters without book info")

	cmd.AddCommand(
		newSyncCmd(f),
		newRenderCmd(f),
		newRunsCmd(f),
		newConfigCmd(f),
	)

	return cmd
}

// loadConfig reads the configuration and applies the flags that were set
// explicitly on the command line.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	path := f.configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	fs := cmd.Flags()
	if fs.Changed("output") {
		cfg.Output.Path = f.output
	}
	if fs.Changed("comments") {
		cfg.Format.IncludeComments = f.comments
	}
	if fs.Changed("spoilers") {
		cfg.Format.IncludeSpoilers = f.spoilers
	}
	if fs.Changed("tags") {
		cfg.Format.IncludeTags = f.tags
	}
	if fs.Changed("tag-prefix") {
		cfg.Format.TagPrefix = f.tagPrefix
	}
	if fs.Changed("links") {
		cfg.Format.IncludeWikilinks = f.links
	}
	if fs.Changed("series-metadata") {
		cfg.Format.SeriesMetadataFallback = f.seriesMetadata
	}

	return cfg, nil
}

func setupLogging(cfg *config.Config) error {
	lvl, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}

	return logger.SetupSLog(lvl, cfg.Logging.Format, "", nil)
}

func syncRequest(cfg *config.Config) syncer.Request {
	return syncer.Request{
		Path:           cfg.Output.Path,
		Options:        cfg.DocumentOptions(),
		SeriesMetadata: cfg.Format.SeriesMetadataFallback,
	}
}

// newSyncer wires the Kavita client, the vault and the given run store.
func newSyncer(cfg *config.Config, runRepo runs.Repository) (*syncer.Syncer, error) {
	client, err := kavita.NewClient(cfg.KavitaOptions(), slog.Default())
	if err != nil {
		return nil, fmt.Errorf("creating kavita client: %w", err)
	}

	return syncer.New(client, vault.NewFileStore("", slog.Default()), runRepo, slog.Default()), nil
}

func openRuns(ctx context.Context, cfg *config.Config) (runs.Repository, func() error, error) {
	repo, closeFn, err := runs.Open(ctx, cfg.Storage.DatabaseUrl, slog.Default())
	if err != nil {
		return nil, nil, fmt.Errorf("opening run store: %w", err)
	}

	return repo, closeFn, nil
}
