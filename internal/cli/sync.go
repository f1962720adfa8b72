package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func newSyncCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fetch all annotations and rewrite the document",
		Long: `Fetches every annotation from Kavita, renders the document and replaces the
file at the output path. The file is left untouched when anything fails.
Each attempt is recorded in the run store.`,
		Example: `  # Sync into the configured vault note
  kavita-notes sync

  # Include spoilers and write somewhere else
  kavita-notes sync --spoilers -o ~/Vault/Reading/Annotations.md`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := setupLogging(cfg); err != nil {
				return err
			}

			runRepo, closeRuns, err := openRuns(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, closeRuns())
			}()

			svc, err := newSyncer(cfg, runRepo)
			if err != nil {
				return err
			}

			summary, err := svc.Run(cmd.Context(), syncRequest(cfg))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d of %d annotations (%d series, %d books, %d chapters) to %s in %s\n",
				summary.Rendered, summary.Annotations, summary.Series, summary.Books, summary.Chapters,
				summary.Path, summary.Duration.Round(time.Millisecond))
			return nil
		},
	}
}
