package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"kavitanotes/internal/storage/runs"
)

func newRenderCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Short: "Print the document to stdout without writing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			// a preview is not a run, nothing gets recorded
			svc, err := newSyncer(cfg, runs.NewMemoryRepository())
			if err != nil {
				return err
			}

			r, err := svc.Render(cmd.Context(), syncRequest(cfg))
			if err != nil {
				return err
			}

			_, err = io.WriteString(cmd.OutOrStdout(), r.Text)
			return err
		},
	}
}
