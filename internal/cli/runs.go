package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"kavitanotes/internal/storage/runs"
)

func newRunsCmd(f *flags) *cobra.Command {
	var (
		limit  uint
		asJson bool
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent sync runs",
		Example: `  # Last 5 runs as JSON
  kavita-notes runs -n 5 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if limit == 0 {
				return errors.New("--limit must be positive")
			}

			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
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

			rows, err := runRepo.GetRecent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("listing runs: %w", err)
			}

			if asJson {
				if rows == nil {
					rows = make([]*runs.Record, 0)
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			return printRuns(cmd.OutOrStdout(), rows)
		},
	}

	cmd.Flags().UintVarP(&limit, "limit", "n", 20, "number of runs to show")
	cmd.Flags().BoolVar(&asJson, "json", false, "print runs as JSON")

	return cmd
}

func printRuns(w io.Writer, rows []*runs.Record) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No sync runs recorded")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tDURATION\tRENDERED\tANNOTATIONS\tSTATUS\tPATH")

	for _, r := range rows {
		status := "ok"
		if r.Failed() {
			status = "failed: " + r.Error
		}

		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			r.StartTime.Local().Format(time.DateTime),
			r.FinishTime.Sub(r.StartTime).Round(time.Millisecond),
			r.Rendered, r.Annotations, status, r.Path)
	}

	return tw.Flush()
}
