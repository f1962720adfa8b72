package cli

import (
	"github.com/spf13/cobra"

	"kavitanotes/internal/config"
)

const redacted = "<redacted>"

func newConfigCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as yaml",
		Long: `Prints the configuration after the file, the environment and the flags have
been applied. The api key is never printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}

			if cfg.Kavita.ApiKey != "" {
				cfg.Kavita.ApiKey = redacted
			}

			data, err := config.Dump(cfg)
			if err != nil {
				return err
			}

			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
