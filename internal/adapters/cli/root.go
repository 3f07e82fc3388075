// Package cli is the command line entry point: serve runs the relay, fetch runs a single
// orchestration from the terminal.
package cli

import (
	"context"
	"pixrelay/internal/config"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:          "pixrelay",
	Short:        "Tiered image compression relay",
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}

		level, _ := config.ParseLevel(loaded.Server.LogLevel)
		zerolog.SetGlobalLevel(level)

		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to the TOML config file (default ./config.toml)")
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
