package cli

import (
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X pixrelay/internal/adapters/cli.version=..."
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	// no config needed
	PersistentPreRun: func(_ *cobra.Command, _ []string) {},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("pixrelay version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
