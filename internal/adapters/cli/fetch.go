package cli

import (
	"fmt"
	"os"
	"pixrelay/internal/adapters/handler"
	"pixrelay/internal/core/domain"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
)

var fetchOutput string

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Run one orchestration and write the resulting image to a file",
	Long: `Runs the configured plan for a single URL, prints every tier attempt and writes
the accepted image. Exits with an error when every tier failed.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "output file (default <request id>.<ext>)")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	target, err := handler.ExtractTarget(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	req := domain.NewRequestContext(target, cfg.Orchestrator.Timeout, true)
	res := a.orchestrator.Run(cmd.Context(), req)

	for _, at := range res.Attempts {
		if at.Accepted {
			cmd.Printf("  %-8s %-12s accepted  %d bytes (%s) in %s\n", at.Stage, at.Tier, at.Size, at.Source, at.Duration)
			continue
		}
		cmd.Printf("  %-8s %-12s rejected  %v\n", at.Stage, at.Tier, at.Rejection)
	}

	if res.Exhausted() {
		return fmt.Errorf("%w, original is at %s", res.Err(), res.RedirectURL)
	}

	out := fetchOutput
	if out == "" {
		ext := ".img"
		if m := mimetype.Lookup(res.Winner.MIMEType()); m != nil {
			ext = m.Extension()
		}
		out = req.ID + ext
	}

	if err := os.WriteFile(out, res.Winner.Bytes(), 0o644); err != nil {
		return fmt.Errorf("error writing output: %w", err)
	}

	cmd.Printf("%s: %d bytes from %s\n", out, res.Winner.Size(), res.Winner.Source())

	return nil
}
