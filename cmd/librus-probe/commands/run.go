package commands

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [--transport http|chromedp|playwright] [--endpoint <name>]...",
	Short: "Logs in, acquires a bearer token and probes the configured API endpoints.",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		summary := s.bootstrapper.Run(cmd.Context(), credentials())
		s.bootstrapper.Printer().Summary(summary)
		return s.finish(summary)
	},
}
