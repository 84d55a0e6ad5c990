package commands

import (
	"librus-probe/internal/librus"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(csrfCmd)
}

var csrfCmd = &cobra.Command{
	Use:   "csrf",
	Short: "Checks that the portal is reachable and that its login page carries a csrf token.",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		summary := s.bootstrapper.RunUntil(cmd.Context(), librus.Credentials{}, librus.StageTokenFetched)
		if summary.Err == nil {
			s.bootstrapper.Printer().Info("token: %s", summary.Csrf)
		}
		return s.finish(summary)
	},
}
