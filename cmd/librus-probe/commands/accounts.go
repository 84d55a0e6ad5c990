package commands

import (
	"librus-probe/internal/librus"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(accountsCmd)
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Logs in and lists the Synergia accounts attached to the portal account.",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		summary := s.bootstrapper.RunUntil(cmd.Context(), credentials(), librus.StageBearerAcquired)
		return s.finish(summary)
	},
}
