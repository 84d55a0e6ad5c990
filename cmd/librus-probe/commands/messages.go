package commands

import (
	"librus-probe/internal/librus"

	"github.com/spf13/cobra"
)

var messageLimit int

func init() {
	messagesCmd.Flags().IntVar(&messageLimit, "limit", 5, "The number of messages to print, 0 prints all of them.")
	rootCmd.AddCommand(messagesCmd)
}

var messagesCmd = &cobra.Command{
	Use:   "messages [--limit <n>]",
	Short: "Logs in and prints the most recent messages.",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		summary := s.bootstrapper.RunUntil(cmd.Context(), credentials(), librus.StageBearerAcquired)
		if summary.Err != nil {
			return s.finish(summary)
		}

		out := s.bootstrapper.Printer()
		messages, err := s.bootstrapper.FetchMessages(cmd.Context(), summary)
		if err != nil {
			out.Fail("%s", err.Error())
			summary.Err = err
			return s.finish(summary)
		}

		out.Ok("found %d message(s)", len(messages))
		if messageLimit > 0 && len(messages) > messageLimit {
			messages = messages[:messageLimit]
		}
		out.Messages(messages)
		return s.finish(summary)
	},
}
