package commands

import (
	"context"
	"errors"
	"fmt"
	"librus-probe/internal/components/telemetry"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath    string
	transportFlag string
	reportPath    string
	endpointFlags []string
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:           "librus-probe",
	Short:         "librus-probe logs into the Librus portal and checks the API with the acquired bearer token.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(verbose)

		err := godotenv.Load()
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		if err == nil {
			slog.Debug("loaded environment from .env")
		}
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "librus.json5", "The config file, a <name>.local.<ext> next to it overrides it.")
	flags.StringVar(&transportFlag, "transport", "", "The transport to use: http, chromedp or playwright.")
	flags.StringVar(&reportPath, "report", "", "Write a JSON report of the run to this path.")
	flags.StringSliceVar(&endpointFlags, "endpoint", nil, "An API endpoint to probe, can be repeated.")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logs.")
}

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// ExecuteContext runs the CLI and returns the process exit code.
func ExecuteContext(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var exit exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	fmt.Fprintln(os.Stderr, err)
	return 1
}
