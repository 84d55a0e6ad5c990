package commands

import (
	"context"
	"fmt"
	"librus-probe/internal/components/chrono"
	"librus-probe/internal/components/telemetry"
	"librus-probe/internal/librus"
	"librus-probe/internal/librus/cdpdriver"
	"librus-probe/internal/librus/httpdriver"
	"librus-probe/internal/librus/pwdriver"
	"librus-probe/lib/configutil"
	"librus-probe/lib/restyutil"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type session struct {
	config       librus.Config
	tel          telemetry.API
	transport    librus.Transport
	bootstrapper *librus.Bootstrapper
}

func loadConfig() (librus.Config, error) {
	config, err := configutil.ReadConfigWithDefaults(configPath, librus.DefaultConfig())
	if err != nil {
		return librus.Config{}, fmt.Errorf("read %s: %w", configPath, err)
	}
	if transportFlag != "" {
		config.Transport = transportFlag
	}
	if reportPath != "" {
		config.ReportPath = reportPath
	}
	if len(endpointFlags) > 0 {
		config.Endpoints = endpointFlags
	}
	return config, config.Validate()
}

func newTelemetry() telemetry.API {
	var tel telemetry.API = telemetry.SlogAPI{}
	otelTel, err := telemetry.NewOtelAPI(tel)
	if err != nil {
		slog.Warn("failed to create otel instruments, reporting to logs only", "err", err)
		return tel
	}
	return otelTel
}

func newTransport(ctx context.Context, config librus.Config, runID string, tel telemetry.API) (librus.Transport, error) {
	opts := config.Options()

	switch config.Transport {
	case librus.TransportHttp:
		var output telemetry.MessageOutput
		if verbose && config.DumpDir != "" {
			fsOutput, err := restyutil.NewFilesystemOutput(config.DumpDir, runID)
			if err != nil {
				return nil, fmt.Errorf("create dump dir: %w", err)
			}
			slog.Info("dumping http exchanges", "dir", fsOutput.Directory())
			output = fsOutput
		}
		return httpdriver.New(httpdriver.Options{
			Options:           opts,
			RequestsPerSecond: config.RateLimit(),
			Output:            output,
		}, tel)
	case librus.TransportChromedp:
		return cdpdriver.New(ctx, cdpdriver.Options{
			Options:       opts,
			Headed:        config.IsHeaded(),
			ScreenshotDir: config.ScreenshotDir,
		}, tel)
	case librus.TransportPlaywright:
		return pwdriver.New(pwdriver.Options{
			Options:       opts,
			Headed:        config.IsHeaded(),
			ScreenshotDir: config.ScreenshotDir,
			TracePath:     config.TracePath,
			InstallDriver: config.ShouldInstallDriver(),
		}, tel)
	}
	return nil, fmt.Errorf("unknown transport %q", config.Transport)
}

func openSession(cmd *cobra.Command) (*session, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, err
	}
	clock, err := chrono.NewStandardImpl()
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	tel := newTelemetry()
	runID := uuid.NewString()
	transport, err := newTransport(cmd.Context(), config, runID, tel)
	if err != nil {
		return nil, fmt.Errorf("create %s transport: %w", config.Transport, err)
	}

	bootstrapper := librus.NewBootstrapper(librus.BootstrapperOptions{
		Transport:   transport,
		Endpoints:   config.Endpoints,
		StrictLogin: config.IsStrictLogin(),
		Timeout:     config.Options().Timeout,
		Output:      cmd.OutOrStdout(),
		Clock:       clock,
		RunID:       runID,
	}, tel)

	return &session{
		config:       config,
		tel:          tel,
		transport:    transport,
		bootstrapper: bootstrapper,
	}, nil
}

func (s *session) Close() {
	err := s.transport.Close()
	if err != nil {
		slog.Warn("failed to release transport", "transport", s.transport.Name(), "err", err)
	}
}

// finish writes the optional report and turns the summary into the
// command's result.
func (s *session) finish(summary librus.Summary) error {
	if s.config.ReportPath != "" {
		err := librus.WriteReport(s.config.ReportPath, summary)
		if err != nil {
			slog.Error("failed to write report", "path", s.config.ReportPath, "err", err)
		} else {
			slog.Info("wrote report", "path", s.config.ReportPath, "run_id", summary.RunID)
		}
	}
	code := summary.ExitCode()
	if code != 0 {
		return exitError{code: code}
	}
	return nil
}

func credentials() librus.Credentials {
	creds := librus.CredentialsFromEnv()
	if !creds.Valid() {
		fmt.Fprintf(os.Stderr, "set %s and %s (or put them in .env)\n", librus.EnvUsername, librus.EnvPassword)
	}
	return creds
}
