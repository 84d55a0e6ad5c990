package main

import (
	"context"
	"librus-probe/cmd/librus-probe/commands"
	"librus-probe/internal/components/telemetry"
	"librus-probe/lib/serviceutil"
	"log/slog"
	"os"
	"time"
)

func main() {
	telemetry.InitSlog(false)
	ctx := serviceutil.SignalContext()

	otel, err := telemetry.SetupFromEnv(ctx, "librus-probe")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}

	code := commands.ExecuteContext(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = otel.Shutdown(shutdownCtx)
	cancel()
	if err != nil {
		slog.Warn("failed to flush telemetry", "err", err)
	}
	os.Exit(code)
}
