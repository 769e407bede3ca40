package main

import (
	"context"
	"log/slog"

	"ecoline-bot/lib/restyutil"
	"ecoline-bot/lib/scrapers/ecoline"
	"ecoline-bot/lib/telemetry"
)

func InitTelemetry(ctx context.Context, verbose bool) {
	telemetry.InitSlog(verbose)

	// the bot keeps running without a collector
	err := telemetry.SetupFromEnv(ctx, "ecoline-bot")
	if err != nil {
		slog.WarnContext(ctx, "telemetry disabled", "err", err)
	} else {
		telemetry.InstrumentPerfStats(ctx)
	}

	if !verbose {
		return
	}

	ecoline.SetRestyInstrumentOutput(
		restyutil.NewFilesystemOutput("resty_telemetry/ecoline"),
	)
}
