package main

import (
	"context"

	"ecoline-bot/cmd/ecoline-cli/commands"
	"ecoline-bot/lib/telemetry"
)

func main() {
	telemetry.InitSlog(true)
	commands.ExecuteContext(context.Background())
}
