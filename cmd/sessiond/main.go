package main

import (
	"log/slog"
	"os"

	"sessiond/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		slog.Error("sessiond.exit", "err", err)
		os.Exit(1)
	}
}
