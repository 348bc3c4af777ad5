package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "embed"

	"github.com/fitledger/fitledger/internal/app"
	"github.com/fitledger/fitledger/internal/support/logger"
)

// embeddedConfig embeds the application's YAML configuration file so the
// binary is self-contained.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// main runs one daily ingestion: refresh the provider token, fetch
// yesterday's data for every category and merge it into the columnar store.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Attempting to stop the run...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	app.RunIngest(ctx, envFilePath, embeddedConfig)
}
