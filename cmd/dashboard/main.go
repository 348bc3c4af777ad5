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

// main serves the analytical dashboard over the columnar store.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Shutting down...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	app.RunDashboard(ctx, envFilePath, embeddedConfig)
}
