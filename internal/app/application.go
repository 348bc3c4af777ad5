// Package app assembles the fitledger binaries from the fx modules: the
// one-shot ingestion job and the long-running dashboard server.
package app

import (
	"context"

	"github.com/fitledger/fitledger/internal/config"
	"github.com/fitledger/fitledger/internal/dashboard"
	"github.com/fitledger/fitledger/internal/fitbit"
	"github.com/fitledger/fitledger/internal/metrics"
	"github.com/fitledger/fitledger/internal/pipeline"
	"github.com/fitledger/fitledger/internal/query"
	"github.com/fitledger/fitledger/internal/runlog"
	"github.com/fitledger/fitledger/internal/secrets"
	"github.com/fitledger/fitledger/internal/storage"
	"github.com/fitledger/fitledger/internal/support/logger"

	"go.uber.org/fx"
)

// coreOptions supplies the inputs shared by both binaries and the ambient
// modules every component depends on.
func coreOptions(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig) fx.Option {
	return fx.Options(
		fx.Supply(
			embeddedConfig,
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
			fx.Annotate(
				appCtx,
				fx.As(new(context.Context)),
				fx.ResultTags(`name:"appCtx"`),
			),
		),
		logger.Module,
		config.Module,
		storage.Module,
	)
}

// RunIngest executes one ingestion run and returns once it finishes. The
// process exit code is non-zero when any part of the run failed.
func RunIngest(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig) {
	app := fx.New(
		coreOptions(appCtx, envFilePath, embeddedConfig),
		secrets.Module,
		fitbit.Module,
		metrics.Module,
		runlog.Module,
		pipeline.Module,

		fx.Invoke(fx.Annotate(startIngestion, fx.ParamTags(
			"",              // lc fx.Lifecycle
			"",              // shutdowner fx.Shutdowner
			"",              // orchestrator *pipeline.Orchestrator
			`name:"appCtx"`, // appCtx context.Context
		))),
	)

	app.Run()

	if app.Err() != nil {
		logger.Fatalf("Ingestion application failed: %v", app.Err())
	}
}

// startIngestion launches the orchestrator once the fx application has
// started and shuts the application down when the run finishes.
func startIngestion(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	orchestrator *pipeline.Orchestrator,
	appCtx context.Context,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				report, err := orchestrator.Run(appCtx)
				code := 0
				if err != nil {
					logger.Errorf("Ingestion run %s failed: %v", report.RunID, err)
					code = 1
				}
				if err := shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
					logger.Errorf("Failed to shut down application: %v", err)
				}
			}()
			return nil
		},
	})
}

// RunDashboard starts the dashboard server and blocks until the application
// is signalled to stop.
func RunDashboard(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig) {
	app := fx.New(
		coreOptions(appCtx, envFilePath, embeddedConfig),
		runlog.Module,
		query.Module,
		dashboard.Module,
	)

	app.Run()

	if app.Err() != nil {
		logger.Fatalf("Dashboard application failed: %v", app.Err())
	}
}
