package dashboard

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/fitledger/fitledger/internal/config"
	"github.com/fitledger/fitledger/internal/support/logger"

	"go.uber.org/fx"
)

// Module provides the dashboard server and binds it to the configured
// listen address for the lifetime of the application.
var Module = fx.Options(
	fx.Provide(NewServer),
	fx.Invoke(registerHTTPServer),
)

func registerHTTPServer(lc fx.Lifecycle, cfg *config.Config, server *Server) {
	httpServer := &http.Server{
		Addr:    cfg.Fitledger.Dashboard.ListenAddr,
		Handler: server.Router(),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", httpServer.Addr)
			if err != nil {
				return err
			}
			logger.Infof("Dashboard listening on %s.", ln.Addr())
			go func() {
				if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Errorf("Dashboard server stopped: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Infof("Shutting down dashboard server.")
			return httpServer.Shutdown(ctx)
		},
	})
}
