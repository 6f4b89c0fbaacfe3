package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"unitymcp/internal/api"
)

var (
	serveAddr         string
	serveServerConfig string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API exposing the compile monitor actions.

Endpoints:
  GET  /health, /ready
  GET  /compile/status, /compile/errors, /compile/warnings
  POST /compile/wait?timeoutSeconds=N, /compile/clear, /compile/recompile
  POST /actions/{action}

Authentication, CORS and timeouts are read from an optional TOML file
(--server-config or api.serverConfig).`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides api.addr and the server config)")
	serveCmd.Flags().StringVar(&serveServerConfig, "server-config", "", "Server TOML config file")
	rootCmd.AddCommand(serveCmd)
}

// loadServerConfig applies precedence: --addr > server TOML > api.addr.
func loadServerConfig() (*api.ServerConfig, error) {
	path := serveServerConfig
	if path == "" {
		path = appConfig.API.ServerConfig
	}

	cfg := api.DefaultServerConfig()
	cfg.Addr = appConfig.API.Addr
	if path != "" {
		loaded, err := api.LoadServerConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, closer, err := newServiceLogger(appConfig, "api")
	if err != nil {
		return err
	}
	defer closer.Close()

	serverConfig, err := loadServerConfig()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	flush := initTelemetry(ctx, appConfig, logger)
	defer flush()

	bridge := newBridge(appConfig, logger)
	server, err := api.NewServer(serverConfig, newDispatcher(appConfig, bridge, logger), bridge, logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "unitymcp HTTP API listening on http://%s (bridge %s)\n", server.Addr(), bridge.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}
