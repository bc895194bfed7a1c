package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/robalyx/guardian/internal/rest"
	"github.com/robalyx/guardian/internal/setup"
	"github.com/robalyx/guardian/internal/setup/telemetry"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// ServerLogDir specifies where server log files are stored.
const ServerLogDir = "logs/server_logs"

// Server timeouts. Write timeout leaves room for the configured request timeout.
const (
	ReadHeaderTimeout = 5 * time.Second
	ReadTimeout       = 60 * time.Second
	WriteTimeoutSlack = 10 * time.Second
	ShutdownTimeout   = 30 * time.Second
)

func main() {
	app := &cli.Command{
		Name:  "server",
		Usage: "Serve the content moderation REST API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-dir",
				Value: ServerLogDir,
				Usage: "Directory for log sessions",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, c.String("log-dir"))
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, logDir string) error {
	// Initialize application with required dependencies
	app, err := setup.InitializeApp(ctx, telemetry.ServiceServer, logDir)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(context.Background())

	// Build moderation services
	services, err := setup.NewServices(ctx, app)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer services.Close()

	// Create server
	cfg := &app.Config.Server
	handler, cleanup := rest.NewServer(&rest.Dependencies{
		Moderator: services.Pipeline,
		Flagger:   services.Trust,
		Users:     app.DB.Service().User(),
		Logs:      app.DB.Model().Activity(),
		Checks: []rest.HealthCheck{
			{Name: "database", Check: func(ctx context.Context) error { return app.DB.DB().PingContext(ctx) }},
			{Name: "redis", Check: app.RedisManager.Ping},
		},
	}, cfg, app.Logger)
	defer cleanup()

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      time.Duration(cfg.RequestTimeout)*time.Millisecond + WriteTimeoutSlack,
	}

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		app.Logger.Info("Server started", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal or a listener failure
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
	case err, ok := <-serverErr:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	app.Logger.Info("Shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	app.Logger.Info("Server gracefully stopped")

	return nil
}
