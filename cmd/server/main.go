package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/janisto/greeter-web/internal/http/routes"
	"github.com/janisto/greeter-web/internal/platform/config"
	applog "github.com/janisto/greeter-web/internal/platform/logging"
	"github.com/janisto/greeter-web/internal/server"
)

// Version can be overridden at build time: -ldflags "-X main.Version=1.2.3"
var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx := context.Background()
	defer func() {
		if err := applog.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) {
			applog.LogError(ctx, "logger sync error", err)
		}
	}()
	if err := applog.Err(); err != nil {
		applog.LogError(ctx, "logger init error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		applog.LogError(ctx, "invalid configuration", err)
		return 1
	}
	applog.SetLevel(cfg.LogLevel)
	applog.SetProjectID(cfg.ProjectID)

	srv := server.New(cfg.Addr(), cfg.AppName, routes.NewRouter(cfg.AppName, Version))

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(signalCtx, srv, cfg)
}

// serve runs srv until ctx is cancelled, then drains it within cfg.ShutdownTimeout.
// It returns the process exit code.
func serve(ctx context.Context, srv *server.Server, cfg config.Config) int {
	if err := srv.Listen(ctx); err != nil {
		applog.LogError(ctx, "listen failed", err, zap.String("addr", cfg.Addr()))
		return 1
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve() }()

	select {
	case err := <-serveErr:
		if err != nil {
			applog.LogError(ctx, "server failed", err)
			return 1
		}
		return 0
	case <-ctx.Done():
		applog.LogInfo(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		applog.LogError(shutdownCtx, "server shutdown error", err)
		return 1
	}
	if err := <-serveErr; err != nil {
		applog.LogError(shutdownCtx, "server failed", err)
		return 1
	}
	applog.LogInfo(shutdownCtx, "server exited")
	return 0
}
