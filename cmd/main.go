package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patti-j/planettogetheraiv2-sub024/internal/adapters/http/api"
	"github.com/patti-j/planettogetheraiv2-sub024/internal/adapters/http/site"
	"github.com/patti-j/planettogetheraiv2-sub024/internal/adapters/http/swagger"
	"github.com/patti-j/planettogetheraiv2-sub024/internal/adapters/optimizer"
	app "github.com/patti-j/planettogetheraiv2-sub024/internal/app"
	"github.com/patti-j/planettogetheraiv2-sub024/internal/config"
	"github.com/patti-j/planettogetheraiv2-sub024/pkg/logger"
	"github.com/patti-j/planettogetheraiv2-sub024/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
	// writeSlack is added to the optimizer timeout so an optimize response
	// can still be written after the slowest allowed execution.
	writeSlack = 30 * time.Second

	maxScenarios = 64
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := metrics.RegisterRuntimeCollectors(); err != nil {
		log.Warn(ctx, "runtime collectors not registered", logger.Error(err))
	}

	svc, srv := build(ctx, cfg, log)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		os.Exit(1)
	}
	defer svc.Stop()

	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("optimizer", cfg.OptimizerURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(context.Background(), "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}

	log.Info(shutdownCtx, "server stopped")
}

// build wires the engine service and the HTTP server for cfg.
func build(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, *http.Server) {
	client := optimizer.New(cfg.OptimizerURL,
		optimizer.WithTimeout(cfg.OptimizerTimeout()),
		optimizer.WithLogger(log.Named("optimizer")),
	)
	svc := app.New(
		app.WithLogger(log.Named("service")),
		app.WithOptimizer(client),
		app.WithHistoryDSN(cfg.HistoryDSN),
		app.WithHistoryLimit(cfg.HistoryLimit),
		app.WithSlotDuration(cfg.Slot()),
		app.WithWorkdayHours(cfg.WorkdayHours),
		app.WithStrictness(cfg.Strictness()),
		app.WithScenarioWorkers(cfg.ScenarioWorkers),
	)

	mux := http.NewServeMux()
	site.Register(ctx, mux)
	swagger.Register(mux)
	api.NewServer(svc, svc, cfg.HistoryLimit*10, maxScenarios).Register(mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.RecoverMiddleware(mux, log.Named("http")),
		ReadTimeout:       readTimeout,
		WriteTimeout:      cfg.OptimizerTimeout() + writeSlack,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return svc, srv
}
