package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/xptrack/internal/adapters/highscore"
	"github.com/okian/xptrack/internal/adapters/http/api"
	"github.com/okian/xptrack/internal/adapters/http/swagger"
	"github.com/okian/xptrack/internal/adapters/repository"
	app "github.com/okian/xptrack/internal/app"
	"github.com/okian/xptrack/internal/config"
	"github.com/okian/xptrack/pkg/logger"
	"github.com/okian/xptrack/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 2 * time.Minute
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
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
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "server exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()
	registerRuntimeCollectors(metrics.GetRegistry())

	store, err := repository.Open(ctx, storeSettings(cfg))
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "closing store failed", logger.Error(err))
		}
	}()

	fetcher, err := newFetcher(cfg)
	if err != nil {
		return err
	}

	svc := newService(cfg, store, fetcher)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	if cfg.CollectOnStart {
		go func() {
			if _, err := svc.Collect(ctx); err != nil {
				log.Warn(ctx, "startup collection skipped", logger.Error(err))
			}
		}()
	}

	srv := newHTTPServer(ctx, cfg, svc)
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return errors.Join(api.ErrServe, err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

func storeSettings(cfg *config.Config) repository.Settings {
	return repository.Settings{
		Driver:      cfg.StoreDriver,
		HistoryPath: cfg.HistoryPath,
		LatestPath:  cfg.LatestPath,
		SQLitePath:  cfg.SQLitePath,
	}
}

func newFetcher(cfg *config.Config) (*highscore.Client, error) {
	return highscore.New(cfg.World, cfg.Vocation, cfg.Character,
		highscore.WithBaseURL(cfg.HighscoreBaseURL),
		highscore.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.HTTPTimeoutMS) * time.Millisecond}),
		highscore.WithMaxPages(cfg.MaxPages),
		highscore.WithSnapshotPath(cfg.SnapshotPath),
		highscore.WithLogger(logger.Named("highscore")),
	)
}

func newService(cfg *config.Config, store repository.Store, fetcher app.Fetcher) *app.Service {
	return app.New(
		app.WithLogger(logger.Named("service")),
		app.WithStore(store),
		app.WithFetcher(fetcher),
		app.WithSchedule(cfg.CollectSchedule),
		app.WithCollectTimeout(time.Duration(cfg.CollectTimeoutMS)*time.Millisecond),
		app.WithReadmePath(cfg.ReadmePath),
		app.WithRecentWindow(cfg.RecentWindow),
		app.WithMilestoneGranularity(cfg.MilestoneGranularity),
	)
}

func newHTTPServer(ctx context.Context, cfg *config.Config, svc *app.Service) *http.Server {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, cfg.Character).Register(ctx, mux)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// registerRuntimeCollectors adds Go runtime and process metrics to reg.
// Repeated registration is ignored.
func registerRuntimeCollectors(reg prometheus.Registerer) {
	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				logger.Get().Warn(context.Background(), "registering runtime collector failed", logger.Error(err))
			}
		}
	}
}
