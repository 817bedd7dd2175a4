package main

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/jzx17/calcpool/internal/config"
	"github.com/jzx17/calcpool/internal/metrics"
	"github.com/jzx17/calcpool/internal/server"
	"github.com/jzx17/calcpool/pkg/worker"
)

// Deps bundles the shared application dependencies for injection via fx.
type Deps struct {
	fx.In

	Config     *config.Config
	Loader     *config.Loader `optional:"true"`
	Logger     *slog.Logger
	Level      *slog.LevelVar
	Server     *server.Server
	Shutdowner fx.Shutdowner
}

// appOptions wires configuration, metrics, pool and server into one fx graph
func appOptions(cfg *config.Config, loader *config.Loader, logger *slog.Logger, level *slog.LevelVar) fx.Option {
	supplied := []any{cfg, logger, level}
	if loader != nil {
		supplied = append(supplied, loader)
	}

	return fx.Options(
		fx.WithLogger(func() fxevent.Logger {
			fxLogger := &fxevent.SlogLogger{Logger: logger}
			fxLogger.UseLogLevel(slog.LevelDebug)

			return fxLogger
		}),
		fx.Supply(supplied...),
		fx.Provide(
			metrics.NewCollector,
			newPool,
			newServer,
		),
		fx.Invoke(RunServer, WatchConfig),
	)
}

// newPool starts the worker pool and shuts it down when the app stops.
// Its stop hook is registered before the server's, so it runs after the
// listener is closed and drains every accepted connection.
func newPool(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger, collector *metrics.Collector) (*worker.FixedWorkerPool, error) {
	pool, err := worker.NewFixedWorkerPool(&worker.FixedWorkerPoolConfig{
		PoolSize:      cfg.Pool.Size,
		QueueCapacity: cfg.Pool.QueueCapacity,
		SpawnTimeout:  cfg.Pool.SpawnTimeout,
		LockOSThread:  cfg.Pool.LockOSThread,
		Observer:      collector,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	collector.WatchPool(pool)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("Worker pool stopping...", slog.Int("queued", pool.QueueLength()))

			return pool.Shutdown()
		},
	})

	return pool, nil
}

func newServer(cfg *config.Config, pool *worker.FixedWorkerPool, logger *slog.Logger, collector *metrics.Collector) *server.Server {
	return server.New(cfg.Server, pool,
		server.WithLogger(logger),
		server.WithMetrics(cfg.Metrics, collector.Handler()),
	)
}

// RunServer binds the listener on start and serves until the app stops.
func RunServer(lc fx.Lifecycle, deps Deps) {
	logger := deps.Logger
	srv := deps.Server

	serverCtx, cancelServer := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := srv.Listen(); err != nil {
				cancelServer()
				close(done)

				return err
			}

			logger.Info("Starting server",
				slog.String("version", version),
				slog.Int("pool_size", deps.Config.Pool.Size))

			go func() {
				defer close(done)

				if err := srv.Run(serverCtx); err != nil {
					logger.Error("Server error", slog.String("error", err.Error()))

					_ = deps.Shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Server stopping...")
			cancelServer()

			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

// WatchConfig follows log level changes in the configuration file.
func WatchConfig(lc fx.Lifecycle, deps Deps) {
	if deps.Loader == nil {
		return
	}

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer close(done)

				if err := deps.Loader.WatchLogLevel(watchCtx, deps.Level, deps.Logger); err != nil {
					deps.Logger.Error("Config watcher stopped", slog.String("error", err.Error()))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancelWatch()
			<-done

			return nil
		},
	})
}
