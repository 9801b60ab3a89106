package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sifan077/snaplink/config"
	apprepository "github.com/sifan077/snaplink/internal/app/repository"
	appserver "github.com/sifan077/snaplink/internal/app/server"
	"github.com/sifan077/snaplink/internal/app/service"
	"github.com/sifan077/snaplink/internal/infra/logger"
	infraNATS "github.com/sifan077/snaplink/internal/infra/nats"
	infraPostgres "github.com/sifan077/snaplink/internal/infra/postgres"
	infraPrometheus "github.com/sifan077/snaplink/internal/infra/prometheus"
	infraRedis "github.com/sifan077/snaplink/internal/infra/redis"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"
)

const defaultShutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.Init(logger.FromApp(cfg.App))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Server exited with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

// closer releases one resource during shutdown; they run in reverse order.
type closer func(ctx context.Context)

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("Configuration loaded successfully",
		zap.String("env", cfg.App.Env),
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.String("click_mode", cfg.Clicks.Mode),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.Bool("prometheus_enabled", cfg.Prometheus.Enabled),
	)

	var closers []closer
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
		defer cancel()
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i](shutdownCtx)
		}
	}()

	observers := []service.Observer{service.NewLogObserver(log)}
	if cfg.Prometheus.Enabled {
		reg := infraPrometheus.NewRegistry()
		observers = append(observers, infraPrometheus.NewMetrics(reg))

		promServer := infraPrometheus.NewServer(cfg.Prometheus, reg)
		go func() {
			log.Info("Starting Prometheus metrics server", zap.Int("port", cfg.Prometheus.Port))
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Prometheus metrics server stopped unexpectedly", zap.Error(err))
			}
		}()
		closers = append(closers, func(ctx context.Context) {
			if err := promServer.Shutdown(ctx); err != nil {
				log.Warn("Failed to close Prometheus server", zap.Error(err))
			}
		})
	}
	observer := service.Observers(observers...)

	links, clicks, storageClosers, err := openStorage(ctx, cfg, log)
	closers = append(closers, storageClosers...)
	if err != nil {
		return err
	}

	if cfg.Redis.Enabled {
		redisClient, err := infraRedis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		closers = append(closers, func(context.Context) { _ = redisClient.Close() })
		links = apprepository.NewCachedLinkRepository(links, redisClient, cfg.Redis.CacheTTL, log)
		log.Info("Connected to Redis successfully", zap.String("addr", infraRedis.Addr(cfg.Redis)))
	}

	recorder, recorderClosers, err := newClickRecorder(ctx, cfg, log, clicks, observer)
	closers = append(closers, recorderClosers...)
	if err != nil {
		return err
	}

	sweeper := service.NewExpirySweeper(log, clicks, links, cfg.Clicks.SweepInterval)
	sweeper.Start()
	closers = append(closers, func(context.Context) { sweeper.Stop() })

	server := appserver.New(appserver.Dependencies{
		Logger: log,
		Links: service.NewLinkService(links, service.LinkServiceOptions{
			IDs:         service.NewNanoIDGenerator(cfg.Links.IDLength),
			MaxAttempts: cfg.Links.MaxAttempts,
			TTL:         cfg.Links.TTL,
			Observer:    observer,
		}),
		Redirects: service.NewRedirectService(links, service.RedirectServiceOptions{
			Recorder: recorder,
			ClickTTL: cfg.Clicks.TTL,
			Observer: observer,
		}),
		Stats: service.NewStatsService(clicks, cfg.Clicks.QueryLimit),
		Origin: service.Origin{
			Scheme: cfg.Links.PublicScheme,
			Domain: cfg.Links.PublicDomain,
			Stage:  cfg.Links.Stage,
		},
	})

	listenErr := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", zap.String("addr", cfg.App.ListenAddr))
		listenErr <- server.Listen(cfg.App.ListenAddr)
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("fiber server exited: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to shut down HTTP server cleanly", zap.Error(err))
	}
	return nil
}

func openStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (apprepository.LinkRepository, apprepository.ClickEventRepository, []closer, error) {
	if cfg.Storage.Driver != config.StoragePostgres {
		log.Warn("Using in-memory storage; data is lost on restart")
		return apprepository.NewMemoryLinkRepository(), apprepository.NewMemoryClickEventRepository(), nil, nil
	}

	var closers []closer

	gormDB, err := infraPostgres.NewGorm(cfg.Postgres)
	if err != nil {
		return nil, nil, closers, err
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, nil, closers, fmt.Errorf("access underlying SQL DB: %w", err)
	}
	closers = append(closers, func(context.Context) { _ = sqlDB.Close() })

	if err := infraPostgres.Migrate(ctx, gormDB); err != nil {
		return nil, nil, closers, fmt.Errorf("run database migrations: %w", err)
	}

	pool, err := infraPostgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, closers, err
	}
	closers = append(closers, func(context.Context) { pool.Close() })

	log.Info("Connected to Postgres successfully",
		zap.String("host", cfg.Postgres.Host),
		zap.Int("port", cfg.Postgres.Port),
		zap.String("database", cfg.Postgres.Database),
	)
	return apprepository.NewLinkRepository(gormDB), apprepository.NewClickEventRepository(pool), closers, nil
}

func newClickRecorder(ctx context.Context, cfg *config.Config, log *zap.Logger, clicks apprepository.ClickEventRepository, observer service.Observer) (service.ClickRecorder, []closer, error) {
	switch cfg.Clicks.Mode {
	case config.ClickModeSync:
		return service.NewSyncClickRecorder(clicks, observer, cfg.Clicks.WriteTimeout), nil, nil

	case config.ClickModeJetStream:
		var closers []closer
		natsConn, js, err := infraNATS.Connect(cfg.NATS, service.PublishErrorHandler(observer))
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, func(context.Context) {
			if err := natsConn.Drain(); err != nil {
				log.Warn("Failed to drain NATS connection", zap.Error(err))
			}
		})
		log.Info("Connected to NATS successfully", zap.String("url", infraNATS.URL(cfg.NATS)))

		stream := service.ClickStream{
			Name:    cfg.NATS.Stream,
			Subject: cfg.NATS.Subject,
			Durable: cfg.NATS.Consumer,
		}
		consumerCtx, cancel := context.WithCancel(ctx)
		consumer := service.NewClickConsumer(js, stream, log, clicks, observer)
		if err := consumer.Start(consumerCtx); err != nil {
			cancel()
			return nil, closers, fmt.Errorf("start click consumer: %w", err)
		}
		closers = append(closers, func(ctx context.Context) {
			cancel()
			select {
			case <-consumer.Done():
			case <-ctx.Done():
			}
		})
		return service.NewClickPublisher(js, stream.Subject), closers, nil

	default:
		recorder := service.NewAsyncClickRecorder(clicks, observer, cfg.Clicks.WriteTimeout)
		return recorder, []closer{func(ctx context.Context) {
			if err := recorder.Close(ctx); err != nil {
				log.Warn("Click recorder did not drain before shutdown", zap.Error(err))
			}
		}}, nil
	}
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.App.ShutdownTimeout > 0 {
		return cfg.App.ShutdownTimeout
	}
	return defaultShutdownTimeout
}
