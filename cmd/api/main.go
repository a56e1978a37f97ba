package main

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"abode/internal/config"
	"abode/internal/credits"
	"abode/internal/httpapi"
	"abode/internal/pkg/logger"
	"abode/internal/pkg/shutdown"
	"abode/internal/queue"
	"abode/internal/render"
	"abode/internal/repo"
)

func main() {
	cfg := config.Load()

	log := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: "abode-render-api",
	})

	log.Info("starting render queue API", "version", "0.1.0")

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	var (
		jobs     render.JobStore
		projects render.ProjectStore
		ledger   credits.Ledger
		keys     httpapi.KeyResolver
		pool     *pgxpool.Pool
	)

	if cfg.DatabaseURL != "" {
		log.Info("connecting to PostgreSQL")
		var err error
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.LogFatal("failed to connect to PostgreSQL", err)
		}
		shutdownMgr.Register("postgres", func(ctx context.Context) error {
			pool.Close()
			return nil
		})
		if err := pool.Ping(ctx); err != nil {
			log.LogFatal("failed to ping PostgreSQL", err)
		}
		log.Info("PostgreSQL connected")

		jobs = repo.NewPostgresJobs(pool)
		projects = repo.NewPostgresProjects(pool)
		ledger = repo.NewPostgresLedger(pool)
		keys = repo.NewPostgresKeys(pool)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		jobs = repo.NewMemoryJobs()
		projects = repo.NewMemoryProjects()
		ledger = credits.NewMemoryLedger()
		keys = repo.NewMemoryKeys()
	}

	var (
		dispatch render.Dispatcher
		rdb      *redis.Client
	)
	if cfg.RedisAddr != "" {
		log.Info("connecting to Redis")
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		shutdownMgr.Register("redis", func(ctx context.Context) error {
			return rdb.Close()
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.LogFatal("failed to ping Redis", err)
		}
		log.Info("Redis connected")

		dispatch = queue.NewRedisDispatcher(rdb, cfg.DispatchQueue)
	} else {
		log.Warn("REDIS_ADDR not set, dispatch is in-memory only")
		dispatch = queue.NewMemoryDispatcher()
	}

	svc := render.NewService(render.Deps{
		Jobs:     jobs,
		Projects: projects,
		Ledger:   ledger,
		Dispatch: dispatch,
		Log:      log,
	})

	// Promote scheduled jobs whose time has come.
	sweepCtx, stopSweep := context.WithCancel(ctx)
	shutdownMgr.Register("scheduler-sweep", func(ctx context.Context) error {
		stopSweep()
		return nil
	})
	go runSweep(sweepCtx, svc, cfg.SweepInterval, log)

	router := httpapi.NewRouter(httpapi.Deps{
		Service:            svc,
		Ledger:             ledger,
		Keys:               keys,
		FarmToken:          cfg.FarmToken,
		Pool:               pool,
		RDB:                rdb,
		Log:                log,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	shutdownMgr.Wait()
}

// runSweep periodically moves due scheduled jobs into the queue.
func runSweep(ctx context.Context, svc *render.Service, interval time.Duration, log *logger.Logger) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler sweep stopped")
			return
		case <-ticker.C:
			if _, err := svc.PromoteDue(ctx); err != nil {
				log.LogError(ctx, "scheduler sweep failed", err)
			}
		}
	}
}
