// Package server wires the AccountMap backend together: configuration,
// logging, the PostgreSQL pool and migrations, the default user, optional
// Redis and AI clients, and the HTTP API with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/andrii-malakhovtsev/accountmap/internal/logging"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/analysis"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/config"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/httpapi"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/repositories/repomanager"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/services"
	"github.com/redis/go-redis/v9"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	redis  *redis.Client
	server *httpapi.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(logging.Options{Backend: c.LogBackend, Level: c.LogLevel, Format: c.LogFormat}, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, err := repomanager.OpenDB(ctx, c.DatabaseDSN, repomanager.PoolOptions{
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}
	if err := app.init(ctx); err != nil {
		app.close(ctx)
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config
	m := repomanager.NewPostgresRepositoryManager()

	if err := m.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}

	us := services.NewUserService(app.db, m, c, app.logger)
	defaultUser, err := us.EnsureDefaultUser(ctx)
	if err != nil {
		return fmt.Errorf("default user error: %w", err)
	}

	if c.SeedDemoData {
		if _, err := services.NewSeedService(app.db, m, nil, app.logger).Seed(ctx, defaultUser); err != nil {
			return fmt.Errorf("seed error: %w", err)
		}
	}

	var analyst services.Analyst
	if c.AIEnabled() {
		analyst = analysis.New(analysis.Options{
			APIKey:  c.AIAPIKey,
			BaseURL: c.AIBaseURL,
			Model:   c.AIModel,
			Timeout: c.AITimeout,
		})
	} else {
		app.logger.Warn(ctx, "AI API key not set, /ai/analyze is disabled")
	}

	opts := httpapi.Options{
		Addr:            c.HTTPAddr,
		ShutdownTimeout: c.ShutdownTimeout,
		AllowedOrigins:  c.AllowedOrigins,
		RateLimit:       c.AIRateLimit,
		RateWindow:      c.AIRateWindow,
	}
	if c.RedisURL != "" {
		rdb, err := openRedis(ctx, c.RedisURL)
		if err != nil {
			// the limiter fails open, so a missing Redis only costs limiting
			app.logger.Warn(ctx, "redis unavailable, AI rate limiting disabled", "error", err)
		} else {
			app.redis = rdb
			opts.RateCounter = httpapi.NewRedisCounter(rdb)
		}
	}

	app.server = httpapi.NewServer(opts, httpapi.Services{
		Users:       us,
		Accounts:    services.NewAccountService(app.db, m, app.logger),
		Identities:  services.NewIdentityService(app.db, m, app.logger),
		Connections: services.NewConnectionService(app.db, m, app.logger),
		Graph:       services.NewGraphService(app.db, m),
		Analysis:    services.NewAnalysisService(app.db, m, analyst, app.logger),
	}, app.logger)

	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until a termination signal arrives or the server fails, then
// releases the pool and the Redis client.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(context.Background())
	app.logger.Info(context.Background(), "App stopped")
}

func (app *App) close(ctx context.Context) {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn(ctx, "redis close error", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close error", "error", err)
	}
	if z, ok := app.logger.(*logging.ZapLogger); ok {
		_ = z.Sync()
	}
}
