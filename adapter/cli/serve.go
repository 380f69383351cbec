package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/circadianlabs/tempo/adapter/api"
	"github.com/circadianlabs/tempo/internal/scheduling/domain"
	"github.com/circadianlabs/tempo/internal/scheduling/infrastructure/persistence"
	"github.com/circadianlabs/tempo/internal/shared/infrastructure/cache"
	"github.com/circadianlabs/tempo/internal/shared/infrastructure/eventbus"
	"github.com/circadianlabs/tempo/pkg/config"
	"github.com/circadianlabs/tempo/pkg/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	generator := newGenerator(ctx, cfg)
	handler := api.NewScheduleHandler(generator, logger)

	health := observability.NewHealthRegistry()

	repo, pingRepo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()
	handler.WithRepository(repo)
	health.Register("database", observability.DatabaseHealthChecker(pingRepo))

	if cfg.CacheEnabled {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		handler.WithCache(cache.NewScheduleCache(client, cfg.CacheTTL, logger))
		health.Register("redis", observability.RedisHealthChecker(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}))
	}

	if cfg.EventBusEnabled {
		publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Warn("event bus unavailable, continuing without publishing", "error", err)
		} else {
			defer publisher.Close()
			handler.WithPublisher(publisher)
		}
	}

	serverCfg := api.DefaultServerConfig()
	serverCfg.Addr = cfg.HTTPAddr
	server := api.NewServer(serverCfg, handler, logger).WithHealth(health)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openRepository picks Postgres when DATABASE_URL is set, SQLite otherwise.
// The ping function feeds the health endpoint.
func openRepository(ctx context.Context, cfg *config.Config) (domain.ScheduleRepository, func(context.Context) error, func(), error) {
	if cfg.UsePostgres() {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		pg := persistence.NewPostgresScheduleRepository(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("prepare postgres schema: %w", err)
		}
		logger.Info("using postgres schedule storage")
		return pg, pool.Ping, pool.Close, nil
	}

	db, err := persistence.OpenSQLite(ctx, cfg.SQLitePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	logger.Info("using sqlite schedule storage", "path", cfg.SQLitePath)
	return persistence.NewSQLiteScheduleRepository(db), db.PingContext, func() { _ = db.Close() }, nil
}
