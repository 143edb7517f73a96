package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"golang.org/x/sync/errgroup"

	"seatwatch"
	"seatwatch/api"
	"seatwatch/engine"
	"seatwatch/event"
	"seatwatch/job"
	"seatwatch/middleware"
	"seatwatch/notify"
	"seatwatch/ratelimit"
	"seatwatch/seatcheck"
	bunstore "seatwatch/store/bun"
	"seatwatch/store/memory"
	"seatwatch/sweeper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the seatwatch HTTP server",
	Long: `The serve command starts the job engine, the maintenance sweeper
and the HTTP API. Postgres and Redis are used when configured and
replaced by in-process equivalents otherwise.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := seatwatch.DefaultConfig()
	cfg.Concurrency = viper.GetInt("engine.concurrency")
	cfg.DispatchRate = viper.GetFloat64("engine.dispatch_rate")
	cfg.SweepSchedule = viper.GetString("sweep.schedule")
	if d, err := time.ParseDuration(viper.GetString("server.shutdown_timeout")); err == nil {
		cfg.ShutdownTimeout = d
	} else {
		logger.Warn("invalid shutdown timeout, keeping default",
			"value", viper.GetString("server.shutdown_timeout"),
			"default", cfg.ShutdownTimeout)
	}

	store, closeStore, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := []engine.Option{
		engine.WithConfig(cfg),
		engine.WithLogger(logger),
		engine.WithMiddleware(
			middleware.Recover(logger),
			middleware.Logging(logger),
			middleware.Metrics(),
			middleware.Tracing(),
		),
	}

	if addr := viper.GetString("redis.addr"); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("redis unreachable", "addr", addr, "error", err)
			return err
		}
		opts = append(opts,
			engine.WithBus(event.NewRedisBus(rdb, event.WithRedisBusLogger(logger))),
			engine.WithLimiter(ratelimit.NewRedisLimiter(rdb,
				ratelimit.WithWindow(cfg.RateLimitWindow),
				ratelimit.WithMax(cfg.RateLimitMax),
			)),
		)
	}

	if url := viper.GetString("webhook.url"); url != "" {
		opts = append(opts, engine.WithNotifier(notify.NewWebhook(url)))
	}

	checker := seatcheck.NewClient(viper.GetString("site.base_url"),
		seatcheck.WithClientLogger(logger))

	eng := engine.New(store, checker, opts...)
	eng.Start(ctx)

	swp := sweeper.New(store, eng.Queue(), eng.Bus(),
		sweeper.WithSchedule(cfg.SweepSchedule),
		sweeper.WithLogger(logger))
	if err := swp.Start(ctx); err != nil {
		logger.Error("sweeper start failed", "schedule", cfg.SweepSchedule, "error", err)
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	handler := api.NewHandler(eng,
		api.WithLogger(logger),
		api.WithHeartbeatInterval(cfg.HeartbeatInterval))
	srv := &http.Server{
		Addr:    viper.GetString("server.addr"),
		Handler: handler.Router(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		swp.Stop()
		if err := srv.Shutdown(shutCtx); err != nil {
			logger.Error("server shutdown", "error", err)
		}
		return eng.Stop(shutCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited", "error", err)
		return err
	}
	logger.Info("server exited")
	return nil
}

// openStore returns the configured job store. A Postgres DSN selects the
// bun-backed store and runs migrations; otherwise jobs live in memory and
// do not survive restarts.
func openStore(ctx context.Context, logger *slog.Logger) (job.Store, func(), error) {
	dsn := viper.GetString("postgres.dsn")
	if dsn == "" {
		logger.Warn("no postgres DSN configured, using in-memory store")
		return memory.New(), func() {}, nil
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	st := bunstore.New(db, bunstore.WithLogger(logger))
	if err := st.Migrate(ctx); err != nil {
		db.Close()
		logger.Error("migrations failed", "error", err)
		return nil, nil, err
	}
	return st, func() { db.Close() }, nil
}
