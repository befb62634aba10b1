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

	"github.com/eaglebank/ledger/internal/cache"
	"github.com/eaglebank/ledger/internal/config"
	"github.com/eaglebank/ledger/internal/events"
	"github.com/eaglebank/ledger/internal/handler"
	"github.com/eaglebank/ledger/internal/ledger"
	"github.com/eaglebank/ledger/internal/lock"
	"github.com/eaglebank/ledger/internal/middleware"
	"github.com/eaglebank/ledger/internal/projection"
	"github.com/eaglebank/ledger/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const projectionGroup = "ledger-projection-group"

func newServeCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ledger HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, migrate, logger)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply database migrations before serving")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, migrate bool, logger *zap.Logger) error {
	// Write store
	db, err := openDatabase(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	if migrate {
		if err := repository.RunMigrations(db); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}

	// Redis: locks, event stream, summary read model
	redis, err := cache.NewClient(cfg.Redis)
	if err != nil {
		return err
	}
	defer redis.Close()

	store := repository.NewPostgresStore(db)

	var numbers ledger.NumberGenerator
	switch cfg.Ledger.Numbering {
	case "sequence":
		numbers = ledger.NewSequenceNumbers(store)
	default:
		numbers = ledger.NewRandomNumbers(store, 0)
	}

	var locker ledger.Locker
	switch cfg.Ledger.Lock {
	case "redis":
		locker = lock.NewRedisLocker(redis.Client, cfg.Ledger.LockTTL, logger)
	default:
		locker = lock.NewKeyedMutex()
	}

	publisher := events.NewPublisher(redis.Client, cfg.Redis.StreamMaxLen)
	svc := ledger.NewService(store, numbers, locker, publisher, logger, ledger.Options{
		ServiceAccount: cfg.Ledger.ServiceAccount,
		MaxRetries:     cfg.Ledger.MaxRetries,
	})
	summaries := projection.NewAccountSummaries(redis.Client, logger)
	accountHandler := handler.NewAccountHandler(svc, svc, summaries, logger)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.LoggingMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	accountHandler.Register(router.Group("/v1/accounts", middleware.AuthMiddleware([]byte(cfg.Auth.JWTSecret))))

	if cfg.Ledger.Projection {
		subscriber := events.NewSubscriber(redis.Client, events.SubscriberConfig{
			Group:    projectionGroup,
			Consumer: consumerName(),
			Stream:   events.LedgerEventsStream,
			Handler:  summaries.HandleLedgerEvent,
		}, logger)
		go func() {
			if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Subscriber stopped", zap.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Ledger service starting", zap.String("port", cfg.HTTP.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

// consumerName stays the same across restarts on one host so the subscriber
// picks up the messages it left pending.
func consumerName() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return "ledger-" + host
	}
	return "ledger-" + uuid.NewString()
}
