package main // Entry point package for the HTTP API

import (
	"context"   // shutdown deadline
	"errors"    // http.ErrServerClosed check
	"net/http"  // server errors
	"os"        // exit codes
	"os/signal" // graceful shutdown on SIGINT/SIGTERM
	"syscall"   // SIGTERM
	"time"      // shutdown timeout

	"github.com/labstack/echo/v4" // Echo web framework
	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag" // command line flags
	"go.uber.org/zap"             // structured logging

	"github.com/iliyamo/line-event-reservation/internal/config"     // configuration loader
	"github.com/iliyamo/line-event-reservation/internal/database"   // MySQL pool and migrations
	"github.com/iliyamo/line-event-reservation/internal/handler"    // HTTP handlers
	"github.com/iliyamo/line-event-reservation/internal/line"       // LINE ID token verification
	"github.com/iliyamo/line-event-reservation/internal/logging"    // zap logger
	"github.com/iliyamo/line-event-reservation/internal/middleware" // cache, rate limit, request log
	"github.com/iliyamo/line-event-reservation/internal/payment"    // Stripe gateway and webhook verifier
	"github.com/iliyamo/line-event-reservation/internal/queue"      // notification publisher
	"github.com/iliyamo/line-event-reservation/internal/repository" // data access
	"github.com/iliyamo/line-event-reservation/internal/router"     // route registration
	"github.com/iliyamo/line-event-reservation/internal/service"    // reservation lifecycle engine
	"github.com/iliyamo/line-event-reservation/internal/storage"    // S3 image uploads
)

func main() {
	envFile := flag.String("env-file", "", "load environment variables from this file first")
	migrate := flag.Bool("migrate", true, "apply database migrations on start")
	flag.Parse()

	if err := config.LoadFile(*envFile); err != nil {
		zap.NewExample().Fatal("env file", zap.String("path", *envFile), zap.Error(err))
	}
	cfg, err := config.Load() // Load environment config
	if err != nil {
		zap.NewExample().Fatal("config", zap.Error(err))
	}
	logger := logging.New(cfg.Env)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, *migrate, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, migrate bool, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName))
	if err != nil {
		return err
	}
	defer db.Close()
	if migrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}
	store := repository.NewStore(db)

	rdb := config.NewRedisClient(logger) // nil when Redis is down; middleware degrades to pass-through
	if rdb != nil {
		defer rdb.Close()
	}

	publisher := queue.NewPublisher(cfg.AMQPURL, logger)
	defer publisher.Close()

	gateway := payment.NewGateway(payment.Config{
		SecretKey: cfg.Stripe.SecretKey,
		Currency:  cfg.Stripe.Currency,
		BaseURL:   cfg.BaseURL,
	})
	svc := service.NewReservationService(store, gateway, publisher, service.Options{
		PendingTTL:     cfg.PendingTTL,
		PaymentTimeout: cfg.PaymentTimeout,
		Logger:         logger,
	})
	defer svc.Wait() // let queued notifications reach the broker

	var uploader handler.ImageUploader
	if cfg.S3.Bucket != "" {
		images, err := storage.NewImages(ctx, storage.S3Config(cfg.S3), logger)
		if err != nil {
			return err
		}
		uploader = images
	} else {
		logger.Warn("S3_BUCKET not set; image uploads disabled")
	}

	cacheCfg := config.LoadCacheConfig()
	var purge handler.PurgeFunc
	if rdb != nil {
		purge = func(ctx context.Context) error {
			_, err := middleware.PurgeCache(ctx, rdb, cacheCfg.Prefix)
			return err
		}
	}

	e := newEcho(logger)
	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, line.NewVerifier(cfg.LINE.ChannelID), store.Users, logger), cfg.JWTSecret)
	router.RegisterPublic(e, handler.NewEventHandler(store.Events, svc, logger), middleware.NewRedisCache(cacheCfg, rdb, logger))
	resHandler := handler.NewReservationHandler(svc, logger)
	router.RegisterReservations(e, resHandler, cfg.JWTSecret, rateLimit(rdb, logger))
	router.RegisterAdmin(e, handler.NewAdminEventHandler(store.Events, store, uploader, purge, logger), cfg.JWTSecret)
	router.RegisterAdminReservations(e, resHandler, cfg.JWTSecret)
	router.RegisterWebhooks(e, handler.NewWebhookHandler(payment.NewVerifier(cfg.Stripe.WebhookSecret), svc, logger))

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newEcho(logger *zap.Logger) *echo.Echo {
	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestLogger(logger))
	return e
}

func rateLimit(rdb *redis.Client, logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger)
}
