// Command worker drains the notification queue into SMTP and, when
// PENDING_TTL is set, cancels checkouts that were never paid.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/iliyamo/line-event-reservation/internal/config"
	"github.com/iliyamo/line-event-reservation/internal/database"
	"github.com/iliyamo/line-event-reservation/internal/logging"
	"github.com/iliyamo/line-event-reservation/internal/mail"
	"github.com/iliyamo/line-event-reservation/internal/payment"
	"github.com/iliyamo/line-event-reservation/internal/queue"
	"github.com/iliyamo/line-event-reservation/internal/repository"
	"github.com/iliyamo/line-event-reservation/internal/service"
)

func main() {
	envFile := flag.String("env-file", "", "load environment variables from this file first")
	noExpiry := flag.Bool("no-expiry", false, "do not sweep stale pending reservations")
	flag.Parse()

	if err := config.LoadFile(*envFile); err != nil {
		zap.NewExample().Fatal("env file", zap.String("path", *envFile), zap.Error(err))
	}
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config", zap.Error(err))
	}
	logger := logging.New(cfg.Env).Named("worker")
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	mailer := mail.New(mail.Config(cfg.SMTP), logger)
	consumer := queue.NewConsumer(cfg.AMQPURL, mailer, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("consumer stopped", zap.Error(err))
		}
	}()

	if cfg.PendingTTL > 0 && !*noExpiry {
		db, err := database.Open(database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName))
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer db.Close()
		gateway := payment.NewGateway(payment.Config{
			SecretKey: cfg.Stripe.SecretKey,
			Currency:  cfg.Stripe.Currency,
			BaseURL:   cfg.BaseURL,
		})
		// Expiry never notifies, so no notifier is wired.
		svc := service.NewReservationService(repository.NewStore(db), gateway, nil, service.Options{
			PendingTTL:     cfg.PendingTTL,
			PaymentTimeout: cfg.PaymentTimeout,
			Logger:         logger,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweep(ctx, svc, cfg.ExpiryInterval, logger)
		}()
	}

	logger.Info("worker started", zap.Duration("pending_ttl", cfg.PendingTTL))
	<-ctx.Done()
	logger.Info("shutting down")
	wg.Wait()
}

// sweep runs ExpireStalePending every interval until ctx is done.
func sweep(ctx context.Context, svc *service.ReservationService, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		n, err := svc.ExpireStalePending(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			logger.Warn("pending expiry sweep failed", zap.Int("expired", n), zap.Error(err))
		case n > 0:
			logger.Info("expired stale pending reservations", zap.Int("expired", n))
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
