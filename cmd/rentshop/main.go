// Package main запускает HTTP-сервер сервиса проката.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/rentshop/internal/config"
	"github.com/mmeshcher/rentshop/internal/gateway"
	"github.com/mmeshcher/rentshop/internal/handler"
	"github.com/mmeshcher/rentshop/internal/middleware"
	"github.com/mmeshcher/rentshop/internal/repository"
	"github.com/mmeshcher/rentshop/internal/revenue"
	"github.com/mmeshcher/rentshop/internal/scheduler"
	"github.com/mmeshcher/rentshop/internal/service"
)

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func main() {
	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger initialization error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	sugar := logger.Sugar()

	loc, err := cfg.Location()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := repository.NewPostgresRepository(ctx, cfg.DatabaseURI,
		repository.WithMaxConns(int32(cfg.DatabaseMaxConns)),
	)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	var gatewayClient *gateway.Client
	if cfg.PaymentGatewayAddress != "" {
		gatewayClient = gateway.NewClient(cfg.PaymentGatewayAddress)
	}

	svc := service.NewService(repo, gatewayClient,
		service.WithResolver(revenue.NewResolver(loc)),
		service.WithLogger(logger),
		service.WithReservationGrace(cfg.ReservationGrace),
		service.WithPollInterval(cfg.PaymentPollInterval),
		service.WithPhoneRegion(cfg.PhoneRegion),
	)
	defer svc.Close()

	sched, err := scheduler.NewScheduler(cfg.ReservationSweepSchedule, svc, logger)
	if err != nil {
		sugar.Fatalw("scheduler initialization error", "error", err.Error())
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	if cfg.AuthSecret == "" {
		sugar.Warn("AUTH_SECRET is not set, sessions will not survive a restart")
	}
	h := handler.NewHandler(svc, logger, authMiddleware, loc)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Синхронизация карточных платежей с платёжным шлюзом
	g.Go(func() error {
		svc.StartPaymentUpdates(ctx)
		return nil
	})

	g.Go(func() error {
		sched.Run(ctx)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting rentshop server", "addr", cfg.RunAddress, "timezone", loc.String())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
