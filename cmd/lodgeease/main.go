// Package main запускает HTTP-сервер сервиса учёта счетов LodgeEase.
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
	"golang.org/x/sync/errgroup"

	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/config"
	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/handler"
	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/invoice"
	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/middleware"
	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/repository"
	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/roomsync"
	"github.com/CHARLESAGANO/LodgeEase-sub002/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	loc, err := cfg.Location()
	if err != nil {
		sugar.Fatalw("timezone error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	// Без адреса сервиса бронирований связанные записи не синхронизируются.
	var reconciler invoice.LinkedRecordReconciler
	if cfg.RoomServiceAddress != "" {
		reconciler = roomsync.NewReconciler(roomsync.NewClient(cfg.RoomServiceAddress))
	}

	svc := service.NewService(repo, reconciler, logger,
		service.WithLocation(loc),
		service.WithSyncInterval(cfg.SyncInterval),
	)
	defer svc.Close()

	if cfg.OperatorSecret == "" {
		sugar.Warn("operator secret is not set, tokens issued elsewhere will be rejected")
	}
	operatorAuth := middleware.NewOperatorAuth(cfg.OperatorSecret)
	h := handler.NewHandler(svc, logger, operatorAuth, loc)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Фоновая досинхронизация связанных записей бронирований
	g.Go(func() error {
		svc.StartSyncRetries(ctx)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting lodgeease server", "addr", cfg.RunAddress, "timezone", loc.String())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
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
