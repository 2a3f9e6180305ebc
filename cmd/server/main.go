package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/finledger/ledger-service/internal/config"
	"github.com/finledger/ledger-service/internal/db"
	"github.com/finledger/ledger-service/internal/domain"
	"github.com/finledger/ledger-service/internal/events"
	"github.com/finledger/ledger-service/internal/httpapi"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := config.Load()
	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to create database pool", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("database connection pool initialized")

	accountRepo := db.NewAccountRepository(pool.Pool)
	transactionRepo := db.NewTransactionRepository(pool.Pool)
	idempotencyRepo := db.NewIdempotencyRepository(pool.Pool)
	txManager := db.NewTransactionManager(pool.Pool, logger)

	var audit domain.AuditPublisher
	if cfg.RabbitMQ.Enabled {
		publisher, err := events.NewRabbitMQPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
		if err != nil {
			logger.Fatal("failed to create audit publisher", zap.Error(err))
		}
		defer publisher.Close()
		audit = publisher
	}

	retry := domain.NewRetryCoordinator(cfg.Retry.MaxRetries, cfg.Retry.Base, logger)
	engine := domain.NewTransactionEngine(accountRepo, transactionRepo, idempotencyRepo, txManager, retry, audit, logger)
	accountService := domain.NewAccountService(accountRepo, idempotencyRepo, txManager, audit, logger)
	logger.Info("ledger services initialized")

	handler := httpapi.NewHandler(accountService, engine, logger)
	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: httpapi.NewRouter(handler),
	}

	go func() {
		logger.Info("ledger HTTP server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
	logger.Info("HTTP server stopped")
}
