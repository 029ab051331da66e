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

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ruudy-sib/outbound/internal/adapter/primary/worker"
	"github.com/ruudy-sib/outbound/internal/config"
	"github.com/ruudy-sib/outbound/internal/domain/entity"
	"github.com/ruudy-sib/outbound/internal/domain/service"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP producer service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	// Root context with cancellation for graceful shutdown.
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// Build the dependency injection container.
	c, err := buildContainer(ctx)
	if err != nil {
		return fmt.Errorf("building container: %w", err)
	}

	var runErr error

	// Invoke the application, resolving all dependencies and starting services.
	invokeErr := c.Invoke(func(
		router http.Handler,
		monitor *worker.Monitor,
		manager *service.ConnectionManager,
		mode entity.Mode,
		cfg *config.Config,
		logger *zap.Logger,
		redisClient goredis.UniversalClient,
	) {
		defer func() {
			// Clean up resources on shutdown.
			if redisClient != nil {
				if err := redisClient.Close(); err != nil {
					logger.Error("error closing redis", zap.Error(err))
				}
			}
			_ = logger.Sync()
		}()

		logger.Info("starting application",
			zap.String("app", appName),
			zap.String("version", version),
			zap.String("environment", cfg.Environment),
			zap.String("mode", string(mode)),
			zap.String("transport", cfg.BrokerTransport),
			zap.String("http_addr", cfg.HTTPAddr),
		)

		if mode == entity.ModeNoop {
			logger.Warn("no broker host configured, running in no-op mode: messages will not be delivered")
		} else if err := manager.Start(ctx); err != nil {
			runErr = fmt.Errorf("starting connection manager: %w", err)
			return
		}

		// Start the queue monitor.
		monitorCtx, monitorCancel := context.WithCancel(ctx)
		defer monitorCancel()

		errCh := make(chan error, 2)
		go func() {
			errCh <- monitor.Run(monitorCtx)
		}()

		// Start the HTTP server.
		server := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			if srvErr := server.ListenAndServe(); srvErr != nil && !errors.Is(srvErr, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server: %w", srvErr)
			}
		}()

		// Wait for shutdown signal.
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		case fatalErr := <-manager.Fatal():
			logger.Error("fatal broker error, exiting", zap.Error(fatalErr))
			runErr = fmt.Errorf("%w: %w", errFatal, fatalErr)
		case srvErr := <-errCh:
			if srvErr != nil && !errors.Is(srvErr, context.Canceled) {
				logger.Error("service error", zap.Error(srvErr))
				runErr = srvErr
			}
		}

		// Graceful shutdown with timeout.
		logger.Info("shutting down gracefully")
		monitorCancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", zap.Error(err))
		}
		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Error("connection manager shutdown error", zap.Error(err))
		}
		cancel()

		logger.Info("shutdown complete")
	})
	if invokeErr != nil {
		return invokeErr
	}
	return runErr
}
