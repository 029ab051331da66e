package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/zap"

	httphandler "github.com/ruudy-sib/outbound/internal/adapter/primary/http"
	"github.com/ruudy-sib/outbound/internal/adapter/primary/worker"
	"github.com/ruudy-sib/outbound/internal/adapter/secondary/memqueue"
	"github.com/ruudy-sib/outbound/internal/adapter/secondary/prommetrics"
	"github.com/ruudy-sib/outbound/internal/adapter/secondary/redisstore"
	"github.com/ruudy-sib/outbound/internal/adapter/secondary/transportfactory"
	"github.com/ruudy-sib/outbound/internal/config"
	"github.com/ruudy-sib/outbound/internal/domain/backoff"
	"github.com/ruudy-sib/outbound/internal/domain/entity"
	"github.com/ruudy-sib/outbound/internal/domain/service"
	"github.com/ruudy-sib/outbound/internal/domain/valueobject"
	"github.com/ruudy-sib/outbound/internal/port/primary"
	"github.com/ruudy-sib/outbound/internal/port/secondary"
)

func buildContainer(ctx context.Context) (*dig.Container, error) {
	c := dig.New()

	// --- Configuration ---
	if err := c.Provide(func() (*config.Config, error) {
		cfg, err := config.New()
		if err != nil {
			return nil, err
		}
		return cfg, cfg.Validate()
	}); err != nil {
		return nil, err
	}

	if err := c.Provide(func(cfg *config.Config) (entity.Mode, error) {
		return cfg.Mode()
	}); err != nil {
		return nil, err
	}

	// --- Logger ---
	if err := c.Provide(newLogger); err != nil {
		return nil, err
	}

	// --- Metrics ---
	if err := c.Provide(func() *prometheus.Registry {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		return reg
	}); err != nil {
		return nil, err
	}

	if err := c.Provide(func(reg *prometheus.Registry) secondary.Metrics {
		return prommetrics.New(reg)
	}); err != nil {
		return nil, err
	}

	// --- Secondary Adapters (infrastructure) ---

	if err := c.Provide(func(cfg *config.Config) (valueobject.ClientIdentity, error) {
		return valueobject.NewClientIdentity(cfg.ClientRole)
	}); err != nil {
		return nil, err
	}

	// Broker transport (implements secondary.Transport)
	if err := c.Provide(transportfactory.New); err != nil {
		return nil, err
	}

	// Redis client, nil unless the delivery queue is Redis-backed
	if err := c.Provide(func(cfg *config.Config, logger *zap.Logger) (goredis.UniversalClient, error) {
		if cfg.QueueBackend != config.QueueRedis {
			return nil, nil
		}
		return redisstore.NewClient(ctx, cfg, logger)
	}); err != nil {
		return nil, err
	}

	// Delivery queue (implements secondary.DeliveryQueue)
	if err := c.Provide(func(cfg *config.Config, client goredis.UniversalClient, logger *zap.Logger) secondary.DeliveryQueue {
		if client != nil {
			return redisstore.NewQueue(client, cfg.QueueKey(), cfg.QueueCapacity, logger)
		}
		return memqueue.New(cfg.QueueCapacity)
	}); err != nil {
		return nil, err
	}

	// Reconnect policy
	if err := c.Provide(func(cfg *config.Config) backoff.Policy {
		return backoff.NewExponential(cfg.RetryBaseDelay, cfg.RetryMaxDelay, cfg.RetryJitter, cfg.RetryLimit)
	}); err != nil {
		return nil, err
	}

	// --- Domain Services ---

	if err := c.Provide(func(
		transport secondary.Transport,
		queue secondary.DeliveryQueue,
		policy backoff.Policy,
		metrics secondary.Metrics,
		cfg *config.Config,
		logger *zap.Logger,
	) *service.ConnectionManager {
		return service.NewConnectionManager(transport, queue, policy, metrics, cfg.SendTimeout, 0, logger)
	}); err != nil {
		return nil, err
	}

	if err := c.Provide(func(
		identity valueobject.ClientIdentity,
		mode entity.Mode,
		manager *service.ConnectionManager,
		metrics secondary.Metrics,
		cfg *config.Config,
		logger *zap.Logger,
	) *service.ProducerService {
		return service.NewProducerService(identity, mode, manager, metrics, cfg.DefaultDestination, logger)
	}); err != nil {
		return nil, err
	}

	// Bind concrete ProducerService to the primary port interface
	if err := c.Provide(func(s *service.ProducerService) primary.ProducerService {
		return s
	}); err != nil {
		return nil, err
	}

	// Collect all health checks
	if err := c.Provide(func(
		manager *service.ConnectionManager,
		mode entity.Mode,
		client goredis.UniversalClient,
	) []secondary.HealthChecker {
		checks := []secondary.HealthChecker{service.NewConnectionHealthCheck(manager, mode)}
		if client != nil {
			checks = append(checks, redisstore.NewHealthCheck(client))
		}
		return checks
	}); err != nil {
		return nil, err
	}

	// --- Primary Adapters ---

	// HTTP router
	if err := c.Provide(func(
		producer primary.ProducerService,
		checks []secondary.HealthChecker,
		reg *prometheus.Registry,
		cfg *config.Config,
		logger *zap.Logger,
	) http.Handler {
		return httphandler.NewRouter(producer, cfg.DefaultDestination, checks, reg, logger)
	}); err != nil {
		return nil, err
	}

	// Queue monitor
	if err := c.Provide(func(
		manager *service.ConnectionManager,
		metrics secondary.Metrics,
		cfg *config.Config,
		logger *zap.Logger,
	) *worker.Monitor {
		return worker.NewMonitor(manager, metrics, cfg.MonitorInterval, logger)
	}); err != nil {
		return nil, err
	}

	return c, nil
}
