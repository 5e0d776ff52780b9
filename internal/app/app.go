package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/commerce"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/dropdown"
	"github.com/utafrali/storefront/internal/event"
	handler "github.com/utafrali/storefront/internal/handler/http"
	redisrepo "github.com/utafrali/storefront/internal/repository/redis"
	"github.com/utafrali/storefront/internal/storefront"
	"github.com/utafrali/storefront/internal/wishlist"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/tracing"
)

const serviceName = "storefront"

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	redisClient    *redis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	consumers      *event.Consumers
	registry       *storefront.Registry
	limiter        *middleware.RateLimiter
	health         *health.Handler
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, tracerShutdown: tracerShutdown}
	healthHandler := health.NewHandler()
	a.health = healthHandler

	// Commerce API client: retries behind a circuit breaker.
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.CommerceTimeout()
	doer := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpCfg),
		httpclient.DefaultCircuitBreakerConfig("commerce"),
		logger,
	)
	commerceClient := commerce.NewClient(doer, commerce.Config{
		BaseURL:        cfg.CommerceURL,
		PublishableKey: cfg.CommercePublishableKey,
	}, logger)
	healthHandler.RegisterCritical("commerce", commerceClient.Ping)

	// Redis product cache.
	var (
		productCache wishlist.ProductCache
		invalidator  event.ProductInvalidator
	)
	if cfg.ProductCacheEnabled {
		client, err := database.NewRedisClient(ctx, database.RedisConfig{
			Addr:        cfg.RedisAddr,
			Password:    cfg.RedisPass,
			DB:          cfg.RedisDB,
			SlowCommand: time.Duration(cfg.SlowCommandThresholdMs) * time.Millisecond,
		}, logger)
		if err != nil {
			a.closePartial()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.redisClient = client
		logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr))

		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, client); err != nil {
			logger.Warn("redis pool metrics not exported", slog.String("error", err.Error()))
		}

		repo := redisrepo.NewProductRepository(client, cfg.ProductCacheTTL(), logger)
		productCache = repo
		invalidator = repo
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}
	enricher := wishlist.NewCatalogEnricher(commerceClient, productCache, logger)

	// Kafka producer for wishlist events.
	var events wishlist.EventPublisher
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(cfg.KafkaBrokers, logger)
		events = event.NewProducer(a.producer, logger)
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	deps := storefront.Deps{
		Commerce: commerceClient,
		Enricher: enricher,
		Events:   events,
		Config: storefront.Config{
			LoginSettleDelay: cfg.LoginSettleDelay(),
			Dropdown: dropdown.Config{
				AutoClose:  cfg.DropdownAutoClose(),
				HoverGrace: cfg.DropdownHoverGrace(),
			},
			RegionID: cfg.RegionID,
		},
		Logger: logger,
	}
	a.registry = storefront.NewRegistry(func(id string, seed storefront.Seed) *storefront.Store {
		return storefront.NewStore(id, seed, deps)
	}, cfg.SessionIdleTTL(), logger)

	// Kafka consumers for backend customer, wishlist and product events.
	if cfg.KafkaEnabled {
		consumerCfg := event.ConsumerConfig{Brokers: cfg.KafkaBrokers}
		if cfg.KafkaDLQEnabled {
			a.dlq = pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
			consumerCfg.DLQ = a.dlq
		}
		h := event.NewHandler(sessionFinder(a.registry), invalidator, logger)
		a.consumers = event.NewConsumers(consumerCfg, h, logger)
	}

	a.limiter = middleware.NewRateLimiter(float64(cfg.RateLimitRPS), cfg.RateLimitBurst, logger)

	router := handler.NewRouter(commerceClient, a.registry, healthHandler, handler.RouterConfig{
		Cookies: handler.CookieConfig{Secure: cfg.CookieSecure},
		CORS: middleware.CORSConfig{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowCredentials: true,
		},
		RateLimiter: a.limiter,
		PprofCIDRs:  cfg.PprofAllowedCIDRs,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Closing the stores ends open event streams so Shutdown can drain them.
	a.httpServer.RegisterOnShutdown(a.registry.Close)

	return a, nil
}

// sessionFinder adapts the registry to the event handler's view of a session.
func sessionFinder(r *storefront.Registry) event.SessionFinder {
	return func(customerID string) []event.Session {
		stores := r.ForCustomer(customerID)
		out := make([]event.Session, len(stores))
		for i, s := range stores {
			out[i] = s
		}
		return out
	}
}

// closePartial releases what NewApp acquired before failing.
func (a *App) closePartial() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := a.tracerShutdown(ctx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}
}

// Run starts the HTTP server and the event consumers, then blocks until ctx
// is canceled or the server fails.
func (a *App) Run(ctx context.Context) error {
	if a.consumers != nil {
		a.consumers.Start(ctx)
		a.logger.Info("kafka consumers started")
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down storefront service")

	a.health.Drain()

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	if a.consumers != nil {
		if err := a.consumers.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka consumers close: %w", err))
		}
	}

	a.limiter.Stop()
	a.registry.Close()

	tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer tracerCancel()
	if err := a.tracerShutdown(tracerCtx); err != nil {
		errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka producer close: %w", err))
		}
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka dlq close: %w", err))
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}

	a.logger.Info("storefront service stopped")
	return errors.Join(errs...)
}
