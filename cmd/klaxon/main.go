package main

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"frameworks/klaxon/internal/backends"
	"frameworks/klaxon/internal/contactpoints"
	"frameworks/klaxon/internal/events"
	"frameworks/klaxon/internal/handlers"
	"frameworks/klaxon/pkg/auth"
	"frameworks/klaxon/pkg/cache"
	"frameworks/klaxon/pkg/clients"
	aldisclient "frameworks/klaxon/pkg/clients/aldis"
	maydayclient "frameworks/klaxon/pkg/clients/mayday"
	"frameworks/klaxon/pkg/config"
	"frameworks/klaxon/pkg/kafka"
	"frameworks/klaxon/pkg/logging"
	"frameworks/klaxon/pkg/monitoring"
	"frameworks/klaxon/pkg/server"
	"frameworks/klaxon/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("klaxon")

	// Load environment variables
	config.LoadEnv(logger)

	logger.WithFields(logging.Fields{
		"version": version.Version,
		"commit":  version.GetShortCommit(),
	}).Info("Starting Klaxon (Contact Point Gateway)")

	aldisURL := config.RequireEnv("ALDIS_URL")
	maydayURL := config.RequireEnv("MAYDAY_URL")
	serviceToken := config.RequireEnv("SERVICE_TOKEN")
	jwtSecret := config.RequireEnv("JWT_SECRET")

	// The backend inventory is configuration-owned: Aldis is built in,
	// external Alertmanager-compatible backends come from the environment.
	registry := backends.NewRegistry(backends.Config{
		ReceiversAPIEnabled: config.GetEnvBool("RECEIVERS_API_ENABLED", false),
		ExternalBackends:    backends.ParseList(config.GetEnv("EXTERNAL_BACKENDS", "")),
		ReadOnlyBackends:    backends.ParseList(config.GetEnv("READONLY_BACKENDS", "")),
	})

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("klaxon", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("klaxon", version.Version, version.GitCommit)

	// Response cache with lookup/invalidation metrics. The entries gauge is
	// sampled at scrape time, so registering it before the cache exists is
	// fine.
	var responseCache *cache.Cache
	cacheLookups, cacheInvalidations := metricsCollector.CreateCacheMetrics(func() int {
		if responseCache == nil {
			return 0
		}
		return responseCache.Len()
	})
	responseCache = cache.New(cache.Options{
		TTL:                  config.GetEnvDuration("CACHE_TTL", 30*time.Second),
		StaleWhileRevalidate: config.GetEnvDuration("CACHE_STALE_WINDOW", 30*time.Second),
		NegativeTTL:          config.GetEnvDuration("CACHE_NEGATIVE_TTL", 5*time.Second),
		MaxEntries:           config.GetEnvInt("CACHE_MAX_ENTRIES", 1024),
	}, cache.MetricsHooks{
		OnHit:   func(map[string]string) { cacheLookups.WithLabelValues("hit").Inc() },
		OnMiss:  func(map[string]string) { cacheLookups.WithLabelValues("miss").Inc() },
		OnStale: func(map[string]string) { cacheLookups.WithLabelValues("stale").Inc() },
		OnError: func(map[string]string) { cacheLookups.WithLabelValues("error").Inc() },
	})

	// Upstream clients
	aldis := aldisclient.NewClient(aldisclient.Config{
		BaseURL:      aldisURL,
		ServiceToken: serviceToken,
		Logger:       logger,
		CircuitBreakerConfig: &clients.CircuitBreakerConfig{
			Name:          "aldis",
			Logger:        logger,
			OnStateChange: clients.CircuitBreakerMetricsCallback("aldis"),
		},
	})
	mayday := maydayclient.NewClient(maydayURL, serviceToken, maydayclient.WithLogger(logger))

	// Change events over Kafka are optional: a single-replica deployment
	// without a broker still works, it just relies on TTL expiry instead of
	// cross-replica invalidation.
	var publisher contactpoints.EventPublisher
	var consumer *kafka.Consumer
	var producer *kafka.KafkaProducer
	kafkaBrokers := config.GetEnv("KAFKA_BROKERS", "")
	if kafkaBrokers != "" {
		brokers := strings.Split(kafkaBrokers, ",")

		// Each replica consumes from its own group so every one of them sees
		// every change event. The instance ID doubles as the event origin,
		// letting a replica skip events it published itself.
		instance := "klaxon-" + config.GetEnv("HOSTNAME", uuid.New().String()[:8])

		var err error
		producer, err = kafka.NewKafkaProducer(brokers, instance, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize Kafka producer")
		}
		consumer, err = kafka.NewConsumer(brokers, "klaxon-invalidate-"+instance, instance, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize Kafka consumer")
		}

		publisher = events.NewPublisher(producer, instance, logger)
		events.NewInvalidator(responseCache, cacheInvalidations, logger).Register(consumer, instance)
		consumer.SetDLQ(producer, kafka.TopicConfigEventsDLQ)

		healthChecker.AddCheck("kafka_producer", monitoring.KafkaProducerHealthCheck(producer.GetClient()))
		healthChecker.AddCheck("kafka_consumer", monitoring.KafkaConsumerHealthCheck(consumer.GetClient()))
	} else {
		logger.Info("KAFKA_BROKERS not set, change events disabled")
	}

	// Add health checks
	healthChecker.AddCheck("aldis", monitoring.HTTPServiceHealthCheck("aldis", aldisURL+"/health"))
	healthChecker.AddCheck("mayday", monitoring.HTTPServiceHealthCheck("mayday", maydayURL+"/health"))
	healthChecker.AddCheck("cache", monitoring.CacheHealthCheck(responseCache.Len))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"ALDIS_URL":     aldisURL,
		"MAYDAY_URL":    maydayURL,
		"SERVICE_TOKEN": serviceToken,
		"JWT_SECRET":    jwtSecret,
	}))

	// Initialize handlers
	fetcher := contactpoints.NewFetcher(aldis, mayday, registry, responseCache, logger)
	mutator := contactpoints.NewMutator(aldis, mayday, registry, responseCache, publisher, logger)
	handlers.Init(fetcher, mutator, registry, logger)

	// Setup router with unified monitoring
	router := server.SetupServiceRouter(logger, "klaxon", healthChecker, metricsCollector)

	// Protected routes (console JWT or service token)
	api := router.Group("/api/v1")
	api.Use(auth.JWTAuthMiddleware([]byte(jwtSecret)))
	api.Use(handlers.RequestContextMiddleware())
	{
		api.GET("/backends", handlers.ListBackends)
		api.GET("/backends/:backend/contact-points", handlers.ListContactPoints)
		api.POST("/backends/:backend/contact-points", handlers.CreateContactPoint)
		api.POST("/backends/:backend/contact-points/validate-name", handlers.ValidateContactPointName)
		api.GET("/backends/:backend/contact-points/:name", handlers.GetContactPoint)
		api.PUT("/backends/:backend/contact-points/:name", handlers.UpdateContactPoint)
		api.DELETE("/backends/:backend/contact-points/:name", handlers.DeleteContactPoint)
		api.GET("/notifiers", handlers.ListNotifiers)
	}

	// Start the invalidation consumer before the server blocks
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if consumer != nil {
		go func() {
			if err := consumer.Start(ctx); err != nil {
				logger.WithError(err).Error("Kafka consumer error")
			}
		}()
	}

	// Start server with graceful shutdown
	serverConfig := server.DefaultConfig("klaxon", "18013")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}

	// Drain the event path after the HTTP server has stopped
	cancel()
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.WithError(err).Warn("Kafka consumer close failed")
		}
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.WithError(err).Warn("Kafka producer close failed")
		}
	}
}
