// Command server runs the document question-answering service: the HTTP API,
// the Prometheus metrics endpoint, and the analytics consumers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"docqa/internal/adapters/openai"
	"docqa/internal/adapters/vectordb"
	"docqa/internal/analytics"
	"docqa/internal/cache"
	"docqa/internal/ingestion"
	"docqa/internal/ingestion/registry"
	"docqa/internal/rag/agent"
	"docqa/internal/rag/memory"
	"docqa/internal/server"
	"docqa/pkg/config"
	"docqa/pkg/health"
	"docqa/pkg/kafka"
	"docqa/pkg/logger"
	"docqa/pkg/metrics"
	"docqa/pkg/middleware"
	"docqa/pkg/postgres"
	pkgredis "docqa/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	checker := health.NewChecker()

	embedder := openai.NewEmbedder(cfg.OpenAI)
	generator := openai.NewGenerator(cfg.OpenAI)
	store := vectordb.NewMemoryStore(embedder)

	// Redis is optional: without it the retrieval cache is disabled and every
	// query computes retrieval directly.
	var retrievalCache *cache.RetrievalCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, retrieval cache disabled", "error", err)
	} else {
		defer redisClient.Close()
		retrievalCache = cache.New(redisClient, cfg.Redis)
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if err := redisClient.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	// Postgres is optional: without it document metadata is not persisted and
	// the listing endpoint returns an empty set.
	var docRegistry *registry.Registry
	pgClient, err := postgres.New(cfg.Postgres)
	if err != nil {
		log.Warn("postgres unavailable, document registry disabled", "error", err)
	} else {
		defer pgClient.Close()
		docRegistry = registry.New(pgClient)
		if err := docRegistry.CreateSchema(ctx); err != nil {
			log.Error("failed to create registry schema", "error", err)
			os.Exit(1)
		}
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if err := pgClient.DB.PingContext(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	queryProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents)
	defer queryProducer.Close()
	docProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentEvents)
	defer docProducer.Close()

	queryCollector := analytics.NewCollector(queryProducer, 0)
	queryCollector.Start(ctx)
	defer queryCollector.Close()
	docCollector := analytics.NewCollector(docProducer, 0)
	docCollector.Start(ctx)
	defer docCollector.Close()

	aggregator := analytics.NewAggregator()
	handleEvent := analytics.HandleEvent(aggregator)
	for _, topic := range []string{cfg.Kafka.Topics.QueryEvents, cfg.Kafka.Topics.DocumentEvents} {
		consumer := kafka.NewConsumer(cfg.Kafka, topic, handleEvent)
		go func(topic string) {
			if err := consumer.Start(ctx); err != nil {
				log.Error("analytics consumer stopped", "topic", topic, "error", err)
			}
		}(topic)
	}

	sessions := memory.NewSessionStore(cfg.Memory.WindowSize, cfg.Memory.PreviewLength)
	agentOpts := agent.Options{
		Metrics: m,
		Tracker: queryCollector,
	}
	if retrievalCache != nil {
		agentOpts.Cache = retrievalCache
	}
	qaAgent := agent.New(store, generator, sessions, cfg.Retrieval, cfg.Memory, agentOpts)

	ingestOpts := ingestion.Options{
		Tracker: docCollector,
		Metrics: m,
	}
	if docRegistry != nil {
		ingestOpts.Registry = docRegistry
	}
	if retrievalCache != nil {
		ingestOpts.Cache = retrievalCache
	}
	ingestService := ingestion.NewService(embedder, store, cfg.Ingestion, ingestOpts)

	checker.Register("chunk_store", func(ctx context.Context) health.ComponentHealth {
		if _, err := store.Count(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	server.NewHandler(qaAgent, ingestService, aggregator).RegisterRoutes(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	limiter := middleware.NewLimiter(cfg.Server.RateLimit, cfg.Server.RateWindow)
	var handler http.Handler = mux
	handler = middleware.Timeout(cfg.Server.WriteTimeout)(handler)
	handler = middleware.RateLimit(limiter)(handler)
	handler = middleware.Metrics(m)(handler)
	handler = middleware.CORS(middleware.DefaultCORSConfig())(handler)
	handler = middleware.RequestID(handler)

	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
	if metricsShutdown != nil {
		if err := metricsShutdown(shutdownCtx); err != nil {
			log.Error("metrics server shutdown failed", "error", err)
		}
	}
	log.Info("shutdown complete")
}
