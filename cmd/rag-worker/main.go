package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragworker/internal/chunking"
	"github.com/kailas-cloud/ragworker/internal/config"
	"github.com/kailas-cloud/ragworker/internal/consumer"
	dbPostgres "github.com/kailas-cloud/ragworker/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/ragworker/internal/db/redis"
	"github.com/kailas-cloud/ragworker/internal/domain"
	"github.com/kailas-cloud/ragworker/internal/extract"
	logpkg "github.com/kailas-cloud/ragworker/internal/logger"
	"github.com/kailas-cloud/ragworker/internal/messaging"
	"github.com/kailas-cloud/ragworker/internal/metrics"
	"github.com/kailas-cloud/ragworker/internal/provider"
	"github.com/kailas-cloud/ragworker/internal/repository/auditlog"
	"github.com/kailas-cloud/ragworker/internal/repository/embcache"
	"github.com/kailas-cloud/ragworker/internal/transport/admin"
	healthuc "github.com/kailas-cloud/ragworker/internal/usecase/health"
	"github.com/kailas-cloud/ragworker/internal/usecase/ingest"
	"github.com/kailas-cloud/ragworker/internal/usecase/rag"
	"github.com/kailas-cloud/ragworker/internal/vectorstore/memory"
	"github.com/kailas-cloud/ragworker/internal/vectorstore/pgvector"
	qdrantstore "github.com/kailas-cloud/ragworker/internal/vectorstore/qdrant"
	redisstore "github.com/kailas-cloud/ragworker/internal/vectorstore/redis"
	"github.com/kailas-cloud/ragworker/internal/version"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic("failed to load .env: " + err.Error())
	}

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting RAG worker",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("vector_driver", cfg.Vector.Driver),
		zap.Int("vector_dimension", cfg.Vector.Dimension),
		zap.String("chat_provider", cfg.AI.ChatProvider),
		zap.String("embedding_provider", cfg.AI.EmbeddingProvider),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	res := &resources{logger: logger}
	defer res.close()

	// Shared backends are opened only when something needs them.
	needRedis := cfg.Vector.Driver == config.DriverRedis || cfg.AI.EmbeddingCache.Enabled
	needPostgres := cfg.Vector.Driver == config.DriverPgvector || cfg.Audit.Enabled

	if needRedis {
		if err := res.openRedis(ctx, cfg.Redis); err != nil {
			logger.Fatal("Redis not ready", zap.Error(err))
		}
	}
	if needPostgres {
		if err := res.openPostgres(ctx, cfg.Postgres); err != nil {
			logger.Fatal("Postgres not ready", zap.Error(err))
		}
	}

	// AI providers: chat and embedding resolve independently.
	registry := provider.NewDefault(providerSettings(cfg.AI.Providers), provider.Options{
		Dimensions: cfg.Vector.Dimension,
		Logger:     logger.Named("provider"),
	}, provider.RetryPolicy{MaxAttempts: cfg.AI.MaxRetries, Delay: cfg.AI.RetryDelay()})

	chat, err := registry.Chat(ctx, cfg.AI.ChatProvider)
	if err != nil {
		logger.Fatal("Failed to resolve chat provider", zap.Error(err))
	}
	retrying, err := registry.Embedding(ctx, cfg.AI.EmbeddingProvider)
	if err != nil {
		logger.Fatal("Failed to resolve embedding provider", zap.Error(err))
	}

	var embedder interface {
		domain.EmbeddingProvider
		domain.HealthChecker
	} = retrying
	if cfg.AI.EmbeddingCache.Enabled {
		embedder = embcache.New(retrying, res.redis, embcache.Config{
			Provider: retrying.Name(),
			Model:    cfg.AI.Providers[cfg.AI.EmbeddingProvider].EmbeddingModel,
			TTL:      time.Duration(cfg.AI.EmbeddingCache.TTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, logger.Named("embcache"))
	}

	store, err := res.vectorStore(cfg)
	if err != nil {
		logger.Fatal("Failed to create vector store", zap.Error(err))
	}
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal("Failed to prepare vector store schema", zap.Error(err))
	}

	chunker, err := chunking.New(chunking.Config{Size: cfg.Ingestion.ChunkSize, Overlap: cfg.Ingestion.ChunkOverlap})
	if err != nil {
		logger.Fatal("Invalid chunking config", zap.Error(err))
	}
	extractor := extract.NewDefault(extract.Config{
		BasePath: cfg.Ingestion.BasePath,
		HTMLMode: cfg.Ingestion.HTMLMode,
	})

	ingestSvc := ingest.New(extractor, chunker, embedder, store).
		WithDimension(cfg.Vector.Dimension).
		WithConcurrency(cfg.Ingestion.EmbedConcurrency)
	ragSvc := rag.New(embedder, store, chat).WithTopK(cfg.Vector.TopK)

	// Message bus
	conn := messaging.NewConnection(cfg.Broker.URL, messaging.DialAMQP, logger.Named("broker"))
	res.broker = conn
	bus := messaging.New(conn, messaging.Config{
		Exchange:       cfg.Broker.Exchange,
		RetryTTL:       cfg.Broker.RetryTTL(),
		MaxAttempts:    cfg.Broker.MaxAttempts,
		Prefetch:       cfg.Broker.Prefetch,
		ReconnectDelay: cfg.Broker.ReconnectDelay(),
	}, logger.Named("bus"))

	chatConsumer := consumer.NewChat(ragSvc, bus)
	if cfg.Audit.Enabled {
		audit := auditlog.New(res.pg)
		if err := audit.EnsureSchema(ctx); err != nil {
			logger.Fatal("Failed to prepare audit schema", zap.Error(err))
		}
		chatConsumer.WithAudit(audit)
	}
	docConsumer := consumer.NewDocuments(ingestSvc)

	subs := []messaging.Subscription{
		docConsumer.Subscription(messaging.QueueName(cfg.Broker.Namespace, cfg.Broker.Queues.Documents)),
		chatConsumer.Subscription(messaging.QueueName(cfg.Broker.Namespace, cfg.Broker.Queues.Chat)),
	}
	for _, sub := range subs {
		if err := bus.Subscribe(ctx, sub); err != nil {
			logger.Fatal("Failed to subscribe", zap.String("queue", sub.Queue), zap.Error(err))
		}
		logger.Info("Subscribed", zap.String("queue", sub.Queue), zap.String("routing_key", sub.RoutingKey))
	}

	// Admin server: health + metrics
	healthSvc := healthuc.New(store, bus, embedder)
	adminSrv := admin.NewServer(admin.Config{
		Port:            cfg.Admin.Port,
		ReadTimeout:     time.Duration(cfg.Admin.ReadTimeoutSec) * time.Second,
		WriteTimeout:    time.Duration(cfg.Admin.WriteTimeoutSec) * time.Second,
		ShutdownTimeout: time.Duration(cfg.Admin.ShutdownSec) * time.Second,
	}, admin.NewRouter(healthSvc, cfg.Admin.APIKeys, logger), logger)

	go func() {
		if err := adminSrv.ListenAndServe(); err != nil {
			logger.Error("Admin server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	// Consume loops stop on ctx; in-flight handlers finish and settle first.
	bus.Wait()

	if err := adminSrv.Shutdown(context.Background()); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Worker stopped gracefully")
}

// resources owns process-wide connections and closes them in reverse order.
type resources struct {
	logger *zap.Logger
	redis  *dbRedis.Store
	pg     *dbPostgres.Pool
	broker *messaging.Connection
	closer []func()
}

func (r *resources) openRedis(ctx context.Context, cfg config.RedisConfig) error {
	s, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Addrs,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		return err
	}
	r.closer = append(r.closer, s.Close)
	if err := s.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		return err
	}
	r.redis = s
	r.logger.Info("Connected to Redis", zap.Strings("addrs", cfg.Addrs))
	return nil
}

func (r *resources) openPostgres(ctx context.Context, cfg config.PostgresConfig) error {
	p, err := dbPostgres.NewPool(ctx, dbPostgres.Config{DSN: cfg.DSN, MaxConns: cfg.MaxConns})
	if err != nil {
		return err
	}
	r.closer = append(r.closer, p.Close)
	if err := p.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		return err
	}
	r.pg = p
	r.logger.Info("Connected to Postgres")
	return nil
}

// vectorStore builds the configured driver over the already opened backends.
func (r *resources) vectorStore(cfg config.Config) (domain.VectorStore, error) {
	dim := cfg.Vector.Dimension
	switch cfg.Vector.Driver {
	case config.DriverRedis:
		return redisstore.New(r.redis, dim, redisstore.HNSWConfig{
			M:           cfg.Redis.HNSWM,
			EFConstruct: cfg.Redis.HNSWEFConstruct,
		}), nil
	case config.DriverPgvector:
		return pgvector.New(r.pg, dim), nil
	case config.DriverQdrant:
		c, err := qdrantstore.Dial(qdrantstore.Config{
			Host:   cfg.Qdrant.Host,
			Port:   cfg.Qdrant.Port,
			APIKey: cfg.Qdrant.APIKey,
			UseTLS: cfg.Qdrant.UseTLS,
		})
		if err != nil {
			return nil, err
		}
		r.closer = append(r.closer, func() { _ = c.Close() })
		return qdrantstore.New(c, cfg.Qdrant.Collection, dim), nil
	case config.DriverMemory:
		r.logger.Warn("Using in-memory vector store; chunks are lost on restart")
		return memory.New(dim), nil
	default:
		return nil, fmt.Errorf("unknown vector driver %q", cfg.Vector.Driver)
	}
}

func (r *resources) close() {
	if r.broker != nil {
		if err := r.broker.Close(); err != nil {
			r.logger.Warn("Failed to close broker connection", zap.Error(err))
		}
	}
	for i := len(r.closer) - 1; i >= 0; i-- {
		r.closer[i]()
	}
}

func providerSettings(in map[string]config.ProviderConfig) map[string]provider.Settings {
	out := make(map[string]provider.Settings, len(in))
	for name, p := range in {
		out[name] = provider.Settings{
			BaseURL:        p.BaseURL,
			APIKey:         p.APIKey,
			APIVersion:     p.APIVersion,
			ChatModel:      p.ChatModel,
			EmbeddingModel: p.EmbeddingModel,
			Timeout:        p.Timeout(),
		}
	}
	return out
}
