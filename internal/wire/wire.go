// Package wire 提供依赖装配。
// 各 Initialize* 函数按依赖顺序手工构建组件，返回的 cleanup
// 以构建的逆序关闭各客户端。
package wire

import (
	"context"
	"fmt"
	"os"

	einoembedding "github.com/cloudwego/eino/components/embedding"

	"kb-rag-api/internal/application/rag"
	"kb-rag-api/internal/config"
	infraembedding "kb-rag-api/internal/infrastructure/embedding"
	"kb-rag-api/internal/infrastructure/messaging"
	"kb-rag-api/internal/infrastructure/persistence/milvus"
	"kb-rag-api/internal/infrastructure/persistence/postgres"
	"kb-rag-api/internal/infrastructure/persistence/redis"
	"kb-rag-api/internal/interfaces/http/handler"
	"kb-rag-api/internal/interfaces/http/router"
)

// DataLayer 数据层依赖容器
type DataLayer struct {
	// PostgreSQL
	PgClient      *postgres.Client
	TxManager     *postgres.TxManager
	TenantContext *postgres.TenantContext
	TenantRepo    *postgres.TenantRepository
	DocumentRepo  *postgres.DocumentRepository

	// Redis
	RedisClient *redis.Client
	Cache       *redis.Cache
	RateLimiter *redis.RateLimiter
	TitleCache  *redis.TitleCache

	// Milvus
	MilvusClient *milvus.Client
	VectorRepo   *milvus.Repository
	RAGVector    *milvus.RAGAdapter

	// Messaging
	Producer *messaging.Producer

	// Embedding
	Embedder einoembedding.Embedder
}

// App API 服务依赖容器
type App struct {
	Data     *DataLayer
	Ingestor *rag.Ingestor
	Engine   *rag.Engine
	Router   *router.Router
}

// Worker 摄取 worker 依赖容器
type Worker struct {
	Data     *DataLayer
	Ingestor *rag.Ingestor
	Consumer *messaging.Consumer
}

// cleanupStack 逆序执行清理函数
type cleanupStack struct {
	fns []func()
}

func (s *cleanupStack) push(fn func()) {
	s.fns = append(s.fns, fn)
}

func (s *cleanupStack) run() {
	for i := len(s.fns) - 1; i >= 0; i-- {
		s.fns[i]()
	}
}

// InitializeDataLayer 初始化数据层
func InitializeDataLayer(ctx context.Context, cfg *config.Config) (*DataLayer, func(), error) {
	cleanup := &cleanupStack{}

	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("init postgres: %w", err)
	}
	cleanup.push(func() { _ = pgClient.Close() })

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		cleanup.run()
		return nil, nil, fmt.Errorf("init redis: %w", err)
	}
	cleanup.push(func() { _ = redisClient.Close() })

	milvusClient, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		cleanup.run()
		return nil, nil, fmt.Errorf("init milvus: %w", err)
	}
	cleanup.push(func() { _ = milvusClient.Close() })

	embedder, err := infraembedding.NewEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		cleanup.run()
		return nil, nil, fmt.Errorf("init embedder: %w", err)
	}

	docRepo := postgres.NewDocumentRepository(pgClient)
	cache := redis.NewCache(redisClient)
	vectorRepo := milvus.NewRepository(milvusClient)

	data := &DataLayer{
		PgClient:      pgClient,
		TxManager:     postgres.NewTxManager(pgClient),
		TenantContext: postgres.NewTenantContext(pgClient),
		TenantRepo:    postgres.NewTenantRepository(pgClient),
		DocumentRepo:  docRepo,

		RedisClient: redisClient,
		Cache:       cache,
		RateLimiter: redis.NewRateLimiter(redisClient),
		TitleCache:  redis.NewTitleCache(cache, docRepo),

		MilvusClient: milvusClient,
		VectorRepo:   vectorRepo,
		RAGVector:    milvus.NewRAGAdapter(vectorRepo),

		Producer: messaging.NewProducer(redisClient.Redis(), int64(cfg.Messaging.RedisStream.MaxLen)),

		Embedder: embedder,
	}
	return data, cleanup.run, nil
}

// newIngestor 构建摄取流水线
func newIngestor(cfg *config.Config, data *DataLayer) *rag.Ingestor {
	chunker := rag.NewChunker(cfg.RAG.ChunkTargetWords, cfg.RAG.ChunkOverlapWords)
	return rag.NewIngestor(
		data.Embedder,
		data.RAGVector,
		data.DocumentRepo,
		data.TitleCache,
		chunker,
		cfg.Embedding.Model,
		cfg.RAG.EmbedConcurrency,
	)
}

// InitializeApp 初始化 API 服务
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	data, cleanup, err := InitializeDataLayer(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	ingestor := newIngestor(cfg, data)
	engine := rag.NewEngine(data.Embedder, data.RAGVector, data.TitleCache, rag.EngineConfig{
		TopK:              cfg.RAG.TopK,
		MatchThreshold:    cfg.RAG.MatchThreshold,
		CitationThreshold: cfg.RAG.CitationThreshold,
		EmbeddingModel:    cfg.Embedding.Model,
	})

	handlers := router.Handlers{
		Health:    handler.NewHealthHandler(data.PgClient, data.RedisClient, data.MilvusClient),
		Document:  handler.NewDocumentHandler(ingestor, data.DocumentRepo, data.Producer, data.TxManager, data.TenantContext, cfg.RAG.AsyncIngest),
		Retrieval: handler.NewRetrievalHandler(engine),
		Tenant:    handler.NewTenantHandler(data.TenantRepo),
	}

	app := &App{
		Data:     data,
		Ingestor: ingestor,
		Engine:   engine,
		Router:   router.New(cfg, handlers, data.RateLimiter),
	}
	return app, cleanup, nil
}

// InitializeWorker 初始化摄取 worker
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	data, cleanup, err := InitializeDataLayer(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "ingest-worker"
	}

	consumer := messaging.NewConsumer(data.RedisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamKBIngest,
		Group:         messaging.ConsumerGroupIngestWorker,
		ConsumerName:  hostname,
		BlockTimeout:  cfg.Messaging.RedisStream.BlockTimeout,
		ClaimInterval: cfg.Messaging.RedisStream.ClaimInterval,
		RetryLimit:    cfg.Messaging.RedisStream.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    cfg.Messaging.RedisStream.RetryBackoff.Initial,
			Max:        cfg.Messaging.RedisStream.RetryBackoff.Max,
			Multiplier: cfg.Messaging.RedisStream.RetryBackoff.Multiplier,
		},
	})

	worker := &Worker{
		Data:     data,
		Ingestor: newIngestor(cfg, data),
		Consumer: consumer,
	}
	return worker, cleanup, nil
}

// PostgresOnlyDataLayer 仅包含 PostgreSQL 的数据层（用于 bootstrap）
type PostgresOnlyDataLayer struct {
	PgClient      *postgres.Client
	TxManager     *postgres.TxManager
	TenantContext *postgres.TenantContext
	TenantRepo    *postgres.TenantRepository
	DocumentRepo  *postgres.DocumentRepository
}

// InitializePostgresOnly 仅初始化 PostgreSQL 数据层（用于 bootstrap）
func InitializePostgresOnly(ctx context.Context, cfg *config.Config) (*PostgresOnlyDataLayer, func(), error) {
	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("init postgres: %w", err)
	}

	data := &PostgresOnlyDataLayer{
		PgClient:      pgClient,
		TxManager:     postgres.NewTxManager(pgClient),
		TenantContext: postgres.NewTenantContext(pgClient),
		TenantRepo:    postgres.NewTenantRepository(pgClient),
		DocumentRepo:  postgres.NewDocumentRepository(pgClient),
	}
	return data, func() { _ = pgClient.Close() }, nil
}
