// Package wire 提供依赖装配
package wire

import (
	"context"

	"genai-chat-api/internal/application/budget"
	"genai-chat-api/internal/application/chat"
	"genai-chat-api/internal/application/retrieval"
	"genai-chat-api/internal/application/stream"
	"genai-chat-api/internal/application/summary"
	"genai-chat-api/internal/application/translate"
	"genai-chat-api/internal/config"
	infraembedding "genai-chat-api/internal/infrastructure/embedding"
	llmgw "genai-chat-api/internal/infrastructure/gateway/llm"
	"genai-chat-api/internal/infrastructure/gateway/rerank"
	"genai-chat-api/internal/infrastructure/gateway/search"
	"genai-chat-api/internal/infrastructure/llm"
	"genai-chat-api/internal/infrastructure/messaging"
	"genai-chat-api/internal/infrastructure/persistence/milvus"
	"genai-chat-api/internal/infrastructure/persistence/postgres"
	"genai-chat-api/internal/infrastructure/persistence/redis"
	"genai-chat-api/internal/infrastructure/prompt"
	"genai-chat-api/internal/interfaces/http/handler"
	"genai-chat-api/internal/interfaces/http/router"
	"genai-chat-api/pkg/errors"
	"genai-chat-api/pkg/logger"
	"genai-chat-api/pkg/tokenizer"
)

// DataLayer 数据层依赖容器
type DataLayer struct {
	// PostgreSQL
	PgClient   *postgres.Client
	ChatRepo   *postgres.ChatRepository
	TurnRepo   *postgres.ConversationTurnRepository
	PromptRepo *postgres.PromptRepository

	// Redis
	RedisClient *redis.Client
	Cache       *redis.Cache
	RateLimiter *redis.RateLimiter

	// Messaging
	Producer *messaging.Producer

	// Milvus
	MilvusClient *milvus.Client
	VectorRepo   *milvus.Repository
}

// App 装配完成的应用
type App struct {
	Router   *router.Router
	Registry *stream.Registry
	Data     *DataLayer
}

// InitializeDataLayer 初始化数据层，返回的清理函数按依赖逆序关闭连接
func InitializeDataLayer(ctx context.Context, cfg *config.Config) (*DataLayer, func(), error) {
	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CodeDatabaseError, "connect postgres failed")
	}

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		_ = pgClient.Close()
		return nil, nil, errors.Wrap(err, errors.CodeCacheError, "connect redis failed")
	}

	milvusClient, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		_ = redisClient.Close()
		_ = pgClient.Close()
		return nil, nil, errors.Wrap(err, errors.CodeVectorDBError, "connect milvus failed")
	}

	vectorRepo := milvus.NewRepository(milvusClient)
	if err := vectorRepo.EnsureDocumentChunksCollection(ctx); err != nil {
		_ = milvusClient.Close()
		_ = redisClient.Close()
		_ = pgClient.Close()
		return nil, nil, err
	}

	data := &DataLayer{
		PgClient:     pgClient,
		ChatRepo:     postgres.NewChatRepository(pgClient),
		TurnRepo:     postgres.NewConversationTurnRepository(pgClient),
		PromptRepo:   postgres.NewPromptRepository(pgClient),
		RedisClient:  redisClient,
		Cache:        redis.NewCache(redisClient),
		RateLimiter:  redis.NewRateLimiter(redisClient),
		Producer:     messaging.NewProducer(redisClient.Redis(), 0),
		MilvusClient: milvusClient,
		VectorRepo:   vectorRepo,
	}

	cleanup := func() {
		if err := milvusClient.Close(); err != nil {
			logger.Error(ctx, "failed to close milvus client", err)
		}
		if err := redisClient.Close(); err != nil {
			logger.Error(ctx, "failed to close redis client", err)
		}
		if err := pgClient.Close(); err != nil {
			logger.Error(ctx, "failed to close postgres client", err)
		}
	}
	return data, cleanup, nil
}

// InitializeApp 装配整个应用
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	data, cleanup, err := InitializeDataLayer(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	tok, err := tokenizer.NewCL100K()
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	embedder, err := infraembedding.NewEinoEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	// 网关
	llmClient := llmgw.NewClient(llm.NewEinoFactory(cfg), &cfg.LLM)
	keywordSearcher := search.NewClient(&cfg.Search)
	reranker := rerank.NewClient(&cfg.Reranker)
	vectorSearcher := milvus.NewVectorSearcher(embedder, data.VectorRepo)

	// 应用层
	fusion := retrieval.NewFusion(keywordSearcher, vectorSearcher, reranker, &cfg.Search, &cfg.Reranker)
	budgeter := budget.NewBudgeter(tok, &cfg.LLM)
	reducer := summary.NewReducer(llmClient, tok, &cfg.Summary)
	registry := stream.NewRegistry(cfg.Chat.StreamBuffer)
	pipeline := stream.NewPipeline(registry)
	promptLoader := prompt.NewCachedLoader(data.PromptRepo, data.Cache)

	orchestrator := chat.NewOrchestrator(
		registry, pipeline, fusion, llmClient, budgeter,
		data.ChatRepo, data.TurnRepo, promptLoader, data.Producer, &cfg.Chat,
	)
	reporter := chat.NewReporter(registry, pipeline, reducer, llmClient, budgeter, data.TurnRepo)
	translator := translate.NewTranslator(llmClient, data.TurnRepo)

	handlers := router.Handlers{
		Health:    handler.NewHealthHandler(data.PgClient, data.RedisClient, data.MilvusClient),
		Stream:    handler.NewStreamHandler(registry),
		Chat:      handler.NewChatHandler(data.ChatRepo, data.TurnRepo, data.Cache, orchestrator),
		Summary:   handler.NewSummaryHandler(reducer, reporter),
		Retrieval: handler.NewRetrievalHandler(fusion),
		Prompt:    handler.NewPromptHandler(promptLoader),
		Translate: handler.NewTranslateHandler(translator),
	}

	app := &App{
		Router:   router.New(cfg, handlers, data.RateLimiter),
		Registry: registry,
		Data:     data,
	}
	return app, cleanup, nil
}
