package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"rag-server/internal/config"
	"rag-server/internal/db"
	"rag-server/internal/handlers"
	"rag-server/internal/models"
	"rag-server/internal/repositories"
	"rag-server/internal/routes"
	"rag-server/internal/services"
)

const keywordSearchTimeout = 10 * time.Second

// Server bundles the HTTP server and everything it owns
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	redis      *db.RedisClient
	logger     *log.Logger
}

// NewServer wires the full service graph from configuration
func NewServer(cfg *config.Config) *Server {
	logger := log.New(os.Stdout, "[SERVER] ", log.LstdFlags)

	qdrantClient := db.NewQdrantClient(db.QdrantConfig{URL: collectionURL(cfg)})
	vectorRepo := repositories.NewQdrantVectorRepository(qdrantClient)

	var keywordRepo repositories.KeywordRepository
	if cfg.KwSearchURL != "" {
		keywordRepo = repositories.NewHTTPKeywordRepository(cfg.KwSearchURL, keywordSearchTimeout)
		logger.Printf("keyword search enabled at %s", cfg.KwSearchURL)
	}

	redisClient, cache := connectRedis(logger)

	engine := services.NewOpenAIEngineClient(cfg.EngineURL, logger)
	embedder := services.NewEmbeddingService(engine, cfg.EmbeddingModel.Name, cache, logger)
	retrieval := services.NewRetrievalService(vectorRepo, keywordRepo, cfg.Collections, logger)
	injector := services.NewInjector(cfg.Policy, cfg.RagPrompt)
	rag := services.NewRagService(engine, embedder, retrieval, injector, cfg, logger)

	infoStore := models.NewServerInfoStore(buildServerInfo(cfg))

	h := &routes.Handlers{
		Chat:      handlers.NewChatHandler(rag, logger),
		Embedding: handlers.NewEmbeddingHandler(embedder, logger),
		Chunk:     handlers.NewChunkHandler(cfg.ChunkCapacity, logger),
		Info:      handlers.NewInfoHandler(infoStore, logger),
	}
	if cfg.WebUI != "" {
		h.Static = handlers.NewStaticHandler(cfg.WebUI, logger)
	}

	router := mux.NewRouter()
	routes.RegisterRoutes(router, h)

	handler := accessLogMiddleware(logger)(corsMiddleware(authMiddleware(cfg.APIKey)(router)))

	return &Server{
		cfg: cfg,
		httpServer: &http.Server{
			Addr:    cfg.Addr,
			Handler: handler,
		},
		redis:  redisClient,
		logger: logger,
	}
}

// Start runs the HTTP server until it fails or is shut down
func (s *Server) Start() error {
	s.logger.Printf("listening on %s (chat model: %s, embedding model: %s, %d collections)",
		s.cfg.Addr, s.cfg.ChatModel.Name, s.cfg.EmbeddingModel.Name, len(s.cfg.Collections))
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the server gracefully and closes owned connections
func (s *Server) Shutdown(ctx context.Context) error {
	if s.redis != nil {
		s.redis.Close()
	}
	return s.httpServer.Shutdown(ctx)
}

// collectionURL returns the store URL shared by the configured collections
func collectionURL(cfg *config.Config) string {
	if len(cfg.Collections) > 0 {
		return cfg.Collections[0].URL
	}
	return "http://127.0.0.1:6333"
}

// connectRedis dials the optional embedding cache. A missing or unreachable
// Redis disables caching rather than failing startup.
func connectRedis(logger *log.Logger) (*db.RedisClient, *redis.Client) {
	if os.Getenv("REDIS_HOST") == "" {
		logger.Printf("REDIS_HOST not set, embedding cache disabled")
		return nil, nil
	}

	client := db.NewRedisClient(getRedisConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		logger.Printf("WARN: redis unreachable, embedding cache disabled: %v", err)
		client.Close()
		return nil, nil
	}

	logger.Printf("embedding cache connected")
	return client, client.GetClient()
}

// getRedisConfig reads Redis settings from the environment
func getRedisConfig() db.RedisConfig {
	cfg := db.DefaultRedisConfig()

	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("REDIS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if dbNum := os.Getenv("REDIS_DB"); dbNum != "" {
		if n, err := strconv.Atoi(dbNum); err == nil {
			cfg.DB = n
		}
	}

	return cfg
}

// buildServerInfo snapshots the immutable runtime configuration
func buildServerInfo(cfg *config.Config) models.ServerInfo {
	collections := make([]models.CollectionInfo, 0, len(cfg.Collections))
	for _, c := range cfg.Collections {
		collections = append(collections, models.CollectionInfo{
			URL:            c.URL,
			CollectionName: c.CollectionName,
			Limit:          c.Limit,
			ScoreThreshold: c.ScoreThreshold,
		})
	}

	return models.ServerInfo{
		Server: models.APIServer{
			Type:    "rag",
			Version: "1.0.0",
			Port:    cfg.Addr,
		},
		ChatModel:      modelInfo(cfg.ChatModel, "chat"),
		EmbeddingModel: modelInfo(cfg.EmbeddingModel, "embedding"),
		RagPolicy:      string(cfg.Policy),
		RagPrompt:      cfg.RagPrompt,
		ContextWindow:  cfg.ContextWindow,
		Collections:    collections,
		KwSearchURL:    cfg.KwSearchURL,
	}
}

func modelInfo(spec config.ModelSpec, kind string) models.ModelInfo {
	return models.ModelInfo{
		Name:           spec.Name,
		Type:           kind,
		PromptTemplate: string(spec.PromptTemplate),
		CtxSize:        spec.CtxSize,
		BatchSize:      spec.BatchSize,
	}
}
