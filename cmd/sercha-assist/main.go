package main

// @title           Sercha Assist API
// @version         1.0
// @description     Conversational retrieval over authored knowledge, insights and uploaded documents.

// @contact.name   Sercha OSS
// @contact.url    https://github.com/custodia-labs/sercha-assist/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Optional JWT Bearer token. Format: "Bearer {token}"

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-assist/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-assist/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/sercha-assist/internal/adapters/driven/redis"
	"github.com/custodia-labs/sercha-assist/internal/adapters/driving/http"
	"github.com/custodia-labs/sercha-assist/internal/config"
	"github.com/custodia-labs/sercha-assist/internal/core/domain"
	"github.com/custodia-labs/sercha-assist/internal/core/services"
	"github.com/custodia-labs/sercha-assist/internal/normalisers"
	"github.com/custodia-labs/sercha-assist/internal/runtime"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	log.Printf("sercha-assist %s starting", version)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// ===== Initialize PostgreSQL =====
	log.Println("Connecting to PostgreSQL...")
	db, err := postgres.Connect(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize schema (idempotent)
	if err := db.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}
	log.Println("PostgreSQL connected and schema initialized")

	// ===== Initialize Redis =====
	log.Println("Connecting to Redis...")
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("Failed to parse Redis URL: %v", err)
	}
	redisClient := redis.NewClient(opts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	// ===== Driven adapters =====
	chatStore := redisadapter.NewChatStore(redisClient, logger)
	chatLock := redisadapter.NewLock(redisClient)
	knowledgeStore := postgres.NewKnowledgeStore(db)
	documentStore := postgres.NewDocumentStore(db)

	// ===== AI services =====
	runtimeConfig := domain.NewRuntimeConfig("redis", "postgres")
	runtimeServices := runtime.NewServices(runtimeConfig)
	defer runtimeServices.Close()
	configureAI(ctx, ai.NewFactory(logger), cfg.AISettings(), runtimeServices)

	log.Printf("Runtime config: session_backend=%s, knowledge_backend=%s, embedding=%t, completion=%t",
		runtimeConfig.SessionBackend,
		runtimeConfig.KnowledgeBackend,
		runtimeConfig.EmbeddingAvailable(),
		runtimeConfig.CompletionAvailable())

	// ===== Services (core business logic) =====
	retry := services.RetryConfig{
		MaxTries:        cfg.Retry.MaxTries,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
	}
	chatService := services.NewChatService(chatStore, chatLock, documentStore, services.ChatServiceConfig{
		LockTTL:           cfg.Lock.TTL,
		LockRetryInterval: cfg.Lock.RetryInterval,
		LockWait:          cfg.Lock.Wait,
		Logger:            logger,
	})
	conversationService, err := services.NewConversationService(chatService, knowledgeStore, documentStore, runtimeServices, services.ConversationConfig{
		Options: cfg.ConversationOptions(),
		Retry:   retry,
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("Failed to create conversation service: %v", err)
	}
	documentService := services.NewDocumentService(documentStore, chatService, runtimeServices, services.DocumentConfig{
		ChunkSize:    cfg.Upload.ChunkSize,
		ChunkOverlap: cfg.Upload.ChunkOverlap,
		MaxBytes:     cfg.Upload.MaxBytes,
		Options:      cfg.ConversationOptions(),
		Retry:        retry,
		Logger:       logger,
		Normalisers:  normalisers.DefaultRegistry(),
	})
	insightService := services.NewInsightService(knowledgeStore, retry, logger)

	// ===== HTTP server =====
	server := http.NewServer(
		http.Config{
			Host:           cfg.Server.Host,
			Port:           cfg.Server.Port,
			Version:        version,
			CORSOrigins:    cfg.Server.CORSOrigins,
			MaxUploadBytes: cfg.Upload.MaxBytes,
			Auth: http.AuthConfig{
				JWTSecret:     cfg.Auth.JWTSecret,
				Required:      cfg.Auth.Required,
				DefaultUserID: cfg.Auth.DefaultUserID,
			},
			Logger: logger,
		},
		conversationService,
		chatService,
		documentService,
		insightService,
		chatStore,
		db,
	)

	log.Printf("API server starting on %s:%d", cfg.Server.Host, cfg.Server.Port)
	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// configureAI creates the embedding and completion services.
// An unreachable provider is registered anyway; the circuit breaker and
// upstream retries decide per request once it recovers.
func configureAI(ctx context.Context, factory *ai.Factory, settings domain.AISettings, rt *runtime.Services) {
	if err := settings.Validate(); err != nil {
		log.Fatalf("Invalid AI settings: %v", err)
	}

	embedding, err := factory.CreateEmbeddingService(&settings.Embedding)
	switch {
	case err != nil:
		log.Fatalf("Failed to create embedding service: %v", err)
	case embedding == nil:
		log.Println("Warning: embedding service not configured, /search and /upload will fail")
	default:
		if err := rt.RegisterEmbedding(ctx, embedding); err != nil {
			log.Printf("Warning: %v; registered anyway", err)
		}
	}

	completion, err := factory.CreateCompletionService(&settings.Completion)
	switch {
	case err != nil:
		log.Fatalf("Failed to create completion service: %v", err)
	case completion == nil:
		log.Println("Warning: completion service not configured, answers will fail")
	default:
		if err := rt.RegisterCompletion(ctx, completion); err != nil {
			log.Printf("Warning: %v; registered anyway", err)
		}
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
