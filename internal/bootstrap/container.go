package bootstrap

import (
	"context"
	"log"
	"os"

	"ai-regassist-be/internal/config"
	"ai-regassist-be/internal/pkg/logger"
	"ai-regassist-be/internal/service"
	"ai-regassist-be/pkg/embedding"
	"ai-regassist-be/pkg/llm/factory"
	"ai-regassist-be/pkg/rag/decision"
	"ai-regassist-be/pkg/rag/fusion"
	"ai-regassist-be/pkg/rag/locator"
	"ai-regassist-be/pkg/rag/prompt"
	"ai-regassist-be/pkg/rag/response"
	"ai-regassist-be/pkg/ratelimit"
	"ai-regassist-be/pkg/session"
	"ai-regassist-be/pkg/vectorstore"

	pktNats "ai-regassist-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"gorm.io/gorm"
)

const analyticsTopic = "ANALYTICS_EVENTS"

type Container struct {
	ChatService    service.IChatService
	SweeperService service.ISweeperService

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	SysLogger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	stdLogger := log.New(os.Stdout, "", log.LstdFlags)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.EmbeddingModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.EmbeddingModel)
	} else {
		embeddingProvider = embedding.NewOpenAIProvider("", cfg.Ai.APIKey, cfg.Ai.EmbeddingModel)
		log.Printf("[INFO] Using Embedding Provider: OPENAI (%s)", cfg.Ai.EmbeddingModel)
	}

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.LLMBaseURL,
		cfg.Ai.APIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. Infrastructure
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	}

	// 5. Conversation core
	sessions := session.NewStore(cfg.Chat.SessionTimeout, cfg.Chat.MemoryWindow, stdLogger)
	limiter := ratelimit.NewLimiter(cfg.Chat.RateLimitRequests, cfg.Chat.RateLimitWindow, stdLogger)

	index := vectorstore.NewPgVectorIndex(db, embeddingProvider, cfg.Chat.TopKDocuments, stdLogger)
	engine := fusion.NewEngine(llmProvider, index, cfg.Chat.NumQueries, cfg.Chat.RRFRankConstant, cfg.Chat.TopKDocuments, stdLogger)

	mappings, err := locator.LoadRegistry(cfg.Chat.DocumentRegistry)
	if err != nil {
		log.Printf("[WARN] Document registry unavailable, document retrieval disabled: %v", err)
		mappings = map[string]string{}
	}
	loc := locator.NewLocator(embeddingProvider, mappings, cfg.Chat.MatchThreshold, stdLogger)
	if len(mappings) > 0 {
		if err := loc.Rebuild(context.Background()); err != nil {
			log.Printf("[WARN] Failed to build document name index: %v", err)
		}
	}

	router := decision.NewRouter(llmProvider, prompt.RefusalMessages(), stdLogger)
	generator := response.NewGenerator(llmProvider, stdLogger)

	// 6. Services
	publisherService := service.NewPublisherService(analyticsTopic, pubSub)
	consumerService := service.NewConsumerService(pubSub, analyticsTopic, natsPub)

	chatService := service.NewChatService(
		sessions,
		limiter,
		router,
		engine,
		loc,
		generator,
		publisherService,
		sysLogger,
		cfg.Chat.ProviderTimeout,
	)

	sweeperService := service.NewSweeperService(
		sessions,
		limiter,
		publisherService,
		cfg.Chat.SweepInterval,
		sysLogger,
	)

	return &Container{
		ChatService:     chatService,
		SweeperService:  sweeperService,
		ConsumerService: consumerService,
		SysLogger:       sysLogger,
	}
}
