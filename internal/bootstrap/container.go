package bootstrap

import (
	"context"
	"io"
	"log"
	"time"

	"ai-docchat-be/internal/config"
	"ai-docchat-be/internal/controller"
	"ai-docchat-be/internal/handler"
	"ai-docchat-be/internal/pkg/logger"
	"ai-docchat-be/internal/repository/memory"
	"ai-docchat-be/internal/service"
	"ai-docchat-be/internal/websocket"
	"ai-docchat-be/pkg/document"
	"ai-docchat-be/pkg/llm/factory"

	pktNats "ai-docchat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

// SessionUpdatedTopic carries every session state change inside the process.
const SessionUpdatedTopic = "chat.session.updated"

type Container struct {
	// Controllers
	ChatController       controller.IChatController
	SessionStreamHandler *handler.SessionStreamHandler

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	WebSocketHub    *websocket.Hub

	Logger    logger.ILogger
	ModelName string

	sessionRepo *memory.SessionRepository
	closers     []io.Closer
}

func NewContainer(cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	wsLogger := logger.NewIsolatedLogger(cfg.App.WsLogFilePath)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermillLogger,
	)

	// 3. LLM Provider
	llmProvider, err := factory.NewLLMProvider(factory.Settings{
		Provider:      cfg.Ai.LLMProvider,
		Model:         cfg.Ai.LLMModel,
		GeminiAPIURL:  cfg.Ai.GeminiAPIURL,
		GeminiAPIKey:  cfg.Keys.GoogleGemini,
		OllamaBaseURL: cfg.Ai.OllamaBaseURL,
		Timeout:       cfg.Ai.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}
	sysLogger.Info("BOOTSTRAP", "LLM provider ready", map[string]interface{}{
		"provider": cfg.Ai.LLMProvider,
		"model":    llmProvider.Model(),
	})

	// In-Memory Session Storage
	sessionRepo := memory.NewSessionRepository(cfg.Session.TTL, cfg.Session.CleanupInterval)

	// 4. Optional Infrastructure
	var eventPub service.EventPublisher
	var closers []io.Closer
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			eventPub = natsPub
			closers = append(closers, closerFunc(natsPub.Close))
		}
	}

	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{
				Addr: cfg.App.RedisURL,
			}
		}
		rdb = redis.NewClient(opt)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if _, err := rdb.Ping(pingCtx).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
		cancel()
		closers = append(closers, rdb)
	}

	// WebSocket Hub
	wsHub := websocket.NewHub(rdb, wsLogger)

	// 5. Services
	publisherService := service.NewPublisherService(SessionUpdatedTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		SessionUpdatedTopic,
		wsHub,
		eventPub,
		sysLogger,
	)

	chatService := service.NewChatService(
		sessionRepo,
		llmProvider,
		document.NewExtractor(cfg.Document.MaxBytes),
		publisherService,
		sysLogger,
		service.ChatServiceConfig{
			RequestTimeout:    cfg.Ai.RequestTimeout,
			ExtractionTimeout: cfg.Document.ExtractionTimeout,
		},
	)

	closers = append(closers, pubSub)

	// 6. Controllers
	return &Container{
		ChatController:       controller.NewChatController(chatService),
		SessionStreamHandler: handler.NewSessionStreamHandler(chatService, wsHub, wsLogger),
		ConsumerService:      consumerService,
		WebSocketHub:         wsHub,
		Logger:               sysLogger,
		ModelName:            llmProvider.Model(),
		sessionRepo:          sessionRepo,
		closers:              closers,
	}, nil
}

func (c *Container) SessionCount() int {
	return c.sessionRepo.Count()
}

// Close releases external connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			log.Printf("[WARN] Close: %v", err)
		}
	}
	_ = c.Logger.Sync()
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}
