package bootstrap

import (
	"fmt"
	"log"
	"time"

	"support-chat-be/internal/config"
	"support-chat-be/internal/controller"
	"support-chat-be/internal/delivery"
	"support-chat-be/internal/handler"
	"support-chat-be/internal/pkg/logger"
	"support-chat-be/internal/repository/memory"
	"support-chat-be/internal/repository/unitofwork"
	"support-chat-be/internal/service"
	"support-chat-be/internal/statemachine"
	chatEvents "support-chat-be/pkg/chat/events"
	"support-chat-be/pkg/llm"
	"support-chat-be/pkg/llm/factory"
	pktNats "support-chat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatSessionController controller.IChatSessionController
	ChatMessageController controller.IChatMessageController
	DraftController       controller.IDraftController

	// WebSockets
	ChatStreamHandler *handler.ChatStreamHandler

	// Background Services (Exposed for main.go to run)
	Bus     *delivery.Bus
	Sweeper *service.SessionSweeper

	Logger logger.ILogger

	natsPub *pktNats.Publisher
}

// NewContainer wires the application. db may be nil when STORE_DRIVER=memory.
func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	deliveryLogger := logger.NewIsolatedLogger(cfg.App.DeliveryLogFilePath)

	uowFactory, err := newRepositoryFactory(db, cfg)
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] Using Store Driver: %s", cfg.Database.StoreDriver)

	// 2. Infrastructure
	// NATS (JetStream lifecycle events and/or the nats broker)
	var natsPub *pktNats.Publisher
	if cfg.Delivery.Broker == "nats" || cfg.Delivery.LifecycleEvents {
		natsPub, err = pktNats.NewPublisher(cfg.Delivery.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		}
	}

	broker, err := newBroker(cfg, natsPub, deliveryLogger)
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] Using Delivery Broker: %s", cfg.Delivery.Broker)

	hub := delivery.NewHub(cfg.Delivery.SubscriberBuffer, deliveryLogger)
	bus := delivery.NewBus(hub, broker, deliveryLogger)

	var lifecycle chatEvents.Publisher = chatEvents.NewNatsPublisher(nil, sysLogger)
	if cfg.Delivery.LifecycleEvents {
		lifecycle = chatEvents.NewNatsPublisher(natsPub, sysLogger)
	}

	// 3. Services
	machine := statemachine.NewMachine(time.Now)
	chatService := service.NewChatSessionService(uowFactory, machine, bus, lifecycle, sysLogger)

	sweeper := service.NewSessionSweeper(
		uowFactory,
		chatService,
		cfg.Sweeper.IdleTimeout,
		cfg.Sweeper.Interval,
		cfg.Sweeper.BatchSize,
		time.Now,
		sysLogger,
	)

	// Initialize LLM Provider based on Config
	var llmProvider llm.LLMProvider
	llmProvider, err = factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.BaseURL,
		cfg.Ai.ApiKey,
	)
	if err != nil {
		log.Printf("[WARN] Drafting disabled, failed to initialize LLM Provider: %v", err)
		llmProvider = nil
	} else {
		log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)
	}

	draftService := service.NewDraftService(
		llmProvider,
		uowFactory,
		cfg.Ai.DraftTimeout,
		cfg.Ai.HistoryLimit,
		func(requestId uuid.UUID, elapsed time.Duration, ok bool) {
			sysLogger.Debug("DRAFT", "Draft request finished", map[string]interface{}{
				"request_id": requestId,
				"elapsed_ms": elapsed.Milliseconds(),
				"ok":         ok,
			})
		},
		sysLogger,
	)

	idempotency := memory.NewIdempotencyRepository(cfg.App.IdempotencyTTL)

	// 4. Controllers
	return &Container{
		ChatSessionController: controller.NewChatSessionController(chatService, cfg.App.JwtSecret),
		ChatMessageController: controller.NewChatMessageController(chatService, idempotency, cfg.App.JwtSecret),
		DraftController:       controller.NewDraftController(draftService, chatService, cfg.App.JwtSecret),
		ChatStreamHandler:     handler.NewChatStreamHandler(chatService, bus, cfg.App.JwtSecret, deliveryLogger),

		Bus:     bus,
		Sweeper: sweeper,
		Logger:  sysLogger,
		natsPub: natsPub,
	}, nil
}

// Close releases the broker and the NATS connection.
func (c *Container) Close() {
	if err := c.Bus.Close(); err != nil {
		c.Logger.Warn("BOOTSTRAP", "Failed to close delivery bus", map[string]interface{}{"error": err.Error()})
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	_ = c.Logger.Sync()
}

func newRepositoryFactory(db *gorm.DB, cfg *config.Config) (unitofwork.RepositoryFactory, error) {
	switch cfg.Database.StoreDriver {
	case "memory":
		return memory.NewRepositoryFactory(time.Now), nil
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("store driver postgres requires a database connection")
		}
		return unitofwork.NewRepositoryFactory(db), nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Database.StoreDriver)
	}
}

func newBroker(cfg *config.Config, natsPub *pktNats.Publisher, deliveryLogger logger.ILogger) (delivery.Broker, error) {
	switch cfg.Delivery.Broker {
	case "gochannel":
		watermillLogger := watermill.NewStdLogger(false, false)
		pubSub := gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: int64(cfg.Delivery.SubscriberBuffer)},
			watermillLogger,
		)
		return delivery.NewGoChannelBroker(pubSub, deliveryLogger), nil

	case "redis":
		opts, err := redis.ParseURL(cfg.Delivery.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		return delivery.NewRedisBroker(redis.NewClient(opts), deliveryLogger), nil

	case "nats":
		if natsPub == nil {
			return nil, fmt.Errorf("nats broker selected but NATS is unreachable at %s", cfg.Delivery.NatsURL)
		}
		natsSub, err := pktNats.NewSubscriber(cfg.Delivery.NatsURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS Subscriber: %w", err)
		}
		return delivery.NewNatsBroker(natsPub, natsSub, deliveryLogger), nil

	default:
		return nil, fmt.Errorf("unknown BUS_BROKER %q", cfg.Delivery.Broker)
	}
}
