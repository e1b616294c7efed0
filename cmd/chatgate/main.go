package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/veltrix/chatgate/pkg/config"
	"github.com/veltrix/chatgate/pkg/conversation"
	"github.com/veltrix/chatgate/pkg/handlers"
	"github.com/veltrix/chatgate/pkg/infra/logger"
	"github.com/veltrix/chatgate/pkg/middleware"
	"github.com/veltrix/chatgate/pkg/provider"
	"github.com/veltrix/chatgate/pkg/provider/gemini"
	"github.com/veltrix/chatgate/pkg/ratelimit"
	"github.com/veltrix/chatgate/pkg/server"
	"github.com/veltrix/chatgate/pkg/spam"
	"github.com/veltrix/chatgate/pkg/store"
)

func main() {
	ctx := context.Background()

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	appLogger := logger.NewLogger("chatgate")

	if err := config.Load("config"); err != nil {
		appLogger.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.GetConfig()

	counterStore, conversationStore := initializeStores(cfg, appLogger)

	gateConfig, err := config.GateConfig()
	if err != nil {
		appLogger.Fatalf("Failed to build limit config: %v", err)
	}

	sweeper, err := store.NewSweeper(counterStore, cfg.Sweep.Retention, cfg.Sweep.Interval, appLogger, nil)
	if err != nil {
		appLogger.Fatalf("Failed to initialize sweeper: %v", err)
	}
	if err := sweeper.Start(ctx); err != nil {
		appLogger.Fatalf("Failed to start sweeper: %v", err)
	}

	gate := ratelimit.NewGate(counterStore, gateConfig, appLogger, nil)
	classifier := spam.NewClassifier()
	transcripts := conversation.NewTranscriptStore(conversationStore, cfg.Conversation.MaxMessages, appLogger, nil)

	apiKey := cfg.Gemini.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	geminiClient, err := gemini.NewClient(ctx, apiKey, cfg.Gemini.Model)
	if err != nil {
		appLogger.Fatalf("Failed to initialize gemini client: %v", err)
	}
	upstream := provider.NewBreakerClient(geminiClient, "gemini")

	handlerTransport := handlers.HandlerTransport{
		ChatHandler: handlers.NewChatHandler(
			appLogger, classifier, gate, upstream, transcripts,
			cfg.Conversation.HistoryWindow, cfg.Conversation.MaxPromptBytes,
		),
		AdminHandler: handlers.NewAdminHandler(appLogger, counterStore, transcripts),
	}

	middlewareTransport := middleware.Transport{
		AdminAuthMiddleware: middleware.NewAdminAuthMiddleware(appLogger, cfg.Server.AdminToken),
	}

	proxyServer := server.NewProxyServer(server.ProxyServerDI{
		Config:           cfg,
		Logger:           appLogger,
		HandlerTransport: handlerTransport,
	})
	adminServer := server.NewAdminServer(server.AdminServerDI{
		Config:              cfg,
		Logger:              appLogger,
		MiddlewareTransport: middlewareTransport,
		HandlerTransport:    handlerTransport,
	})

	var group errgroup.Group
	group.Go(proxyServer.Run)
	group.Go(adminServer.Run)
	go func() {
		if err := group.Wait(); err != nil {
			appLogger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	fmt.Println("shutting down...")
	if err := sweeper.Stop(); err != nil {
		fmt.Println("error stopping sweeper:", err)
	}
	if err := proxyServer.Shutdown(); err != nil {
		fmt.Println("error shutting down proxy server:", err)
	}
	if err := adminServer.Shutdown(); err != nil {
		fmt.Println("error shutting down admin server:", err)
	}
	fmt.Println("server gracefully stopped")
}

func initializeStores(cfg *config.Config, appLogger *logrus.Logger) (store.Store, store.Store) {
	switch cfg.Storage.Driver {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		counters := store.NewRedisStore(client, "chatgate:counters:", appLogger)
		conversations := store.NewRedisStore(client, "chatgate:conversations:", appLogger)
		return counters, conversations
	case "memory":
		return store.NewMemoryStore(), store.NewMemoryStore()
	default:
		counters, err := store.NewFileStore(cfg.Storage.Dir, appLogger)
		if err != nil {
			appLogger.Fatalf("Failed to initialize counter store: %v", err)
		}
		conversations, err := store.NewFileStore(cfg.Storage.ConversationDir, appLogger)
		if err != nil {
			appLogger.Fatalf("Failed to initialize conversation store: %v", err)
		}
		return counters, conversations
	}
}
