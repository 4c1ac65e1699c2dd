package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/easeaico/recall/internal/chat"
	"github.com/easeaico/recall/internal/config"
	"github.com/easeaico/recall/internal/memory"
	"github.com/easeaico/recall/internal/models"
	"github.com/easeaico/recall/internal/retrieval"
	"github.com/easeaico/recall/internal/storage"
)

// app holds the wired service and whatever must be released on exit.
type app struct {
	service *chat.Service
	close   func()
}

func notifyContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func setupLogging(level slog.Level) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}

// newApp builds the service graph from cfg.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	setupLogging(cfg.LogLevel)

	llm, err := models.NewLLM(ctx, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm: %w", err)
	}
	gateway := models.NewGateway(llm, cfg.CallTimeout)

	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	var (
		index         memory.FactIndex
		conversations chat.ConversationStore
		closeFn       = func() {}
	)
	switch cfg.StorageBackend {
	case config.BackendLocal:
		localIndex, err := storage.NewLocalIndex(cfg.LocalIndexPath, cfg.EmbeddingDimensions)
		if err != nil {
			return nil, err
		}
		index = localIndex
		conversations = storage.NewLocalConversations()
	default:
		store, err := storage.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		index = store.Facts
		conversations = store.Conversations
		closeFn = store.Close
	}

	curator := memory.NewCurator(gateway, embedder, index, cfg.NoveltyThreshold, cfg.DisplayLimit, cfg.CallTimeout)
	engine := retrieval.NewEngine(gateway, index, cfg.RetrievalLimit, cfg.CallTimeout)

	slog.Info("assistant ready",
		"model", gateway.Name(),
		"storage", cfg.StorageBackend,
		"embedding", cfg.EmbeddingProvider,
	)
	return &app{
		service: chat.NewService(gateway, engine, curator, conversations, cfg.CallTimeout),
		close:   closeFn,
	}, nil
}

func newEmbedder(ctx context.Context, cfg config.Config) (memory.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case config.EmbeddingGenAI:
		return memory.NewGenAIEmbedder(ctx, cfg.GoogleAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
	case config.EmbeddingHash:
		return memory.NewHashEmbedder(cfg.EmbeddingDimensions), nil
	default:
		return memory.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
	}
}
