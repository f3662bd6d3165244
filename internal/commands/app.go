package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"document-chat/internal/chromemdb"
	"document-chat/internal/config"
	"document-chat/internal/db"
	"document-chat/internal/embedding"
	"document-chat/internal/llmservice"
	"document-chat/internal/models"
	"document-chat/internal/rag"
	"document-chat/internal/session"
	"document-chat/internal/store"
)

// app holds the components wired from one configuration.
type app struct {
	cfg      *config.Config
	store    *store.Store
	rag      *rag.RAG
	pipeline *session.Pipeline
	chromem  *chromemdb.VectorDBManager
	close    func() error
}

// buildApp is swapped in tests to avoid remote endpoints.
var buildApp = newApp

// newApp connects the embedder, the store backend and the chat model.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrValidation, err)
	}

	embedder, err := embedding.NewEmbedder(ctx, &cfg.EmbedLLM)
	if err != nil {
		return nil, err
	}
	llm, err := llmservice.NewClient(ctx, &cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}
	return assemble(ctx, cfg, embedder, llm)
}

// assemble builds the app around an already created embedder and model.
func assemble(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder, llm llms.Model) (*app, error) {
	a := &app{cfg: cfg, close: func() error { return nil }}

	var backend store.Backend
	switch cfg.RAG.Backend {
	case config.BackendPostgres:
		sqldb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		bunDB := db.NewDB(sqldb, cfg.Database.Debug)
		if err := db.InitDB(ctx, bunDB); err != nil {
			_ = bunDB.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		repo := db.NewRepository(bunDB)
		backend, a.close = repo, repo.Close
	default:
		m, err := chromemdb.NewVectorDBManager(cfg.RAG.StoreRoot, cfg.RAG.Compress, cfg.RAG.EncryptionKey, embedder)
		if err != nil {
			return nil, err
		}
		backend, a.chromem = m, m
	}

	log.Debug().
		Str("backend", cfg.RAG.Backend).
		Str("model", cfg.LLM.Model).
		Str("embedding_model", cfg.EmbedLLM.Model).
		Msg("Components ready")

	a.store = store.New(backend, embedder)
	a.rag = rag.NewRAG(llm, &cfg.LLM)
	a.pipeline = session.NewPipeline(cfg, a.store, a.rag)
	return a, nil
}

// snapshots returns the chromem backend, which is the only one supporting
// export and import.
func (a *app) snapshots() (*chromemdb.VectorDBManager, error) {
	if a.chromem == nil {
		return nil, errors.New("snapshots need the chromem backend (rag.backend: chromem)")
	}
	return a.chromem, nil
}
