package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/ai"
	"github.com/maheshrc27/postflow/internal/database"
	job "github.com/maheshrc27/postflow/internal/jobs"
	"github.com/maheshrc27/postflow/internal/logger"
	"github.com/maheshrc27/postflow/internal/publisher"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/vault"
)

// runtime holds what every command that touches the store needs. The
// caller must defer Close.
type runtime struct {
	cfg      *config.Config
	db       *sql.DB
	vault    *vault.Vault
	registry *publisher.Registry

	posts    repository.PostRepository
	accounts repository.SocialAccountRepository
	history  repository.PostingHistoryRepository
	keys     repository.AIKeyRepository
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cfg := config.LoadConfig()
	logger.Init(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	v, err := vault.New(cfg.VaultKey)
	if err != nil {
		return nil, fmt.Errorf("initializing vault: %w", err)
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURI)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &runtime{
		cfg:      cfg,
		db:       db,
		vault:    v,
		registry: registry,
		posts:    repository.NewPostRepository(db),
		accounts: repository.NewSocialAccountRepository(db),
		history:  repository.NewPostingHistoryRepository(db),
		keys:     repository.NewAIKeyRepository(db),
	}, nil
}

func (rt *runtime) Close() {
	slog.Info("closing database connection")
	if err := rt.db.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
}

func (rt *runtime) dispatcher() *job.Dispatcher {
	d := rt.cfg.Dispatch
	return job.NewDispatcher(rt.posts, rt.accounts, rt.vault, rt.registry, job.Options{
		Interval:     d.Interval,
		BatchSize:    d.BatchSize,
		Concurrency:  d.Concurrency,
		ItemTimeout:  d.ItemTimeout,
		MaxAttempts:  d.MaxAttempts,
		RetryBackoff: d.RetryBackoff,
	})
}

// buildRegistry registers the adapters named in DISPATCH_PROVIDERS.
func buildRegistry(cfg *config.Config) (*publisher.Registry, error) {
	available := map[string]func() publisher.Publisher{
		publisher.ProviderInstagram: func() publisher.Publisher {
			return publisher.NewInstagram(publisher.InstagramOptions{GraphURL: cfg.InstagramGraphURL})
		},
		publisher.ProviderTiktok: func() publisher.Publisher {
			return publisher.NewTiktok(publisher.TiktokOptions{
				APIURL:       cfg.TiktokAPIURL,
				ClientKey:    cfg.TiktokClientKey,
				ClientSecret: cfg.TiktokClientSecret,
			})
		},
		publisher.ProviderYoutube: func() publisher.Publisher {
			return publisher.NewYoutube(publisher.YoutubeOptions{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				Endpoint:     cfg.YoutubeEndpoint,
			})
		},
	}

	registry, err := publisher.NewRegistry()
	if err != nil {
		return nil, err
	}
	for _, name := range cfg.Dispatch.Providers {
		build, ok := available[name]
		if !ok {
			return nil, fmt.Errorf("DISPATCH_PROVIDERS: unknown provider %q", name)
		}
		if err := registry.Register(build()); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func buildFacade(cfg *config.Config) *ai.Facade {
	return ai.NewFacade(cfg.AI.Timeout,
		ai.NewOpenAI(ai.OpenAIOptions{
			BaseURL:        cfg.AI.OpenAIBaseURL,
			Model:          cfg.AI.OpenAIModel,
			EmbeddingModel: cfg.AI.OpenAIEmbedding,
		}),
		ai.NewGemini(ai.GeminiOptions{
			BaseURL:        cfg.AI.GeminiBaseURL,
			Model:          cfg.AI.GeminiModel,
			EmbeddingModel: cfg.AI.GeminiEmbedding,
		}),
	)
}

// redisURI accepts either a redis:// URI or the bare host:port form.
func redisURI(s string) string {
	if s == "" || strings.Contains(s, "://") {
		return s
	}
	return "redis://" + s
}
