package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/maheshrc27/postflow/internal/ai"
	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
)

type AIService interface {
	StoreKey(ctx context.Context, userID int64, provider, apiKey string) error
	ListKeys(ctx context.Context, userID int64) ([]*models.AIProviderKey, error)
	DeleteKey(ctx context.Context, userID int64, provider string) error
	Generate(ctx context.Context, userID int64, prompt, model string) (string, error)
	Embedding(ctx context.Context, userID int64, text string) ([]float64, error)
}

// Generator is the AI facade surface.
type Generator interface {
	GenerateText(ctx context.Context, keys ai.Keys, prompt, model string) (string, error)
	Embedding(ctx context.Context, keys ai.Keys, text string) ([]float64, error)
}

type aiService struct {
	keys  repository.AIKeyRepository
	vault Sealer
	ai    Generator
}

func NewAIService(keys repository.AIKeyRepository, vault Sealer, generator Generator) AIService {
	return &aiService{
		keys:  keys,
		vault: vault,
		ai:    generator,
	}
}

func (s *aiService) StoreKey(ctx context.Context, userID int64, provider, apiKey string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !models.IsAIProvider(provider) {
		err := apperr.InvalidInput("provider", "unknown AI provider %q", provider)
		slog.Info(err.Error())
		return err
	}

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return apperr.InvalidInput("api_key", "api key must not be empty")
	}

	sealed, err := s.vault.Encrypt(apiKey)
	if err != nil {
		return err
	}

	return s.keys.Upsert(ctx, userID, provider, sealed)
}

// ListKeys reports which providers have a key; the keys themselves never
// leave the store.
func (s *aiService) ListKeys(ctx context.Context, userID int64) ([]*models.AIProviderKey, error) {
	keys, err := s.keys.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		k.EncryptedKey = ""
	}
	return keys, nil
}

func (s *aiService) DeleteKey(ctx context.Context, userID int64, provider string) error {
	return s.keys.Remove(ctx, userID, strings.ToLower(strings.TrimSpace(provider)))
}

func (s *aiService) Generate(ctx context.Context, userID int64, prompt, model string) (string, error) {
	keys, err := s.userKeys(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.ai.GenerateText(ctx, keys, prompt, model)
}

func (s *aiService) Embedding(ctx context.Context, userID int64, text string) ([]float64, error) {
	keys, err := s.userKeys(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.ai.Embedding(ctx, keys, text)
}

// userKeys decrypts every stored key. One that no longer decrypts is
// treated as absent.
func (s *aiService) userKeys(ctx context.Context, userID int64) (ai.Keys, error) {
	stored, err := s.keys.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	keys := make(ai.Keys, len(stored))
	for _, k := range stored {
		plain, err := s.vault.Decrypt(k.EncryptedKey)
		if err != nil {
			slog.Warn("ignoring undecryptable AI key", "user_id", userID, "provider", k.Provider, "error", err)
			continue
		}
		keys[k.Provider] = plain
	}
	return keys, nil
}
