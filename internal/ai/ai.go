// Package ai generates text and embeddings through interchangeable
// providers, failing over in a fixed priority order.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maheshrc27/postflow/internal/apperr"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	DefaultTimeout = 30 * time.Second

	OpGenerateText = "generate_text"
	OpEmbedding    = "embedding"
)

type Provider interface {
	Name() string
	GenerateText(ctx context.Context, apiKey, prompt, model string) (string, error)
	Embedding(ctx context.Context, apiKey, text string) ([]float64, error)
}

// ModelOwner is implemented by providers that can tell whether a requested
// model name belongs to them. Providers that do not own the requested
// model fall back to their default.
type ModelOwner interface {
	OwnsModel(model string) bool
}

// Keys maps provider name to the caller's plaintext API key. A provider
// without a key is skipped.
type Keys map[string]string

type Facade struct {
	providers []Provider
	timeout   time.Duration
}

// NewFacade tries providers in the order given.
func NewFacade(timeout time.Duration, providers ...Provider) *Facade {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Facade{providers: providers, timeout: timeout}
}

func (f *Facade) Providers() []string {
	names := make([]string, 0, len(f.providers))
	for _, p := range f.providers {
		names = append(names, p.Name())
	}
	return names
}

func (f *Facade) GenerateText(ctx context.Context, keys Keys, prompt, model string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", apperr.InvalidInput("prompt", "prompt must not be empty")
	}
	return failover(ctx, f, keys, OpGenerateText, func(ctx context.Context, p Provider, key string) (string, error) {
		text, err := p.GenerateText(ctx, key, prompt, modelFor(p, model))
		if err == nil && strings.TrimSpace(text) == "" {
			err = errors.New("empty response")
		}
		return text, err
	})
}

func (f *Facade) Embedding(ctx context.Context, keys Keys, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.InvalidInput("text", "text must not be empty")
	}
	return failover(ctx, f, keys, OpEmbedding, func(ctx context.Context, p Provider, key string) ([]float64, error) {
		vec, err := p.Embedding(ctx, key, text)
		if err == nil && len(vec) == 0 {
			err = errors.New("empty embedding")
		}
		return vec, err
	})
}

// failover calls each keyed provider in order until one succeeds. Every
// provider failure is recorded as an Attempt and never escapes on its own.
func failover[T any](ctx context.Context, f *Facade, keys Keys, op string, call func(context.Context, Provider, string) (T, error)) (T, error) {
	var (
		zero     T
		attempts []apperr.Attempt
	)

	for _, p := range f.providers {
		key := strings.TrimSpace(keys[p.Name()])
		if key == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, apperr.Attempt{Provider: p.Name(), Err: err})
			break
		}

		res := attempt(ctx, f.timeout, p, key, call)
		if res.err == nil {
			if len(attempts) > 0 {
				slog.Info("ai provider failover succeeded", "op", op, "provider", res.provider, "failed_attempts", len(attempts))
			}
			return res.value, nil
		}

		slog.Warn("ai provider attempt failed", "op", op, "provider", res.provider, "error", res.err)
		attempts = append(attempts, apperr.Attempt{Provider: res.provider, Err: res.err})
	}

	return zero, &apperr.AllProvidersExhaustedError{Op: op, Attempts: attempts}
}

// outcome is the result of a single provider attempt: a value or a failure.
type outcome[T any] struct {
	provider string
	value    T
	err      error
}

func attempt[T any](ctx context.Context, timeout time.Duration, p Provider, key string, call func(context.Context, Provider, string) (T, error)) (res outcome[T]) {
	res.provider = p.Name()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("provider panicked: %v", r)
		}
	}()

	res.value, res.err = call(ctx, p, key)
	if res.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.err = fmt.Errorf("timed out after %s: %w", timeout, res.err)
	}
	return res
}

func modelFor(p Provider, model string) string {
	if model == "" {
		return ""
	}
	if owner, ok := p.(ModelOwner); ok && owner.OwnsModel(model) {
		return model
	}
	return ""
}
