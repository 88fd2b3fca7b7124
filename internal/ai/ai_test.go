package ai

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/postflow/internal/apperr"
)

type fakeProvider struct {
	name  string
	owns  func(string) bool
	text  string
	vec   []float64
	err   error
	delay time.Duration
	panic bool

	mu     sync.Mutex
	calls  int
	models []string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) OwnsModel(model string) bool {
	if f.owns == nil {
		return false
	}
	return f.owns(model)
}

func (f *fakeProvider) record(model string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.models = append(f.models, model)
}

func (f *fakeProvider) GenerateText(ctx context.Context, apiKey, prompt, model string) (string, error) {
	f.record(model)
	if f.panic {
		panic("boom")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

func (f *fakeProvider) Embedding(ctx context.Context, apiKey, text string) ([]float64, error) {
	f.record("")
	return f.vec, f.err
}

func TestGenerateText_PrimaryRejectedSecondarySucceeds(t *testing.T) {
	primary := &fakeProvider{name: ProviderOpenAI, err: errors.New("status 401: invalid api key")}
	secondary := &fakeProvider{name: ProviderGemini, text: "hello"}
	f := NewFacade(time.Second, primary, secondary)

	text, err := f.GenerateText(context.Background(), Keys{ProviderOpenAI: "sk-bad", ProviderGemini: "g-good"}, "say hi", "")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestGenerateText_NoKeysNoCalls(t *testing.T) {
	primary := &fakeProvider{name: ProviderOpenAI, text: "x"}
	secondary := &fakeProvider{name: ProviderGemini, text: "y"}
	f := NewFacade(time.Second, primary, secondary)

	_, err := f.GenerateText(context.Background(), Keys{}, "prompt", "")

	var exhausted *apperr.AllProvidersExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Empty(t, exhausted.Attempts)
	assert.Contains(t, err.Error(), "no provider credentials available")
	assert.Zero(t, primary.calls)
	assert.Zero(t, secondary.calls)
}

func TestGenerateText_SecondaryOnlyCalledOnce(t *testing.T) {
	primary := &fakeProvider{name: ProviderOpenAI, text: "primary"}
	secondary := &fakeProvider{name: ProviderGemini, text: "secondary"}
	f := NewFacade(time.Second, primary, secondary)

	text, err := f.GenerateText(context.Background(), Keys{ProviderGemini: "g"}, "p", "")
	require.NoError(t, err)
	assert.Equal(t, "secondary", text)
	assert.Zero(t, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestGenerateText_PrimaryFirstWhenBothWork(t *testing.T) {
	primary := &fakeProvider{name: ProviderOpenAI, text: "primary"}
	secondary := &fakeProvider{name: ProviderGemini, text: "secondary"}
	f := NewFacade(time.Second, primary, secondary)

	text, err := f.GenerateText(context.Background(), Keys{ProviderOpenAI: "o", ProviderGemini: "g"}, "p", "")
	require.NoError(t, err)
	assert.Equal(t, "primary", text)
	assert.Zero(t, secondary.calls)
}

func TestGenerateText_AllFailListsEveryAttempt(t *testing.T) {
	f := NewFacade(time.Second,
		&fakeProvider{name: ProviderOpenAI, err: errors.New("status 500")},
		&fakeProvider{name: ProviderGemini, text: "   "},
	)

	_, err := f.GenerateText(context.Background(), Keys{ProviderOpenAI: "o", ProviderGemini: "g"}, "p", "")

	var exhausted *apperr.AllProvidersExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Attempts, 2)
	assert.Equal(t, OpGenerateText, exhausted.Op)
	assert.Contains(t, err.Error(), "openai: status 500")
	assert.Contains(t, err.Error(), "gemini: empty response")
}

func TestGenerateText_TimeoutFailsOver(t *testing.T) {
	slow := &fakeProvider{name: ProviderOpenAI, text: "late", delay: time.Second}
	fast := &fakeProvider{name: ProviderGemini, text: "fast"}
	f := NewFacade(20*time.Millisecond, slow, fast)

	text, err := f.GenerateText(context.Background(), Keys{ProviderOpenAI: "o", ProviderGemini: "g"}, "p", "")
	require.NoError(t, err)
	assert.Equal(t, "fast", text)
}

func TestGenerateText_PanicIsAnAttemptFailure(t *testing.T) {
	f := NewFacade(time.Second,
		&fakeProvider{name: ProviderOpenAI, panic: true},
		&fakeProvider{name: ProviderGemini, text: "ok"},
	)

	text, err := f.GenerateText(context.Background(), Keys{ProviderOpenAI: "o", ProviderGemini: "g"}, "p", "")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestGenerateText_ModelRouting(t *testing.T) {
	isGemini := func(m string) bool { return len(m) >= 6 && m[:6] == "gemini" }
	primary := &fakeProvider{name: ProviderOpenAI, owns: func(m string) bool { return !isGemini(m) }, err: errors.New("down")}
	secondary := &fakeProvider{name: ProviderGemini, owns: isGemini, text: "ok"}
	f := NewFacade(time.Second, primary, secondary)
	keys := Keys{ProviderOpenAI: "o", ProviderGemini: "g"}

	_, err := f.GenerateText(context.Background(), keys, "p", "gpt-4o-mini")
	require.NoError(t, err)
	_, err = f.GenerateText(context.Background(), keys, "p", "gemini-2.5-pro")
	require.NoError(t, err)

	assert.Equal(t, []string{"gpt-4o-mini", ""}, primary.models)
	assert.Equal(t, []string{"", "gemini-2.5-pro"}, secondary.models)
}

func TestGenerateText_EmptyPrompt(t *testing.T) {
	f := NewFacade(time.Second, &fakeProvider{name: ProviderOpenAI, text: "x"})

	_, err := f.GenerateText(context.Background(), Keys{ProviderOpenAI: "o"}, "  ", "")
	var invalid *apperr.InvalidInputError
	require.ErrorAs(t, err, &invalid)
}

func TestEmbedding_Failover(t *testing.T) {
	f := NewFacade(time.Second,
		&fakeProvider{name: ProviderOpenAI, err: errors.New("status 429")},
		&fakeProvider{name: ProviderGemini, vec: []float64{0.1, 0.2}},
	)

	vec, err := f.Embedding(context.Background(), Keys{ProviderOpenAI: "o", ProviderGemini: "g"}, "text")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2}, vec)

	_, err = f.Embedding(context.Background(), Keys{}, "text")
	var exhausted *apperr.AllProvidersExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, OpEmbedding, exhausted.Op)
}
