package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAI_GenerateText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-3.5-turbo", body["model"])
		assert.EqualValues(t, 512, body["max_tokens"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-3.5-turbo",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIOptions{BaseURL: srv.URL + "/"})
	text, err := p.GenerateText(context.Background(), "sk-test", "say hello", "")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestOpenAI_RejectedKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIOptions{BaseURL: srv.URL + "/"})
	_, err := p.GenerateText(context.Background(), "sk-bad", "p", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestOpenAI_Embedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","model":"text-embedding-3-small",
			"data":[{"object":"embedding","index":0,"embedding":[0.5,-0.25]}],
			"usage":{"prompt_tokens":2,"total_tokens":2}}`))
	}))
	defer srv.Close()

	p := NewOpenAI(OpenAIOptions{BaseURL: srv.URL + "/"})
	vec, err := p.Embedding(context.Background(), "sk-test", "text")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -0.25}, vec)
}

// The facade in front of a real provider client: a 401 from the primary
// falls through to the secondary.
func TestFacade_OpenAIRejectedFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	secondary := &fakeProvider{name: ProviderGemini, text: "hello"}
	f := NewFacade(DefaultTimeout, NewOpenAI(OpenAIOptions{BaseURL: srv.URL + "/"}), secondary)

	text, err := f.GenerateText(context.Background(), Keys{ProviderOpenAI: "sk-bad", ProviderGemini: "g"}, "p", "")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, 1, secondary.calls)
}
