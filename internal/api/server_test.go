package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/postflow/internal/ai"
	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/database/dbtest"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/publisher"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/vault"
	"github.com/maheshrc27/postflow/pkg/utils"
)

const testSecret = "api-test-secret"

type stubPublisher struct {
	err error
}

func (s *stubPublisher) Provider() string { return publisher.ProviderInstagram }

func (s *stubPublisher) Publish(context.Context, publisher.Account, string, []string) (*publisher.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &publisher.Result{PlatformPostID: "ig-media-1", Raw: []byte(`{"id":"ig-media-1"}`)}, nil
}

type stubGenerator struct {
	err error
}

func (g *stubGenerator) GenerateText(_ context.Context, _ ai.Keys, prompt, _ string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return "caption for " + prompt, nil
}

func (g *stubGenerator) Embedding(context.Context, ai.Keys, string) ([]float64, error) {
	return []float64{1, 2, 3}, nil
}

type testServer struct {
	t        *testing.T
	pub      *stubPublisher
	gen      *stubGenerator
	accounts repository.SocialAccountRepository
	token    string
	do       func(req *http.Request) *http.Response
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := dbtest.New(t)

	v, err := vault.New("api-vault-secret")
	require.NoError(t, err)

	pub := &stubPublisher{}
	registry, err := publisher.NewRegistry(pub)
	require.NoError(t, err)
	gen := &stubGenerator{}

	posts := repository.NewPostRepository(db)
	accounts := repository.NewSocialAccountRepository(db)
	history := repository.NewPostingHistoryRepository(db)
	keys := repository.NewAIKeyRepository(db)

	app := NewApp(Options{SecretKey: testSecret, CookieName: "session"}, Services{
		Posts:    service.NewPostService(posts, accounts, history, v, registry, nil),
		Accounts: service.NewAccountService(accounts, v, registry),
		AI:       service.NewAIService(keys, v, gen),
		Health:   db.PingContext,
	})

	token, err := utils.GenerateToken(testSecret, 1, time.Hour)
	require.NoError(t, err)

	return &testServer{
		t:        t,
		pub:      pub,
		gen:      gen,
		accounts: accounts,
		token:    token,
		do: func(req *http.Request) *http.Response {
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			return resp
		},
	}
}

func (s *testServer) request(method, path string, body any) *http.Response {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)
	return s.do(req)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (s *testServer) connectAccount() int64 {
	s.t.Helper()
	resp := s.request(http.MethodPost, "/api/accounts", map[string]any{
		"provider":         "instagram",
		"provider_user_id": "1784",
		"access_token":     "IGQV-token",
		"expires_in":       5184000,
	})
	require.Equal(s.t, http.StatusCreated, resp.StatusCode)
	acc := decode[map[string]any](s.t, resp)
	_, leaked := acc["encrypted_credential"]
	assert.False(s.t, leaked)
	return int64(acc["id"].(float64))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]string](t, resp)["status"])
}

func TestAuth(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(httptest.NewRequest(http.MethodGet, "/api/accounts", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp = s.do(req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: s.token})
	resp = s.do(req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestScheduleFlow(t *testing.T) {
	s := newTestServer(t)
	accountID := s.connectAccount()

	at := time.Now().Add(time.Hour).UTC()
	resp := s.request(http.MethodPost, "/api/schedule", map[string]any{
		"social_account_id": accountID,
		"content":           "new drop",
		"media":             []string{"https://cdn.example.com/a.jpg"},
		"scheduled_at":      at,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	post := decode[map[string]any](t, resp)
	assert.Equal(t, "pending", post["status"])

	resp = s.request(http.MethodGet, "/api/schedule", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]map[string]any](t, resp), 1)

	resp = s.request(http.MethodDelete, "/api/schedule/999", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.request(http.MethodDelete, "/api/schedule/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	id := int64(post["id"].(float64))
	resp = s.request(http.MethodDelete, "/api/schedule/"+strconv.FormatInt(id, 10), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestScheduleValidation(t *testing.T) {
	s := newTestServer(t)

	resp := s.request(http.MethodPost, "/api/schedule", map[string]any{"content": "no account"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[map[string]string](t, resp)["error"], "social_account_id")

	resp = s.request(http.MethodPost, "/api/schedule", map[string]any{
		"social_account_id": 1,
		"content":           "bad media",
		"media":             []string{"not a url"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPublishNow(t *testing.T) {
	s := newTestServer(t)
	accountID := s.connectAccount()

	resp := s.request(http.MethodPost, "/api/posts/publish-now", map[string]any{
		"social_account_id": accountID,
		"content":           "live",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ig-media-1", decode[map[string]any](t, resp)["platform_post_id"])

	resp = s.request(http.MethodGet, "/api/posts/history", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]map[string]any](t, resp), 1)

	s.pub.err = apperr.Publish(publisher.ProviderInstagram, "media type not supported")
	resp = s.request(http.MethodPost, "/api/posts/publish-now", map[string]any{
		"social_account_id": accountID,
		"content":           "again",
	})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestPublishNowWithUnreadableCredential(t *testing.T) {
	s := newTestServer(t)
	accountID, err := s.accounts.Create(context.Background(), &models.SocialAccount{
		UserID:              1,
		Provider:            publisher.ProviderInstagram,
		ProviderUserID:      "1784",
		EncryptedCredential: "c2VhbGVkLWJ5LWFub3RoZXIta2V5LWF0LWxlYXN0LTMyLWJ5dGVz",
	})
	require.NoError(t, err)

	resp := s.request(http.MethodPost, "/api/posts/publish-now", map[string]any{
		"social_account_id": accountID,
		"content":           "live",
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "stored credential cannot be opened; reconnect the account",
		decode[map[string]any](t, resp)["error"])
}

func TestAIEndpoints(t *testing.T) {
	s := newTestServer(t)

	resp := s.request(http.MethodPost, "/api/ai/keys", map[string]any{"provider": "cohere", "api_key": "k"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.request(http.MethodPost, "/api/ai/keys", map[string]any{"provider": "openai", "api_key": "sk-test"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = s.request(http.MethodGet, "/api/ai/keys", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	keys := decode[[]map[string]any](t, resp)
	require.Len(t, keys, 1)
	assert.Equal(t, "openai", keys[0]["provider"])
	assert.NotContains(t, keys[0], "encrypted_key")

	resp = s.request(http.MethodPost, "/api/ai/generate", map[string]any{"prompt": "sneakers"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "caption for sneakers", decode[map[string]string](t, resp)["text"])

	resp = s.request(http.MethodPost, "/api/ai/embedding", map[string]any{"text": "sneakers"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, decode[map[string]any](t, resp)["dimensions"])

	s.gen.err = &apperr.AllProvidersExhaustedError{Op: ai.OpGenerateText}
	resp = s.request(http.MethodPost, "/api/ai/generate", map[string]any{"prompt": "sneakers"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp = s.request(http.MethodDelete, "/api/ai/keys/openai", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = s.request(http.MethodDelete, "/api/ai/keys/openai", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAccountsEndpoints(t *testing.T) {
	s := newTestServer(t)
	id := s.connectAccount()

	resp := s.request(http.MethodGet, "/api/accounts/"+strconv.FormatInt(id, 10), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.request(http.MethodPost, "/api/accounts", map[string]any{
		"provider":         "myspace",
		"provider_user_id": "tom",
		"access_token":     "t",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.request(http.MethodDelete, "/api/accounts/"+strconv.FormatInt(id, 10), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = s.request(http.MethodGet, "/api/accounts/"+strconv.FormatInt(id, 10), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMediaWithoutStorage(t *testing.T) {
	s := newTestServer(t)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "a.png")
	require.NoError(t, err)
	_, err = part.Write([]byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/media", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.token)
	resp := s.do(req)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
