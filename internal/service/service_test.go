package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/postflow/internal/database/dbtest"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/publisher"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/vault"
)

type stubPublisher struct {
	name      string
	err       error
	revokeErr error
	published []string
	revoked   []int64
}

func (s *stubPublisher) Provider() string { return s.name }

func (s *stubPublisher) Publish(_ context.Context, acc publisher.Account, content string, media []string) (*publisher.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	if acc.Credential == nil || acc.Credential.AccessToken == "" {
		return nil, errors.New("no credential")
	}
	s.published = append(s.published, content)
	return &publisher.Result{PlatformPostID: "remote-1", Raw: []byte(`{"id":"remote-1"}`)}, nil
}

func (s *stubPublisher) Revoke(_ context.Context, acc publisher.Account) error {
	s.revoked = append(s.revoked, acc.ID)
	return s.revokeErr
}

type env struct {
	db       *sql.DB
	vault    *vault.Vault
	pub      *stubPublisher
	registry *publisher.Registry
	posts    repository.PostRepository
	accounts repository.SocialAccountRepository
	history  repository.PostingHistoryRepository
	keys     repository.AIKeyRepository
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := dbtest.New(t)

	v, err := vault.New("service-test-secret")
	require.NoError(t, err)

	pub := &stubPublisher{name: publisher.ProviderTiktok}
	registry, err := publisher.NewRegistry(pub)
	require.NoError(t, err)

	return &env{
		db:       db,
		vault:    v,
		pub:      pub,
		registry: registry,
		posts:    repository.NewPostRepository(db),
		accounts: repository.NewSocialAccountRepository(db),
		history:  repository.NewPostingHistoryRepository(db),
		keys:     repository.NewAIKeyRepository(db),
	}
}

func (e *env) connect(t *testing.T, userID int64, provider string) int64 {
	t.Helper()
	sealed, err := e.vault.EncryptCredential(&models.Credential{AccessToken: "token"})
	require.NoError(t, err)
	id, err := e.accounts.Create(context.Background(), &models.SocialAccount{
		UserID:              userID,
		Provider:            provider,
		ProviderUserID:      "remote-user",
		EncryptedCredential: sealed,
	})
	require.NoError(t, err)
	return id
}
