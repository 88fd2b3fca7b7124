package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maheshrc27/postflow/internal/database/dbtest"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/publisher"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/vault"
)

type refreshingPublisher struct {
	stubPublisher
	refresh func(cred *models.Credential) (*models.Credential, error)
}

func (r *refreshingPublisher) Refresh(_ context.Context, cred *models.Credential) (*models.Credential, error) {
	return r.refresh(cred)
}

func TestTokenRefreshJob_Run(t *testing.T) {
	ctx := context.Background()
	accounts := repository.NewSocialAccountRepository(dbtest.New(t))
	v, err := vault.New("refresh-test-secret")
	require.NoError(t, err)

	renewedUntil := time.Now().Add(60 * 24 * time.Hour).UTC().Truncate(time.Second)
	instagram := &refreshingPublisher{
		stubPublisher: stubPublisher{name: publisher.ProviderInstagram},
		refresh: func(cred *models.Credential) (*models.Credential, error) {
			return &models.Credential{AccessToken: cred.AccessToken + "-renewed", Expiry: renewedUntil}, nil
		},
	}
	tiktok := &refreshingPublisher{
		stubPublisher: stubPublisher{name: publisher.ProviderTiktok},
		refresh: func(*models.Credential) (*models.Credential, error) {
			return nil, errors.New("refresh token revoked")
		},
	}
	registry, err := publisher.NewRegistry(instagram, tiktok)
	require.NoError(t, err)

	create := func(provider string, expiresAt time.Time) int64 {
		sealed, err := v.EncryptCredential(&models.Credential{AccessToken: provider + "-token"})
		require.NoError(t, err)
		id, err := accounts.Create(ctx, &models.SocialAccount{
			UserID:              1,
			Provider:            provider,
			ProviderUserID:      provider + "-user",
			EncryptedCredential: sealed,
			ExpiresAt:           &expiresAt,
		})
		require.NoError(t, err)
		return id
	}

	expiring := create(publisher.ProviderInstagram, time.Now().Add(10*time.Minute))
	expired := create(publisher.ProviderInstagram, time.Now().Add(-time.Hour))
	later := create(publisher.ProviderInstagram, time.Now().Add(48*time.Hour))
	create(publisher.ProviderTiktok, time.Now().Add(5*time.Minute))

	job := NewTokenRefreshJob(accounts, v, registry)
	refreshed, failed := job.Run(ctx)
	assert.Equal(t, 2, refreshed)
	assert.Equal(t, 1, failed)

	for _, id := range []int64{expiring, expired} {
		acc, err := accounts.GetByID(ctx, id)
		require.NoError(t, err)

		cred, err := v.DecryptCredential(acc.EncryptedCredential)
		require.NoError(t, err)
		assert.Equal(t, "instagram-token-renewed", cred.AccessToken)
		require.NotNil(t, acc.ExpiresAt)
		assert.True(t, acc.ExpiresAt.Equal(renewedUntil))
	}

	untouched, err := accounts.GetByID(ctx, later)
	require.NoError(t, err)
	cred, err := v.DecryptCredential(untouched.EncryptedCredential)
	require.NoError(t, err)
	assert.Equal(t, "instagram-token", cred.AccessToken)
}

func TestTokenRefreshJob_SkipsProvidersWithoutRefresh(t *testing.T) {
	ctx := context.Background()
	accounts := repository.NewSocialAccountRepository(dbtest.New(t))
	v, err := vault.New("refresh-test-secret")
	require.NoError(t, err)

	registry, err := publisher.NewRegistry(&stubPublisher{name: publisher.ProviderYoutube})
	require.NoError(t, err)

	soon := time.Now().Add(time.Minute)
	sealed, err := v.EncryptCredential(&models.Credential{AccessToken: "token"})
	require.NoError(t, err)
	_, err = accounts.Create(ctx, &models.SocialAccount{
		UserID:              1,
		Provider:            publisher.ProviderYoutube,
		ProviderUserID:      "yt-user",
		EncryptedCredential: sealed,
		ExpiresAt:           &soon,
	})
	require.NoError(t, err)

	refreshed, failed := NewTokenRefreshJob(accounts, v, registry).Run(ctx)
	assert.Zero(t, refreshed)
	assert.Equal(t, 1, failed)
}
