package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/publisher"
	"github.com/maheshrc27/postflow/internal/repository"
)

const (
	TokenRefreshSchedule = "@every 00h10m00s"
	tokenRefreshWindow   = 30 * time.Minute
	tokenRefreshTimeout  = time.Minute
)

type CredentialSealer interface {
	CredentialOpener
	EncryptCredential(cred *models.Credential) (string, error)
}

type TokenRefreshJob struct {
	sr         repository.SocialAccountRepository
	vault      CredentialSealer
	publishers PublisherSource
	now        func() time.Time
}

func NewTokenRefreshJob(
	sr repository.SocialAccountRepository,
	vault CredentialSealer,
	publishers PublisherSource) *TokenRefreshJob {
	return &TokenRefreshJob{
		sr:         sr,
		vault:      vault,
		publishers: publishers,
		now:        time.Now,
	}
}

// RefreshTokens is the cron entry point.
func (c *TokenRefreshJob) RefreshTokens() {
	refreshed, failed := c.Run(context.Background())
	if refreshed > 0 || failed > 0 {
		slog.Info("token refresh finished", "refreshed", refreshed, "failed", failed)
	}
}

// Run renews every credential that expires within the next 30 minutes or
// has already expired. A failing account is logged and skipped.
func (c *TokenRefreshJob) Run(ctx context.Context) (refreshed, failed int) {
	until := c.now().Add(tokenRefreshWindow)

	accounts, err := c.sr.ListExpiring(ctx, time.Time{}, until)
	if err != nil {
		slog.Info(err.Error())
		return 0, 0
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			ok := c.refresh(ctx, acc)

			mu.Lock()
			defer mu.Unlock()
			if ok {
				refreshed++
			} else {
				failed++
			}
		}(acc)
	}
	wg.Wait()

	return refreshed, failed
}

func (c *TokenRefreshJob) refresh(ctx context.Context, acc *models.SocialAccount) bool {
	log := slog.With("account_id", acc.ID, "provider", acc.Provider)

	pub, err := c.publishers.Get(acc.Provider)
	if err != nil {
		log.Info("unable to refresh token", "error", err)
		return false
	}
	refresher, ok := pub.(publisher.Refresher)
	if !ok {
		log.Debug("provider does not support token refresh")
		return false
	}

	cred, err := c.vault.DecryptCredential(acc.EncryptedCredential)
	if err != nil {
		log.Info("unable to refresh token", "error", err)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, tokenRefreshTimeout)
	defer cancel()

	renewed, err := refresher.Refresh(ctx, cred)
	if err != nil {
		log.Info("unable to refresh token", "error", err)
		return false
	}

	sealed, err := c.vault.EncryptCredential(renewed)
	if err != nil {
		log.Info("unable to refresh token", "error", err)
		return false
	}

	var expiresAt *time.Time
	if !renewed.Expiry.IsZero() {
		t := renewed.Expiry
		expiresAt = &t
	}

	if err := c.sr.UpdateCredential(ctx, acc.ID, sealed, expiresAt); err != nil {
		log.Info("unable to store refreshed token", "error", err)
		return false
	}

	log.Debug("token refreshed", "expires_at", expiresAt)
	return true
}
