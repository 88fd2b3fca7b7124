package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/publisher"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/transfer"
)

const revokeTimeout = 15 * time.Second

type AccountService interface {
	Connect(ctx context.Context, userID int64, req *transfer.ConnectAccount) (*models.SocialAccount, error)
	List(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	Get(ctx context.Context, userID, accountID int64) (*models.SocialAccount, error)
	Delete(ctx context.Context, userID, accountID int64) error
}

type accountService struct {
	ac         repository.SocialAccountRepository
	vault      Sealer
	publishers PublisherSource
}

func NewAccountService(ac repository.SocialAccountRepository, vault Sealer, publishers PublisherSource) AccountService {
	return &accountService{
		ac:         ac,
		vault:      vault,
		publishers: publishers,
	}
}

// Connect stores a credential an OAuth flow produced. The plaintext only
// lives for the duration of the call.
func (s *accountService) Connect(ctx context.Context, userID int64, req *transfer.ConnectAccount) (*models.SocialAccount, error) {
	if req == nil {
		return nil, apperr.InvalidInput("body", "request body is required")
	}

	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if _, err := s.publishers.Get(provider); err != nil {
		return nil, err
	}

	cred := &models.Credential{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		TokenType:    "Bearer",
		Session:      req.Session,
	}

	var expiresAt *time.Time
	if req.ExpiresIn > 0 {
		t := GetExpiresAt(req.ExpiresIn).UTC()
		cred.Expiry = t
		expiresAt = &t
	}

	sealed, err := s.vault.EncryptCredential(cred)
	if err != nil {
		return nil, err
	}

	account := &models.SocialAccount{
		UserID:              userID,
		Provider:            provider,
		ProviderUserID:      req.ProviderUserID,
		AccountName:         req.AccountName,
		EncryptedCredential: sealed,
		Scopes:              req.Scopes,
		ExpiresAt:           expiresAt,
	}
	if _, err := s.ac.Create(ctx, account); err != nil {
		return nil, err
	}

	slog.Info("social account connected", "user_id", userID, "provider", provider, "account_id", account.ID)
	return account, nil
}

func (s *accountService) List(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	return s.ac.ListByUserID(ctx, userID)
}

func (s *accountService) Get(ctx context.Context, userID, accountID int64) (*models.SocialAccount, error) {
	return s.ac.GetByIDForUser(ctx, userID, accountID)
}

// Delete revokes the credential on the platform when the adapter supports
// it, then removes the account. A failed revoke does not block removal.
func (s *accountService) Delete(ctx context.Context, userID, accountID int64) error {
	acc, err := s.ac.GetByIDForUser(ctx, userID, accountID)
	if err != nil {
		return err
	}

	s.revoke(ctx, acc)

	return s.ac.Remove(ctx, userID, accountID)
}

func (s *accountService) revoke(ctx context.Context, acc *models.SocialAccount) {
	log := slog.With("account_id", acc.ID, "provider", acc.Provider)

	pub, err := s.publishers.Get(acc.Provider)
	if err != nil {
		return
	}
	revoker, ok := pub.(publisher.Revoker)
	if !ok {
		return
	}

	cred, err := s.vault.DecryptCredential(acc.EncryptedCredential)
	if err != nil {
		log.Warn("skipping revoke, credential unreadable", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, revokeTimeout)
	defer cancel()

	err = revoker.Revoke(ctx, publisher.Account{
		ID:             acc.ID,
		UserID:         acc.UserID,
		ProviderUserID: acc.ProviderUserID,
		Credential:     cred,
	})
	if err != nil {
		log.Warn("revoke failed", "error", err)
	}
}
