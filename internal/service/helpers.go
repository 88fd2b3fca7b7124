package service

import (
	"context"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/publisher"
)

func GetExpiresAt(expiresIn int) time.Time {
	return time.Now().Add(time.Duration(expiresIn) * time.Second)
}

// Sealer is the vault surface the services need.
type Sealer interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
	EncryptCredential(cred *models.Credential) (string, error)
	DecryptCredential(ciphertext string) (*models.Credential, error)
}

type PublisherSource interface {
	Get(provider string) (publisher.Publisher, error)
}

// KickScheduler wakes the dispatcher when a post becomes due.
type KickScheduler interface {
	ScheduleKick(ctx context.Context, postID int64, at time.Time) error
}
