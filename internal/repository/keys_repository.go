package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/models"
)

type AIKeyRepository interface {
	Upsert(ctx context.Context, userID int64, provider, encryptedKey string) error
	Get(ctx context.Context, userID int64, provider string) (*models.AIProviderKey, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.AIProviderKey, error)
	Remove(ctx context.Context, userID int64, provider string) error
}

type aiKeyRepository struct {
	db *sql.DB
}

func NewAIKeyRepository(db *sql.DB) AIKeyRepository {
	return &aiKeyRepository{db: db}
}

// Upsert stores one key per (user, provider); a second store replaces it.
func (r *aiKeyRepository) Upsert(ctx context.Context, userID int64, provider, encryptedKey string) error {
	query := `
		INSERT INTO ai_provider_keys (user_id, provider, encrypted_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, provider)
		DO UPDATE SET encrypted_key = excluded.encrypted_key, updated_at = excluded.updated_at
	`
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, query, userID, provider, encryptedKey, now, now)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *aiKeyRepository) Get(ctx context.Context, userID int64, provider string) (*models.AIProviderKey, error) {
	query := `SELECT id, user_id, provider, encrypted_key, created_at, updated_at
		FROM ai_provider_keys WHERE user_id = $1 AND provider = $2`

	var key models.AIProviderKey
	err := r.db.QueryRowContext(ctx, query, userID, provider).Scan(
		&key.ID, &key.UserID, &key.Provider, &key.EncryptedKey, &key.CreatedAt, &key.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &key, nil
}

func (r *aiKeyRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.AIProviderKey, error) {
	query := `SELECT id, user_id, provider, encrypted_key, created_at, updated_at
		FROM ai_provider_keys WHERE user_id = $1 ORDER BY provider ASC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var keys []*models.AIProviderKey
	for rows.Next() {
		var key models.AIProviderKey
		err := rows.Scan(&key.ID, &key.UserID, &key.Provider, &key.EncryptedKey, &key.CreatedAt, &key.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		keys = append(keys, &key)
	}
	return keys, rows.Err()
}

func (r *aiKeyRepository) Remove(ctx context.Context, userID int64, provider string) error {
	query := `DELETE FROM ai_provider_keys WHERE user_id = $1 AND provider = $2`
	res, err := r.db.ExecContext(ctx, query, userID, provider)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return requireAffected(res)
}
