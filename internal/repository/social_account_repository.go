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

type SocialAccountRepository interface {
	Create(ctx context.Context, sa *models.SocialAccount) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.SocialAccount, error)
	GetByIDForUser(ctx context.Context, userID, id int64) (*models.SocialAccount, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	ListExpiring(ctx context.Context, from, to time.Time) ([]*models.SocialAccount, error)
	UpdateCredential(ctx context.Context, id int64, encryptedCredential string, expiresAt *time.Time) error
	Remove(ctx context.Context, userID, id int64) error
}

type socialAccountRepository struct {
	db *sql.DB
}

func NewSocialAccountRepository(db *sql.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

const socialAccountColumns = `id, user_id, provider, provider_user_id, account_name,
	encrypted_credential, scopes, expires_at, created_at, updated_at`

func (r *socialAccountRepository) Create(ctx context.Context, sa *models.SocialAccount) (int64, error) {
	insertQuery := `
		INSERT INTO social_accounts (
			user_id,
			provider,
			provider_user_id,
			account_name,
			encrypted_credential,
			scopes,
			expires_at,
			created_at,
			updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	now := time.Now().UTC()
	var id int64
	err := r.db.QueryRowContext(ctx, insertQuery,
		sa.UserID,
		sa.Provider,
		sa.ProviderUserID,
		sa.AccountName,
		sa.EncryptedCredential,
		sa.Scopes,
		utcPtr(sa.ExpiresAt),
		now,
		now,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	sa.ID = id
	sa.CreatedAt = now
	sa.UpdatedAt = now
	return id, nil
}

func (r *socialAccountRepository) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts WHERE id = $1`
	return r.get(ctx, query, id)
}

// GetByIDForUser hides accounts owned by someone else behind ErrNotFound.
func (r *socialAccountRepository) GetByIDForUser(ctx context.Context, userID, id int64) (*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts WHERE id = $1 AND user_id = $2`
	return r.get(ctx, query, id, userID)
}

func (r *socialAccountRepository) get(ctx context.Context, query string, args ...any) (*models.SocialAccount, error) {
	sa, err := scanSocialAccount(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		slog.Info(err.Error())
		return nil, err
	}
	return sa, nil
}

func (r *socialAccountRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts WHERE user_id = $1 ORDER BY id ASC`
	return r.list(ctx, query, userID)
}

// ListExpiring returns accounts whose credential expires within [from, to].
func (r *socialAccountRepository) ListExpiring(ctx context.Context, from, to time.Time) ([]*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts
		WHERE expires_at IS NOT NULL AND expires_at >= $1 AND expires_at <= $2
		ORDER BY expires_at ASC`
	return r.list(ctx, query, from.UTC(), to.UTC())
}

func (r *socialAccountRepository) list(ctx context.Context, query string, args ...any) ([]*models.SocialAccount, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		sa, err := scanSocialAccount(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, sa)
	}
	return accounts, rows.Err()
}

func (r *socialAccountRepository) UpdateCredential(ctx context.Context, id int64, encryptedCredential string, expiresAt *time.Time) error {
	query := `
		UPDATE social_accounts
		SET encrypted_credential = $1,
			expires_at = $2,
			updated_at = $3
		WHERE id = $4
	`
	res, err := r.db.ExecContext(ctx, query, encryptedCredential, utcPtr(expiresAt), time.Now().UTC(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return requireAffected(res)
}

func (r *socialAccountRepository) Remove(ctx context.Context, userID, id int64) error {
	query := `DELETE FROM social_accounts WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return requireAffected(res)
}

func scanSocialAccount(row rowScanner) (*models.SocialAccount, error) {
	var (
		sa        models.SocialAccount
		expiresAt sql.NullTime
	)
	err := row.Scan(&sa.ID, &sa.UserID, &sa.Provider, &sa.ProviderUserID, &sa.AccountName,
		&sa.EncryptedCredential, &sa.Scopes, &expiresAt, &sa.CreatedAt, &sa.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		sa.ExpiresAt = &t
	}
	return &sa, nil
}

func utcPtr(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
