package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/models"
)

type PostRepository interface {
	Enqueue(ctx context.Context, post *models.ScheduledPost) (int64, error)
	Due(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error)
	MarkPublished(ctx context.Context, id int64, providerPostID string, record *models.PostRecord) (bool, error)
	MarkFailed(ctx context.Context, id int64, reason string) (bool, error)
	Reschedule(ctx context.Context, id int64, next time.Time, reason string) (bool, error)
	GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error)
	Remove(ctx context.Context, userID, id int64) error
}

type postRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db, now: time.Now}
}

const postColumns = `id, user_id, social_account_id, content, metadata, scheduled_at, status,
	provider_post_id, attempts, last_error, created_at, updated_at`

func (r *postRepository) Enqueue(ctx context.Context, post *models.ScheduledPost) (int64, error) {
	if strings.TrimSpace(post.Content) == "" {
		return 0, apperr.InvalidInput("content", "content must not be empty")
	}
	if post.SocialAccountID <= 0 {
		return 0, apperr.InvalidInput("social_account_id", "social account is required")
	}

	metadata, err := models.EncodeMetadata(post.Metadata)
	if err != nil {
		return 0, apperr.InvalidInput("metadata", "metadata is not serializable: %v", err)
	}

	now := r.now().UTC()
	scheduledAt := post.ScheduledAt.UTC()
	if post.ScheduledAt.IsZero() {
		scheduledAt = now
	}

	query := `
		INSERT INTO scheduled_posts (user_id, social_account_id, content, metadata, scheduled_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err = r.db.QueryRowContext(ctx, query,
		post.UserID,
		post.SocialAccountID,
		post.Content,
		metadata,
		scheduledAt,
		models.PostStatusPending,
		now,
		now,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	post.ID = id
	post.ScheduledAt = scheduledAt
	post.Status = models.PostStatusPending
	post.Attempts = 0
	post.CreatedAt = now
	post.UpdatedAt = now
	return id, nil
}

// Due returns pending posts whose time has come, oldest first.
func (r *postRepository) Due(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `SELECT ` + postColumns + ` FROM scheduled_posts
		WHERE status = $1 AND scheduled_at <= $2
		ORDER BY scheduled_at ASC, id ASC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, models.PostStatusPending, now.UTC(), limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return scanPosts(rows)
}

// MarkPublished moves a pending post to published and appends its history
// record in the same transaction. It reports false, and writes nothing, when
// the post was no longer pending.
func (r *postRepository) MarkPublished(ctx context.Context, id int64, providerPostID string, record *models.PostRecord) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	defer tx.Rollback()

	now := r.now().UTC()
	query := `
		UPDATE scheduled_posts
		SET status = $1,
			provider_post_id = $2,
			last_error = '',
			updated_at = $3
		WHERE id = $4 AND status = $5
	`
	res, err := tx.ExecContext(ctx, query, models.PostStatusPublished, providerPostID, now, id, models.PostStatusPending)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return false, err
	}

	if record != nil {
		if record.CreatedAt.IsZero() {
			record.CreatedAt = now
		}
		recordID, err := insertPostRecord(ctx, tx, record)
		if err != nil {
			return false, err
		}
		record.ID = recordID
	}

	if err := tx.Commit(); err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return true, nil
}

func (r *postRepository) MarkFailed(ctx context.Context, id int64, reason string) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET status = $1,
			last_error = $2,
			attempts = attempts + 1,
			updated_at = $3
		WHERE id = $4 AND status = $5
	`
	return r.transition(ctx, query, models.PostStatusFailed, reason, r.now().UTC(), id, models.PostStatusPending)
}

// Reschedule keeps a post pending but moves it to next and counts the
// failed attempt.
func (r *postRepository) Reschedule(ctx context.Context, id int64, next time.Time, reason string) (bool, error) {
	query := `
		UPDATE scheduled_posts
		SET scheduled_at = $1,
			last_error = $2,
			attempts = attempts + 1,
			updated_at = $3
		WHERE id = $4 AND status = $5
	`
	return r.transition(ctx, query, next.UTC(), reason, r.now().UTC(), id, models.PostStatusPending)
}

func (r *postRepository) transition(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	query := `SELECT ` + postColumns + ` FROM scheduled_posts WHERE user_id = $1 ORDER BY scheduled_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return scanPosts(rows)
}

func (r *postRepository) Remove(ctx context.Context, userID, id int64) error {
	query := `DELETE FROM scheduled_posts WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return requireAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.ScheduledPost, error) {
	var (
		post     models.ScheduledPost
		metadata []byte
	)
	err := row.Scan(&post.ID, &post.UserID, &post.SocialAccountID, &post.Content, &metadata,
		&post.ScheduledAt, &post.Status, &post.ProviderPostID, &post.Attempts, &post.LastError,
		&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}

	post.Metadata, err = models.DecodeMetadata(metadata)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func scanPosts(rows *sql.Rows) ([]*models.ScheduledPost, error) {
	var posts []*models.ScheduledPost
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}
