package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/models"
)

const DefaultHistoryLimit = 50

type PostingHistoryRepository interface {
	Create(ctx context.Context, record *models.PostRecord) (int64, error)
	ListByUserID(ctx context.Context, userID int64, limit int) ([]*models.PostRecord, error)
	GetByPlatformPostID(ctx context.Context, userID int64, provider, platformPostID string) (*models.PostRecord, error)
}

type postingHistoryRepository struct {
	db *sql.DB
}

func NewPostingHistoryRepository(db *sql.DB) PostingHistoryRepository {
	return &postingHistoryRepository{db: db}
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertPostRecord(ctx context.Context, q queryRower, record *models.PostRecord) (int64, error) {
	query := `
		INSERT INTO post_history (user_id, provider, platform_post_id, content, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	// lib/pq would send a []byte as bytea, so raw JSON goes over as text.
	// A body that is not JSON is kept as a JSON string.
	var metadata any
	if raw := record.Metadata; len(raw) > 0 {
		if !json.Valid(raw) {
			raw, _ = json.Marshal(string(raw))
		}
		metadata = string(raw)
	}

	var id int64
	err := q.QueryRowContext(ctx, query,
		record.UserID,
		record.Provider,
		record.PlatformPostID,
		record.Content,
		metadata,
		record.CreatedAt.UTC(),
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *postingHistoryRepository) Create(ctx context.Context, record *models.PostRecord) (int64, error) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	id, err := insertPostRecord(ctx, r.db, record)
	if err != nil {
		return 0, err
	}
	record.ID = id
	return id, nil
}

// ListByUserID returns the newest records first. A non-positive limit means
// DefaultHistoryLimit.
func (r *postingHistoryRepository) ListByUserID(ctx context.Context, userID int64, limit int) ([]*models.PostRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	query := `SELECT id, user_id, provider, platform_post_id, content, metadata, created_at
		FROM post_history
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var records []*models.PostRecord
	for rows.Next() {
		record, err := scanPostRecord(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (r *postingHistoryRepository) GetByPlatformPostID(ctx context.Context, userID int64, provider, platformPostID string) (*models.PostRecord, error) {
	query := `SELECT id, user_id, provider, platform_post_id, content, metadata, created_at
		FROM post_history
		WHERE user_id = $1 AND provider = $2 AND platform_post_id = $3
		ORDER BY id DESC
		LIMIT 1`

	record, err := scanPostRecord(r.db.QueryRowContext(ctx, query, userID, provider, platformPostID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		slog.Info(err.Error())
		return nil, err
	}
	return record, nil
}

func scanPostRecord(row rowScanner) (*models.PostRecord, error) {
	var (
		record   models.PostRecord
		metadata []byte
	)
	err := row.Scan(&record.ID, &record.UserID, &record.Provider, &record.PlatformPostID,
		&record.Content, &metadata, &record.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		record.Metadata = append([]byte(nil), metadata...)
	}
	return &record, nil
}
