package models

import (
	"encoding/json"
	"time"
)

// PostRecord is an append-only history row written once per publish.
type PostRecord struct {
	ID             int64           `db:"id" json:"id"`
	UserID         int64           `db:"user_id" json:"user_id"`
	Provider       string          `db:"provider" json:"provider"`
	PlatformPostID string          `db:"platform_post_id" json:"platform_post_id"`
	Content        string          `db:"content" json:"content"`
	Metadata       json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}
