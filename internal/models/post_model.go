package models

import (
	"encoding/json"
	"time"
)

type ScheduledPost struct {
	ID              int64          `db:"id" json:"id"`
	UserID          int64          `db:"user_id" json:"user_id"`
	SocialAccountID int64          `db:"social_account_id" json:"social_account_id"`
	Content         string         `db:"content" json:"content"`
	Metadata        map[string]any `db:"metadata" json:"metadata,omitempty"`
	ScheduledAt     time.Time      `db:"scheduled_at" json:"scheduled_at"`
	Status          string         `db:"status" json:"status"` // pending, published, failed
	ProviderPostID  string         `db:"provider_post_id" json:"provider_post_id,omitempty"`
	Attempts        int            `db:"attempts" json:"attempts"`
	LastError       string         `db:"last_error" json:"last_error,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

const (
	PostStatusPending   = "pending"
	PostStatusPublished = "published"
	PostStatusFailed    = "failed"
)

const (
	MetadataMedia    = "media"
	MetadataMediaURL = "media_url"
)

// MediaURLs returns the media references carried in metadata, in order.
// Both the list form ("media") and the single-URL form ("media_url") are read.
func (p *ScheduledPost) MediaURLs() []string {
	var urls []string
	switch v := p.Metadata[MetadataMedia].(type) {
	case []string:
		urls = append(urls, v...)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				urls = append(urls, s)
			}
		}
	}
	if s, ok := p.Metadata[MetadataMediaURL].(string); ok && s != "" {
		urls = append(urls, s)
	}
	return urls
}

func EncodeMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func DecodeMetadata(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
