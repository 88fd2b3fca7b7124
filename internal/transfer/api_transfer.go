package transfer

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/maheshrc27/postflow/internal/models"
)

type CustomClaims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

type StoreAIKey struct {
	Provider string `json:"provider" validate:"required,oneof=openai gemini"`
	APIKey   string `json:"api_key" validate:"required"`
}

type GenerateText struct {
	Prompt string `json:"prompt" validate:"required"`
	Model  string `json:"model"`
}

type Embedding struct {
	Text string `json:"text" validate:"required"`
}

type SchedulePost struct {
	SocialAccountID int64          `json:"social_account_id" validate:"required,gt=0"`
	Content         string         `json:"content" validate:"required"`
	Media           []string       `json:"media" validate:"omitempty,dive,url"`
	Metadata        map[string]any `json:"metadata"`
	ScheduledAt     *time.Time     `json:"scheduled_at"`
}

type PublishNow struct {
	SocialAccountID int64    `json:"social_account_id" validate:"required,gt=0"`
	Content         string   `json:"content" validate:"required"`
	Media           []string `json:"media" validate:"omitempty,dive,url"`
}

type PublishNowResult struct {
	Status         string `json:"status"`
	Provider       string `json:"provider"`
	PlatformPostID string `json:"platform_post_id"`
	HistoryID      int64  `json:"history_id"`
}

type MediaUpload struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
}

// ConnectAccount carries a credential obtained by an OAuth flow.
type ConnectAccount struct {
	Provider       string                 `json:"provider" validate:"required"`
	ProviderUserID string                 `json:"provider_user_id" validate:"required"`
	AccountName    string                 `json:"account_name"`
	AccessToken    string                 `json:"access_token" validate:"required"`
	RefreshToken   string                 `json:"refresh_token"`
	ExpiresIn      int                    `json:"expires_in" validate:"gte=0"`
	Scopes         string                 `json:"scopes"`
	Session        *models.SessionSetting `json:"session"`
}
