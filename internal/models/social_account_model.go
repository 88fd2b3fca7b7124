package models

import (
	"time"
)

type SocialAccount struct {
	ID                  int64      `db:"id" json:"id"`
	UserID              int64      `db:"user_id" json:"user_id"`
	Provider            string     `db:"provider" json:"provider"`
	ProviderUserID      string     `db:"provider_user_id" json:"provider_user_id"`
	AccountName         string     `db:"account_name" json:"account_name"`
	EncryptedCredential string     `db:"encrypted_credential" json:"-"`
	Scopes              string     `db:"scopes" json:"scopes,omitempty"`
	ExpiresAt           *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// Credential is the plaintext form of SocialAccount.EncryptedCredential.
// It only ever exists in memory for the duration of one operation.
type Credential struct {
	AccessToken  string          `json:"access_token" validate:"required"`
	RefreshToken string          `json:"refresh_token,omitempty"`
	TokenType    string          `json:"token_type,omitempty"`
	Expiry       time.Time       `json:"expiry,omitempty"`
	Session      *SessionSetting `json:"session,omitempty" validate:"omitempty"`
}

// SessionSetting holds explicit key/value session fields for platforms that
// keep a device session next to the token.
type SessionSetting struct {
	UserID    string `json:"user_id" validate:"required"`
	Username  string `json:"username,omitempty"`
	DeviceID  string `json:"device_id,omitempty" validate:"omitempty,max=64"`
	UUID      string `json:"uuid,omitempty" validate:"omitempty,uuid"`
	UserAgent string `json:"user_agent,omitempty" validate:"omitempty,max=512"`
}

func (c *Credential) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && !now.Before(c.Expiry)
}
