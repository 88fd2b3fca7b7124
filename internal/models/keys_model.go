package models

import "time"

type AIProviderKey struct {
	ID           int64     `db:"id" json:"id"`
	UserID       int64     `db:"user_id" json:"user_id"`
	Provider     string    `db:"provider" json:"provider"`
	EncryptedKey string    `db:"encrypted_key" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

const (
	AIProviderOpenAI = "openai"
	AIProviderGemini = "gemini"
)

func IsAIProvider(p string) bool {
	return p == AIProviderOpenAI || p == AIProviderGemini
}
