package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Dispatch struct {
	Interval     time.Duration
	BatchSize    int
	Concurrency  int
	ItemTimeout  time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
	Providers    []string
}

type AI struct {
	Timeout         time.Duration
	OpenAIBaseURL   string
	GeminiBaseURL   string
	OpenAIModel     string
	GeminiModel     string
	OpenAIEmbedding string
	GeminiEmbedding string
}

type Config struct {
	InstagramGraphURL  string
	TiktokClientKey    string
	TiktokClientSecret string
	TiktokAPIURL       string
	GoogleClientID     string
	GoogleClientSecret string
	YoutubeEndpoint    string
	DatabaseDriver     string
	DatabaseURI        string
	RedisURI           string
	HTTPAddr           string
	R2                 R2
	Dispatch           Dispatch
	AI                 AI
	SecretKey          string
	VaultKey           string
	CookieName         string
	LogLevel           string
	LogFormat          string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("INSTAGRAM_GRAPH_URL", "https://graph.instagram.com/v21.0")
	v.SetDefault("TIKTOK_API_URL", "https://open.tiktokapis.com")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("HTTP_ADDR", ":3000")
	v.SetDefault("COOKIE_NAME", "postflow_session")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")

	v.SetDefault("DISPATCH_INTERVAL", 60*time.Second)
	v.SetDefault("DISPATCH_BATCH_SIZE", 20)
	v.SetDefault("DISPATCH_CONCURRENCY", 4)
	v.SetDefault("DISPATCH_ITEM_TIMEOUT", 5*time.Minute)
	v.SetDefault("DISPATCH_MAX_ATTEMPTS", 1)
	v.SetDefault("DISPATCH_RETRY_BACKOFF", time.Minute)
	v.SetDefault("DISPATCH_PROVIDERS", "instagram,youtube,tiktok")

	v.SetDefault("AI_TIMEOUT", 30*time.Second)
	v.SetDefault("AI_OPENAI_MODEL", "gpt-3.5-turbo")
	v.SetDefault("AI_GEMINI_MODEL", "gemini-2.5-flash")
	v.SetDefault("AI_OPENAI_EMBEDDING_MODEL", "text-embedding-3-small")
	v.SetDefault("AI_GEMINI_EMBEDDING_MODEL", "text-embedding-004")
}

// LoadConfig reads .env (when present) and the process environment.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return &Config{
		InstagramGraphURL:  v.GetString("INSTAGRAM_GRAPH_URL"),
		TiktokClientKey:    v.GetString("TIKTOK_CLIENT_KEY"),
		TiktokClientSecret: v.GetString("TIKTOK_CLIENT_SECRET"),
		TiktokAPIURL:       v.GetString("TIKTOK_API_URL"),
		GoogleClientID:     v.GetString("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
		YoutubeEndpoint:    v.GetString("YOUTUBE_ENDPOINT"),
		DatabaseDriver:     v.GetString("DATABASE_DRIVER"),
		DatabaseURI:        v.GetString("DATABASE_URI"),
		RedisURI:           v.GetString("REDIS_URI"),
		HTTPAddr:           v.GetString("HTTP_ADDR"),
		R2: R2{
			AccountID:  v.GetString("R2_ACCOUNT_ID"),
			AccessKey:  v.GetString("R2_ACCESS_KEY"),
			SecretKey:  v.GetString("R2_SECRET_KEY"),
			BucketName: v.GetString("R2_BUCKET_NAME"),
			PublicURL:  v.GetString("R2_PUBLIC_URL"),
		},
		Dispatch: Dispatch{
			Interval:     v.GetDuration("DISPATCH_INTERVAL"),
			BatchSize:    v.GetInt("DISPATCH_BATCH_SIZE"),
			Concurrency:  v.GetInt("DISPATCH_CONCURRENCY"),
			ItemTimeout:  v.GetDuration("DISPATCH_ITEM_TIMEOUT"),
			MaxAttempts:  v.GetInt("DISPATCH_MAX_ATTEMPTS"),
			RetryBackoff: v.GetDuration("DISPATCH_RETRY_BACKOFF"),
			Providers:    splitList(v.GetString("DISPATCH_PROVIDERS")),
		},
		AI: AI{
			Timeout:         v.GetDuration("AI_TIMEOUT"),
			OpenAIBaseURL:   v.GetString("AI_OPENAI_BASE_URL"),
			GeminiBaseURL:   v.GetString("AI_GEMINI_BASE_URL"),
			OpenAIModel:     v.GetString("AI_OPENAI_MODEL"),
			GeminiModel:     v.GetString("AI_GEMINI_MODEL"),
			OpenAIEmbedding: v.GetString("AI_OPENAI_EMBEDDING_MODEL"),
			GeminiEmbedding: v.GetString("AI_GEMINI_EMBEDDING_MODEL"),
		},
		SecretKey:  v.GetString("SECRET_KEY"),
		VaultKey:   v.GetString("VAULT_KEY"),
		CookieName: v.GetString("COOKIE_NAME"),
		LogLevel:   v.GetString("LOG_LEVEL"),
		LogFormat:  v.GetString("LOG_FORMAT"),
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}
