package config

import (
	"os"
	"strconv"
	"time"

	"github.com/hitoshi/lumina/internal/model"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Backend（ホスト型データサービス）
	SupabaseURL     string
	SupabaseAnonKey string

	// Database（migrateサブコマンド専用。クライアント本体は直接DBに触れない）
	DatabaseURL string

	// HTTP
	HTTPTimeout     time.Duration
	FetchMaxSize    int64
	ResolveTimeout  time.Duration
	RefreshInterval time.Duration

	// 起動時サインイン（ヘッドレス運用向け。未設定なら未認証で起動する）
	AuthEmail    string
	AuthPassword string

	// 配信フィード取り込みワーカー
	StreamFeedURL      string
	StreamFeedInterval time.Duration

	// 通知メール（未設定なら送信しない）
	ResendAPIKey string
	MailFrom     string

	// Ops（ヘルスチェック・メトリクス公開）
	ServerPort string
}

// Load は環境変数からConfigを読み込む。
// バックエンド資格情報が未設定の場合はmodel.APIError（設定エラー）を返す。
// 起動を継続できない致命的エラーであり、リトライ経路は存在しない。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.SupabaseURL = os.Getenv("SUPABASE_URL")
	if cfg.SupabaseURL == "" {
		missing = append(missing, "SUPABASE_URL")
	}

	cfg.SupabaseAnonKey = os.Getenv("SUPABASE_ANON_KEY")
	if cfg.SupabaseAnonKey == "" {
		missing = append(missing, "SUPABASE_ANON_KEY")
	}

	if len(missing) > 0 {
		return nil, model.NewConfigMissingError(missing)
	}

	// Optional fields with defaults
	cfg.DatabaseURL = getEnvString("DATABASE_URL", "")
	cfg.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.ResolveTimeout = getEnvDuration("RESOLVE_TIMEOUT", 15*time.Second)
	cfg.RefreshInterval = getEnvDuration("REFRESH_INTERVAL", 45*time.Minute)
	cfg.AuthEmail = getEnvString("AUTH_EMAIL", "")
	cfg.AuthPassword = getEnvString("AUTH_PASSWORD", "")
	cfg.StreamFeedURL = getEnvString("STREAM_FEED_URL", "")
	cfg.StreamFeedInterval = getEnvDuration("STREAM_FEED_INTERVAL", 15*time.Minute)
	cfg.ResendAPIKey = getEnvString("RESEND_API_KEY", "")
	cfg.MailFrom = getEnvString("MAIL_FROM", "Lumina Faith <noreply@lumina.app>")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
