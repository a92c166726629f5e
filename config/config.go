package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	WebRTC   WebRTCConfig
	AWS      AWSConfig
	Live     LiveConfig
	Zego     ZegoConfig
}

// WebRTCConfig holds STUN/TURN ICE server URLs handed to clients with their join credential.
type WebRTCConfig struct {
	ICEUrls []string // e.g. stun:stun.l.google.com:19302 (comma-separated in env)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/live?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings. Empty Addr disables Redis (single instance mode).
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds the identity provider's token validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the session archive bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	ArchiveBucket        string
	PresignExpireMinutes int
}

// LiveConfig holds the session registry, credential issuer and engagement channel settings.
type LiveConfig struct {
	Store string // "postgres" or "memory"

	CredentialProvider string // "jwt" or "zego"
	CredentialAPIKey   string
	CredentialSecret   string
	CredentialTTL      time.Duration

	ChannelLivenessTimeout time.Duration
	ReaperInterval         time.Duration
	SubscriberBuffer       int
	MaxChatLength          int

	ViewportBreakpoint int
	ReactionLifetime   time.Duration

	WebhookSecret    string
	MetricsNamespace string
}

// ZegoConfig holds ZEGOCLOUD credentials used when CredentialProvider is "zego".
type ZegoConfig struct {
	AppID        uint32
	ServerSecret string // must be 32 characters
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	jwtExpire, _ := strconv.Atoi(getEnv("JWT_EXPIRE_HOURS", "24"))

	zegoAppID, err := strconv.ParseUint(getEnv("ZEGO_APP_ID", "0"), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("parse ZEGO_APP_ID: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "live"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: jwtExpire,
		},
		WebRTC: WebRTCConfig{
			ICEUrls: splitTrim(getEnv("WEBRTC_ICE_URLS", "stun:stun.l.google.com:19302"), ","),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ArchiveBucket:        getEnv("AWS_S3_ARCHIVE_BUCKET", "live-session-archive"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Live: LiveConfig{
			Store:                  strings.ToLower(getEnv("LIVE_STORE", "postgres")),
			CredentialProvider:     strings.ToLower(getEnv("LIVE_CREDENTIAL_PROVIDER", "jwt")),
			CredentialAPIKey:       getEnv("LIVE_CREDENTIAL_API_KEY", "live"),
			CredentialSecret:       getEnv("LIVE_CREDENTIAL_SECRET", ""),
			CredentialTTL:          getEnvDuration("LIVE_CREDENTIAL_TTL", 10*time.Minute),
			ChannelLivenessTimeout: getEnvDuration("LIVE_CHANNEL_LIVENESS_TIMEOUT", 2*time.Minute),
			ReaperInterval:         getEnvDuration("LIVE_REAPER_INTERVAL", 15*time.Second),
			SubscriberBuffer:       getEnvInt("LIVE_SUBSCRIBER_BUFFER", 64),
			MaxChatLength:          getEnvInt("LIVE_MAX_CHAT_LENGTH", 500),
			ViewportBreakpoint:     getEnvInt("LIVE_VIEWPORT_BREAKPOINT", 1024),
			ReactionLifetime:       getEnvDuration("LIVE_REACTION_LIFETIME", 2500*time.Millisecond),
			WebhookSecret:          getEnv("LIVE_WEBHOOK_SECRET", ""),
			MetricsNamespace:       getEnv("LIVE_METRICS_NAMESPACE", "live"),
		},
		Zego: ZegoConfig{
			AppID:        uint32(zegoAppID),
			ServerSecret: getEnv("ZEGO_SERVER_SECRET", ""),
		},
	}
	if cfg.Live.Store != "postgres" && cfg.Live.Store != "memory" {
		return nil, fmt.Errorf("LIVE_STORE must be postgres or memory, got %q", cfg.Live.Store)
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
