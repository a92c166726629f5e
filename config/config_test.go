package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setLiveEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Live.Store != "postgres" {
		t.Fatalf("Live.Store = %q, want postgres", cfg.Live.Store)
	}
	if cfg.Live.CredentialTTL != 10*time.Minute {
		t.Fatalf("CredentialTTL = %v, want 10m", cfg.Live.CredentialTTL)
	}
	if cfg.Live.ViewportBreakpoint != 1024 {
		t.Fatalf("ViewportBreakpoint = %d, want 1024", cfg.Live.ViewportBreakpoint)
	}
	if cfg.Redis.Addr != "" {
		t.Fatalf("Redis.Addr = %q, want empty default", cfg.Redis.Addr)
	}
	if len(cfg.WebRTC.ICEUrls) != 1 {
		t.Fatalf("ICEUrls = %v, want one default STUN url", cfg.WebRTC.ICEUrls)
	}
}

func TestLoadParsesDurationsInSecondsOrGoSyntax(t *testing.T) {
	setLiveEnvEmpty(t)
	t.Setenv("LIVE_CREDENTIAL_TTL", "90")
	t.Setenv("LIVE_CHANNEL_LIVENESS_TIMEOUT", "45s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Live.CredentialTTL != 90*time.Second {
		t.Fatalf("CredentialTTL = %v, want 90s", cfg.Live.CredentialTTL)
	}
	if cfg.Live.ChannelLivenessTimeout != 45*time.Second {
		t.Fatalf("ChannelLivenessTimeout = %v, want 45s", cfg.Live.ChannelLivenessTimeout)
	}
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	setLiveEnvEmpty(t)
	t.Setenv("LIVE_STORE", "cassandra")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() error = nil, want error for unknown store")
	}
}

func TestDSNPrefersURL(t *testing.T) {
	c := DatabaseConfig{URL: "postgres://x/y", Host: "ignored"}
	if c.DSN() != "postgres://x/y" {
		t.Fatalf("DSN() = %q", c.DSN())
	}
	c = DatabaseConfig{User: "u", Password: "p", Host: "h", Port: "5432", DBName: "live", SSLMode: "disable"}
	if got := c.DSN(); got != "postgres://u:p@h:5432/live?sslmode=disable" {
		t.Fatalf("DSN() = %q", got)
	}
}

func setLiveEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"REDIS_ADDR",
		"DATABASE_URL",
		"ZEGO_APP_ID",
		"ZEGO_SERVER_SECRET",
		"WEBRTC_ICE_URLS",
		"LIVE_STORE",
		"LIVE_CREDENTIAL_PROVIDER",
		"LIVE_CREDENTIAL_SECRET",
		"LIVE_CREDENTIAL_TTL",
		"LIVE_CHANNEL_LIVENESS_TIMEOUT",
		"LIVE_REAPER_INTERVAL",
		"LIVE_VIEWPORT_BREAKPOINT",
		"LIVE_REACTION_LIFETIME",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
