package viewer

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v3"

	"github.com/aura-live/backend/pkg/response"
)

// ClientConfig is what a viewer needs before joining: layout breakpoint, reaction lifetime and ICE servers.
type ClientConfig struct {
	Breakpoint         int                `json:"viewport_breakpoint"`
	ReactionLifetimeMS int64              `json:"reaction_lifetime_ms"`
	ICEServers         []webrtc.ICEServer `json:"ice_servers"`
}

// NewClientConfig fills defaults for zero values.
func NewClientConfig(breakpoint int, lifetime time.Duration, ice []webrtc.ICEServer) ClientConfig {
	if breakpoint <= 0 {
		breakpoint = DefaultBreakpoint
	}
	if lifetime <= 0 {
		lifetime = DefaultReactionLifetime
	}
	if ice == nil {
		ice = []webrtc.ICEServer{}
	}
	return ClientConfig{Breakpoint: breakpoint, ReactionLifetimeMS: lifetime.Milliseconds(), ICEServers: ice}
}

// ConfigHandler serves GET /live/client-config.
func ConfigHandler(cfg ClientConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "public, max-age=60")
		response.OK(c, cfg)
	}
}
