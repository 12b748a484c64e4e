// Package config provides environment-driven runtime configuration for the
// tracker and peer processes, with sensible defaults and sanitization.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// RateLimitConfig defines the parameters for per-connection message rate
// limiting on the peer's websocket notifier.
type RateLimitConfig struct {
	Burst          int           `env:"RATE_LIMIT_BURST" envDefault:"5"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"1s"`
}

// TrackerConfig holds the tracker process settings.
type TrackerConfig struct {
	ListenAddr      string        `env:"TRACKER_LISTEN" envDefault:":8080"`
	DatabasePath    string        `env:"TRACKER_DB_PATH" envDefault:"peerchat.db"`
	DefaultChannels []string      `env:"DEFAULT_CHANNELS" envSeparator:"," envDefault:"general,random"`
	MaxPeers        int           `env:"MAX_PEERS" envDefault:"0"`
	Retention       int           `env:"CHANNEL_RETENTION" envDefault:"0"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// PeerConfig holds the peer process settings.
type PeerConfig struct {
	ListenAddr      string        `env:"PEER_LISTEN" envDefault:":9000"`
	AdvertiseAddr   string        `env:"PEER_ADVERTISE" envDefault:"127.0.0.1:9000"`
	TrackerURL      string        `env:"TRACKER_URL" envDefault:"http://127.0.0.1:8080"`
	Username        string        `env:"PEER_USERNAME" envDefault:""`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:9000"`
	MaxMessageSize  int64         `env:"MAX_MESSAGE_SIZE" envDefault:"512"`
	Retention       int           `env:"INBOX_RETENTION" envDefault:"0"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RateLimit       RateLimitConfig
}

// NewTrackerConfig returns a tracker configuration populated from the
// environment, falling back to defaults for unset variables.
func NewTrackerConfig() (*TrackerConfig, error) {
	cfg := &TrackerConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse tracker config: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}

// NewPeerConfig returns a peer configuration populated from the environment,
// falling back to defaults for unset variables.
func NewPeerConfig() (*PeerConfig, error) {
	cfg := &PeerConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse peer config: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}

// Sanitize clamps out-of-range tracker values back to their defaults.
func (c *TrackerConfig) Sanitize() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "peerchat.db"
	}
	if c.MaxPeers < 0 {
		c.MaxPeers = 0
	}
	if c.Retention < 0 {
		c.Retention = 0
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// Sanitize clamps out-of-range peer values back to their defaults.
func (c *PeerConfig) Sanitize() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":9000"
	}
	if c.TrackerURL == "" {
		c.TrackerURL = "http://127.0.0.1:8080"
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 512
	}
	if c.Retention < 0 {
		c.Retention = 0
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 5 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 5
	}
	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = time.Second
	}
}
