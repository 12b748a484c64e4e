package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTrackerConfigDefaults verifies the defaults used when no environment
// variables are set.
func TestTrackerConfigDefaults(t *testing.T) {
	cfg, err := NewTrackerConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, []string{"general", "random"}, cfg.DefaultChannels)
	assert.Equal(t, 0, cfg.MaxPeers)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

// TestTrackerConfigFromEnv verifies environment overrides.
func TestTrackerConfigFromEnv(t *testing.T) {
	t.Setenv("TRACKER_LISTEN", ":7070")
	t.Setenv("DEFAULT_CHANNELS", "lobby,dev,ops")
	t.Setenv("MAX_PEERS", "16")

	cfg, err := NewTrackerConfig()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.ListenAddr)
	assert.Equal(t, []string{"lobby", "dev", "ops"}, cfg.DefaultChannels)
	assert.Equal(t, 16, cfg.MaxPeers)
}

// TestPeerConfigDefaults verifies peer defaults including rate limiting.
func TestPeerConfigDefaults(t *testing.T) {
	cfg, err := NewPeerConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.TrackerURL)
	assert.Equal(t, int64(512), cfg.MaxMessageSize)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
	assert.Equal(t, time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
}

// TestSanitizeClampsInvalidValues verifies that nonsense values fall back to
// defaults rather than breaking the process.
func TestSanitizeClampsInvalidValues(t *testing.T) {
	cfg := &PeerConfig{
		MaxMessageSize: -1,
		Retention:      -5,
		RequestTimeout: -time.Second,
	}
	cfg.Sanitize()

	assert.Equal(t, int64(512), cfg.MaxMessageSize)
	assert.Equal(t, 0, cfg.Retention)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
}
