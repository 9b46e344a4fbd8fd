package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "secret")
	for _, k := range []string{"RATE_LIMIT", "PALETTE_SIZE", "AFK_TIMEOUT", "DISPUTE_WINDOW", "EVENT_RETENTION"} {
		t.Setenv(k, "")
	}

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 100, c.RateLimit)
	assert.Equal(t, 6, c.PaletteSize)
	assert.Equal(t, 5*time.Minute, c.AfkTimeout)
	assert.Equal(t, 2*time.Minute, c.DisputeWindow)
	assert.Equal(t, 720*time.Hour, c.EventRetention)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("AFK_TIMEOUT", "90s")
	t.Setenv("PALETTE_SIZE", "8")
	t.Setenv("ENGINE_ID", "engine-7")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, c.AfkTimeout)
	assert.Equal(t, 8, c.PaletteSize)
	assert.Equal(t, "engine-7", c.EngineID)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("DISPUTE_WINDOW", "soon")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DISPUTE_WINDOW", "")
	t.Setenv("JWT_SECRET_KEY", "")
	_, err = Load()
	assert.Error(t, err)
}
