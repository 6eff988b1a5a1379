package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 75.0, cfg.DefaultThreshold)
	assert.Equal(t, 5.0, cfg.SafetyBuffer)
	assert.True(t, cfg.CountUnverified)
	assert.Equal(t, "0 8 * * *", cfg.ReminderSchedule)
	assert.Equal(t, 15*time.Minute, cfg.ReportWindow)
	assert.False(t, cfg.Production())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("DEFAULT_THRESHOLD", "80.5")
	t.Setenv("SAFETY_BUFFER", "0")
	t.Setenv("COUNT_UNVERIFIED", "false")
	t.Setenv("REPORT_LIMIT", "9")
	t.Setenv("ACCESS_TTL", "2h")

	cfg := Load()

	assert.True(t, cfg.Production())
	assert.Equal(t, 80.5, cfg.DefaultThreshold)
	assert.Equal(t, 0.0, cfg.SafetyBuffer)
	assert.False(t, cfg.CountUnverified)
	assert.Equal(t, 9, cfg.ReportLimit)
	assert.Equal(t, 2*time.Hour, cfg.AccessTTL)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("DEFAULT_THRESHOLD", "lots")
	t.Setenv("COUNT_UNVERIFIED", "maybe")
	t.Setenv("REPORT_WINDOW", "soon")

	cfg := Load()

	assert.Equal(t, 75.0, cfg.DefaultThreshold)
	assert.True(t, cfg.CountUnverified)
	assert.Equal(t, 15*time.Minute, cfg.ReportWindow)
}
