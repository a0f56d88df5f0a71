package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("INTELLIGRADE_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.DatabaseDriver)
	require.Equal(t, "gemini", cfg.AIProvider)
	require.Equal(t, 1200, cfg.ImageMaxWidth)
	require.Equal(t, 70, cfg.ImageQuality)
	require.Equal(t, 24*time.Hour, cfg.JWTTTL)
	require.Equal(t, 2*time.Hour, cfg.PreviewTTL)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.True(t, cfg.SeedOnStartup)
	require.True(t, cfg.SeedSamples)
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("INTELLIGRADE_JWT_SECRET", "secret")
	t.Setenv("INTELLIGRADE_DATABASE_DRIVER", "POSTGRES")
	t.Setenv("INTELLIGRADE_AI_PROVIDER", "openai")
	t.Setenv("INTELLIGRADE_IMAGE_QUALITY", "150")
	t.Setenv("INTELLIGRADE_GRADING_CONCURRENCY", "8")
	t.Setenv("INTELLIGRADE_APP_PORT", ":9000")
	t.Setenv("INTELLIGRADE_SEED_SAMPLES", "false")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.DatabaseDriver)
	require.Equal(t, "openai", cfg.AIProvider)
	require.Equal(t, 70, cfg.ImageQuality)
	require.Equal(t, 8, cfg.GradingConcurrency)
	require.Equal(t, ":9000", cfg.HTTPAddress())
	require.False(t, cfg.SeedSamples)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("INTELLIGRADE_JWT_SECRET", "")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("INTELLIGRADE_JWT_SECRET", "secret")
	t.Setenv("INTELLIGRADE_DATABASE_DRIVER", "mysql")
	_, err = Load()
	require.ErrorContains(t, err, "unsupported database driver")

	t.Setenv("INTELLIGRADE_DATABASE_DRIVER", "sqlite")
	t.Setenv("INTELLIGRADE_PREVIEW_TTL", "soon")
	_, err = Load()
	require.ErrorContains(t, err, "invalid preview ttl")
}
