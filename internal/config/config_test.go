package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.LoopInterval)
	assert.Equal(t, 3*24*time.Hour, cfg.ValueDelay)
	assert.Equal(t, 7*24*time.Hour, cfg.SocialProofDelay)
	assert.Equal(t, 15*24*time.Hour, cfg.BreakupDelay)
	assert.Equal(t, 2*24*time.Hour, cfg.BillingGrace)
	assert.Equal(t, 1, cfg.MinCallsPerDay)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	yaml := `
pipeline:
  loop_interval: 2m
  batch_size: 50
budget:
  spy_cost_per_call: 0.05
nurture:
  value_delay: 1h
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("PIPELINE_BATCH_SIZE", "7")
	t.Setenv("PUBLIC_BASE_URL", "https://ofertas.example.com/")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.LoopInterval)
	assert.Equal(t, 7, cfg.BatchSize, "env vence o arquivo")
	assert.InDelta(t, 0.05, cfg.SpyCostPerCall, 1e-9)
	assert.Equal(t, time.Hour, cfg.ValueDelay)
	assert.Equal(t, "https://ofertas.example.com", cfg.PublicBaseURL)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nao-existe.yaml"))
	assert.NoError(t, err)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("PIPELINE_INTERVAL", "0s")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_TrustProxy(t *testing.T) {
	t.Setenv("TRUST_PROXY", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.False(t, cfg.TrustProxy)

	t.Setenv("TRUST_PROXY", "true")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.True(t, cfg.TrustProxy)
}
