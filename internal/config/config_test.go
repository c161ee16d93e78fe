// ABOUTME: Tests for configuration loading
// ABOUTME: Covers defaults, YAML files, env overrides and validation
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenkiosk/kiosk-speaker/pkg/playback"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kiosk-speaker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, playback.DefaultWarmupThreshold, cfg.Playback.WarmupThreshold)
	assert.Equal(t, 4096, cfg.Playback.ChunkSize)
	assert.Equal(t, 1, cfg.Playback.DecodeWorkers)
	assert.Equal(t, 3, cfg.Playback.MaxDecodeFailures)
	assert.Equal(t, "mp3", cfg.Audio.Codec)
	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.Equal(t, 100, cfg.Audio.Volume)
	assert.Equal(t, "cgSgspJ2msm6clMCkdW9", cfg.TTS.VoiceID)
	assert.InDelta(t, 0.1, cfg.TTS.Stability, 1e-9)
	assert.InDelta(t, 0.3, cfg.TTS.SimilarityBoost, 1e-9)
	assert.Equal(t, 15*time.Second, cfg.TTS.Timeout)
	assert.Equal(t, "http://localhost:5000", cfg.Chat.BaseURL)
	assert.Equal(t, 8931, cfg.Server.Port)
	assert.True(t, cfg.Server.MDNS)
	assert.True(t, cfg.UI.Enabled)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
playback:
  warmup_threshold: 3
  decode_workers: 4
audio:
  codec: pcm
  sample_rate: 24000
tts:
  api_key: sk-test
  timeout: 2s
server:
  mdns: false
`)

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Playback.WarmupThreshold)
	assert.Equal(t, 4, cfg.Playback.DecodeWorkers)
	assert.Equal(t, "pcm", cfg.Audio.Codec)
	assert.Equal(t, 24000, cfg.Audio.SampleRate)
	assert.Equal(t, "sk-test", cfg.TTS.APIKey)
	assert.Equal(t, 2*time.Second, cfg.TTS.Timeout)
	assert.False(t, cfg.Server.MDNS)
	// untouched keys keep defaults
	assert.Equal(t, 4096, cfg.Playback.ChunkSize)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("KIOSK_TTS_API_KEY", "from-env")
	t.Setenv("KIOSK_PLAYBACK_WARMUP_THRESHOLD", "7")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.TTS.APIKey)
	assert.Equal(t, 7, cfg.Playback.WarmupThreshold)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero threshold", func(c *Config) { c.Playback.WarmupThreshold = 0 }},
		{"zero chunk", func(c *Config) { c.Playback.ChunkSize = 0 }},
		{"no workers", func(c *Config) { c.Playback.DecodeWorkers = 0 }},
		{"unknown codec", func(c *Config) { c.Audio.Codec = "aac" }},
		{"loud", func(c *Config) { c.Audio.Volume = 150 }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			cfg, err := Load(viper.New(), "")
			require.NoError(t, err)

			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSessionConfig(t *testing.T) {
	cfg := &Config{Playback: PlaybackConfig{
		WarmupThreshold:   2,
		ChunkSize:         512,
		DecodeWorkers:     3,
		MaxDecodeFailures: -1,
	}}

	sc := cfg.SessionConfig()
	assert.Equal(t, 2, sc.WarmupThreshold)
	assert.Equal(t, 512, sc.ChunkSize)
	assert.Equal(t, 3, sc.DecodeWorkers)
	assert.Equal(t, -1, sc.MaxConsecutiveDecodeFailures)
}

func TestServiceName(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Name: "lobby"}}
	assert.Equal(t, "lobby", cfg.ServiceName())

	cfg.Server.Name = ""
	assert.NotEmpty(t, cfg.ServiceName())
}
