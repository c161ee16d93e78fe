// ABOUTME: Viper-backed configuration for kiosk-speaker
// ABOUTME: Merges defaults, an optional YAML file, KIOSK_* env vars and bound flags
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/zenkiosk/kiosk-speaker/internal/version"
	"github.com/zenkiosk/kiosk-speaker/pkg/audio"
	"github.com/zenkiosk/kiosk-speaker/pkg/chat"
	"github.com/zenkiosk/kiosk-speaker/pkg/playback"
	"github.com/zenkiosk/kiosk-speaker/pkg/stream"
	"github.com/zenkiosk/kiosk-speaker/pkg/tts"
)

// EnvPrefix prefixes every environment override, e.g. KIOSK_TTS_API_KEY
const EnvPrefix = "KIOSK"

// Config is the full application configuration
type Config struct {
	Playback PlaybackConfig `mapstructure:"playback"`
	Audio    AudioConfig    `mapstructure:"audio"`
	TTS      tts.Config     `mapstructure:"tts"`
	Chat     chat.Config    `mapstructure:"chat"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	UI       UIConfig       `mapstructure:"ui"`
}

type PlaybackConfig struct {
	WarmupThreshold   int `mapstructure:"warmup_threshold"`
	ChunkSize         int `mapstructure:"chunk_size"`
	DecodeWorkers     int `mapstructure:"decode_workers"`
	MaxDecodeFailures int `mapstructure:"max_decode_failures"`
}

// AudioConfig describes the inbound encoding and the output device
type AudioConfig struct {
	Codec      string `mapstructure:"codec"`
	SampleRate int    `mapstructure:"sample_rate"`
	Channels   int    `mapstructure:"channels"`
	BitDepth   int    `mapstructure:"bit_depth"`

	DeviceSampleRate int `mapstructure:"device_sample_rate"`
	DeviceChannels   int `mapstructure:"device_channels"`
	Volume           int `mapstructure:"volume"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Name string `mapstructure:"name"`
	MDNS bool   `mapstructure:"mdns"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type UIConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// SetDefaults registers every key so env overrides reach Unmarshal
func SetDefaults(v *viper.Viper) {
	v.SetDefault("playback.warmup_threshold", playback.DefaultWarmupThreshold)
	v.SetDefault("playback.chunk_size", stream.DefaultChunkSize)
	v.SetDefault("playback.decode_workers", 1)
	v.SetDefault("playback.max_decode_failures", 3)

	v.SetDefault("audio.codec", "mp3")
	v.SetDefault("audio.sample_rate", 44100)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("audio.bit_depth", 16)
	v.SetDefault("audio.device_sample_rate", 44100)
	v.SetDefault("audio.device_channels", 2)
	v.SetDefault("audio.volume", 100)

	ttsDefaults := tts.DefaultConfig()
	v.SetDefault("tts.base_url", ttsDefaults.BaseURL)
	v.SetDefault("tts.api_key", "")
	v.SetDefault("tts.voice_id", ttsDefaults.VoiceID)
	v.SetDefault("tts.model_id", "")
	v.SetDefault("tts.stability", ttsDefaults.Stability)
	v.SetDefault("tts.similarity_boost", ttsDefaults.SimilarityBoost)
	v.SetDefault("tts.timeout", ttsDefaults.Timeout)

	v.SetDefault("chat.base_url", chat.DefaultBaseURL)
	v.SetDefault("chat.timeout", 30*time.Second)

	v.SetDefault("server.port", 8931)
	v.SetDefault("server.name", "")
	v.SetDefault("server.mdns", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("ui.enabled", true)
}

// Load reads configuration into v. An explicit path must exist; without
// one the user config dir and the working directory are searched and a
// missing file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, version.Product))
		}
		v.AddConfigPath(".")
		v.SetConfigName(version.Product)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component can work with
func (c *Config) Validate() error {
	if c.Playback.WarmupThreshold < 1 {
		return fmt.Errorf("playback.warmup_threshold must be at least 1, got %d", c.Playback.WarmupThreshold)
	}
	if c.Playback.ChunkSize < 1 {
		return fmt.Errorf("playback.chunk_size must be positive, got %d", c.Playback.ChunkSize)
	}
	if c.Playback.DecodeWorkers < 1 {
		return fmt.Errorf("playback.decode_workers must be at least 1, got %d", c.Playback.DecodeWorkers)
	}
	switch c.Audio.Codec {
	case "pcm", "mp3", "opus", "ogg-opus", "flac":
	default:
		return fmt.Errorf("audio.codec %q is not one of pcm, mp3, opus, ogg-opus, flac", c.Audio.Codec)
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 100 {
		return fmt.Errorf("audio.volume must be 0-100, got %d", c.Audio.Volume)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// Format is the inbound stream encoding
func (c *Config) Format() audio.Format {
	return audio.Format{
		Codec:      c.Audio.Codec,
		SampleRate: c.Audio.SampleRate,
		Channels:   c.Audio.Channels,
		BitDepth:   c.Audio.BitDepth,
	}
}

// SessionConfig maps playback settings onto a session config; callbacks
// are left for the caller to attach
func (c *Config) SessionConfig() playback.Config {
	pc := playback.DefaultConfig()
	pc.WarmupThreshold = c.Playback.WarmupThreshold
	pc.ChunkSize = c.Playback.ChunkSize
	pc.DecodeWorkers = c.Playback.DecodeWorkers
	pc.MaxConsecutiveDecodeFailures = c.Playback.MaxDecodeFailures
	return pc
}

// ServiceName is the mDNS instance name, defaulting to the host name
func (c *Config) ServiceName() string {
	if c.Server.Name != "" {
		return c.Server.Name
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return version.Product
	}
	return host
}
