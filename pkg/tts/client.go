// ABOUTME: ElevenLabs streaming text-to-speech client
// ABOUTME: Issues the synthesis request and hands back the live response body
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// DefaultBaseURL is the ElevenLabs API root
	DefaultBaseURL = "https://api.elevenlabs.io"

	// DefaultVoiceID is the kiosk's assistant voice
	DefaultVoiceID = "cgSgspJ2msm6clMCkdW9"
)

var (
	// ErrNoAPIKey is returned when no API key is configured
	ErrNoAPIKey = errors.New("tts: API key not set")

	// ErrEmptyText is returned for blank input
	ErrEmptyText = errors.New("tts: empty text")
)

// Config holds TTS client configuration
type Config struct {
	BaseURL         string  `mapstructure:"base_url"`
	APIKey          string  `mapstructure:"api_key"`
	VoiceID         string  `mapstructure:"voice_id"`
	ModelID         string  `mapstructure:"model_id"`
	Stability       float64 `mapstructure:"stability"`
	SimilarityBoost float64 `mapstructure:"similarity_boost"`

	// Timeout bounds connecting and receiving response headers. The body
	// is streamed and bounded only by the request context.
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns the kiosk's voice settings
func DefaultConfig() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		VoiceID:         DefaultVoiceID,
		Stability:       0.1,
		SimilarityBoost: 0.3,
		Timeout:         15 * time.Second,
	}
}

// APIError is a non-2xx response from the TTS service
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tts: API error %d: %s", e.StatusCode, e.Body)
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id,omitempty"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Client requests streamed speech
type Client struct {
	cfg    Config
	http   *http.Client
	logger *log.Logger
}

// NewClient creates a TTS client
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = def.VoiceID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Timeout

	return &Client{
		cfg:    cfg,
		http:   &http.Client{Transport: transport},
		logger: log.WithPrefix("tts"),
	}
}

// Stream posts text for synthesis and returns the response body, which
// delivers encoded audio as the service produces it. The caller closes it.
// Canceling ctx aborts the transfer.
func (c *Client) Stream(ctx context.Context, text string) (io.ReadCloser, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	payload, err := json.Marshal(synthesizeRequest{
		Text:    text,
		ModelID: c.cfg.ModelID,
		VoiceSettings: voiceSettings{
			Stability:       c.cfg.Stability,
			SimilarityBoost: c.cfg.SimilarityBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s/stream", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	c.logger.Debug("Speech stream opened", "voice", c.cfg.VoiceID, "chars", len(text), "ttfb", time.Since(start).Round(time.Millisecond))
	return resp.Body, nil
}
