// ABOUTME: Chat backend client
// ABOUTME: Sends the user's message with the detected face emotion and returns the reply text
package chat

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

// DefaultBaseURL is where the local chat backend listens
const DefaultBaseURL = "http://localhost:5000"

var (
	// ErrNoMessage is returned when the message is blank
	ErrNoMessage = errors.New("chat: no message provided")

	// ErrNoEmotion is returned when the emotion label is blank
	ErrNoEmotion = errors.New("chat: no emotion provided")
)

// Config holds chat client configuration
type Config struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StatusError is a non-2xx response from the backend
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat: backend returned %d: %s", e.StatusCode, e.Body)
}

type chatRequest struct {
	Message string `json:"message"`
	Emotion string `json:"emotion"`
}

type chatResponse struct {
	Response string `json:"response"`
}

// Client talks to the chat backend
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger
}

// NewClient creates a chat client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  log.WithPrefix("chat"),
	}
}

// Reply sends message and emotion and returns the assistant's answer
func (c *Client) Reply(ctx context.Context, message, emotion string) (string, error) {
	message = strings.TrimSpace(message)
	emotion = strings.TrimSpace(emotion)
	if message == "" {
		return "", ErrNoMessage
	}
	if emotion == "" {
		return "", ErrNoEmotion
	}

	payload, err := json.Marshal(chatRequest{Message: message, Emotion: emotion})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	c.logger.Debug("Reply received", "emotion", emotion, "chars", len(out.Response), "took", time.Since(start).Round(time.Millisecond))
	return out.Response, nil
}
