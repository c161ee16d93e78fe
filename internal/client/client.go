// ABOUTME: Client for a remote kiosk speaker's HTTP and WebSocket endpoints
// ABOUTME: Sends utterances and cancels, reads status, and follows /events
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/zenkiosk/kiosk-speaker/internal/server"
)

// ErrNothingPlaying is returned by Cancel when the speaker is idle
var ErrNothingPlaying = errors.New("speaker has no active session")

// Config holds client configuration
type Config struct {
	Addr    string // host:port
	Timeout time.Duration
}

// Client talks to one speaker
type Client struct {
	config Config
	http   *http.Client
	base   url.URL

	mu     sync.Mutex
	conn   *websocket.Conn
	logger *log.Logger
}

// StatusError is an unexpected response from the speaker
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("speaker returned %d: %s", e.StatusCode, e.Message)
}

// NewClient creates a new client
func NewClient(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &Client{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
		base:   url.URL{Scheme: "http", Host: config.Addr},
		logger: log.WithPrefix("client"),
	}
}

// Speak starts text on the speaker, replacing anything playing, and
// returns the new session id
func (c *Client) Speak(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", err
	}

	var out struct {
		Session string `json:"session"`
	}
	if err := c.do(ctx, http.MethodPost, "/speak", body, http.StatusAccepted, &out); err != nil {
		return "", err
	}
	return out.Session, nil
}

// Cancel stops the speaker's current session
func (c *Client) Cancel(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/cancel", nil, http.StatusNoContent, nil)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return ErrNothingPlaying
	}
	return err
}

// Status returns the speaker's current or most recent session
func (c *Client) Status(ctx context.Context) (server.StatusResponse, error) {
	var st server.StatusResponse
	err := c.do(ctx, http.MethodGet, "/status", nil, http.StatusOK, &st)
	return st, err
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, want int, out any) error {
	u := c.base
	u.Path = path

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		var msg struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&msg)
		return &StatusError{StatusCode: resp.StatusCode, Message: msg.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// Watch connects to /events and delivers events until ctx is done or the
// connection drops. The channel is closed when delivery stops.
func (c *Client) Watch(ctx context.Context) (<-chan server.Event, error) {
	u := c.base
	u.Scheme = "ws"
	u.Path = "/events"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.logger.Debug("Watching events", "url", u.String())

	events := make(chan server.Event, 16)

	go func() {
		<-ctx.Done()
		c.Close()
	}()

	go func() {
		defer close(events)
		defer c.Close()

		for {
			var ev server.Event
			if err := conn.ReadJSON(&ev); err != nil {
				if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.logger.Warn("Read error", "error", err)
				}
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

// Close drops the event connection, if any
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
