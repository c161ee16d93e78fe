// ABOUTME: HTTP control surface for a kiosk speaker
// ABOUTME: Accepts utterances, cancels them, and streams state changes over WebSocket
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zenkiosk/kiosk-speaker/internal/discovery"
	"github.com/zenkiosk/kiosk-speaker/pkg/audio/decode"
	"github.com/zenkiosk/kiosk-speaker/pkg/audio/output"
	"github.com/zenkiosk/kiosk-speaker/pkg/playback"
)

// maxSpeakBody bounds a /speak request
const maxSpeakBody = 64 << 10

// Source opens an encoded audio stream for text
type Source interface {
	Stream(ctx context.Context, text string) (io.ReadCloser, error)
}

// Config holds server configuration
type Config struct {
	Port       int
	Name       string
	EnableMDNS bool

	// Session is the template for every utterance; callbacks are wrapped
	Session playback.Config

	// NewDecoder returns a fresh decoder per utterance
	NewDecoder func() (decode.Decoder, error)

	// OnEvent observes every event sent to /events watchers
	OnEvent func(Event)
}

// Server plays one utterance at a time on a shared device
type Server struct {
	config   Config
	source   Source
	device   output.Device
	serverID string

	upgrader   websocket.Upgrader
	httpServer *http.Server
	mux        *http.ServeMux

	current *utterance
	speakMu sync.Mutex // serializes replacing the current utterance
	mu      sync.RWMutex

	watchers   map[*watcher]struct{}
	watchersMu sync.RWMutex

	mdnsManager *discovery.Manager

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *log.Logger
}

type speakRequest struct {
	Text string `json:"text"`
}

type speakResponse struct {
	Session string `json:"session"`
}

// StatusResponse is the body of GET /status
type StatusResponse struct {
	ServerID  string `json:"server_id"`
	Session   string `json:"session,omitempty"`
	Text      string `json:"text,omitempty"`
	State     string `json:"state"`
	Received  int64  `json:"received"`
	Played    int64  `json:"played"`
	Dropped   int64  `json:"dropped"`
	Underruns int64  `json:"underruns"`
	Failed    int64  `json:"failed"`
	Queued    int    `json:"queued"`
	Error     string `json:"error,omitempty"`
}

// New creates a new server instance
func New(config Config, source Source, device output.Device) *Server {
	s := &Server{
		config:   config,
		source:   source,
		device:   device,
		serverID: uuid.New().String(),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			// Kiosk displays load from file:// or other local origins
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		watchers: make(map[*watcher]struct{}),
		stopChan: make(chan struct{}),
		logger:   log.WithPrefix("server"),
	}

	s.mux.HandleFunc("POST /speak", s.handleSpeak)
	s.mux.HandleFunc("POST /cancel", s.handleCancel)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("GET /events", s.handleEvents)

	return s
}

// Handler exposes the routes without starting a listener
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until Stop is called or the listener fails
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve is Start on an existing listener
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("Server starting", "name", s.config.Name, "id", s.serverID, "addr", ln.Addr())

	if s.config.EnableMDNS {
		port := s.config.Port
		if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
			port = tcp.Port
		}
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        port,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			s.logger.Warn("Failed to start mDNS advertisement", "error", err)
		}
	}

	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-s.stopChan:
		s.logger.Info("Server shutting down")
	case serverErr = <-errChan:
		s.logger.Error("HTTP server error", "error", serverErr)
		s.Stop()
	}

	// Speak refuses new work once stopChan is closed
	s.speakMu.Lock()
	s.cancelCurrent()
	s.speakMu.Unlock()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("HTTP server shutdown error", "error", err)
	}
	s.closeWatchers()

	s.wg.Wait()
	s.logger.Info("Server stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var req speakRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxSpeakBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	id, err := s.Speak(req.Text)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, speakResponse{Session: id})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if !s.Cancel() {
		writeError(w, http.StatusNotFound, "no active session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Status())
}

// Status reports on the current or most recent utterance
func (s *Server) Status() StatusResponse {
	resp := StatusResponse{ServerID: s.serverID, State: playback.Idle.String()}

	s.mu.RLock()
	u := s.current
	s.mu.RUnlock()
	if u == nil {
		return resp
	}

	st := u.session.Status()
	resp.Session = u.id
	resp.Text = u.text
	resp.State = st.State.String()
	resp.Received = st.Received
	resp.Played = st.Played
	resp.Dropped = st.Dropped
	resp.Underruns = st.Underruns
	resp.Failed = st.Failed
	resp.Queued = st.Queued
	if err := u.Err(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
