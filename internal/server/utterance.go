// ABOUTME: Utterance lifecycle for the speaker server
// ABOUTME: Each /speak request replaces the running session with a new one
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zenkiosk/kiosk-speaker/pkg/playback"
)

// ErrShuttingDown is returned by Speak once Stop has been called
var ErrShuttingDown = errors.New("server is shutting down")

// utterance is one text turned into one playback session
type utterance struct {
	id      string
	text    string
	session *playback.Session
	cancel  context.CancelFunc
	done    chan struct{}

	mu  sync.Mutex
	err error
}

func (u *utterance) Err() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.err
}

func (u *utterance) setErr(err error) {
	u.mu.Lock()
	u.err = err
	u.mu.Unlock()
}

func (u *utterance) finished() bool {
	select {
	case <-u.done:
		return true
	default:
		return false
	}
}

// Speak cancels whatever is playing and starts text as a new session. It
// returns the new session id without waiting for playback.
func (s *Server) Speak(text string) (string, error) {
	s.speakMu.Lock()
	defer s.speakMu.Unlock()

	select {
	case <-s.stopChan:
		return "", ErrShuttingDown
	default:
	}

	s.cancelCurrent()

	decoder, err := s.config.NewDecoder()
	if err != nil {
		return "", fmt.Errorf("failed to create decoder: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	u := &utterance{
		id:     uuid.NewString(),
		text:   text,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	cfg := s.config.Session
	onState := cfg.OnStateChange
	cfg.OnStateChange = func(from, to playback.State) {
		s.emit(Event{Type: EventState, Session: u.id, From: from.String(), To: to.String()})
		if onState != nil {
			onState(from, to)
		}
	}
	u.session = playback.NewSession(cfg, s.device, decoder)

	s.mu.Lock()
	s.current = u
	s.mu.Unlock()

	s.logger.Info("Speaking", "session", u.id, "chars", len(text))
	s.emit(Event{Type: EventStart, Session: u.id, Text: text})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(u.done)
		defer decoder.Close()
		s.play(ctx, u)
	}()

	return u.id, nil
}

func (s *Server) play(ctx context.Context, u *utterance) {
	body, err := s.source.Stream(ctx, u.text)
	if err != nil {
		s.finish(u, err)
		return
	}
	defer body.Close()

	s.finish(u, u.session.Run(ctx, body))
}

func (s *Server) finish(u *utterance, err error) {
	switch {
	case err == nil:
		s.emit(Event{Type: EventEnd, Session: u.id})
	case errors.Is(err, context.Canceled):
		s.emit(Event{Type: EventCanceled, Session: u.id})
	default:
		u.setErr(err)
		s.logger.Error("Utterance failed", "session", u.id, "error", err)
		s.emit(Event{Type: EventError, Session: u.id, Error: err.Error()})
	}
}

// Cancel stops the current utterance. It reports whether one was running.
func (s *Server) Cancel() bool {
	s.speakMu.Lock()
	defer s.speakMu.Unlock()
	return s.cancelCurrent()
}

// cancelCurrent waits until the device is stopped and the session goroutine
// has exited. Callers hold speakMu or are shutting down.
func (s *Server) cancelCurrent() bool {
	s.mu.RLock()
	u := s.current
	s.mu.RUnlock()

	if u == nil || u.finished() {
		return false
	}

	start := time.Now()
	u.cancel()
	<-u.done
	s.logger.Debug("Canceled utterance", "session", u.id, "took", time.Since(start))
	return true
}
