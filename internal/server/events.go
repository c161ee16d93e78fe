// ABOUTME: WebSocket fan-out of session events
// ABOUTME: Every /events connection receives state transitions as JSON text frames
package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Event types
const (
	EventStart    = "start"
	EventState    = "state"
	EventEnd      = "end"
	EventCanceled = "canceled"
	EventError    = "error"
)

// watcherBuffer is how many events a slow watcher may fall behind
const watcherBuffer = 64

// Event is one message on /events
type Event struct {
	Type    string    `json:"type"`
	Session string    `json:"session"`
	From    string    `json:"from,omitempty"`
	To      string    `json:"to,omitempty"`
	Text    string    `json:"text,omitempty"`
	Error   string    `json:"error,omitempty"`
	Time    time.Time `json:"time"`
}

type watcher struct {
	conn *websocket.Conn
	send chan Event
}

func (s *Server) emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if s.config.OnEvent != nil {
		s.config.OnEvent(ev)
	}

	s.watchersMu.RLock()
	defer s.watchersMu.RUnlock()
	for w := range s.watchers {
		select {
		case w.send <- ev:
		default:
			s.logger.Warn("Dropping event for slow watcher", "remote", w.conn.RemoteAddr(), "type", ev.Type)
		}
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade error", "error", err)
		return
	}

	select {
	case <-s.stopChan:
		conn.Close()
		return
	default:
	}

	wt := &watcher{conn: conn, send: make(chan Event, watcherBuffer)}
	s.watchersMu.Lock()
	s.watchers[wt] = struct{}{}
	s.watchersMu.Unlock()
	s.logger.Debug("Event watcher connected", "remote", r.RemoteAddr)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.watcherWriter(wt)
	}()

	// Watchers only listen; reading surfaces the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("Watcher read error", "error", err)
			}
			break
		}
	}

	s.removeWatcher(wt)
	s.logger.Debug("Event watcher disconnected", "remote", r.RemoteAddr)
}

func (s *Server) removeWatcher(wt *watcher) {
	s.watchersMu.Lock()
	defer s.watchersMu.Unlock()
	if _, ok := s.watchers[wt]; !ok {
		return
	}
	delete(s.watchers, wt)
	close(wt.send)
}

// watcherWriter owns all writes to the connection
func (s *Server) watcherWriter(wt *watcher) {
	defer wt.conn.Close()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case ev, ok := <-wt.send:
			if !ok {
				return
			}
			wt.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := wt.conn.WriteJSON(ev); err != nil {
				s.logger.Debug("Error writing event", "error", err)
				return
			}
		case <-ticker.C:
			if err := wt.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

// closeWatchers disconnects every watcher; their read loops then clean up
func (s *Server) closeWatchers() {
	s.watchersMu.Lock()
	defer s.watchersMu.Unlock()
	for wt := range s.watchers {
		delete(s.watchers, wt)
		close(wt.send)
	}
}
