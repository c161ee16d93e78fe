// ABOUTME: Silent output device for dry runs and tests
// ABOUTME: Discards audio and reports completion after the buffer's (scaled) duration
package output

import (
	"sync"
	"time"

	"github.com/zenkiosk/kiosk-speaker/pkg/audio"
)

// Null discards audio. Each buffer completes after its duration multiplied
// by Speed; a Speed of 0 completes as soon as possible.
type Null struct {
	Speed float64

	mu     sync.Mutex
	timer  *time.Timer
	gen    uint64
	busy   bool
	closed bool
	played int
}

// NewNull creates a silent device running at real time scaled by speed
func NewNull(speed float64) *Null {
	return &Null{Speed: speed}
}

// Play schedules done after the buffer's scaled duration
func (n *Null) Play(buf audio.Buffer, done func()) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrClosed
	}
	if n.busy {
		return ErrBusy
	}

	n.busy = true
	n.played++
	gen := n.gen
	wait := time.Duration(float64(buf.Duration()) * n.Speed)
	n.timer = time.AfterFunc(wait, func() {
		n.mu.Lock()
		if n.gen != gen || !n.busy {
			n.mu.Unlock()
			return
		}
		n.busy = false
		n.mu.Unlock()
		done()
	})
	return nil
}

// Stop cancels the pending completion
func (n *Null) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelLocked()
	return nil
}

// Close stops the device and rejects further plays
func (n *Null) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelLocked()
	n.closed = true
	return nil
}

// Played returns how many buffers were accepted
func (n *Null) Played() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.played
}

func (n *Null) cancelLocked() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.busy = false
	n.gen++
}
