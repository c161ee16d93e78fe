// ABOUTME: Playback error types
// ABOUTME: Device rejections are fatal to the session
package playback

import (
	"errors"
	"fmt"
)

var (
	// ErrNotRunning is returned for events that arrive outside a running session
	ErrNotRunning = errors.New("playback session not running")

	// ErrSessionActive is returned by Run while another Run is in progress
	ErrSessionActive = errors.New("playback session already running")
)

// DeviceError reports an output device rejecting a buffer
type DeviceError struct {
	Seq uint64
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device rejected buffer %d: %v", e.Seq, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}
