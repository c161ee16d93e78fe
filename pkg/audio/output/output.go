// ABOUTME: Audio output device interface definition
// ABOUTME: One buffer in flight at a time with a completion callback
package output

import (
	"errors"

	"github.com/zenkiosk/kiosk-speaker/pkg/audio"
)

var (
	// ErrBusy is returned when Play is called while a buffer is still playing
	ErrBusy = errors.New("output busy: a buffer is already playing")

	// ErrClosed is returned by Play after Close
	ErrClosed = errors.New("output closed")
)

// Device is an audio sink that accepts one buffer at a time.
//
// Play hands buf to the device and returns without waiting for it to be
// heard. done is called exactly once, from a device goroutine, when the
// buffer has been consumed, unless Stop or Close is called first, in which
// case done is never called. done must not block.
type Device interface {
	Play(buf audio.Buffer, done func()) error

	// Stop silences the device and drops the buffer in flight
	Stop() error

	Close() error
}
