// ABOUTME: Error taxonomy for the inbound audio stream
// ABOUTME: Transport failures are fatal, decode failures are per chunk
package stream

import (
	"errors"
	"fmt"
)

// ErrTooManyDecodeFailures is returned when consecutive chunks keep failing
// to decode, which usually means the transport is delivering something
// other than audio.
var ErrTooManyDecodeFailures = errors.New("too many consecutive decode failures")

// TransportError wraps a failure reading the inbound stream
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError reports a chunk whose bytes did not form valid audio
type DecodeError struct {
	Seq uint64
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode chunk %d: %v", e.Seq, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
