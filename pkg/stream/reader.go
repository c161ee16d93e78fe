// ABOUTME: Chunk reader over an inbound byte stream
// ABOUTME: Turns an io.Reader such as an HTTP body into sequenced chunks
package stream

import (
	"context"
	"errors"
	"io"

	"github.com/zenkiosk/kiosk-speaker/pkg/audio"
)

// DefaultChunkSize is the read size used when none is configured
const DefaultChunkSize = 4096

// Reader pulls chunks from a byte stream. Chunk boundaries are whatever
// the underlying Read returns, capped at the chunk size. Next must not be
// called concurrently.
type Reader struct {
	r         io.Reader
	chunkSize int
	seq       uint64
	err       error // sticky terminal error
}

// NewReader wraps r
func NewReader(r io.Reader, chunkSize int) *Reader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Reader{r: r, chunkSize: chunkSize}
}

// Next returns the next chunk. It returns io.EOF, unwrapped, once the
// stream has ended, a *TransportError if the stream failed, or ctx's error
// if ctx is done. A Read blocked in the underlying reader is not
// interrupted by ctx; close the source to unblock it.
func (r *Reader) Next(ctx context.Context) (audio.Chunk, error) {
	if r.err != nil {
		return audio.Chunk{}, r.err
	}

	buf := make([]byte, r.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return audio.Chunk{}, err
		}

		n, err := r.r.Read(buf)
		if err != nil && ctx.Err() != nil {
			return audio.Chunk{}, ctx.Err()
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			r.err = io.EOF
		default:
			r.err = &TransportError{Err: err}
		}

		if n > 0 {
			chunk := audio.Chunk{Seq: r.seq, Data: buf[:n:n]}
			r.seq++
			return chunk, nil
		}
		if r.err != nil {
			return audio.Chunk{}, r.err
		}
		// (0, nil) is legal for io.Reader; try again
	}
}

// Count returns how many chunks have been delivered
func (r *Reader) Count() uint64 {
	return r.seq
}
