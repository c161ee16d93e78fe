// ABOUTME: Chunk feed for decoders that parse a continuous stream
// ABOUTME: Runs a library's streaming parser on its own goroutine, one chunk at a time
package decode

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/zenkiosk/kiosk-speaker/pkg/audio"
)

// ErrNeedMoreData is returned when a chunk was accepted but did not
// complete a frame. It is not a decode failure; the bytes are kept and
// the audio comes out with a later chunk.
var ErrNeedMoreData = errors.New("chunk did not complete a frame")

// ErrDecoderClosed is returned by Decode after Close
var ErrDecoderClosed = errors.New("decoder closed")

// StreamDecoder is a Decoder that carries bytes or codec state from one
// chunk to the next. Its chunks must arrive one at a time in stream order,
// and Reset must be called before it is handed a new stream.
type StreamDecoder interface {
	Decoder

	// Reset drops all state so the next chunk starts a new stream
	Reset() error
}

// parseFunc runs a streaming parser over r until it ends, handing every
// decoded block of samples to emit. It returns nil or io.EOF when r runs out.
type parseFunc func(r io.Reader, emit func(audio.Format, []int32)) error

// feed pushes chunks into a parser running on its own goroutine. Decode
// appends a chunk, then waits until the parser has either consumed every
// byte and asked for more, or stopped. Whatever the parser emitted by then
// becomes the chunk's buffer.
type feed struct {
	parse parseFunc
	// stall bounds the bytes that may go in without producing audio, once
	// audio has started, before Decode reports a failure. Zero disables it.
	stall int

	mu      sync.Mutex
	cond    *sync.Cond
	buf     []byte
	pushed  uint64
	starved uint64
	closed  bool
	started bool
	done    bool
	err     error
	exited  chan struct{}

	format  audio.Format
	samples []int32
	audible bool
	silent  int
}

func newFeed(parse parseFunc, stall int) *feed {
	f := &feed{parse: parse, stall: stall}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Read is called by the parser goroutine. It blocks while the feed is empty.
func (f *feed) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for len(f.buf) == 0 {
		if f.closed {
			return 0, io.EOF
		}
		f.starved = f.pushed
		f.cond.Broadcast()
		f.cond.Wait()
	}

	n := copy(p, f.buf)
	f.buf = f.buf[n:]
	if len(f.buf) == 0 {
		f.buf = nil
	}
	return n, nil
}

func (f *feed) emit(format audio.Format, samples []int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.format = format
	f.samples = append(f.samples, samples...)
}

func (f *feed) run() {
	defer close(f.exited)

	var err error
	func() {
		// Parsers see network bytes; a panic ends this stream only
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("parser panic: %v", r)
			}
		}()
		err = f.parse(f, f.emit)
	}()
	if errors.Is(err, io.EOF) {
		err = nil
	}

	f.mu.Lock()
	f.done = true
	f.err = err
	f.cond.Broadcast()
	f.mu.Unlock()
}

// decode pushes data and returns the audio it completed
func (f *feed) decode(data []byte) (audio.Buffer, error) {
	if len(data) == 0 {
		return audio.Buffer{}, ErrEmptyChunk
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return audio.Buffer{}, ErrDecoderClosed
	}
	if f.done {
		return audio.Buffer{}, f.stopped()
	}
	if !f.started {
		f.started = true
		f.exited = make(chan struct{})
		go f.run()
	}

	f.buf = append(f.buf, data...)
	f.pushed++
	gen := f.pushed
	f.cond.Broadcast()
	for f.starved < gen && !f.done {
		f.cond.Wait()
	}

	samples := f.samples
	f.samples = nil
	if len(samples) > 0 {
		f.audible = true
		f.silent = 0
		return audio.Buffer{Samples: samples, Format: f.format}, nil
	}

	if f.done {
		return audio.Buffer{}, f.stopped()
	}
	if f.audible {
		f.silent += len(data)
	}
	if f.stall > 0 && f.silent > f.stall {
		return audio.Buffer{}, fmt.Errorf("no audio in the last %d bytes", f.silent)
	}
	return audio.Buffer{}, ErrNeedMoreData
}

func (f *feed) stopped() error {
	if f.err != nil {
		return fmt.Errorf("stream decoder stopped: %w", f.err)
	}
	return errors.New("stream decoder stopped: stream ended")
}

// close stops the parser and waits for it to exit
func (f *feed) close() {
	f.mu.Lock()
	f.closed = true
	f.cond.Broadcast()
	exited := f.exited
	f.mu.Unlock()

	if exited != nil {
		<-exited
	}
}
