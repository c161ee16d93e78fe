// ABOUTME: Decode stage between the chunk reader and the playback queue
// ABOUTME: Decodes chunks concurrently and releases buffers in arrival order
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/zenkiosk/kiosk-speaker/pkg/audio"
	"github.com/zenkiosk/kiosk-speaker/pkg/audio/decode"
)

// DecodeConfig tunes the decode stage
type DecodeConfig struct {
	// Workers is how many chunks may decode at once. It also bounds the
	// reorder window, so at most Workers chunks are held between the
	// reader and the queue. A decode.StreamDecoder always runs with one.
	Workers int

	// MaxConsecutiveFailures is how many chunks in a row may fail before the
	// stage gives up with ErrTooManyDecodeFailures. Zero gives up on the
	// first failure; negative never gives up.
	MaxConsecutiveFailures int

	// OnError is called, in arrival order, for every dropped chunk
	OnError func(*DecodeError)
}

// DefaultDecodeConfig returns a serialized stage tolerating 3 failures in a row
func DefaultDecodeConfig() DecodeConfig {
	return DecodeConfig{
		Workers:                1,
		MaxConsecutiveFailures: 3,
	}
}

// DecodeStats tracks decode outcomes. Held counts chunks a stream decoder
// kept without completing any audio.
type DecodeStats struct {
	Decoded int64
	Failed  int64
	Held    int64
}

// DecodeStage owns the decoder for one session
type DecodeStage struct {
	decoder decode.Decoder
	cfg     DecodeConfig
	logger  *log.Logger

	decoded     atomic.Int64
	failed      atomic.Int64
	held        atomic.Int64
	consecutive int
}

type decodeResult struct {
	ord uint64
	buf audio.Buffer
	err error
}

// NewDecodeStage wraps decoder
func NewDecodeStage(decoder decode.Decoder, cfg DecodeConfig) *DecodeStage {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if _, ok := decoder.(decode.StreamDecoder); ok {
		cfg.Workers = 1
	}
	return &DecodeStage{
		decoder: decoder,
		cfg:     cfg,
		logger:  log.WithPrefix("decode"),
	}
}

// Decode converts one chunk, stamping the buffer with the chunk's Seq.
// Failures come back as *DecodeError.
func (s *DecodeStage) Decode(chunk audio.Chunk) (audio.Buffer, error) {
	buf, err := s.decoder.Decode(chunk.Data)
	if err != nil {
		return audio.Buffer{}, &DecodeError{Seq: chunk.Seq, Err: err}
	}
	buf.Seq = chunk.Seq
	return buf, nil
}

// Run decodes chunks from in and sends buffers to out in the order the
// chunks were received. Undecodable chunks are dropped. Run closes out when
// it returns: nil after in is closed and drained, otherwise the error that
// stopped it. A stream decoder is reset first, so each Run starts a new
// stream.
func (s *DecodeStage) Run(ctx context.Context, in <-chan audio.Chunk, out chan<- audio.Buffer) error {
	defer close(out)

	if sd, ok := s.decoder.(decode.StreamDecoder); ok {
		if err := sd.Reset(); err != nil {
			return fmt.Errorf("reset decoder: %w", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	// Slots are released on emission, so decoded-but-unsent results never
	// exceed Workers and sends on results cannot block.
	slots := make(chan struct{}, s.cfg.Workers)
	results := make(chan decodeResult, s.cfg.Workers)

	g.Go(func() error {
		var wg sync.WaitGroup
		defer close(results)
		defer wg.Wait()

		var ord uint64
		for {
			var chunk audio.Chunk
			var ok bool
			select {
			case <-ctx.Done():
				return ctx.Err()
			case chunk, ok = <-in:
			}
			if !ok {
				return nil
			}

			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}

			wg.Add(1)
			go func(ord uint64, chunk audio.Chunk) {
				defer wg.Done()
				buf, err := s.Decode(chunk)
				results <- decodeResult{ord: ord, buf: buf, err: err}
			}(ord, chunk)
			ord++
		}
	})

	g.Go(func() error {
		pending := make(map[uint64]decodeResult)
		var next uint64
		for res := range results {
			pending[res.ord] = res
			for {
				r, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				next++
				<-slots
				if err := s.emit(ctx, r, out); err != nil {
					return err
				}
			}
		}
		return nil
	})

	return g.Wait()
}

func (s *DecodeStage) emit(ctx context.Context, r decodeResult, out chan<- audio.Buffer) error {
	if errors.Is(r.err, decode.ErrNeedMoreData) {
		s.held.Add(1)
		return nil
	}

	if r.err != nil {
		s.failed.Add(1)
		s.consecutive++

		derr, _ := r.err.(*DecodeError)
		s.logger.Warn("Dropping undecodable chunk", "seq", derr.Seq, "error", derr.Err, "consecutive", s.consecutive)
		if s.cfg.OnError != nil {
			s.cfg.OnError(derr)
		}

		if s.cfg.MaxConsecutiveFailures >= 0 && s.consecutive > s.cfg.MaxConsecutiveFailures {
			return fmt.Errorf("%w: %d in a row, last %w", ErrTooManyDecodeFailures, s.consecutive, derr)
		}
		return nil
	}

	s.consecutive = 0
	s.decoded.Add(1)
	select {
	case out <- r.buf:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns decode counters
func (s *DecodeStage) Stats() DecodeStats {
	return DecodeStats{
		Decoded: s.decoded.Load(),
		Failed:  s.failed.Load(),
		Held:    s.held.Load(),
	}
}
