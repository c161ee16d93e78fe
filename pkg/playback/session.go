// ABOUTME: Playback session wiring reader, decode stage, scheduler and device
// ABOUTME: One goroutine owns the scheduler; producers and the device talk to it over channels
package playback

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/zenkiosk/kiosk-speaker/pkg/audio"
	"github.com/zenkiosk/kiosk-speaker/pkg/audio/decode"
	"github.com/zenkiosk/kiosk-speaker/pkg/audio/output"
	"github.com/zenkiosk/kiosk-speaker/pkg/stream"
)

// Config holds session configuration
type Config struct {
	// WarmupThreshold is the buffer count collected before the first play (default: 5)
	WarmupThreshold int

	// ChunkSize is the largest read from the inbound stream (default: 4096)
	ChunkSize int

	// DecodeWorkers is how many chunks may decode concurrently (default: 1)
	DecodeWorkers int

	// MaxConsecutiveDecodeFailures ends the session when exceeded (default: 3).
	// Zero ends it on the first failure; negative never ends it.
	MaxConsecutiveDecodeFailures int

	// OnStateChange is called on every scheduler transition. It runs on the
	// session goroutine and must not block.
	OnStateChange func(from, to State)

	// OnPlay is called when a buffer is submitted to the device
	OnPlay func(buf audio.Buffer)

	// OnDecodeError is called, from a decode goroutine, for every dropped chunk
	OnDecodeError func(*stream.DecodeError)

	// OnError is called when a session ends with a fatal error
	OnError func(error)
}

// DefaultConfig returns the default session configuration
func DefaultConfig() Config {
	return Config{
		WarmupThreshold:              DefaultWarmupThreshold,
		ChunkSize:                    stream.DefaultChunkSize,
		DecodeWorkers:                1,
		MaxConsecutiveDecodeFailures: 3,
	}
}

// Status is a snapshot of the current or last session
type Status struct {
	State     State
	Received  int64
	Played    int64
	Dropped   int64
	Underruns int64
	Decoded   int64
	Failed    int64
	Queued    int
	Started   time.Time
	Err       error
}

// Session plays inbound audio streams on a device, one at a time
type Session struct {
	cfg     Config
	device  output.Device
	decoder decode.Decoder
	logger  *log.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	aborted chan struct{}
	status  Status
}

// NewSession creates a session runner for device and decoder
func NewSession(cfg Config, device output.Device, decoder decode.Decoder) *Session {
	def := DefaultConfig()
	if cfg.WarmupThreshold <= 0 {
		cfg.WarmupThreshold = def.WarmupThreshold
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.DecodeWorkers <= 0 {
		cfg.DecodeWorkers = def.DecodeWorkers
	}

	return &Session{
		cfg:     cfg,
		device:  device,
		decoder: decoder,
		logger:  log.WithPrefix("session"),
	}
}

// Status returns a snapshot of the current or most recent session
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Cancel aborts the running session, if any. It returns once the device
// has been stopped and the queue discarded; Run then returns
// context.Canceled.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel, aborted := s.cancel, s.aborted
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-aborted
}

// Run plays body to completion. It returns nil once every decoded buffer
// has played, context.Canceled after Cancel, or the fatal error that ended
// the session: *stream.TransportError, *DeviceError or
// stream.ErrTooManyDecodeFailures. If body is an io.Closer it is closed
// when the session is aborted, to unblock a pending read.
func (s *Session) Run(ctx context.Context, body io.Reader) error {
	runCtx, cancel := context.WithCancel(ctx)
	aborted := make(chan struct{})

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		cancel()
		return ErrSessionActive
	}
	s.running = true
	s.cancel = cancel
	s.aborted = aborted
	s.status = Status{State: Idle, Started: time.Now()}
	s.mu.Unlock()

	var abortOnce sync.Once
	markAborted := func() { abortOnce.Do(func() { close(aborted) }) }

	defer func() {
		markAborted()
		cancel()
		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.mu.Unlock()
	}()

	err := s.run(runCtx, body, markAborted)

	s.mu.Lock()
	s.status.Err = err
	status := s.status
	s.mu.Unlock()

	switch {
	case err == nil:
		s.logger.Info("Session finished", "played", status.Played, "dropped_chunks", status.Failed, "took", time.Since(status.Started).Round(time.Millisecond))
	case errors.Is(err, context.Canceled):
		s.logger.Info("Session canceled", "played", status.Played, "discarded", status.Dropped)
	default:
		s.logger.Error("Session failed", "error", err)
		if s.cfg.OnError != nil {
			s.cfg.OnError(err)
		}
	}
	return err
}

func (s *Session) run(ctx context.Context, body io.Reader, markAborted func()) error {
	var closeOnce sync.Once
	closeBody := func() {
		if c, ok := body.(io.Closer); ok {
			closeOnce.Do(func() { c.Close() })
		}
	}

	// Capacity 1: the device has at most one buffer outstanding
	finished := make(chan uint64, 1)

	sched := NewScheduler(s.device, SchedulerConfig{
		WarmupThreshold: s.cfg.WarmupThreshold,
		OnStateChange: func(from, to State) {
			s.mu.Lock()
			s.status.State = to
			s.mu.Unlock()
			if s.cfg.OnStateChange != nil {
				s.cfg.OnStateChange(from, to)
			}
		},
		OnPlay: s.cfg.OnPlay,
		OnDone: func(seq uint64) {
			select {
			case finished <- seq:
			default:
				s.logger.Warn("Dropped stale completion", "seq", seq)
			}
		},
	})

	stage := stream.NewDecodeStage(s.decoder, stream.DecodeConfig{
		Workers:                s.cfg.DecodeWorkers,
		MaxConsecutiveFailures: s.cfg.MaxConsecutiveDecodeFailures,
		OnError:                s.cfg.OnDecodeError,
	})
	reader := stream.NewReader(body, s.cfg.ChunkSize)

	g, gctx := errgroup.WithContext(ctx)
	chunks := make(chan audio.Chunk)
	buffers := make(chan audio.Buffer)

	g.Go(func() error {
		defer close(chunks)
		for {
			chunk, err := reader.Next(gctx)
			if err == io.EOF {
				s.logger.Debug("Stream ended", "chunks", reader.Count())
				return nil
			}
			if err != nil {
				return err
			}
			select {
			case chunks <- chunk:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	g.Go(func() error {
		err := stage.Run(gctx, chunks, buffers)
		if err != nil {
			// Unblock a reader stuck in the body
			closeBody()
		}
		return err
	})

	// abort tears the pipeline down after the scheduler has stopped the device
	abort := func(err error) error {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		sched.Cancel()
		s.snapshot(sched, stage)
		markAborted()
		closeBody()
		if waitErr := g.Wait(); waitErr != nil && !errors.Is(waitErr, context.Canceled) {
			s.logger.Debug("Pipeline stopped", "error", waitErr)
		}
		return err
	}

	if err := sched.Start(); err != nil {
		return abort(err)
	}
	s.logger.Debug("Session started", "warmup", s.cfg.WarmupThreshold, "workers", s.cfg.DecodeWorkers)

	for {
		var err error
		select {
		case <-ctx.Done():
			return abort(ctx.Err())

		case buf, ok := <-buffers:
			if ok {
				err = sched.Enqueue(buf)
				break
			}
			buffers = nil
			if werr := g.Wait(); werr != nil {
				return abort(werr)
			}
			err = sched.StreamEnded()

		case seq := <-finished:
			if active, ok := sched.Active(); ok && active == seq {
				err = sched.BufferFinished()
			}
		}

		s.snapshot(sched, stage)

		if err != nil {
			return abort(err)
		}
		if sched.State() == Finished {
			return nil
		}
	}
}

func (s *Session) snapshot(sched *Scheduler, stage *stream.DecodeStage) {
	ss := sched.Stats()
	ds := stage.Stats()

	s.mu.Lock()
	s.status.Received = ss.Received
	s.status.Played = ss.Played
	s.status.Dropped = ss.Dropped
	s.status.Underruns = ss.Underruns
	s.status.Decoded = ds.Decoded
	s.status.Failed = ds.Failed
	s.status.Queued = sched.QueueLen()
	s.mu.Unlock()
}
