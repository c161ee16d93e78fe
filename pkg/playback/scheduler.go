// ABOUTME: Warm-up buffered playback scheduler
// ABOUTME: Synchronous state machine that chains buffers onto the device without gaps
package playback

import (
	"github.com/charmbracelet/log"

	"github.com/zenkiosk/kiosk-speaker/pkg/audio"
	"github.com/zenkiosk/kiosk-speaker/pkg/audio/output"
)

// DefaultWarmupThreshold is how many buffers are collected before the
// first play of a session
const DefaultWarmupThreshold = 5

// SchedulerConfig configures a scheduler
type SchedulerConfig struct {
	WarmupThreshold int

	// OnStateChange observes every transition, including Warming→Warming and
	// Playing→Playing
	OnStateChange func(from, to State)

	// OnPlay is called after a buffer has been accepted by the device
	OnPlay func(buf audio.Buffer)

	// OnDone is handed to the device with each buffer and called from the
	// device's goroutine when that buffer finishes. It must not block.
	OnDone func(seq uint64)
}

// SchedulerStats tracks scheduler metrics
type SchedulerStats struct {
	Received  int64
	Played    int64
	Dropped   int64 // discarded by cancel or abort
	Underruns int64 // times the queue ran dry with the stream still open
}

// Scheduler decides when each buffer goes to the device. It has no
// goroutines and no locks: every method must be called from the single
// goroutine that owns the session.
type Scheduler struct {
	cfg    SchedulerConfig
	device output.Device
	queue  *Queue
	state  State
	ended  bool
	active *audio.Buffer
	logger *log.Logger

	stats SchedulerStats
}

// NewScheduler creates a scheduler driving device
func NewScheduler(device output.Device, cfg SchedulerConfig) *Scheduler {
	if cfg.WarmupThreshold <= 0 {
		cfg.WarmupThreshold = DefaultWarmupThreshold
	}
	return &Scheduler{
		cfg:    cfg,
		device: device,
		queue:  NewQueue(),
		state:  Idle,
		logger: log.WithPrefix("scheduler"),
	}
}

// State returns the current state
func (s *Scheduler) State() State { return s.state }

// Stats returns scheduler statistics
func (s *Scheduler) Stats() SchedulerStats { return s.stats }

// QueueLen returns the number of buffers waiting
func (s *Scheduler) QueueLen() int { return s.queue.Len() }

// Queued returns the chunk sequence numbers waiting, oldest first
func (s *Scheduler) Queued() []uint64 { return s.queue.Seqs() }

// Active returns the Seq of the buffer on the device
func (s *Scheduler) Active() (uint64, bool) {
	if s.active == nil {
		return 0, false
	}
	return s.active.Seq, true
}

// Start begins a session: Idle → Warming
func (s *Scheduler) Start() error {
	if s.state != Idle {
		return ErrSessionActive
	}
	s.queue.Clear()
	s.ended = false
	s.active = nil
	s.stats = SchedulerStats{}
	s.transition(Warming)
	return nil
}

// Enqueue accepts the next decoded buffer in arrival order. While warming,
// the buffer that fills the queue to the threshold starts playback. While
// draining, playback resumes at once.
func (s *Scheduler) Enqueue(buf audio.Buffer) error {
	if !s.state.Active() {
		return ErrNotRunning
	}

	s.queue.Push(buf)
	s.stats.Received++

	switch s.state {
	case Warming:
		if s.queue.Len() < s.cfg.WarmupThreshold {
			s.transition(Warming)
			return nil
		}
		s.logger.Debug("Warm-up complete", "buffered", s.queue.Len())
		return s.playNext()
	case Draining:
		s.logger.Debug("Resuming after underrun", "seq", buf.Seq)
		return s.playNext()
	}
	return nil
}

// BufferFinished handles the device's completion of the active buffer. The
// next buffer, if any, is submitted before this returns.
func (s *Scheduler) BufferFinished() error {
	if s.state != Playing || s.active == nil {
		return ErrNotRunning
	}
	s.active = nil

	switch {
	case s.queue.Len() > 0:
		return s.playNext()
	case s.ended:
		s.transition(Finished)
	default:
		s.stats.Underruns++
		s.transition(Draining)
	}
	return nil
}

// StreamEnded records that no more buffers will arrive. A session still
// warming plays what it has; one with nothing buffered finishes.
func (s *Scheduler) StreamEnded() error {
	if !s.state.Active() {
		return ErrNotRunning
	}
	s.ended = true

	switch s.state {
	case Warming:
		if s.queue.Len() > 0 {
			s.logger.Debug("Stream ended during warm-up", "buffered", s.queue.Len())
			return s.playNext()
		}
		s.transition(Finished)
	case Draining:
		s.transition(Finished)
	}
	return nil
}

// Cancel stops the device, discards the queue and returns to Idle. No
// further buffers are submitted.
func (s *Scheduler) Cancel() {
	s.abort()
}

func (s *Scheduler) abort() {
	if err := s.device.Stop(); err != nil {
		s.logger.Warn("Device stop failed", "error", err)
	}
	s.stats.Dropped += int64(s.queue.Len())
	s.queue.Clear()
	s.active = nil
	if s.state != Idle {
		s.transition(Idle)
	}
}

// playNext pops the oldest buffer onto the device and enters Playing
func (s *Scheduler) playNext() error {
	buf, _ := s.queue.Pop()

	var done func()
	if s.cfg.OnDone != nil {
		seq := buf.Seq
		done = func() { s.cfg.OnDone(seq) }
	} else {
		done = func() {}
	}

	if err := s.device.Play(buf, done); err != nil {
		s.stats.Dropped++
		s.abort()
		return &DeviceError{Seq: buf.Seq, Err: err}
	}

	s.active = &buf
	s.stats.Played++
	s.transition(Playing)
	if s.cfg.OnPlay != nil {
		s.cfg.OnPlay(buf)
	}
	return nil
}

func (s *Scheduler) transition(to State) {
	from := s.state
	s.state = to
	if from != to {
		s.logger.Debug("State change", "from", from, "to", to)
	}
	if s.cfg.OnStateChange != nil {
		s.cfg.OnStateChange(from, to)
	}
}
