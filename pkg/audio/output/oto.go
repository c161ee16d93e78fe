// ABOUTME: Oto-based audio output implementation
// ABOUTME: Feeds a single persistent oto player so consecutive buffers play without a gap
package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
	"github.com/zenkiosk/kiosk-speaker/pkg/audio"
	"github.com/zenkiosk/kiosk-speaker/pkg/audio/encode"
	"github.com/zenkiosk/kiosk-speaker/pkg/audio/resample"
)

// OtoConfig holds the device format. oto allows one context per process, so
// the format is fixed for the life of the device and buffers are converted
// to it.
type OtoConfig struct {
	SampleRate int
	Channels   int
	Volume     int           // 0-100
	BufferSize time.Duration // oto's internal buffer, 0 for the platform default
	ReadyWait  time.Duration
}

// DefaultOtoConfig returns defaults suitable for speech
func DefaultOtoConfig() OtoConfig {
	return OtoConfig{
		SampleRate: 44100,
		Channels:   2,
		Volume:     100,
		BufferSize: 50 * time.Millisecond,
		ReadyWait:  5 * time.Second,
	}
}

// Oto output implementation using oto library
type Oto struct {
	cfg     OtoConfig
	otoCtx  *oto.Context
	feed    *feeder
	encoder *encode.PCMEncoder
	logger  *log.Logger

	mu        sync.Mutex
	player    *oto.Player
	resampler *resample.Resampler
	closed    bool
}

// NewOto opens the audio device
func NewOto(cfg OtoConfig) (*Oto, error) {
	if cfg.SampleRate <= 0 || cfg.Channels <= 0 {
		return nil, fmt.Errorf("invalid device format: %d Hz, %d channels", cfg.SampleRate, cfg.Channels)
	}
	if cfg.ReadyWait <= 0 {
		cfg.ReadyWait = 5 * time.Second
	}

	logger := log.WithPrefix("oto")

	op := &oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   cfg.BufferSize,
	}

	otoCtx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}

	select {
	case <-readyChan:
	case <-time.After(cfg.ReadyWait):
		return nil, fmt.Errorf("audio context initialization timeout after %v", cfg.ReadyWait)
	}

	encoder, err := encode.NewPCM(audio.Format{Codec: "pcm", BitDepth: 16})
	if err != nil {
		return nil, err
	}

	o := &Oto{
		cfg:     cfg,
		otoCtx:  otoCtx,
		feed:    newFeeder(),
		encoder: encoder,
		logger:  logger,
	}
	o.player = otoCtx.NewPlayer(o.feed)
	o.player.Play()

	logger.Info("Audio output initialized", "rate", cfg.SampleRate, "channels", cfg.Channels)
	return o, nil
}

// Play converts buf to the device format and arms it on the feeder. done
// fires once oto has pulled the final byte, which is ahead of the audible
// end by at most oto's buffer, leaving room to arm the next buffer.
func (o *Oto) Play(buf audio.Buffer, done func()) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	samples := o.convert(buf)
	o.mu.Unlock()

	data := o.encoder.AppendEncode(make([]byte, 0, len(samples)*2), samples)
	if len(data) == 0 {
		// Nothing audible survived conversion; complete asynchronously
		if !o.feed.idle() {
			return ErrBusy
		}
		go done()
		return nil
	}
	return o.feed.arm(data, done)
}

// convert remixes, resamples and applies volume. Caller holds o.mu.
func (o *Oto) convert(buf audio.Buffer) []int32 {
	samples := resample.Remix(buf.Samples, buf.Format.Channels, o.cfg.Channels)

	rate := buf.Format.SampleRate
	if rate > 0 && rate != o.cfg.SampleRate {
		if o.resampler == nil || o.resampler.InputRate() != rate {
			o.logger.Debug("Resampling", "from", rate, "to", o.cfg.SampleRate)
			o.resampler = resample.New(rate, o.cfg.SampleRate, o.cfg.Channels)
		}
		samples = o.resampler.Resample(samples)
	}

	return applyVolume(samples, o.cfg.Volume)
}

// Stop drops whatever is armed and flushes oto's internal buffer by
// replacing the player
func (o *Oto) Stop() error {
	o.feed.flush()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	if o.resampler != nil {
		o.resampler.Reset()
	}
	// A paused player leaves the mixer, taking its buffered bytes with it
	o.player.Pause()
	if err := o.player.Close(); err != nil {
		o.logger.Warn("Failed to close player", "error", err)
	}
	o.player = o.otoCtx.NewPlayer(o.feed)
	o.player.Play()
	return nil
}

// Close releases output resources
func (o *Oto) Close() error {
	o.feed.close()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true

	o.player.Pause()
	err := o.player.Close()
	if suspendErr := o.otoCtx.Suspend(); suspendErr != nil && err == nil {
		err = suspendErr
	}
	return err
}

// applyVolume scales samples with clipping protection
func applyVolume(samples []int32, volume int) []int32 {
	if volume >= 100 {
		return samples
	}
	if volume < 0 {
		volume = 0
	}
	multiplier := float64(volume) / 100.0

	result := make([]int32, len(samples))
	for i, sample := range samples {
		scaled := int64(float64(sample) * multiplier)
		if scaled > audio.Max24Bit {
			scaled = audio.Max24Bit
		} else if scaled < audio.Min24Bit {
			scaled = audio.Min24Bit
		}
		result[i] = int32(scaled)
	}
	return result
}

// idleWait bounds how long a read waits for the next buffer before
// handing oto silence
const idleWait = 20 * time.Millisecond

// feeder is the io.Reader behind the persistent oto player. It serves the
// armed buffer's bytes and otherwise silence, so the player never hits EOF.
type feeder struct {
	mu      sync.Mutex
	pending []byte
	done    func()
	closed  bool
	wake    chan struct{}
}

func newFeeder() *feeder {
	return &feeder{wake: make(chan struct{}, 1)}
}

func (f *feeder) arm(data []byte, done func()) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if f.done != nil {
		f.mu.Unlock()
		return ErrBusy
	}
	f.pending = data
	f.done = done
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
	return nil
}

func (f *feeder) idle() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done == nil
}

func (f *feeder) flush() {
	f.mu.Lock()
	f.pending = nil
	f.done = nil
	f.mu.Unlock()
}

func (f *feeder) close() {
	f.mu.Lock()
	f.closed = true
	f.pending = nil
	f.done = nil
	f.mu.Unlock()
}

// Read never returns a short read of zero bytes: when nothing is armed it
// waits up to idleWait for a buffer and then fills p with silence.
func (f *feeder) Read(p []byte) (int, error) {
	if n, ok, err := f.readPending(p); ok {
		return n, err
	}

	select {
	case <-f.wake:
		if n, ok, err := f.readPending(p); ok {
			return n, err
		}
	case <-time.After(idleWait):
	}

	clear(p)
	return len(p), nil
}

func (f *feeder) readPending(p []byte) (int, bool, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return 0, true, io.EOF
	}
	if len(f.pending) == 0 {
		f.mu.Unlock()
		return 0, false, nil
	}

	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	var done func()
	if len(f.pending) == 0 {
		done = f.done
		f.done = nil
	}
	f.mu.Unlock()

	if done != nil {
		done()
	}
	return n, true, nil
}
