// ABOUTME: Test doubles for playback tests
// ABOUTME: A recording output device and a byte-scripted decoder
package playback

import (
	"errors"
	"sync"
	"time"

	"github.com/zenkiosk/kiosk-speaker/pkg/audio"
)

var errRejected = errors.New("device rejected buffer")

// recordingDevice records every Play and Stop. With auto set, each buffer
// completes on its own goroutine; otherwise the test calls complete.
type recordingDevice struct {
	auto   bool
	reject map[uint64]bool

	mu      sync.Mutex
	plays   []uint64
	stops   int
	pending func()
	played  chan uint64
}

func newRecordingDevice(auto bool) *recordingDevice {
	return &recordingDevice{auto: auto, played: make(chan uint64, 64)}
}

func (d *recordingDevice) Play(buf audio.Buffer, done func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.reject[buf.Seq] {
		return errRejected
	}
	if d.pending != nil {
		return errors.New("overlapping play")
	}
	d.plays = append(d.plays, buf.Seq)
	d.played <- buf.Seq

	if d.auto {
		go done()
		return nil
	}
	d.pending = done
	return nil
}

func (d *recordingDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
	d.pending = nil
	return nil
}

func (d *recordingDevice) Close() error { return nil }

// complete fires the pending buffer's completion
func (d *recordingDevice) complete() bool {
	d.mu.Lock()
	done := d.pending
	d.pending = nil
	d.mu.Unlock()

	if done == nil {
		return false
	}
	done()
	return true
}

func (d *recordingDevice) Plays() []uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint64(nil), d.plays...)
}

func (d *recordingDevice) Stops() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stops
}

// byteDecoder turns a one-byte chunk into a one-sample buffer holding that
// byte. Bytes in fail are rejected; delay sets per-byte latency.
type byteDecoder struct {
	fail  map[byte]bool
	delay func(b byte) time.Duration
}

func (d *byteDecoder) Decode(data []byte) (audio.Buffer, error) {
	b := data[0]
	if d.delay != nil {
		time.Sleep(d.delay(b))
	}
	if d.fail[b] {
		return audio.Buffer{}, errors.New("chunk split mid-frame")
	}
	return audio.Buffer{
		Samples: []int32{int32(b)},
		Format:  audio.Format{Codec: "pcm", SampleRate: 1000, Channels: 1, BitDepth: 16},
	}, nil
}

func (d *byteDecoder) Close() error { return nil }

func buffer(seq uint64) audio.Buffer {
	return audio.Buffer{
		Seq:     seq,
		Samples: []int32{int32(seq)},
		Format:  audio.Format{SampleRate: 1000, Channels: 1},
	}
}

// stateLog records transitions as "from→to"
type stateLog struct {
	mu  sync.Mutex
	log []string
}

func (l *stateLog) record(from, to State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log = append(l.log, from.String()+"→"+to.String())
}

func (l *stateLog) entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.log...)
}
