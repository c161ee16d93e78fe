// ABOUTME: Audio output device tests
// ABOUTME: Verifies Null device timing, busy rejection, stop and the oto feeder
package output

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/zenkiosk/kiosk-speaker/pkg/audio"
)

func TestDevicesImplementDevice(t *testing.T) {
	var _ Device = (*Oto)(nil)
	var _ Device = (*Null)(nil)
}

func shortBuffer() audio.Buffer {
	return audio.Buffer{
		Samples: make([]int32, 441),
		Format:  audio.Format{SampleRate: 44100, Channels: 1, BitDepth: 16},
	}
}

func TestNullPlayCompletes(t *testing.T) {
	dev := NewNull(0)
	done := make(chan struct{})

	if err := dev.Play(shortBuffer(), func() { close(done) }); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("done was not called")
	}

	if dev.Played() != 1 {
		t.Errorf("expected 1 played, got %d", dev.Played())
	}
}

func TestNullBusy(t *testing.T) {
	dev := NewNull(100) // 10ms buffer stretched to 1s
	defer dev.Close()

	if err := dev.Play(shortBuffer(), func() {}); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if err := dev.Play(shortBuffer(), func() {}); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
}

func TestNullStopSuppressesDone(t *testing.T) {
	dev := NewNull(5) // 50ms
	called := make(chan struct{}, 1)

	if err := dev.Play(shortBuffer(), func() { called <- struct{}{} }); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if err := dev.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	select {
	case <-called:
		t.Fatal("done called after Stop")
	case <-time.After(150 * time.Millisecond):
	}

	// Device is free again after Stop
	if err := dev.Play(shortBuffer(), func() {}); err != nil {
		t.Errorf("Play after Stop failed: %v", err)
	}
}

func TestNullClosed(t *testing.T) {
	dev := NewNull(0)
	dev.Close()
	if err := dev.Play(shortBuffer(), func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestFeederServesArmedBytesThenSilence(t *testing.T) {
	f := newFeeder()
	fired := 0
	if err := f.arm([]byte{1, 2, 3, 4, 5}, func() { fired++ }); err != nil {
		t.Fatalf("arm failed: %v", err)
	}
	if err := f.arm([]byte{9}, func() {}); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy while armed, got %v", err)
	}

	p := make([]byte, 3)
	n, _ := f.Read(p)
	if n != 3 || fired != 0 {
		t.Fatalf("first read: n=%d fired=%d", n, fired)
	}

	// Short read at the buffer boundary, never padded
	n, _ = f.Read(p)
	if n != 2 || p[0] != 4 || p[1] != 5 {
		t.Fatalf("second read: n=%d p=%v", n, p)
	}
	if fired != 1 {
		t.Fatalf("expected done once, got %d", fired)
	}

	// Nothing armed: silence after the idle wait
	p = []byte{7, 7}
	n, _ = f.Read(p)
	if n != 2 || p[0] != 0 || p[1] != 0 {
		t.Errorf("expected silence, got n=%d p=%v", n, p)
	}
}

func TestFeederFlushAndClose(t *testing.T) {
	f := newFeeder()
	f.arm([]byte{1, 2}, func() { t.Error("done called after flush") })
	f.flush()

	if err := f.arm([]byte{3}, func() {}); err != nil {
		t.Fatalf("arm after flush failed: %v", err)
	}

	f.close()
	if _, err := f.Read(make([]byte, 4)); err != io.EOF {
		t.Errorf("expected EOF after close, got %v", err)
	}
	if err := f.arm([]byte{1}, func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestApplyVolume(t *testing.T) {
	in := []int32{1000, -1000}
	if out := applyVolume(in, 100); &out[0] != &in[0] {
		t.Error("full volume should pass samples through")
	}
	out := applyVolume(in, 50)
	if out[0] != 500 || out[1] != -500 {
		t.Errorf("expected half volume, got %v", out)
	}
	if out := applyVolume(in, 0); out[0] != 0 {
		t.Errorf("expected silence, got %v", out)
	}
}
