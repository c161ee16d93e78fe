// ABOUTME: Tests for the playback scheduler state machine
// ABOUTME: Covers warm-up, gapless chaining, draining, stream end and aborts
package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenkiosk/kiosk-speaker/pkg/audio"
)

func newTestScheduler(t *testing.T, threshold int) (*Scheduler, *recordingDevice, *stateLog) {
	t.Helper()
	dev := newRecordingDevice(false)
	states := &stateLog{}
	sched := NewScheduler(dev, SchedulerConfig{
		WarmupThreshold: threshold,
		OnStateChange:   states.record,
	})
	require.NoError(t, sched.Start())
	return sched, dev, states
}

// finish completes the active buffer the way the session loop would
func finish(t *testing.T, sched *Scheduler, dev *recordingDevice) {
	t.Helper()
	require.True(t, dev.complete(), "no buffer on the device")
	require.NoError(t, sched.BufferFinished())
}

func TestSchedulerWarmupSequence(t *testing.T) {
	sched, dev, states := newTestScheduler(t, 5)

	for seq := uint64(0); seq < 5; seq++ {
		if seq < 4 {
			require.NoError(t, sched.Enqueue(buffer(seq)))
			assert.Empty(t, dev.Plays(), "nothing plays before the threshold")
			assert.Equal(t, Warming, sched.State())
			continue
		}
		require.NoError(t, sched.Enqueue(buffer(seq)))
	}

	assert.Equal(t, []string{
		"idle→warming",
		"warming→warming",
		"warming→warming",
		"warming→warming",
		"warming→warming",
		"warming→playing",
	}, states.entries())
	assert.Equal(t, []uint64{0}, dev.Plays())
	assert.Equal(t, Playing, sched.State())
	assert.Equal(t, 4, sched.QueueLen())
}

func TestSchedulerThresholdConsultedOnce(t *testing.T) {
	sched, dev, _ := newTestScheduler(t, 3)

	for seq := uint64(0); seq < 3; seq++ {
		require.NoError(t, sched.Enqueue(buffer(seq)))
	}
	// Drain to empty with the stream still open
	finish(t, sched, dev)
	finish(t, sched, dev)
	finish(t, sched, dev)
	require.Equal(t, Draining, sched.State())

	// A single buffer resumes playback; no second warm-up
	require.NoError(t, sched.Enqueue(buffer(3)))
	assert.Equal(t, Playing, sched.State())
	assert.Equal(t, []uint64{0, 1, 2, 3}, dev.Plays())
	assert.Equal(t, int64(1), sched.Stats().Underruns)
}

func TestSchedulerChainsNextBufferWithinFinish(t *testing.T) {
	sched, dev, states := newTestScheduler(t, 2)

	require.NoError(t, sched.Enqueue(buffer(0)))
	require.NoError(t, sched.Enqueue(buffer(1)))
	require.NoError(t, sched.Enqueue(buffer(2)))

	before := len(dev.Plays())
	finish(t, sched, dev)
	// The next play was issued before BufferFinished returned
	assert.Len(t, dev.Plays(), before+1)

	active, ok := sched.Active()
	require.True(t, ok)
	assert.Equal(t, uint64(1), active)
	assert.Contains(t, states.entries(), "playing→playing")
}

func TestSchedulerPlaysInEnqueueOrderWithoutRepeats(t *testing.T) {
	sched, dev, _ := newTestScheduler(t, 5)

	for seq := uint64(0); seq < 7; seq++ {
		require.NoError(t, sched.Enqueue(buffer(seq)))
	}
	require.NoError(t, sched.StreamEnded())
	for sched.State() == Playing {
		finish(t, sched, dev)
	}

	assert.Equal(t, Finished, sched.State())
	assert.Equal(t, []uint64{0, 1, 2, 3, 4, 5, 6}, dev.Plays())
	assert.Equal(t, SchedulerStats{Received: 7, Played: 7}, sched.Stats())
}

func TestSchedulerStreamEndDuringWarmup(t *testing.T) {
	sched, dev, states := newTestScheduler(t, 5)

	require.NoError(t, sched.Enqueue(buffer(0)))
	require.NoError(t, sched.Enqueue(buffer(1)))
	assert.Empty(t, dev.Plays())

	require.NoError(t, sched.StreamEnded())
	assert.Equal(t, []uint64{0}, dev.Plays(), "playback starts on stream end")
	assert.Equal(t, Playing, sched.State())

	finish(t, sched, dev)
	finish(t, sched, dev)
	assert.Equal(t, Finished, sched.State())
	assert.Equal(t, []uint64{0, 1}, dev.Plays())

	entries := states.entries()
	assert.Equal(t, "playing→finished", entries[len(entries)-1])
}

func TestSchedulerStreamEndWithNothingBuffered(t *testing.T) {
	sched, dev, _ := newTestScheduler(t, 5)

	require.NoError(t, sched.StreamEnded())
	assert.Equal(t, Finished, sched.State())
	assert.Empty(t, dev.Plays())
}

func TestSchedulerStreamEndWhilePlaying(t *testing.T) {
	sched, dev, _ := newTestScheduler(t, 1)

	require.NoError(t, sched.Enqueue(buffer(0)))
	require.NoError(t, sched.Enqueue(buffer(1)))
	require.NoError(t, sched.StreamEnded())
	assert.Equal(t, Playing, sched.State(), "stays playing until the queue empties")

	finish(t, sched, dev)
	assert.Equal(t, Playing, sched.State())
	finish(t, sched, dev)
	assert.Equal(t, Finished, sched.State())
}

func TestSchedulerStreamEndWhileDraining(t *testing.T) {
	sched, dev, _ := newTestScheduler(t, 1)

	require.NoError(t, sched.Enqueue(buffer(0)))
	finish(t, sched, dev)
	require.Equal(t, Draining, sched.State())

	require.NoError(t, sched.StreamEnded())
	assert.Equal(t, Finished, sched.State())
}

func TestSchedulerCancelWhilePlaying(t *testing.T) {
	sched, dev, _ := newTestScheduler(t, 2)

	for seq := uint64(0); seq < 4; seq++ {
		require.NoError(t, sched.Enqueue(buffer(seq)))
	}
	require.Equal(t, Playing, sched.State())

	sched.Cancel()
	assert.Equal(t, Idle, sched.State())
	assert.Equal(t, 0, sched.QueueLen())
	assert.Equal(t, 1, dev.Stops())
	assert.Equal(t, int64(3), sched.Stats().Dropped)

	// Late events after cancel submit nothing
	assert.ErrorIs(t, sched.Enqueue(buffer(9)), ErrNotRunning)
	assert.ErrorIs(t, sched.BufferFinished(), ErrNotRunning)
	assert.Equal(t, []uint64{0}, dev.Plays())
}

func TestSchedulerDeviceRejection(t *testing.T) {
	dev := newRecordingDevice(false)
	dev.reject = map[uint64]bool{1: true}
	sched := NewScheduler(dev, SchedulerConfig{WarmupThreshold: 1})
	require.NoError(t, sched.Start())

	require.NoError(t, sched.Enqueue(buffer(0)))
	require.NoError(t, sched.Enqueue(buffer(1)))
	require.NoError(t, sched.Enqueue(buffer(2)))

	require.True(t, dev.complete())
	err := sched.BufferFinished()

	var derr *DeviceError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, uint64(1), derr.Seq)
	assert.ErrorIs(t, err, errRejected)

	assert.Equal(t, Idle, sched.State())
	assert.Equal(t, 0, sched.QueueLen(), "queue flushed")
	assert.Equal(t, 1, dev.Stops())
	assert.Equal(t, []uint64{0}, dev.Plays())
}

func TestSchedulerOnPlayAndOnDone(t *testing.T) {
	dev := newRecordingDevice(false)
	var played []uint64
	var doneSeqs []uint64
	sched := NewScheduler(dev, SchedulerConfig{
		WarmupThreshold: 1,
		OnPlay:          func(buf audio.Buffer) { played = append(played, buf.Seq) },
		OnDone:          func(seq uint64) { doneSeqs = append(doneSeqs, seq) },
	})
	require.NoError(t, sched.Start())

	require.NoError(t, sched.Enqueue(buffer(4)))
	require.True(t, dev.complete())

	assert.Equal(t, []uint64{4}, played)
	assert.Equal(t, []uint64{4}, doneSeqs)
}

func TestSchedulerStartTwice(t *testing.T) {
	sched, _, _ := newTestScheduler(t, 5)
	assert.ErrorIs(t, sched.Start(), ErrSessionActive)
}

func TestSchedulerDefaultThreshold(t *testing.T) {
	sched, dev, _ := newTestScheduler(t, 0)

	for seq := uint64(0); seq < DefaultWarmupThreshold-1; seq++ {
		require.NoError(t, sched.Enqueue(buffer(seq)))
	}
	assert.Empty(t, dev.Plays())
	require.NoError(t, sched.Enqueue(buffer(DefaultWarmupThreshold-1)))
	assert.Equal(t, []uint64{0}, dev.Plays())
}
