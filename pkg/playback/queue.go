// ABOUTME: FIFO queue of decoded buffers awaiting playback
// ABOUTME: Preserves insertion order; never reorders
package playback

import "github.com/zenkiosk/kiosk-speaker/pkg/audio"

// Queue is a FIFO of decoded buffers. It is not safe for concurrent use;
// the scheduler owns it.
type Queue struct {
	items []audio.Buffer
	head  int
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return &Queue{}
}

// Len returns the number of queued buffers
func (q *Queue) Len() int { return len(q.items) - q.head }

// Push appends a buffer
func (q *Queue) Push(buf audio.Buffer) {
	q.items = append(q.items, buf)
}

// Pop removes and returns the oldest buffer
func (q *Queue) Pop() (audio.Buffer, bool) {
	if q.Len() == 0 {
		return audio.Buffer{}, false
	}
	buf := q.items[q.head]
	q.items[q.head] = audio.Buffer{}
	q.head++

	// Compact once the dead prefix dominates
	if q.head > 32 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
	return buf, true
}

// Peek returns the oldest buffer without removing it
func (q *Queue) Peek() (audio.Buffer, bool) {
	if q.Len() == 0 {
		return audio.Buffer{}, false
	}
	return q.items[q.head], true
}

// Seqs returns the chunk sequence numbers in queue order
func (q *Queue) Seqs() []uint64 {
	seqs := make([]uint64, 0, q.Len())
	for _, buf := range q.items[q.head:] {
		seqs = append(seqs, buf.Seq)
	}
	return seqs
}

// Clear discards every queued buffer
func (q *Queue) Clear() {
	q.items = nil
	q.head = 0
}
