// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes a chunked MP3 stream with go-mp3, carrying partial frames across chunks
package decode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/hajimehoshi/go-mp3"
	"github.com/zenkiosk/kiosk-speaker/pkg/audio"
)

// mp3Stall is how many bytes may go in without a decoded frame. The
// largest Layer III frame is 1441 bytes, so a healthy stream never gets
// close.
const mp3Stall = 16 * 1024

// MP3Decoder decodes an MP3 stream split into chunks. Chunks may start and
// end anywhere; a frame cut by a chunk boundary is finished by the next
// chunk. go-mp3 always produces 16-bit stereo, so mono streams come out
// with both channels carrying the same signal.
type MP3Decoder struct {
	mu     sync.Mutex
	feed   *feed
	synced bool
}

// NewMP3 creates a new MP3 decoder
func NewMP3(format audio.Format) (Decoder, error) {
	if format.Codec != "mp3" {
		return nil, fmt.Errorf("invalid codec for MP3 decoder: %s", format.Codec)
	}
	return &MP3Decoder{feed: newFeed(parseMP3, mp3Stall)}, nil
}

// Decode feeds one chunk and returns the frames it completed. Bytes ahead
// of the stream's first Layer III frame are skipped, and until that frame
// is found a chunk without one fails and is discarded.
func (d *MP3Decoder) Decode(data []byte) (audio.Buffer, error) {
	if len(data) == 0 {
		return audio.Buffer{}, ErrEmptyChunk
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.synced {
		off := findMP3Sync(data)
		if off < 0 {
			return audio.Buffer{}, errors.New("no mp3 frame header in chunk")
		}
		data = data[off:]
		d.synced = true
	}
	return d.feed.decode(data)
}

// Reset drops buffered bytes so the next chunk starts a new stream
func (d *MP3Decoder) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.feed.close()
	d.feed = newFeed(parseMP3, mp3Stall)
	d.synced = false
	return nil
}

// Close releases decoder resources
func (d *MP3Decoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.feed.close()
	return nil
}

// mp3Resyncs is how many times in a row the parser may restart on a
// damaged frame before giving up on the stream
const mp3Resyncs = 3

// parseMP3 decodes until r ends. A damaged frame restarts go-mp3, which
// scans forward to the next frame header; the stream fails only when
// restarts keep failing without audio in between.
func parseMP3(r io.Reader, emit func(audio.Format, []int32)) error {
	// A multiple of 4 bytes, so reads always end on a stereo frame
	pcm := make([]byte, 4608)

	var resyncs int
	for {
		dec, err := mp3.NewDecoder(r)
		if errors.Is(err, io.EOF) {
			return err
		}
		if err != nil {
			resyncs++
			if resyncs > mp3Resyncs {
				return fmt.Errorf("failed to create mp3 decoder: %w", err)
			}
			continue
		}

		format := audio.Format{
			Codec:      "mp3",
			SampleRate: dec.SampleRate(),
			Channels:   2,
			BitDepth:   16,
		}

		for {
			n, rerr := dec.Read(pcm)
			if n > 0 {
				resyncs = 0
				samples := make([]int32, n/2)
				for i := range samples {
					samples[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
				}
				emit(format, samples)
			}
			if rerr == nil {
				continue
			}
			if errors.Is(rerr, io.EOF) {
				return rerr
			}
			err = rerr
			break
		}

		resyncs++
		if resyncs > mp3Resyncs {
			return fmt.Errorf("mp3 decode error: %w", err)
		}
	}
}

var (
	mp3Bitrates = [2][16]int{
		// MPEG-1 Layer III
		{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0},
		// MPEG-2 Layer III
		{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
	}
	mp3SampleRates = [2][3]int{
		{44100, 48000, 32000},
		{22050, 24000, 16000},
	}
)

// mp3FrameLen returns the length of the Layer III frame whose header
// starts b, or 0 if b does not start with one go-mp3 can decode. MPEG 2.5
// and free-format frames are rejected.
func mp3FrameLen(b []byte) int {
	if len(b) < 4 || b[0] != 0xFF || b[1]&0xE0 != 0xE0 {
		return 0
	}

	var v int
	switch (b[1] >> 3) & 0x03 {
	case 3:
		v = 0
	case 2:
		v = 1
	default:
		return 0
	}
	if (b[1]>>1)&0x03 != 1 {
		return 0
	}

	brIdx := b[2] >> 4
	srIdx := (b[2] >> 2) & 0x03
	if brIdx == 0 || brIdx == 15 || srIdx == 3 {
		return 0
	}
	bitrate := mp3Bitrates[v][brIdx] * 1000
	rate := mp3SampleRates[v][srIdx]
	pad := int(b[2]>>1) & 0x01

	if v == 0 {
		return 144*bitrate/rate + pad
	}
	return 72*bitrate/rate + pad
}

// findMP3Sync returns the offset of the first frame in data, or -1. A
// leading ID3v2 tag counts as a frame start since go-mp3 skips it. A
// candidate header is confirmed by the header after it when that one lies
// inside data.
func findMP3Sync(data []byte) int {
	if bytes.HasPrefix(data, []byte("ID3")) {
		return 0
	}

	for i := 0; i+4 <= len(data); i++ {
		n := mp3FrameLen(data[i:])
		if n == 0 {
			continue
		}
		next := i + n
		if next+4 > len(data) || mp3FrameLen(data[next:]) > 0 {
			return i
		}
	}
	return -1
}
