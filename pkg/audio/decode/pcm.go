// ABOUTME: PCM audio decoder
// ABOUTME: Decodes 16-bit and 24-bit little-endian PCM, carrying split frames across chunks
package decode

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/zenkiosk/kiosk-speaker/pkg/audio"
)

// PCMDecoder decodes raw little-endian PCM. Chunks need not end on a frame
// boundary: trailing bytes of a split frame are held for the next chunk.
type PCMDecoder struct {
	format audio.Format

	mu   sync.Mutex
	rest []byte
}

// NewPCM creates a new PCM decoder
func NewPCM(format audio.Format) (Decoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}
	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return nil, fmt.Errorf("invalid PCM format: %d Hz, %d channels", format.SampleRate, format.Channels)
	}

	return &PCMDecoder{format: format}, nil
}

// Decode converts the whole frames available after data is appended to
// any bytes held from the previous chunk
func (d *PCMDecoder) Decode(data []byte) (audio.Buffer, error) {
	if len(data) == 0 {
		return audio.Buffer{}, ErrEmptyChunk
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.rest) > 0 {
		data = append(d.rest, data...)
		d.rest = nil
	}

	bytesPerSample := d.format.BitDepth / 8
	frameSize := bytesPerSample * d.format.Channels
	whole := len(data) - len(data)%frameSize
	if whole < len(data) {
		d.rest = append([]byte(nil), data[whole:]...)
	}
	if whole == 0 {
		return audio.Buffer{}, ErrNeedMoreData
	}
	data = data[:whole]

	samples := make([]int32, len(data)/bytesPerSample)
	for i := range samples {
		off := i * bytesPerSample
		if bytesPerSample == 3 {
			samples[i] = audio.SampleFrom24Bit([3]byte{data[off], data[off+1], data[off+2]})
		} else {
			samples[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(data[off:])))
		}
	}

	return audio.Buffer{Samples: samples, Format: d.format}, nil
}

// Reset drops any held partial frame
func (d *PCMDecoder) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rest = nil
	return nil
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	return nil
}
