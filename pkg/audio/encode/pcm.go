// ABOUTME: PCM audio encoder
// ABOUTME: Encodes int32 samples to 16-bit or 24-bit little-endian PCM bytes
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/zenkiosk/kiosk-speaker/pkg/audio"
)

// PCMEncoder encodes PCM audio
type PCMEncoder struct {
	bitDepth int
}

// NewPCM creates a new PCM encoder
func NewPCM(format audio.Format) (*PCMEncoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM encoder: %s", format.Codec)
	}
	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}

	return &PCMEncoder{bitDepth: format.BitDepth}, nil
}

// Encode converts int32 samples to PCM bytes
func (e *PCMEncoder) Encode(samples []int32) ([]byte, error) {
	return e.AppendEncode(nil, samples), nil
}

// AppendEncode appends the encoding of samples to dst and returns the
// extended slice
func (e *PCMEncoder) AppendEncode(dst []byte, samples []int32) []byte {
	if e.bitDepth == 24 {
		for _, sample := range samples {
			b := audio.SampleTo24Bit(sample)
			dst = append(dst, b[0], b[1], b[2])
		}
		return dst
	}

	for _, sample := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(audio.SampleToInt16(sample)))
	}
	return dst
}

// BytesPerSample returns the encoded width of one sample
func (e *PCMEncoder) BytesPerSample() int {
	return e.bitDepth / 8
}

// Close releases resources
func (e *PCMEncoder) Close() error {
	return nil
}

var _ Encoder = (*PCMEncoder)(nil)
