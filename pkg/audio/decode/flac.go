// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes a chunked FLAC stream with mewkiz/flac, keeping STREAMINFO across chunks
package decode

import (
	"fmt"
	"io"
	"sync"

	"github.com/mewkiz/flac"
	"github.com/zenkiosk/kiosk-speaker/pkg/audio"
)

// FLACDecoder decodes a FLAC stream split into chunks. The first chunk
// carries the fLaC signature and STREAMINFO; later chunks continue the
// frame data and may split frames anywhere.
type FLACDecoder struct {
	mu   sync.Mutex
	feed *feed
}

// NewFLAC creates a new FLAC decoder
func NewFLAC(format audio.Format) (Decoder, error) {
	if format.Codec != "flac" {
		return nil, fmt.Errorf("invalid codec for FLAC decoder: %s", format.Codec)
	}
	return &FLACDecoder{feed: newFeed(parseFLAC, 0)}, nil
}

// Decode feeds one chunk and returns the frames it completed
func (d *FLACDecoder) Decode(data []byte) (audio.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.feed.decode(data)
}

// Reset drops the stream header and buffered bytes
func (d *FLACDecoder) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.feed.close()
	d.feed = newFeed(parseFLAC, 0)
	return nil
}

// Close releases decoder resources
func (d *FLACDecoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.feed.close()
	return nil
}

func parseFLAC(r io.Reader, emit func(audio.Format, []int32)) error {
	stream, err := flac.New(r)
	if err != nil {
		return fmt.Errorf("failed to decode FLAC: %w", err)
	}

	format := audio.Format{
		Codec:      "flac",
		SampleRate: int(stream.Info.SampleRate),
		Channels:   int(stream.Info.NChannels),
		BitDepth:   int(stream.Info.BitsPerSample),
	}

	for {
		frame, err := stream.ParseNext()
		if err != nil {
			return err
		}

		samples := make([]int32, 0, int(frame.BlockSize)*format.Channels)
		for i := 0; i < int(frame.BlockSize); i++ {
			for ch := 0; ch < format.Channels; ch++ {
				samples = append(samples, audio.ScaleTo24Bit(frame.Subframes[ch].Samples[i], format.BitDepth))
			}
		}
		emit(format, samples)
	}
}
