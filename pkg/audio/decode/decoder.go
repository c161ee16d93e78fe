// ABOUTME: Decoder interface definition and codec factory
// ABOUTME: Common interface for all per-chunk audio decoders
package decode

import (
	"errors"
	"fmt"

	"github.com/zenkiosk/kiosk-speaker/pkg/audio"
)

// ErrEmptyChunk is returned when a chunk carries no bytes
var ErrEmptyChunk = errors.New("empty chunk")

// Decoder turns the bytes of one chunk into at most one playable buffer.
// The returned buffer's Seq is left zero; the caller stamps it.
// ErrNeedMoreData means the chunk was kept but completed no audio yet.
type Decoder interface {
	// Decode converts encoded audio data to PCM samples
	Decode(data []byte) (audio.Buffer, error)

	// Close releases decoder resources
	Close() error
}

// New returns the decoder matching format.Codec
func New(format audio.Format) (Decoder, error) {
	switch format.Codec {
	case "pcm":
		return NewPCM(format)
	case "mp3":
		return NewMP3(format)
	case "opus":
		return NewOpus(format)
	case "ogg-opus":
		return NewOggOpus(format)
	case "flac":
		return NewFLAC(format)
	default:
		return nil, fmt.Errorf("unsupported codec: %q", format.Codec)
	}
}
