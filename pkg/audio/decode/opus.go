// ABOUTME: Opus audio decoders
// ABOUTME: Raw packets per chunk with libopus, or a chunked Ogg Opus stream with libopusfile
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/zenkiosk/kiosk-speaker/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// maxOpusFrame is the largest frame libopus emits per channel (120ms at 48kHz)
const maxOpusFrame = 5760

// oggOpusRate is the rate libopusfile always decodes at
const oggOpusRate = 48000

// oggOpusStall allows for one maximum-size Ogg page without audio
const oggOpusStall = 64 * 1024

var oggCapture = []byte("OggS")

// OpusDecoder decodes raw Opus packets, one per chunk. libopus keeps
// inter-packet state, so calls are serialized and chunks must arrive in
// stream order.
type OpusDecoder struct {
	mu      sync.Mutex
	decoder *opus.Decoder
	format  audio.Format
	pcm16   []int16
}

// NewOpus creates a new Opus decoder
func NewOpus(format audio.Format) (Decoder, error) {
	if format.Codec != "opus" {
		return nil, fmt.Errorf("invalid codec for Opus decoder: %s", format.Codec)
	}

	dec, err := opus.NewDecoder(format.SampleRate, format.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	format.BitDepth = 16
	return &OpusDecoder{
		decoder: dec,
		format:  format,
		pcm16:   make([]int16, maxOpusFrame*format.Channels),
	}, nil
}

// Decode converts one Opus packet to a buffer
func (d *OpusDecoder) Decode(data []byte) (audio.Buffer, error) {
	if len(data) == 0 {
		return audio.Buffer{}, ErrEmptyChunk
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.decoder.Decode(data, d.pcm16)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("opus decode failed: %w", err)
	}

	// Opus is always 16-bit
	samples := make([]int32, n*d.format.Channels)
	for i := range samples {
		samples[i] = audio.SampleFromInt16(d.pcm16[i])
	}
	return audio.Buffer{Samples: samples, Format: d.format}, nil
}

// Reset replaces the libopus state so the next packet starts a new stream
func (d *OpusDecoder) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	dec, err := opus.NewDecoder(d.format.SampleRate, d.format.Channels)
	if err != nil {
		return fmt.Errorf("failed to reset opus decoder: %w", err)
	}
	d.decoder = dec
	return nil
}

// Close releases decoder resources
func (d *OpusDecoder) Close() error {
	return nil
}

// OggOpusDecoder decodes an Ogg Opus stream (.opus files, or TTS output
// requested as ogg_opus) split into chunks. Pages may be split anywhere.
// Output is 48kHz 16-bit with the stream's own channel count.
type OggOpusDecoder struct {
	mu     sync.Mutex
	feed   *feed
	synced bool
}

// NewOggOpus creates a new Ogg Opus decoder
func NewOggOpus(format audio.Format) (Decoder, error) {
	if format.Codec != "ogg-opus" {
		return nil, fmt.Errorf("invalid codec for Ogg Opus decoder: %s", format.Codec)
	}
	return &OggOpusDecoder{feed: newFeed(parseOggOpus, oggOpusStall)}, nil
}

// Decode feeds one chunk and returns the audio it completed. The first
// chunk must open with an Ogg page.
func (d *OggOpusDecoder) Decode(data []byte) (audio.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.synced && len(data) > 0 {
		n := min(len(data), len(oggCapture))
		if !bytes.Equal(data[:n], oggCapture[:n]) {
			return audio.Buffer{}, errors.New("chunk does not start an Ogg stream")
		}
		d.synced = true
	}
	return d.feed.decode(data)
}

// Reset drops the stream headers and buffered pages
func (d *OggOpusDecoder) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.feed.close()
	d.feed = newFeed(parseOggOpus, oggOpusStall)
	d.synced = false
	return nil
}

// Close releases decoder resources
func (d *OggOpusDecoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.feed.close()
	return nil
}

// headCapture keeps the first bytes of the stream so the OpusHead packet
// can be read after libopusfile has consumed it
type headCapture struct {
	r    io.Reader
	head []byte
}

func (c *headCapture) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if room := 512 - len(c.head); room > 0 && n > 0 {
		c.head = append(c.head, p[:min(n, room)]...)
	}
	return n, err
}

// opusHeadChannels reads the channel count from the OpusHead packet
func opusHeadChannels(head []byte) (int, error) {
	i := bytes.Index(head, []byte("OpusHead"))
	if i < 0 || i+9 >= len(head) {
		return 0, fmt.Errorf("no OpusHead packet in stream")
	}
	channels := int(head[i+9])
	if channels == 0 {
		return 0, fmt.Errorf("OpusHead declares no channels")
	}
	return channels, nil
}

func parseOggOpus(r io.Reader, emit func(audio.Format, []int32)) error {
	capture := &headCapture{r: r}
	stream, err := opus.NewStream(capture)
	if err != nil {
		return fmt.Errorf("failed to open ogg opus stream: %w", err)
	}
	defer stream.Close()

	channels, err := opusHeadChannels(capture.head)
	if err != nil {
		return err
	}
	format := audio.Format{
		Codec:      "ogg-opus",
		SampleRate: oggOpusRate,
		Channels:   channels,
		BitDepth:   16,
	}

	pcm := make([]int16, maxOpusFrame*channels)
	for {
		n, err := stream.Read(pcm)
		if err != nil {
			return err
		}

		samples := make([]int32, n*channels)
		for i := range samples {
			samples[i] = audio.SampleFromInt16(pcm[i])
		}
		emit(format, samples)
	}
}
