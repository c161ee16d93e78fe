// ABOUTME: Tests for FLAC decoder
// ABOUTME: Tests chunked decoding of a real FLAC file and rejection of headerless streams
package decode

import (
	"errors"
	"os"
	"testing"

	"github.com/zenkiosk/kiosk-speaker/pkg/audio"
)

// 59996.flac holds 8192 frames of 44.1kHz stereo 24-bit audio
const fixtureFLACSamples = 8192 * 2

func TestNewFLAC_InvalidCodec(t *testing.T) {
	decoder, err := NewFLAC(audio.Format{Codec: "opus"})
	if err == nil {
		t.Fatal("expected error for invalid codec, got nil")
	}
	if decoder != nil {
		t.Fatal("expected decoder to be nil for invalid codec")
	}

	expectedError := "invalid codec for FLAC decoder: opus"
	if err.Error() != expectedError {
		t.Errorf("expected error %q, got %q", expectedError, err.Error())
	}
}

func TestFLACDecode_ChunkedStream(t *testing.T) {
	data, err := os.ReadFile("testdata/59996.flac")
	if err != nil {
		t.Fatalf("failed to read fixture: %v", err)
	}

	for _, size := range []int{4096, 777, 64} {
		decoder, err := NewFLAC(audio.Format{Codec: "flac"})
		if err != nil {
			t.Fatalf("failed to create decoder: %v", err)
		}

		got, held, format := decodeChunks(t, decoder, data, size)
		decoder.Close()

		if got != fixtureFLACSamples {
			t.Errorf("chunk size %d: decoded %d samples, want %d", size, got, fixtureFLACSamples)
		}
		if format.SampleRate != 44100 || format.Channels != 2 || format.BitDepth != 24 {
			t.Errorf("chunk size %d: unexpected format %+v", size, format)
		}
		if size == 64 && held == 0 {
			t.Error("expected small chunks to be held until a frame completes")
		}
	}
}

func TestFLACDecode_Rejects(t *testing.T) {
	decoder, err := NewFLAC(audio.Format{Codec: "flac"})
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}
	defer decoder.Close()

	if _, err := decoder.Decode(nil); !errors.Is(err, ErrEmptyChunk) {
		t.Errorf("expected ErrEmptyChunk, got %v", err)
	}

	// Mid-stream bytes without the fLaC signature
	_, err = decoder.Decode([]byte{0xFF, 0xF8, 0x69, 0x08, 0x00, 0x01})
	if err == nil || errors.Is(err, ErrNeedMoreData) {
		t.Fatalf("expected error for stream without header, got %v", err)
	}

	// The stream is dead until reset
	if _, err := decoder.Decode([]byte("fLaC")); err == nil {
		t.Error("expected later chunks to fail too")
	}
}

func TestFLACDecode_HeaderSplitAcrossChunks(t *testing.T) {
	decoder, err := NewFLAC(audio.Format{Codec: "flac"})
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}
	defer decoder.Close()

	// Signature alone, STREAMINFO still to come
	if _, err := decoder.Decode([]byte("fLaC")); !errors.Is(err, ErrNeedMoreData) {
		t.Errorf("expected ErrNeedMoreData, got %v", err)
	}
}
