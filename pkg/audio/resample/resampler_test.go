// ABOUTME: Tests for audio resampler and channel remix
// ABOUTME: Tests interpolation, cross-call continuity and channel mapping
package resample

import (
	"testing"
)

func ramp(frames, channels int, step int32) []int32 {
	out := make([]int32, frames*channels)
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			out[f*channels+ch] = int32(f)*step + int32(ch)
		}
	}
	return out
}

func TestResampleUpsampling(t *testing.T) {
	r := New(22050, 44100, 1)

	input := []int32{0, 100, 200, 300}
	output := r.Resample(input)

	// Last input frame is held back, so 3 intervals at 2x
	expected := []int32{0, 50, 100, 150, 200, 250}
	if len(output) != len(expected) {
		t.Fatalf("expected %d samples, got %d: %v", len(expected), len(output), output)
	}
	for i := range expected {
		if output[i] != expected[i] {
			t.Errorf("sample %d: expected %d, got %d", i, expected[i], output[i])
		}
	}
}

func TestResampleDownsampling(t *testing.T) {
	r := New(48000, 24000, 2)

	input := ramp(100, 2, 10)
	output := r.Resample(input)

	if len(output) != 50*2 {
		t.Fatalf("expected 100 samples, got %d", len(output))
	}
	// Every other frame survives
	for f := 0; f < 50; f++ {
		if output[f*2] != input[f*4] || output[f*2+1] != input[f*4+1] {
			t.Fatalf("frame %d: got (%d,%d), want (%d,%d)", f, output[f*2], output[f*2+1], input[f*4], input[f*4+1])
		}
	}
}

func TestResampleContinuityAcrossCalls(t *testing.T) {
	whole := New(22050, 44100, 2)
	split := New(22050, 44100, 2)

	input := ramp(64, 2, 100)
	expected := whole.Resample(input)

	got := append(split.Resample(input[:40]), split.Resample(input[40:])...)

	if len(got) != len(expected) {
		t.Fatalf("split produced %d samples, whole produced %d", len(got), len(expected))
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("sample %d: split %d, whole %d", i, got[i], expected[i])
		}
	}
}

func TestResampleSameRate(t *testing.T) {
	r := New(44100, 44100, 1)

	first := r.Resample([]int32{1, 2, 3})
	second := r.Resample([]int32{4, 5})

	got := append(first, second...)
	expected := []int32{1, 2, 3, 4}
	if len(got) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("sample %d: expected %d, got %d", i, expected[i], got[i])
		}
	}
}

func TestResampleReset(t *testing.T) {
	r := New(44100, 44100, 1)
	r.Resample([]int32{7, 8, 9})
	r.Reset()

	out := r.Resample([]int32{1, 2})
	if len(out) != 1 || out[0] != 1 {
		t.Errorf("expected [1] after reset, got %v", out)
	}
}

func TestResampleEmpty(t *testing.T) {
	r := New(22050, 44100, 2)
	if out := r.Resample(nil); out != nil {
		t.Errorf("expected nil output, got %v", out)
	}
	if r.InputRate() != 22050 {
		t.Errorf("expected input rate 22050, got %d", r.InputRate())
	}
}

func TestRemix(t *testing.T) {
	tests := []struct {
		name     string
		input    []int32
		from, to int
		expected []int32
	}{
		{"mono to stereo", []int32{1, 2}, 1, 2, []int32{1, 1, 2, 2}},
		{"stereo to mono", []int32{2, 4, -6, 6}, 2, 1, []int32{3, 0}},
		{"same", []int32{5, 6}, 2, 2, []int32{5, 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Remix(tt.input, tt.from, tt.to)
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, got)
			}
			for i := range tt.expected {
				if got[i] != tt.expected[i] {
					t.Errorf("sample %d: expected %d, got %d", i, tt.expected[i], got[i])
				}
			}
		})
	}
}
