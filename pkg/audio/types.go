// ABOUTME: Audio type definitions for the speech pipeline
// ABOUTME: Defines raw chunks, stream formats and decoded buffers
package audio

import "time"

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Format describes a decoded audio stream
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Chunk is one unit of bytes as delivered by the transport.
// Seq is the arrival index within a session, starting at 0.
// Boundaries carry no meaning with respect to audio frames.
type Chunk struct {
	Seq  uint64
	Data []byte
}

// Buffer is playable PCM decoded from exactly one Chunk
type Buffer struct {
	Seq     uint64  // Seq of the source chunk
	Samples []int32 // Interleaved, left-justified in the 24-bit range
	Format  Format
}

// Frames returns the number of sample frames (samples per channel)
func (b Buffer) Frames() int {
	if b.Format.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Format.Channels
}

// Duration returns how long the buffer takes to play at its sample rate
func (b Buffer) Duration() time.Duration {
	if b.Format.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.Format.SampleRate)
}

// SampleToInt16 narrows a 24-bit range sample to 16 bits
func SampleToInt16(sample int32) int16 {
	return int16(sample >> 8)
}

// SampleFromInt16 widens a 16-bit sample into the 24-bit range
func SampleFromInt16(sample int16) int32 {
	return int32(sample) << 8
}

// SampleTo24Bit packs the low 24 bits of a sample little-endian
func SampleTo24Bit(sample int32) [3]byte {
	return [3]byte{
		byte(sample),
		byte(sample >> 8),
		byte(sample >> 16),
	}
}

// SampleFrom24Bit unpacks a little-endian 24-bit sample and sign-extends it
func SampleFrom24Bit(b [3]byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}

// ScaleTo24Bit moves a sample of the given bit depth into the 24-bit range
func ScaleTo24Bit(sample int32, bitDepth int) int32 {
	switch {
	case bitDepth == 24:
		return sample
	case bitDepth < 24:
		return sample << (24 - bitDepth)
	default:
		return sample >> (bitDepth - 24)
	}
}
