// ABOUTME: Audio fundamentals package for the speech playback pipeline
// ABOUTME: Defines Chunk, Format, Buffer types and sample conversion functions
// Package audio provides the core types moved through the speech pipeline.
//
//   - Chunk: raw bytes exactly as the transport delivered them, tagged with arrival order
//   - Buffer: PCM decoded from one chunk, carrying its format and duration
//   - Format: codec, sample rate, channel count and bit depth
//
// Samples are int32 values left-justified in the 24-bit range regardless of the
// source bit depth, so 16-bit and 24-bit material flows through the same code.
//
// Example:
//
//	buf := audio.Buffer{
//	    Seq:     3,
//	    Samples: samples,
//	    Format:  audio.Format{Codec: "mp3", SampleRate: 44100, Channels: 2, BitDepth: 16},
//	}
//	log.Printf("chunk %d plays for %v", buf.Seq, buf.Duration())
package audio
