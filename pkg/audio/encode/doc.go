// ABOUTME: Audio encoder package for turning samples back into bytes
// ABOUTME: Provides the Encoder interface and a PCM implementation
// Package encode converts decoded samples into PCM bytes.
//
// The output device uses it to feed oto, and tests use it to build
// PCM chunks for the pipeline.
//
// Example:
//
//	encoder, err := encode.NewPCM(audio.Format{Codec: "pcm", BitDepth: 16})
//	data, err := encoder.Encode(buf.Samples)
package encode
