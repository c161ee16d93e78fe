// ABOUTME: Audio decoder package for multiple codec support
// ABOUTME: Provides Decoder interface and implementations for PCM, Opus, Ogg Opus, FLAC, MP3
// Package decode provides chunk decoders for streamed audio.
//
// Supports: PCM (16-bit and 24-bit), MP3, raw Opus packets, Ogg Opus, FLAC
//
// Each call to Decode takes one chunk of encoded bytes and returns one
// audio.Buffer holding every sample the chunk completed. Chunk boundaries
// need not line up with frames: PCM, MP3, Ogg Opus and FLAC decoders keep
// the unfinished tail and complete it with the next chunk, returning
// ErrNeedMoreData when a chunk finished nothing. They implement
// StreamDecoder, as does the raw Opus decoder whose libopus state spans
// packets, and must see chunks in order; Reset starts a new stream.
// Bytes that can never become audio, like a JSON error payload delivered
// in place of an MP3 stream, fail with an error. Samples are int32 in the
// 24-bit range.
//
// Example:
//
//	decoder, err := decode.New(audio.Format{Codec: "mp3"})
//	buf, err := decoder.Decode(chunk.Data)
package decode
