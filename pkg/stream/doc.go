// ABOUTME: Inbound stream package: chunk reader and ordered decode stage
// ABOUTME: Defines the transport and decode error types
// Package stream turns a byte stream into an ordered sequence of decoded
// audio buffers.
//
// A Reader slices the stream into chunks as bytes arrive. A DecodeStage
// decodes those chunks, optionally on several goroutines, and hands the
// results on in the order the chunks arrived. A chunk that fails to decode
// is logged and skipped; a run of failures or a transport failure ends the
// stream with an error.
//
// Example:
//
//	r := stream.NewReader(resp.Body, stream.DefaultChunkSize)
//	chunk, err := r.Next(ctx)
//	if err == io.EOF {
//		// stream complete
//	}
package stream
