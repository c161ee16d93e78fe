// ABOUTME: Playback package: warm-up scheduler, queue and session runner
// ABOUTME: Plays a streamed utterance back-to-back on one output device
// Package playback plays a stream of decoded buffers on an output device.
//
// A Scheduler holds buffers until a warm-up threshold is reached, then
// keeps exactly one buffer on the device at a time, submitting the next
// one from inside the previous one's completion so there is no gap. A
// Session wires a chunk reader, a decode stage and a scheduler together
// for one inbound stream and supports cancellation from any goroutine.
//
// States move Idle → Warming → Playing, dip into Draining when the queue
// runs dry with the stream still open, and end in Finished. Cancellation
// and fatal errors return to Idle.
//
// Example:
//
//	s := playback.NewSession(playback.DefaultConfig(), device, decoder)
//	err := s.Run(ctx, resp.Body)
package playback
