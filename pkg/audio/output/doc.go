// ABOUTME: Audio output package for playing decoded buffers
// ABOUTME: Provides the Device interface with oto and silent implementations
// Package output provides audio playback devices.
//
// A Device accepts one buffer at a time and reports completion through a
// callback. The Oto device drives the system audio output through a single
// long-lived player; Null discards audio and is used for dry runs.
//
// Example:
//
//	dev, err := output.NewOto(output.DefaultOtoConfig())
//	err = dev.Play(buf, func() { finished <- buf.Seq })
package output
