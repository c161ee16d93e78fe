// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts audio between sample rates and channel counts
// Package resample provides sample rate and channel count conversion.
//
// The oto context is opened once per process at a fixed rate, so buffers
// at any other rate pass through a Resampler on their way to the device.
//
// Example:
//
//	r := resample.New(22050, 44100, 2)
//	out := r.Resample(buf.Samples)
package resample
