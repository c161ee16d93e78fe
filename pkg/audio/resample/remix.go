// ABOUTME: Channel count conversion
// ABOUTME: Duplicates mono to N channels or averages N channels down
package resample

// Remix converts interleaved samples from one channel count to another.
// Mono is duplicated across outputs; anything else is averaged to mono
// first and then spread.
func Remix(samples []int32, from, to int) []int32 {
	if from == to || from <= 0 || to <= 0 {
		return samples
	}

	frames := len(samples) / from
	out := make([]int32, frames*to)
	for f := 0; f < frames; f++ {
		var v int64
		if from == 1 {
			v = int64(samples[f])
		} else {
			for ch := 0; ch < from; ch++ {
				v += int64(samples[f*from+ch])
			}
			v /= int64(from)
		}
		for ch := 0; ch < to; ch++ {
			out[f*to+ch] = int32(v)
		}
	}
	return out
}
