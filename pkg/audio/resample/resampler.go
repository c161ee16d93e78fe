// ABOUTME: Linear resampler for converting audio sample rates
// ABOUTME: Keeps the last frame between calls so consecutive buffers join without a seam
package resample

// Resampler performs linear interpolation to convert between sample rates.
// Consecutive Resample calls are treated as one continuous signal.
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64 // read position relative to lastFrame
	lastFrame  []int32
	havePrev   bool
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		lastFrame:  make([]int32, channels),
	}
}

// InputRate returns the rate the resampler was built for
func (r *Resampler) InputRate() int { return r.inputRate }

// Resample converts interleaved input at inputRate into interleaved output
// at outputRate. The final input frame is held back as the left edge of the
// next call's interpolation.
func (r *Resampler) Resample(input []int32) []int32 {
	inFrames := len(input) / r.channels
	if inFrames == 0 {
		return nil
	}

	// Virtual stream: [lastFrame] + input when a previous call left one behind
	offset := 0
	if r.havePrev {
		offset = 1
	}
	total := inFrames + offset

	frame := func(idx, ch int) int32 {
		if idx < offset {
			return r.lastFrame[ch]
		}
		return input[(idx-offset)*r.channels+ch]
	}

	out := make([]int32, 0, r.OutputSamplesNeeded(len(input))+r.channels)
	for {
		idx := int(r.position)
		if idx+1 >= total {
			break
		}
		frac := r.position - float64(idx)
		for ch := 0; ch < r.channels; ch++ {
			s1 := frame(idx, ch)
			s2 := frame(idx+1, ch)
			out = append(out, int32(float64(s1)*(1.0-frac)+float64(s2)*frac))
		}
		r.position += r.ratio
	}

	copy(r.lastFrame, input[(inFrames-1)*r.channels:inFrames*r.channels])
	r.havePrev = true
	r.position -= float64(total - 1)

	return out
}

// Reset drops the carried frame, starting a new signal
func (r *Resampler) Reset() {
	r.position = 0.0
	r.havePrev = false
	for i := range r.lastFrame {
		r.lastFrame[i] = 0
	}
}

// OutputSamplesNeeded estimates how many output samples input samples produce
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / r.channels
	outputFrames := int(float64(inputFrames) / r.ratio)
	return outputFrames * r.channels
}
