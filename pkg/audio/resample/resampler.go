// ABOUTME: Simple linear resampler for converting audio sample rates
// ABOUTME: Brings decoded sources at native rates up or down to the engine rate
package resample

// Resampler performs linear interpolation between sample rates on
// interleaved float32 PCM.
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64
}

// New creates a resampler converting inputRate to outputRate.
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
	}
}

// Passthrough reports whether no rate conversion is needed.
func (r *Resampler) Passthrough() bool { return r.inputRate == r.outputRate }

// Resample converts input samples to the output rate, writing into output.
// Both slices are interleaved. Returns the number of output samples written.
func (r *Resampler) Resample(input, output []float32) int {
	if len(input) == 0 {
		return 0
	}

	inputFrames := len(input) / r.channels
	outputFrames := len(output) / r.channels

	outIdx := 0
	for outIdx < outputFrames {
		inputPos := r.position
		inputIdx := int(inputPos)

		if inputIdx >= inputFrames-1 {
			break
		}

		frac := float32(inputPos - float64(inputIdx))
		for ch := 0; ch < r.channels; ch++ {
			s1 := input[inputIdx*r.channels+ch]
			s2 := input[(inputIdx+1)*r.channels+ch]
			output[outIdx*r.channels+ch] = s1*(1-frac) + s2*frac
		}

		outIdx++
		r.position += r.ratio
	}

	// Keep only the fractional part for the next chunk.
	r.position -= float64(int(r.position))

	return outIdx * r.channels
}

// Reset clears interpolation state, for use after a seek.
func (r *Resampler) Reset() {
	r.position = 0.0
}

// InputSamplesNeeded calculates how many input samples are needed to produce
// outputSamples output samples.
func (r *Resampler) InputSamplesNeeded(outputSamples int) int {
	outputFrames := outputSamples / r.channels
	inputFrames := int(float64(outputFrames)*r.ratio) + 1
	return inputFrames * r.channels
}
