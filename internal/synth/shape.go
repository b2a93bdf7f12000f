package synth

import (
	"math"
	"math/rand"
)

// Waveshape selects the oscillator algorithm of a Synth. The values double
// as the F tag ids in patch text.
type Waveshape int

const (
	// ShapeSinSaw morphs from a pure sine (param 0) to an upward saw
	// (param 1).
	ShapeSinSaw Waveshape = iota
	// ShapeResonantSaw runs a sine at param times the base pitch under a
	// falling saw window, a cheap resonant-filter sweep.
	ShapeResonantSaw
	// ShapeNoise is a one-pole smoothed random walk; param is the smoothing
	// coefficient (0 holds, 1 is white).
	ShapeNoise
)

// shapeSample evaluates one oscillator sample. Phase must be in [0, 2π),
// param comes from the DCW envelope, prev is the previous output sample for
// shapes with memory, and rng drives the noise shape.
func shapeSample(shape Waveshape, phase, param, prev float64, rng *rand.Rand) float64 {
	switch shape {
	case ShapeSinSaw:
		s := math.Sin(phase)
		return s + (sawUp(phase)-s)*param
	case ShapeResonantSaw:
		return math.Sin(phase*param) * (1 - math.Mod(phase/twoPi, 1))
	case ShapeNoise:
		return prev + (rng.Float64()-prev)*param
	}
	return 0
}
