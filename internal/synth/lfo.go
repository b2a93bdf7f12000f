package synth

import "math"

const twoPi = 2 * math.Pi

// LFOShape selects the low-frequency oscillator waveform. The values double
// as the shape ids in patch text.
type LFOShape int

const (
	LFOSine LFOShape = iota
	LFOSawUp
	LFOSawDown
	LFOTriangle
	LFOZero
)

// LFO is a low-frequency modulator evaluated at an absolute angle rather
// than advanced per sample, so it carries no state. Depth scales the shape,
// DC offsets the result, Offset is the starting phase in radians. The zero
// value is silence.
type LFO struct {
	Frequency float64
	Depth     float64
	Shape     LFOShape
	Offset    float64
	DC        float64
}

// Value evaluates the oscillator at angular position theta (radians, 2π per
// second of voice time). The shape argument is wrapped into [0, 2π) so long
// notes cannot walk the piecewise shapes out of their domain.
func (l LFO) Value(theta float64) float64 {
	if l.Depth == 0 && l.DC == 0 {
		return 0
	}
	x := math.Mod(l.Offset+theta*l.Frequency, twoPi)
	if x < 0 {
		x += twoPi
	}
	return l.DC + l.Depth*lfoShapeValue(l.Shape, x)
}

// Active reports whether the LFO contributes anything.
func (l LFO) Active() bool {
	return l.Depth != 0 || l.DC != 0
}

// lfoShapeValue evaluates a shape at x in [0, 2π), returning a value in
// [-1, 1].
func lfoShapeValue(s LFOShape, x float64) float64 {
	switch s {
	case LFOSine:
		return math.Sin(x)
	case LFOSawUp:
		return sawUp(x)
	case LFOSawDown:
		return -sawUp(x)
	case LFOTriangle:
		p := x / math.Pi
		return math.Min(p, 2-p)*2 - 1
	}
	return 0
}

// sawUp ramps -1..1 over one 2π cycle.
func sawUp(x float64) float64 {
	return math.Mod(x/math.Pi, 2) - 1
}
