// Package synth implements the voice model: breakpoint envelopes, LFOs,
// waveshape oscillators, and the patch/state pair a voice advances one
// sample at a time. Everything here is sample-rate agnostic float64 math;
// buffers only become float32 when a voice mixes into a block.
package synth

// Breakpoint is one envelope stage: the seconds it takes to reach this point
// from the previous one, and the level held once reached.
type Breakpoint struct {
	Duration  float64
	Amplitude float64
}

// Envelope is a piecewise-linear curve with a designated sustain point.
// While a note is active the walk runs from the start and holds at the
// sustain point; on release it restarts there and runs to the end. The stage
// is derived from the elapsed time on every call, so envelopes carry no
// cursor and are safe to share across voices.
type Envelope struct {
	Points  []Breakpoint
	Sustain int
}

// DefaultEnvelope holds amplitude 1 while the note is active and releases
// instantly.
func DefaultEnvelope() Envelope {
	return Envelope{Points: []Breakpoint{{Duration: 0, Amplitude: 1}}}
}

// FlatEnvelope holds a fixed level for the entire life of a note.
func FlatEnvelope(level float64) Envelope {
	return Envelope{Points: []Breakpoint{{Duration: 0, Amplitude: level}}}
}

func (e Envelope) sustainIndex() int {
	if e.Sustain >= len(e.Points) {
		return len(e.Points) - 1
	}
	return e.Sustain
}

// Amplitude evaluates the envelope at elapsed seconds since the last
// active/release transition.
func (e Envelope) Amplitude(elapsed float64, active bool) float64 {
	pts := e.Points
	if len(pts) == 0 {
		return 0
	}
	if len(pts) == 1 {
		return pts[0].Amplitude
	}
	sustain := e.sustainIndex()
	stage := 0
	last := sustain + 1
	if !active {
		stage = sustain
		last = len(pts)
	}
	for stage+1 < last && elapsed >= pts[stage+1].Duration {
		stage++
		elapsed -= pts[stage].Duration
	}
	if active && stage == sustain {
		return pts[sustain].Amplitude
	}
	if stage+1 == last {
		return 0
	}
	pre := pts[stage].Amplitude
	post := pts[stage+1].Amplitude
	return pre + (post-pre)*(elapsed/pts[stage+1].Duration)
}

// ReleaseTime is the total duration of the stages after the sustain point.
func (e Envelope) ReleaseTime() float64 {
	var total float64
	for i := e.sustainIndex() + 1; i < len(e.Points); i++ {
		total += e.Points[i].Duration
	}
	return total
}

// Alive reports whether the envelope still produces sound: always while
// active, and until the release stages run out afterwards.
func (e Envelope) Alive(elapsed float64, active bool) bool {
	if active {
		return true
	}
	return elapsed < e.ReleaseTime()
}
