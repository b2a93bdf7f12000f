package synth

import (
	"math"
	"math/rand"
)

// Patch is a stack of synths laid out along oscillator phase: phase in
// [2πk, 2π(k+1)) selects synth k, so a multi-synth patch alternates timbres
// cycle by cycle as the phase accumulator sweeps the stack.
type Patch []Synth

// DefaultPatch is a single default synth.
func DefaultPatch() Patch {
	return Patch{DefaultSynth()}
}

// State is the per-voice mutable data a Patch advances sample by sample.
// Time is seconds since the voice started; Elapsed is envelope time and
// restarts at zero on release; Previous is the last produced sample, fed
// back into shapes with memory and read by the mixer.
type State struct {
	Phase    float64
	Time     float64
	Elapsed  float64
	Previous float64
	Active   bool
	RNG      *rand.Rand
}

// NewState returns voice state at phase zero driven by the given noise
// source.
func NewState(rng *rand.Rand) *State {
	return &State{Active: true, RNG: rng}
}

// Step advances the state by one sample at the given base frequency and
// reports whether the synth it selected can still be heard at the new
// envelope time.
func (p Patch) Step(state *State, frequency, sampleRate float64) bool {
	n := len(p)
	if n == 0 {
		return false
	}
	index := int(state.Phase / twoPi)
	if index < 0 {
		index = 0
	} else if index >= n {
		index = n - 1
	}
	sub := state.Phase - float64(index)*twoPi
	s := &p[index]

	theta := twoPi * state.Time
	amp := s.Amplitude(state.Elapsed, state.Active, theta)
	param := s.WaveParam(state.Elapsed, state.Active)
	delta := s.FrequencyDelta(state.Elapsed, state.Active, theta)

	sample := shapeSample(s.Shape, sub, param, state.Previous, state.RNG) * amp

	effective := frequency * math.Pow(2, delta/12)
	dt := 1 / sampleRate
	state.Phase = math.Mod(state.Phase+twoPi*effective*dt, twoPi*float64(n))
	state.Time += dt
	state.Elapsed += dt
	state.Previous = sample

	return s.Alive(state.Elapsed, state.Active)
}
