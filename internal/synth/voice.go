package synth

import "math/rand"

// Voice is one sounding note: a patch shared with every other voice playing
// it, plus this note's advancing state. Voices are created by the sequencer
// on note-on and dropped once Alive reports false.
type Voice struct {
	Channel   uint8
	Note      uint8
	Velocity  uint8
	Frequency float64

	patch Patch
	state *State
	alive bool
}

// NewVoice starts a note on the given patch at the given frequency.
func NewVoice(patch Patch, channel, note, velocity uint8, frequency float64, rng *rand.Rand) *Voice {
	return &Voice{
		Channel:   channel,
		Note:      note,
		Velocity:  velocity,
		Frequency: frequency,
		patch:     patch,
		state:     NewState(rng),
		alive:     true,
	}
}

// RenderInto advances the voice across the block, adding its gain-scaled
// samples in place.
func (v *Voice) RenderInto(block []float32, sampleRate, gain float64) {
	for i := range block {
		v.alive = v.patch.Step(v.state, v.Frequency, sampleRate)
		block[i] += float32(v.state.Previous * gain)
	}
}

// Stop begins the release segment. The voice keeps sounding until its
// amplitude envelope runs out.
func (v *Voice) Stop() {
	v.state.Active = false
	v.state.Elapsed = 0
}

// Alive reports whether the voice still produces sound.
func (v *Voice) Alive() bool { return v.alive }

// Active reports whether the voice is still held.
func (v *Voice) Active() bool { return v.state.Active }
