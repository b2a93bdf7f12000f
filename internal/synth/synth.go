package synth

// Synth is one oscillator configuration: a waveshape plus three envelopes
// and two LFOs modulating it. DCA drives amplitude, DCW the wave-shaping
// parameter, DCO the pitch offset in semitones; vibrato adds semitones on
// top of DCO and tremolo scales the DCA level around unity.
type Synth struct {
	Shape   Waveshape
	DCA     Envelope
	DCW     Envelope
	DCO     Envelope
	Vibrato LFO
	Tremolo LFO
}

// DefaultSynth is a plain resonant saw with full sustain and no modulation.
func DefaultSynth() Synth {
	return Synth{
		Shape:   ShapeResonantSaw,
		DCA:     DefaultEnvelope(),
		DCW:     FlatEnvelope(0),
		DCO:     FlatEnvelope(0),
		Vibrato: LFO{Shape: LFOZero},
		Tremolo: LFO{Shape: LFOZero},
	}
}

// FrequencyDelta is the pitch offset in semitones. Theta is the absolute
// oscillator angle, 2π per second of voice time.
func (s *Synth) FrequencyDelta(elapsed float64, active bool, theta float64) float64 {
	return s.DCO.Amplitude(elapsed, active) + s.Vibrato.Value(theta)
}

// Amplitude is the output gain with tremolo applied around the DCA level.
func (s *Synth) Amplitude(elapsed float64, active bool, theta float64) float64 {
	return s.DCA.Amplitude(elapsed, active) * (1 + s.Tremolo.Value(theta))
}

// WaveParam is the wave-shaping control value.
func (s *Synth) WaveParam(elapsed float64, active bool) float64 {
	return s.DCW.Amplitude(elapsed, active)
}

// Alive reports whether the amplitude envelope still produces sound.
func (s *Synth) Alive(elapsed float64, active bool) bool {
	return s.DCA.Alive(elapsed, active)
}
