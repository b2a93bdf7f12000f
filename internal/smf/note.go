package smf

import "math"

// NoteFrequency converts a MIDI note number to Hz in twelve-tone equal
// temperament tuned to A4 (note 69) = 440 Hz. Cents shifts the result by
// hundredths of a semitone.
func NoteFrequency(note uint8, cents float64) float64 {
	return 440 * math.Pow(2, (float64(note)+cents/100-69)/12)
}
