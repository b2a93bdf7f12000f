// Package midisynth plays Standard MIDI Files through a small software
// synthesizer: files decode into a tick-ordered event stream, a sequencer
// turns the stream into blocks of mono float32 audio using a bank of
// envelope/LFO patches, and the result goes to the audio device, a WAV
// file, or any callback.
package midisynth

import (
	"io"

	intseq "github.com/cbegin/midisynth-go/internal/sequencer"
	intsmf "github.com/cbegin/midisynth-go/internal/smf"
	intsynth "github.com/cbegin/midisynth-go/internal/synth"
)

// The core types re-exported so consumers only import this package.
type (
	Header      = intsmf.Header
	Message     = intsmf.Message
	MessageType = intsmf.MessageType
	Song        = intsmf.Song

	Patch      = intsynth.Patch
	Synth      = intsynth.Synth
	Envelope   = intsynth.Envelope
	Breakpoint = intsynth.Breakpoint
	LFO        = intsynth.LFO
	LFOShape   = intsynth.LFOShape
	Waveshape  = intsynth.Waveshape

	VoiceInfo = intseq.VoiceInfo
)

const (
	// Message types a song can carry. Decoding only retains these; anything
	// else in a file accumulates onto the next retained message's delta.
	NoteOff       = intsmf.NoteOff
	NoteOn        = intsmf.NoteOn
	ProgramChange = intsmf.ProgramChange
	Tempo         = intsmf.Tempo
	EndOfTrack    = intsmf.EndOfTrack

	ShapeSinSaw      = intsynth.ShapeSinSaw
	ShapeResonantSaw = intsynth.ShapeResonantSaw
	ShapeNoise       = intsynth.ShapeNoise

	LFOSine     = intsynth.LFOSine
	LFOSawUp    = intsynth.LFOSawUp
	LFOSawDown  = intsynth.LFOSawDown
	LFOTriangle = intsynth.LFOTriangle
	LFOZero     = intsynth.LFOZero
)

// Decode and parse errors.
var (
	ErrBadMagic            = intsmf.ErrBadMagic
	ErrBadHeaderLength     = intsmf.ErrBadHeaderLength
	ErrUnexpectedEOF       = intsmf.ErrUnexpectedEOF
	ErrMissingEndOfTrack   = intsmf.ErrMissingEndOfTrack
	ErrPrematureEndOfTrack = intsmf.ErrPrematureEndOfTrack
	ErrMalformedPatch      = intsynth.ErrMalformedPatch
)

// DecodeSong reads a Standard MIDI File (format 0 or 1).
func DecodeSong(r io.Reader) (*Song, error) {
	return intsmf.Decode(r)
}

// DecodeSongBytes decodes a Standard MIDI File held in memory.
func DecodeSongBytes(data []byte) (*Song, error) {
	return intsmf.DecodeBytes(data)
}

// NewSong wraps an already-assembled message stream in a single-track song,
// for callers that build events programmatically instead of decoding a
// file.
func NewSong(header Header, messages []Message) *Song {
	return &Song{Header: header, Tracks: [][]Message{messages}}
}

// ParsePatches reads a patch bank from its text form.
func ParsePatches(text string) ([]Patch, error) {
	return intsynth.ParsePatches(text)
}

// FormatPatches renders a bank back to the text ParsePatches reads.
func FormatPatches(patches []Patch) string {
	return intsynth.FormatPatches(patches)
}

// DefaultPatches is a small general-purpose bank: a plucked lead, a slow
// pad, and a noise burst on the last slot for the percussion channel.
func DefaultPatches() []Patch {
	lead := Patch{{
		Shape: ShapeSinSaw,
		DCA: Envelope{
			Points: []Breakpoint{
				{Duration: 0, Amplitude: 0},
				{Duration: 0.01, Amplitude: 1},
				{Duration: 0.2, Amplitude: 0.6},
				{Duration: 0.15, Amplitude: 0},
			},
			Sustain: 2,
		},
		DCW: Envelope{
			Points: []Breakpoint{
				{Duration: 0, Amplitude: 0.7},
				{Duration: 0.3, Amplitude: 0.15},
			},
			Sustain: 1,
		},
		DCO:     intsynth.FlatEnvelope(0),
		Vibrato: LFO{Frequency: 5, Depth: 0.04, Shape: LFOSine},
		Tremolo: LFO{Shape: LFOZero},
	}}

	pad := Patch{{
		Shape: ShapeResonantSaw,
		DCA: Envelope{
			Points: []Breakpoint{
				{Duration: 0, Amplitude: 0},
				{Duration: 0.3, Amplitude: 0.9},
				{Duration: 0.5, Amplitude: 0},
			},
			Sustain: 1,
		},
		DCW: Envelope{
			Points: []Breakpoint{
				{Duration: 0, Amplitude: 1},
				{Duration: 1.2, Amplitude: 6},
				{Duration: 0.8, Amplitude: 3},
			},
			Sustain: 2,
		},
		DCO:     intsynth.FlatEnvelope(0),
		Vibrato: LFO{Shape: LFOZero},
		Tremolo: LFO{Frequency: 0.5, Depth: 0.15, Shape: LFOTriangle},
	}}

	percussion := Patch{{
		Shape: ShapeNoise,
		DCA: Envelope{
			Points: []Breakpoint{
				{Duration: 0, Amplitude: 1},
				{Duration: 0.12, Amplitude: 0},
			},
			Sustain: 1,
		},
		DCW: Envelope{
			Points: []Breakpoint{
				{Duration: 0, Amplitude: 0.9},
				{Duration: 0.1, Amplitude: 0.3},
			},
			Sustain: 1,
		},
		DCO:     intsynth.FlatEnvelope(0),
		Vibrato: LFO{Shape: LFOZero},
		Tremolo: LFO{Shape: LFOZero},
	}}

	return []Patch{lead, pad, percussion}
}
