// Package smf decodes Standard MIDI Files (format 0 and 1) into the event
// stream the sequencer consumes: headers, per-track message lists, and a
// single delta-ordered merge of all tracks.
package smf

// MessageType identifies a MIDI event. Channel messages use the status high
// nibble; meta messages use 0xFF00 plus the meta subtype so the two spaces
// cannot collide.
type MessageType uint16

const (
	NoteOff              MessageType = 0x80
	NoteOn               MessageType = 0x90
	PolyphonicAftertouch MessageType = 0xA0
	ControlChange        MessageType = 0xB0
	ProgramChange        MessageType = 0xC0
	ChannelPressure      MessageType = 0xD0
	PitchBend            MessageType = 0xE0

	Tempo      MessageType = 0xFF51
	EndOfTrack MessageType = 0xFF2F
)

// IsMeta reports whether t is a meta message type.
func (t MessageType) IsMeta() bool { return t&0xFF00 == 0xFF00 }

func (t MessageType) String() string {
	switch t {
	case NoteOff:
		return "NoteOff"
	case NoteOn:
		return "NoteOn"
	case PolyphonicAftertouch:
		return "PolyphonicAftertouch"
	case ControlChange:
		return "ControlChange"
	case ProgramChange:
		return "ProgramChange"
	case ChannelPressure:
		return "ChannelPressure"
	case PitchBend:
		return "PitchBend"
	case Tempo:
		return "Tempo"
	case EndOfTrack:
		return "EndOfTrack"
	}
	return "Unknown"
}

// Message is one retained MIDI event. Delta is in ticks relative to the
// previous retained message of the same stream; deltas of skipped events
// accumulate onto the next retained one, so total tick time is preserved.
type Message struct {
	Delta   uint32
	Type    MessageType
	Channel uint8
	Data    []byte
}

// QuarterNote marks a metrical division in Header.Unit. Any other Unit value
// is a negative SMPTE frame-rate tag (-24, -25, -29 drop-frame, -30).
const QuarterNote int8 = 0

// Header is the decoded MThd chunk. For metrical divisions TicksPerUnit is
// ticks per quarter note; for SMPTE divisions it is sub-ticks per frame.
type Header struct {
	Format       uint8
	NumTracks    uint16
	TicksPerUnit uint16
	Unit         int8
}

// SMPTE reports whether the header carries an SMPTE (frames-per-second)
// division rather than a metrical one.
func (h Header) SMPTE() bool { return h.Unit != QuarterNote }

// FramesPerSecond returns the SMPTE frame rate, using 29.97 for the
// drop-frame tag. Zero for metrical divisions.
func (h Header) FramesPerSecond() float64 {
	switch h.Unit {
	case QuarterNote:
		return 0
	case -29:
		return 29.97
	}
	return float64(-h.Unit)
}

// Song is a fully decoded file: the header plus each track's retained
// messages in file order.
type Song struct {
	Header Header
	Tracks [][]Message

	merged []Message
}

// Merged returns the k-way merge of all tracks, computing it on first use.
func (s *Song) Merged() []Message {
	if s.merged == nil {
		s.merged = Merge(s.Tracks)
	}
	return s.merged
}
