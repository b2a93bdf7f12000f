package sequencer

import "github.com/cbegin/midisynth-go/internal/smf"

// DefaultTempo is the tempo assumed until a tempo meta event arrives,
// in microseconds per quarter note (120 BPM).
const DefaultTempo = 500000

// Clock converts delta ticks to wall-clock milliseconds under the file's
// division and whatever tempo is current. SMPTE divisions are pure
// wall-clock and ignore tempo entirely.
type Clock struct {
	header       smf.Header
	usecPerQNote float64
}

// NewClock returns a clock for the given header, at the default tempo.
func NewClock(header smf.Header) *Clock {
	return &Clock{header: header, usecPerQNote: DefaultTempo}
}

// Milliseconds returns the duration of the given tick count.
func (c *Clock) Milliseconds(ticks uint32) float64 {
	units := float64(ticks) / float64(c.header.TicksPerUnit)
	if c.header.SMPTE() {
		return units / c.header.FramesPerSecond() * 1000
	}
	return units * c.usecPerQNote / 1000
}

// SetTempo installs a tempo meta payload: a 24-bit big-endian count of
// microseconds per quarter note. Short or zero payloads are ignored.
func (c *Clock) SetTempo(data []byte) {
	if len(data) < 3 {
		return
	}
	usec := uint32(data[0])<<16 | uint32(data[1])<<8 | uint32(data[2])
	if usec == 0 {
		return
	}
	c.usecPerQNote = float64(usec)
}

// TempoMicros returns the current tempo in microseconds per quarter note.
func (c *Clock) TempoMicros() int {
	return int(c.usecPerQNote)
}

// BPM returns the current tempo in quarter notes per minute.
func (c *Clock) BPM() float64 {
	return 60e6 / c.usecPerQNote
}
