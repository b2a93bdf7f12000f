package smf

import (
	"errors"
	"fmt"
	"io"
)

var (
	ErrBadMagic            = errors.New("smf: bad chunk magic")
	ErrBadHeaderLength     = errors.New("smf: bad header chunk length")
	ErrUnexpectedEOF       = errors.New("smf: unexpected end of input")
	ErrMissingEndOfTrack   = errors.New("smf: track has no end-of-track event")
	ErrPrematureEndOfTrack = errors.New("smf: end-of-track before chunk length consumed")
)

// Decode reads a complete Standard MIDI File.
func Decode(rd io.Reader) (*Song, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return DecodeBytes(data)
}

// DecodeBytes decodes a complete Standard MIDI File held in memory.
func DecodeBytes(data []byte) (*Song, error) {
	r := &reader{data: data}
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	tracks := make([][]Message, 0, h.NumTracks)
	for i := 0; i < int(h.NumTracks); i++ {
		track, err := readTrack(r)
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", i, err)
		}
		tracks = append(tracks, track)
	}
	return &Song{Header: h, Tracks: tracks}, nil
}

// DecodeHeader decodes a standalone MThd chunk.
func DecodeHeader(data []byte) (Header, error) {
	return readHeader(&reader{data: data})
}

// DecodeTrack decodes a standalone MTrk chunk.
func DecodeTrack(data []byte) ([]Message, error) {
	return readTrack(&reader{data: data})
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) u8() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, fmt.Errorf("%w at offset %d", ErrUnexpectedEOF, r.pos)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) u16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

func (r *reader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, fmt.Errorf("%w at offset %d", ErrUnexpectedEOF, len(r.data))
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// varLen reads a variable-length quantity: up to 4 bytes, 7 value bits each,
// high bit set on every byte but the last. Returns the value and the number
// of bytes consumed.
func (r *reader) varLen() (uint32, int, error) {
	var v uint32
	for i := 0; i < 4; i++ {
		b, err := r.u8()
		if err != nil {
			return 0, i, err
		}
		v = v<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 4, fmt.Errorf("variable-length quantity exceeds 4 bytes at offset %d", r.pos)
}

func readHeader(r *reader) (Header, error) {
	magic, err := r.take(4)
	if err != nil {
		return Header{}, fmt.Errorf("header magic: %w", err)
	}
	if string(magic) != "MThd" {
		return Header{}, fmt.Errorf("%w: want MThd, got %q", ErrBadMagic, magic)
	}
	length, err := r.u32()
	if err != nil {
		return Header{}, fmt.Errorf("header length: %w", err)
	}
	if length != 6 {
		return Header{}, fmt.Errorf("%w: want 6, got %d", ErrBadHeaderLength, length)
	}
	format, err := r.u16()
	if err != nil {
		return Header{}, fmt.Errorf("header format: %w", err)
	}
	numTracks, err := r.u16()
	if err != nil {
		return Header{}, fmt.Errorf("header track count: %w", err)
	}
	division, err := r.u16()
	if err != nil {
		return Header{}, fmt.Errorf("header division: %w", err)
	}
	if format > 2 {
		return Header{}, fmt.Errorf("unsupported file format %d", format)
	}
	if numTracks == 0 {
		return Header{}, errors.New("file declares zero tracks")
	}

	h := Header{Format: uint8(format), NumTracks: numTracks}
	if division&0x8000 != 0 {
		h.Unit = -int8((^division>>8)&0x3F + 1)
		h.TicksPerUnit = division & 0xFF
		switch h.Unit {
		case -24, -25, -29, -30:
		default:
			return Header{}, fmt.Errorf("invalid SMPTE frame rate tag %d", h.Unit)
		}
	} else {
		h.Unit = QuarterNote
		h.TicksPerUnit = division
	}
	if h.TicksPerUnit == 0 {
		return Header{}, errors.New("division yields zero ticks per unit")
	}
	return h, nil
}

// readTrack decodes one MTrk chunk, keeping note on/off, program change,
// tempo, and end-of-track events. Everything else is consumed at its correct
// width and skipped; skipped deltas accumulate onto the next kept event.
func readTrack(r *reader) ([]Message, error) {
	magic, err := r.take(4)
	if err != nil {
		return nil, fmt.Errorf("track magic: %w", err)
	}
	if string(magic) != "MTrk" {
		return nil, fmt.Errorf("%w: want MTrk, got %q", ErrBadMagic, magic)
	}
	length, err := r.u32()
	if err != nil {
		return nil, fmt.Errorf("track length: %w", err)
	}
	countdown := int(int32(length))

	var msgs []Message
	var delta uint32
	var status byte
	for countdown > 0 {
		d, n, err := r.varLen()
		if err != nil {
			return nil, fmt.Errorf("delta time: %w", err)
		}
		delta += d
		countdown -= n

		b, err := r.u8()
		if err != nil {
			return nil, fmt.Errorf("event status: %w", err)
		}
		countdown--

		// A clear high bit means the byte is the first data byte of an
		// event running under the previous status.
		var first byte
		haveFirst := false
		if b&0x80 == 0 {
			if status == 0 {
				return nil, fmt.Errorf("running status with no prior status byte at offset %d", r.pos-1)
			}
			first = b
			haveFirst = true
		} else {
			status = b
		}

		switch {
		case status == 0xFF:
			subtype, err := r.u8()
			if err != nil {
				return nil, fmt.Errorf("meta subtype: %w", err)
			}
			countdown--
			payloadLen, n, err := r.varLen()
			if err != nil {
				return nil, fmt.Errorf("meta length: %w", err)
			}
			countdown -= n
			payload, err := r.take(int(payloadLen))
			if err != nil {
				return nil, fmt.Errorf("meta payload: %w", err)
			}
			countdown -= int(payloadLen)
			switch MessageType(0xFF00 | uint16(subtype)) {
			case Tempo:
				msgs = append(msgs, Message{Delta: delta, Type: Tempo, Data: append([]byte(nil), payload...)})
				delta = 0
			case EndOfTrack:
				msgs = append(msgs, Message{Delta: delta, Type: EndOfTrack})
				if countdown != 0 {
					return nil, fmt.Errorf("%w: %d bytes unaccounted", ErrPrematureEndOfTrack, countdown)
				}
				return msgs, nil
			}
			status = 0 // meta events cancel running status

		case status == 0xF0 || status == 0xF7:
			payloadLen, n, err := r.varLen()
			if err != nil {
				return nil, fmt.Errorf("sysex length: %w", err)
			}
			countdown -= n
			if _, err := r.take(int(payloadLen)); err != nil {
				return nil, fmt.Errorf("sysex payload: %w", err)
			}
			countdown -= int(payloadLen)
			status = 0

		case status >= 0x80 && status < 0xF0:
			width := channelDataWidth(status)
			data := make([]byte, 0, 2)
			if haveFirst {
				data = append(data, first)
			}
			for len(data) < width {
				db, err := r.u8()
				if err != nil {
					return nil, fmt.Errorf("event data: %w", err)
				}
				countdown--
				data = append(data, db)
			}
			switch t := MessageType(status & 0xF0); t {
			case NoteOff, NoteOn, ProgramChange:
				msgs = append(msgs, Message{Delta: delta, Type: t, Channel: status & 0x0F, Data: data})
				delta = 0
			}

		default:
			return nil, fmt.Errorf("invalid status byte 0x%02X at offset %d", status, r.pos-1)
		}
	}
	return nil, fmt.Errorf("%w after %d kept events", ErrMissingEndOfTrack, len(msgs))
}

// channelDataWidth is the data byte count for a channel status: program
// change and channel pressure carry one byte, the rest two.
func channelDataWidth(status byte) int {
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 1
	}
	return 2
}
