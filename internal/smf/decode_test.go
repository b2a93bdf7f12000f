package smf

import (
	"errors"
	"math"
	"testing"
)

func headerChunk(format, ntrks, division uint16) []byte {
	return []byte{
		'M', 'T', 'h', 'd',
		0x00, 0x00, 0x00, 0x06,
		byte(format >> 8), byte(format),
		byte(ntrks >> 8), byte(ntrks),
		byte(division >> 8), byte(division),
	}
}

func trackChunk(events []byte) []byte {
	n := len(events)
	chunk := []byte{'M', 'T', 'r', 'k', byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
	return append(chunk, events...)
}

func fileBytes(header []byte, tracks ...[]byte) []byte {
	out := append([]byte(nil), header...)
	for _, tr := range tracks {
		out = append(out, tr...)
	}
	return out
}

func TestDecodeHeaderSMPTE(t *testing.T) {
	// Division 0xE728: SMPTE -25 fps, 40 sub-ticks per frame.
	h, err := DecodeHeader(headerChunk(0, 1, 0xE728))
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if h.Format != 0 {
		t.Fatalf("expected format 0, got %d", h.Format)
	}
	if h.NumTracks != 1 {
		t.Fatalf("expected 1 track, got %d", h.NumTracks)
	}
	if h.Unit != -25 {
		t.Fatalf("expected unit -25, got %d", h.Unit)
	}
	if h.TicksPerUnit != 40 {
		t.Fatalf("expected 40 ticks per unit, got %d", h.TicksPerUnit)
	}
	if !h.SMPTE() {
		t.Fatalf("expected SMPTE header")
	}
	if math.Abs(h.FramesPerSecond()-25) > 1e-9 {
		t.Fatalf("expected 25 fps, got %v", h.FramesPerSecond())
	}
}

func TestDecodeHeaderMetrical(t *testing.T) {
	h, err := DecodeHeader(headerChunk(1, 2, 480))
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if h.Unit != QuarterNote {
		t.Fatalf("expected quarter-note division, got unit %d", h.Unit)
	}
	if h.TicksPerUnit != 480 {
		t.Fatalf("expected 480 ticks per quarter note, got %d", h.TicksPerUnit)
	}
	if h.SMPTE() {
		t.Fatalf("expected metrical header")
	}
}

func TestDecodeHeaderDropFrame(t *testing.T) {
	// High byte 0xE3 is the -29 drop-frame tag.
	h, err := DecodeHeader(headerChunk(0, 1, 0xE328))
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if h.Unit != -29 {
		t.Fatalf("expected unit -29, got %d", h.Unit)
	}
	if math.Abs(h.FramesPerSecond()-29.97) > 1e-9 {
		t.Fatalf("expected 29.97 fps for drop-frame, got %v", h.FramesPerSecond())
	}
}

func TestDecodeHeaderRejectsBadInput(t *testing.T) {
	bad := headerChunk(0, 1, 480)
	bad[3] = 'X'
	if _, err := DecodeHeader(bad); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}

	long := headerChunk(0, 1, 480)
	long[7] = 7
	if _, err := DecodeHeader(long); !errors.Is(err, ErrBadHeaderLength) {
		t.Fatalf("expected ErrBadHeaderLength, got %v", err)
	}

	if _, err := DecodeHeader(headerChunk(3, 1, 480)); err == nil {
		t.Fatalf("expected error for format 3")
	}
	if _, err := DecodeHeader(headerChunk(0, 0, 480)); err == nil {
		t.Fatalf("expected error for zero tracks")
	}
	if _, err := DecodeHeader(headerChunk(0, 1, 0)); err == nil {
		t.Fatalf("expected error for zero division")
	}
	// High byte 0x80 decodes to frame tag -64, which is not a legal rate.
	if _, err := DecodeHeader(headerChunk(0, 1, 0x8028)); err == nil {
		t.Fatalf("expected error for invalid SMPTE tag")
	}
	if _, err := DecodeHeader(headerChunk(0, 1, 480)[:10]); !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF for truncated header, got %v", err)
	}
}

func TestVarLen(t *testing.T) {
	cases := []struct {
		in   []byte
		want uint32
		n    int
	}{
		{[]byte{0x00}, 0, 1},
		{[]byte{0x40}, 64, 1},
		{[]byte{0x7F}, 127, 1},
		{[]byte{0x81, 0x00}, 128, 2},
		{[]byte{0xC0, 0x00}, 8192, 2},
		{[]byte{0xFF, 0xFF, 0xFF, 0x7F}, 0x0FFFFFFF, 4},
	}
	for _, c := range cases {
		r := &reader{data: c.in}
		got, n, err := r.varLen()
		if err != nil {
			t.Fatalf("varLen(% X): %v", c.in, err)
		}
		if got != c.want || n != c.n {
			t.Fatalf("varLen(% X) = %d over %d bytes, want %d over %d", c.in, got, n, c.want, c.n)
		}
	}

	r := &reader{data: []byte{0x81, 0x81, 0x81, 0x81, 0x01}}
	if _, _, err := r.varLen(); err == nil {
		t.Fatalf("expected error for 5-byte quantity")
	}
}

func TestDecodeTrackRunningStatus(t *testing.T) {
	msgs, err := DecodeTrack(trackChunk([]byte{
		0x00, 0x90, 0x3C, 0x40,
		0x10, 0x3E, 0x40, // running status: still a note-on
		0x00, 0xFF, 0x2F, 0x00,
	}))
	if err != nil {
		t.Fatalf("decode track: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Type != NoteOn || msgs[0].Data[0] != 0x3C {
		t.Fatalf("expected NoteOn 0x3C, got %v %X", msgs[0].Type, msgs[0].Data)
	}
	if msgs[1].Type != NoteOn || msgs[1].Data[0] != 0x3E || msgs[1].Delta != 0x10 {
		t.Fatalf("expected running-status NoteOn 0x3E delta 16, got %v %X delta %d",
			msgs[1].Type, msgs[1].Data, msgs[1].Delta)
	}
	if msgs[2].Type != EndOfTrack {
		t.Fatalf("expected trailing EndOfTrack, got %v", msgs[2].Type)
	}
}

func TestDecodeTrackSkippedDeltasAccumulate(t *testing.T) {
	msgs, err := DecodeTrack(trackChunk([]byte{
		0x10, 0xB0, 0x07, 0x64, // control change, skipped
		0x20, 0x90, 0x3C, 0x40,
		0x00, 0xFF, 0x2F, 0x00,
	}))
	if err != nil {
		t.Fatalf("decode track: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 kept messages, got %d", len(msgs))
	}
	if msgs[0].Delta != 0x30 {
		t.Fatalf("expected skipped delta folded in (0x30), got 0x%X", msgs[0].Delta)
	}
}

func TestDecodeTrackRunningProgramChange(t *testing.T) {
	// A running-status program change carries exactly one data byte; reading
	// two would desync everything after it.
	msgs, err := DecodeTrack(trackChunk([]byte{
		0x00, 0xC3, 0x05,
		0x00, 0x06,
		0x00, 0x90, 0x3C, 0x40,
		0x00, 0xFF, 0x2F, 0x00,
	}))
	if err != nil {
		t.Fatalf("decode track: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if msgs[0].Type != ProgramChange || msgs[0].Channel != 3 || msgs[0].Data[0] != 5 {
		t.Fatalf("expected ProgramChange ch3 program 5, got %v ch%d %X", msgs[0].Type, msgs[0].Channel, msgs[0].Data)
	}
	if msgs[1].Type != ProgramChange || msgs[1].Data[0] != 6 {
		t.Fatalf("expected running ProgramChange program 6, got %v %X", msgs[1].Type, msgs[1].Data)
	}
	if msgs[2].Type != NoteOn {
		t.Fatalf("expected NoteOn after program changes, got %v", msgs[2].Type)
	}
}

func TestDecodeTrackTempoRetained(t *testing.T) {
	msgs, err := DecodeTrack(trackChunk([]byte{
		0x00, 0xFF, 0x51, 0x03, 0x07, 0xA1, 0x20,
		0x00, 0xFF, 0x2F, 0x00,
	}))
	if err != nil {
		t.Fatalf("decode track: %v", err)
	}
	if msgs[0].Type != Tempo {
		t.Fatalf("expected Tempo, got %v", msgs[0].Type)
	}
	if len(msgs[0].Data) != 3 || msgs[0].Data[0] != 0x07 || msgs[0].Data[1] != 0xA1 || msgs[0].Data[2] != 0x20 {
		t.Fatalf("expected tempo payload 07 A1 20, got % X", msgs[0].Data)
	}
}

func TestDecodeTrackSkipsSysexAndUnknownMeta(t *testing.T) {
	msgs, err := DecodeTrack(trackChunk([]byte{
		0x00, 0xF0, 0x03, 0x01, 0x02, 0xF7, // sysex, skipped
		0x00, 0xFF, 0x03, 0x04, 't', 'e', 's', 't', // track name, skipped
		0x05, 0x90, 0x3C, 0x40,
		0x00, 0xFF, 0x2F, 0x00,
	}))
	if err != nil {
		t.Fatalf("decode track: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 kept messages, got %d", len(msgs))
	}
	if msgs[0].Type != NoteOn || msgs[0].Delta != 0x05 {
		t.Fatalf("expected NoteOn delta 5, got %v delta %d", msgs[0].Type, msgs[0].Delta)
	}
}

func TestDecodeTrackErrors(t *testing.T) {
	noEnd := trackChunk([]byte{0x00, 0x90, 0x3C, 0x40})
	if _, err := DecodeTrack(noEnd); !errors.Is(err, ErrMissingEndOfTrack) {
		t.Fatalf("expected ErrMissingEndOfTrack, got %v", err)
	}

	early := trackChunk([]byte{
		0x00, 0xFF, 0x2F, 0x00,
		0x00, 0x90, 0x3C, 0x40, // bytes after end-of-track
	})
	if _, err := DecodeTrack(early); !errors.Is(err, ErrPrematureEndOfTrack) {
		t.Fatalf("expected ErrPrematureEndOfTrack, got %v", err)
	}

	badMagic := trackChunk([]byte{0x00, 0xFF, 0x2F, 0x00})
	badMagic[0] = 'X'
	if _, err := DecodeTrack(badMagic); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}

	orphan := trackChunk([]byte{0x00, 0x3C, 0x40, 0x00, 0xFF, 0x2F, 0x00})
	if _, err := DecodeTrack(orphan); err == nil {
		t.Fatalf("expected error for running status with no prior status")
	}

	truncated := trackChunk([]byte{0x00, 0x90, 0x3C, 0x40, 0x00, 0xFF, 0x2F, 0x00})
	truncated = truncated[:len(truncated)-4]
	if _, err := DecodeTrack(truncated); !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestDecodeBytesWholeFile(t *testing.T) {
	melody := trackChunk([]byte{
		0x00, 0xFF, 0x51, 0x03, 0x07, 0xA1, 0x20,
		0x00, 0x90, 0x3C, 0x40,
		0x60, 0x80, 0x3C, 0x00,
		0x00, 0xFF, 0x2F, 0x00,
	})
	harmony := trackChunk([]byte{
		0x30, 0x91, 0x40, 0x40,
		0x30, 0x81, 0x40, 0x00,
		0x00, 0xFF, 0x2F, 0x00,
	})
	song, err := DecodeBytes(fileBytes(headerChunk(1, 2, 480), melody, harmony))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(song.Tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(song.Tracks))
	}
	merged := song.Merged()
	if len(merged) != len(song.Tracks[0])+len(song.Tracks[1]) {
		t.Fatalf("expected merge to keep all %d messages, got %d",
			len(song.Tracks[0])+len(song.Tracks[1]), len(merged))
	}
	if merged[len(merged)-1].Type != EndOfTrack {
		t.Fatalf("expected merged stream to end with EndOfTrack, got %v", merged[len(merged)-1].Type)
	}
}
