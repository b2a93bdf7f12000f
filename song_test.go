package midisynth

import (
	"bytes"
	"errors"
	"testing"
)

func smfHeader(format, ntrks, division uint16) []byte {
	return []byte{
		'M', 'T', 'h', 'd',
		0x00, 0x00, 0x00, 0x06,
		byte(format >> 8), byte(format),
		byte(ntrks >> 8), byte(ntrks),
		byte(division >> 8), byte(division),
	}
}

func smfTrack(events []byte) []byte {
	n := len(events)
	chunk := []byte{'M', 'T', 'r', 'k', byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
	return append(chunk, events...)
}

// twoTrackFile is a format 1 file: a conductor track carrying the tempo and
// a note track playing one note on channel 3.
func twoTrackFile() []byte {
	conductor := smfTrack([]byte{
		0x00, 0xFF, 0x51, 0x03, 0x07, 0xA1, 0x20,
		0x00, 0xFF, 0x2F, 0x00,
	})
	notes := smfTrack([]byte{
		0x00, 0x93, 0x40, 0x64,
		0x60, 0x83, 0x40, 0x00,
		0x00, 0xFF, 0x2F, 0x00,
	})
	out := smfHeader(1, 2, 480)
	out = append(out, conductor...)
	return append(out, notes...)
}

func TestDecodeSongBytes(t *testing.T) {
	song, err := DecodeSongBytes(twoTrackFile())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	h := song.Header
	if h.Format != 1 || h.NumTracks != 2 || h.TicksPerUnit != 480 || h.SMPTE() {
		t.Fatalf("unexpected header: %+v", h)
	}
	if len(song.Tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(song.Tracks))
	}

	conductor := song.Tracks[0]
	if len(conductor) != 2 || conductor[0].Type != Tempo || conductor[1].Type != EndOfTrack {
		t.Fatalf("unexpected conductor track: %+v", conductor)
	}
	if !bytes.Equal(conductor[0].Data, []byte{0x07, 0xA1, 0x20}) {
		t.Fatalf("tempo payload = %v", conductor[0].Data)
	}

	notes := song.Tracks[1]
	if len(notes) != 3 {
		t.Fatalf("expected 3 note-track messages, got %d", len(notes))
	}
	on := notes[0]
	if on.Type != NoteOn || on.Channel != 3 || on.Delta != 0 || !bytes.Equal(on.Data, []byte{0x40, 0x64}) {
		t.Fatalf("unexpected note on: %+v", on)
	}
	off := notes[1]
	if off.Type != NoteOff || off.Channel != 3 || off.Delta != 96 {
		t.Fatalf("unexpected note off: %+v", off)
	}
}

func TestDecodeSongMergesTracks(t *testing.T) {
	song, err := DecodeSong(bytes.NewReader(twoTrackFile()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	merged := song.Merged()
	wantTypes := []MessageType{Tempo, EndOfTrack, NoteOn, NoteOff, EndOfTrack}
	wantDeltas := []uint32{0, 0, 0, 96, 0}
	if len(merged) != len(wantTypes) {
		t.Fatalf("merged %d messages, want %d", len(merged), len(wantTypes))
	}
	for i, m := range merged {
		if m.Type != wantTypes[i] || m.Delta != wantDeltas[i] {
			t.Fatalf("merged[%d] = %v delta %d, want %v delta %d",
				i, m.Type, m.Delta, wantTypes[i], wantDeltas[i])
		}
	}
}

func TestDecodeSongRejectsGarbage(t *testing.T) {
	if _, err := DecodeSongBytes([]byte("RIFFnope")); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
	truncated := twoTrackFile()
	if _, err := DecodeSongBytes(truncated[:len(truncated)-4]); err == nil {
		t.Fatalf("expected error for truncated file")
	}
}

func TestNewSongMergedPassthrough(t *testing.T) {
	messages := []Message{
		{Delta: 0, Type: NoteOn, Channel: 0, Data: []byte{60, 100}},
		{Delta: 120, Type: NoteOff, Channel: 0, Data: []byte{60, 0}},
		{Delta: 0, Type: EndOfTrack},
	}
	song := NewSong(Header{Format: 0, NumTracks: 1, TicksPerUnit: 96}, messages)
	merged := song.Merged()
	if len(merged) != len(messages) {
		t.Fatalf("merged %d messages, want %d", len(merged), len(messages))
	}
	for i := range merged {
		if merged[i].Type != messages[i].Type || merged[i].Delta != messages[i].Delta {
			t.Fatalf("merged[%d] = %+v, want %+v", i, merged[i], messages[i])
		}
	}
}

func TestPatchTextRoundTrip(t *testing.T) {
	text := FormatPatches(DefaultPatches())
	bank, err := ParsePatches(text)
	if err != nil {
		t.Fatalf("parse formatted bank: %v", err)
	}
	if len(bank) != len(DefaultPatches()) {
		t.Fatalf("parsed %d patches, want %d", len(bank), len(DefaultPatches()))
	}
	if again := FormatPatches(bank); again != text {
		t.Fatalf("round trip drifted:\nfirst:\n%s\nsecond:\n%s", text, again)
	}
}

func TestParsePatchesText(t *testing.T) {
	bank, err := ParsePatches("F2 A0,1,0.12,0! W0,0.9! ! ! !")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(bank) != 1 || len(bank[0]) != 1 {
		t.Fatalf("expected one patch with one synth, got %+v", bank)
	}
	s := bank[0][0]
	if s.Shape != ShapeNoise {
		t.Fatalf("shape = %v, want noise", s.Shape)
	}
	if len(s.DCA.Points) != 2 || s.DCA.Points[1].Duration != 0.12 {
		t.Fatalf("unexpected DCA: %+v", s.DCA)
	}

	if _, err := ParsePatches(""); !errors.Is(err, ErrMalformedPatch) {
		t.Fatalf("expected ErrMalformedPatch for empty text, got %v", err)
	}
}

func TestDefaultPatchesBank(t *testing.T) {
	bank := DefaultPatches()
	if len(bank) < 2 {
		t.Fatalf("expected at least two default patches, got %d", len(bank))
	}
	last := bank[len(bank)-1]
	if last[0].Shape != ShapeNoise {
		t.Fatalf("last default patch should be the percussion noise patch, got shape %v", last[0].Shape)
	}
}
