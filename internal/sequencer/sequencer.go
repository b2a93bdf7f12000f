// Package sequencer walks a merged MIDI event stream and renders it to
// mono float32 audio, one block per inter-event gap. Each message's delta
// becomes a block of samples rendered with the voice table as it stood
// before the message; the message then takes effect at the block boundary.
package sequencer

import (
	"context"
	"math/rand"
	"sort"

	"github.com/cbegin/midisynth-go/internal/smf"
	"github.com/cbegin/midisynth-go/internal/synth"
)

// drumChannel is the conventional percussion channel. Notes on it always
// play the last patch of the bank, regardless of program changes.
const drumChannel = 9

// VoiceInfo is a snapshot of one sounding voice at a block boundary,
// ordered by (channel, note). Snapshots passed to callbacks are reused
// between blocks; copy them to retain.
type VoiceInfo struct {
	Channel  uint8
	Note     uint8
	Velocity uint8
}

// Option configures a Sequencer.
type Option func(*config)

type config struct {
	programRouting bool
	noiseSeed      int64
	releaseTail    float64
	observer       func([]VoiceInfo)
}

func defaultConfig() config {
	return config{noiseSeed: 1}
}

// WithProgramRouting makes program-change messages select patches from the
// bank per channel. Off by default: every channel except the percussion
// channel plays patch zero.
func WithProgramRouting(enabled bool) Option {
	return func(c *config) { c.programRouting = enabled }
}

// WithNoiseSeed seeds the noise generator shared by every voice of this
// run. The default seed is 1, so identical inputs render identical audio.
func WithNoiseSeed(seed int64) Option {
	return func(c *config) { c.noiseSeed = seed }
}

// WithReleaseTail keeps rendering for up to the given number of seconds
// after the final event, so releasing envelopes ring out instead of being
// cut at the last block boundary. Zero by default.
func WithReleaseTail(seconds float64) Option {
	return func(c *config) { c.releaseTail = seconds }
}

// WithBlockObserver registers a callback invoked with the voice snapshot of
// every block rendered through Process. Run-style playback reports voices
// through its own callback instead.
func WithBlockObserver(fn func([]VoiceInfo)) Option {
	return func(c *config) { c.observer = fn }
}

// Sequencer renders one merged message stream. It is single-use and not
// safe for concurrent use; drive it either with Run or with Process, not
// both.
type Sequencer struct {
	header     smf.Header
	messages   []smf.Message
	patches    []synth.Patch
	sampleRate float64
	cfg        config

	clock     *Clock
	rng       *rand.Rand
	voices    []*synth.Voice
	programs  [16]int
	gain      float64
	maxVoices int

	pos         int
	block       []float32
	infos       []VoiceInfo
	tailSamples int
	tailBlock   int

	carry    []float32
	carryOff int
	finished bool
}

// New builds a sequencer over an already-merged message stream. The patch
// bank must hold at least one patch; an empty bank is replaced by the
// default patch. Gain is fixed for the whole run at one over the stream's
// maximum polyphony.
func New(header smf.Header, messages []smf.Message, patches []synth.Patch, sampleRate int, opts ...Option) *Sequencer {
	if len(patches) == 0 {
		patches = []synth.Patch{synth.DefaultPatch()}
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	maxVoices := smf.MaxPolyphony(messages)
	tailBlock := sampleRate / 10
	if tailBlock < 1 {
		tailBlock = 1
	}
	return &Sequencer{
		header:      header,
		messages:    messages,
		patches:     patches,
		sampleRate:  float64(sampleRate),
		cfg:         cfg,
		clock:       NewClock(header),
		rng:         rand.New(rand.NewSource(cfg.noiseSeed)),
		gain:        1 / float64(maxVoices),
		maxVoices:   maxVoices,
		tailSamples: int(cfg.releaseTail * float64(sampleRate)),
		tailBlock:   tailBlock,
	}
}

// MaxVoices returns the stream's maximum polyphony, the divisor used for
// the per-voice gain.
func (s *Sequencer) MaxVoices() int { return s.maxVoices }

// TempoMicros returns the current tempo in microseconds per quarter note.
// Tempo only changes at block boundaries.
func (s *Sequencer) TempoMicros() int { return s.clock.TempoMicros() }

// BPM returns the current tempo in quarter notes per minute.
func (s *Sequencer) BPM() float64 { return s.clock.BPM() }

// Run drives the whole stream, invoking cb once per block boundary with the
// rendered samples and the voices that sounded in them. Both slices are
// reused between calls. A non-nil error from cb stops playback and is
// returned.
func (s *Sequencer) Run(cb func(block []float32, voices []VoiceInfo) error) error {
	return s.RunContext(context.Background(), cb)
}

// RunContext is Run with cancellation checked between blocks.
func (s *Sequencer) RunContext(ctx context.Context, cb func(block []float32, voices []VoiceInfo) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		block, voices, ok := s.next()
		if !ok {
			return nil
		}
		if cb != nil {
			if err := cb(block, voices); err != nil {
				return err
			}
		}
	}
}

// Process fills dst with the next rendered samples, advancing the event
// stream as needed, and returns how many were written. Once the stream and
// any release tail are exhausted it returns short counts and finally zero.
func (s *Sequencer) Process(dst []float32) int {
	filled := 0
	for filled < len(dst) {
		if s.carryOff < len(s.carry) {
			n := copy(dst[filled:], s.carry[s.carryOff:])
			s.carryOff += n
			filled += n
			continue
		}
		block, voices, ok := s.next()
		if !ok {
			break
		}
		if s.cfg.observer != nil {
			s.cfg.observer(voices)
		}
		s.carry = block
		s.carryOff = 0
	}
	return filled
}

// Finished reports whether every message has been applied, the release tail
// has been rendered, and all samples have been consumed.
func (s *Sequencer) Finished() bool {
	return s.finished && s.carryOff >= len(s.carry)
}

// next renders the block leading up to the next message and then applies
// it. Messages with a zero delta apply immediately with no block. After the
// last message it renders the release tail in fixed-size blocks until every
// voice has died or the tail budget runs out.
func (s *Sequencer) next() ([]float32, []VoiceInfo, bool) {
	for s.pos < len(s.messages) {
		msg := s.messages[s.pos]
		s.pos++
		if msg.Delta == 0 {
			s.apply(msg)
			continue
		}
		n := int(s.clock.Milliseconds(msg.Delta) * s.sampleRate / 1000)
		block := s.renderBlock(n)
		voices := s.snapshot()
		s.evictDead()
		s.apply(msg)
		return block, voices, true
	}
	if s.tailSamples > 0 && len(s.voices) > 0 {
		n := s.tailBlock
		if n > s.tailSamples {
			n = s.tailSamples
		}
		s.tailSamples -= n
		block := s.renderBlock(n)
		voices := s.snapshot()
		s.evictDead()
		return block, voices, true
	}
	s.finished = true
	return nil, nil, false
}

// renderBlock mixes every live voice into a zeroed block of n samples. The
// block buffer is reused across calls. n may be zero: the boundary still
// exists, the block is just empty.
func (s *Sequencer) renderBlock(n int) []float32 {
	if cap(s.block) < n {
		s.block = make([]float32, n)
	}
	s.block = s.block[:n]
	for i := range s.block {
		s.block[i] = 0
	}
	for _, v := range s.voices {
		v.RenderInto(s.block, s.sampleRate, s.gain)
	}
	return s.block
}

// snapshot captures the voice table before eviction, so a voice is observed
// in the block where it dies.
func (s *Sequencer) snapshot() []VoiceInfo {
	s.infos = s.infos[:0]
	for _, v := range s.voices {
		s.infos = append(s.infos, VoiceInfo{Channel: v.Channel, Note: v.Note, Velocity: v.Velocity})
	}
	return s.infos
}

// evictDead compacts the voice table, keeping order.
func (s *Sequencer) evictDead() {
	kept := s.voices[:0]
	for _, v := range s.voices {
		if v.Alive() {
			kept = append(kept, v)
		}
	}
	s.voices = kept
}

func (s *Sequencer) apply(msg smf.Message) {
	switch msg.Type {
	case smf.Tempo:
		s.clock.SetTempo(msg.Data)
	case smf.NoteOn:
		if len(msg.Data) < 2 {
			return
		}
		if msg.Data[1] == 0 {
			s.noteOff(msg.Channel, msg.Data[0])
			return
		}
		s.noteOn(msg.Channel, msg.Data[0], msg.Data[1])
	case smf.NoteOff:
		if len(msg.Data) < 1 {
			return
		}
		s.noteOff(msg.Channel, msg.Data[0])
	case smf.ProgramChange:
		if !s.cfg.programRouting || len(msg.Data) < 1 {
			return
		}
		program := int(msg.Data[0])
		if program >= len(s.patches) {
			program = 0
		}
		s.programs[msg.Channel&0x0F] = program
	}
}

// noteOn starts a voice, stealing any voice already sounding the same note
// on the same channel. The table stays sorted by (channel, note) so blocks
// mix voices in a deterministic order.
func (s *Sequencer) noteOn(channel, note, velocity uint8) {
	voice := synth.NewVoice(s.patchFor(channel), channel, note, velocity, smf.NoteFrequency(note, 0), s.rng)
	i := s.search(channel, note)
	if i < len(s.voices) && s.voices[i].Channel == channel && s.voices[i].Note == note {
		s.voices[i] = voice
		return
	}
	s.voices = append(s.voices, nil)
	copy(s.voices[i+1:], s.voices[i:])
	s.voices[i] = voice
}

// noteOff releases a voice. The voice stays in the table until its release
// envelope ends. Note-offs for unknown notes are ignored.
func (s *Sequencer) noteOff(channel, note uint8) {
	i := s.search(channel, note)
	if i < len(s.voices) && s.voices[i].Channel == channel && s.voices[i].Note == note {
		s.voices[i].Stop()
	}
}

func (s *Sequencer) search(channel, note uint8) int {
	return sort.Search(len(s.voices), func(i int) bool {
		v := s.voices[i]
		if v.Channel != channel {
			return v.Channel > channel
		}
		return v.Note >= note
	})
}

func (s *Sequencer) patchFor(channel uint8) synth.Patch {
	if channel == drumChannel {
		return s.patches[len(s.patches)-1]
	}
	return s.patches[s.programs[channel&0x0F]]
}
