package midisynth

import (
	"errors"
	"io"
	"math"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	intaudio "github.com/cbegin/midisynth-go/internal/audio"
	intfx "github.com/cbegin/midisynth-go/internal/effects"
	intsmf "github.com/cbegin/midisynth-go/internal/smf"
	intsynth "github.com/cbegin/midisynth-go/internal/synth"
)

// LiveSynth renders externally driven notes in real time, for wiring a
// hardware MIDI input straight to the audio device. Notes come in through
// NoteOn/NoteOff, which are safe to call from a driver callback; rendering
// happens on the audio goroutine. Gain is fixed at one over the polyphony
// cap, mirroring song playback.
type LiveSynth struct {
	mu       sync.Mutex
	patches  []Patch
	programs [16]int
	routing  bool
	voices   map[uint16]*intsynth.Voice
	keys     []uint16
	rng      *rand.Rand
	audio    *intaudio.Player

	sampleRate int
	capacity   int
	gain       float64
	volumeBits atomic.Uint64
	chain      *intfx.Chain
	logger     *log.Logger
}

// NewLiveSynth builds a live voice table. polyphony caps how many notes can
// sound at once (8 when non-positive); an empty bank plays the default
// patches. Honored options: WithMasterVolume, WithNoiseSeed, WithEffects,
// WithProgramRouting, WithLogger.
func NewLiveSynth(patches []Patch, sampleRate, polyphony int, opts ...Option) (*LiveSynth, error) {
	if sampleRate <= 0 {
		return nil, errors.New("midisynth: sample rate must be positive")
	}
	if polyphony <= 0 {
		polyphony = 8
	}
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(patches) == 0 {
		patches = DefaultPatches()
	}
	chain, err := intfx.Parse(sampleRate, cfg.effectSpec)
	if err != nil {
		return nil, err
	}
	logger := cfg.logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	l := &LiveSynth{
		patches:    patches,
		routing:    cfg.programRouting,
		voices:     make(map[uint16]*intsynth.Voice, polyphony),
		rng:        rand.New(rand.NewSource(cfg.noiseSeed)),
		sampleRate: sampleRate,
		capacity:   polyphony,
		gain:       1 / float64(polyphony),
		chain:      chain,
		logger:     logger,
	}
	volume := cfg.masterVolume
	if volume < 0 {
		volume = 0
	}
	l.volumeBits.Store(math.Float64bits(volume))
	return l, nil
}

func voiceKey(channel, note uint8) uint16 {
	return uint16(channel&0x0F)<<8 | uint16(note)
}

// NoteOn starts a voice. Velocity zero releases the note instead, like the
// wire format. Retriggering a sounding note replaces its voice; brand-new
// notes beyond the polyphony cap are dropped.
func (l *LiveSynth) NoteOn(channel, note, velocity uint8) {
	if velocity == 0 {
		l.NoteOff(channel, note)
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := voiceKey(channel, note)
	if _, held := l.voices[key]; !held && len(l.voices) >= l.capacity {
		l.logger.Debug("voice table full", "channel", channel, "note", note)
		return
	}
	l.voices[key] = intsynth.NewVoice(l.patchFor(channel), channel, note, velocity,
		intsmf.NoteFrequency(note, 0), l.rng)
	l.logger.Debug("note on", "channel", channel, "note", note, "velocity", velocity)
}

// NoteOff releases a voice; it keeps sounding until its release envelope
// ends. Unknown notes are ignored.
func (l *LiveSynth) NoteOff(channel, note uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.voices[voiceKey(channel, note)]; ok {
		v.Stop()
		l.logger.Debug("note off", "channel", channel, "note", note)
	}
}

// ProgramChange selects the patch for a channel. Only honored under
// WithProgramRouting; out-of-range programs fall back to patch zero.
func (l *LiveSynth) ProgramChange(channel, program uint8) {
	if !l.routing {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	p := int(program)
	if p >= len(l.patches) {
		p = 0
	}
	l.programs[channel&0x0F] = p
}

func (l *LiveSynth) patchFor(channel uint8) Patch {
	if channel == 9 {
		return l.patches[len(l.patches)-1]
	}
	return l.patches[l.programs[channel&0x0F]]
}

// Process renders the current voice table into dst. It always fills the
// whole buffer; silence is just zeros. Dead voices are evicted as they are
// found, and the mix order is fixed ascending (channel, note).
func (l *LiveSynth) Process(dst []float32) int {
	for i := range dst {
		dst[i] = 0
	}
	l.mu.Lock()
	l.keys = l.keys[:0]
	for k := range l.voices {
		l.keys = append(l.keys, k)
	}
	sort.Slice(l.keys, func(i, j int) bool { return l.keys[i] < l.keys[j] })
	for _, k := range l.keys {
		v := l.voices[k]
		v.RenderInto(dst, float64(l.sampleRate), l.gain)
		if !v.Alive() {
			delete(l.voices, k)
		}
	}
	l.mu.Unlock()

	if volume := math.Float64frombits(l.volumeBits.Load()); volume != 1 {
		for i := range dst {
			dst[i] = float32(float64(dst[i]) * volume)
		}
	}
	l.chain.ProcessBlock(dst)
	return len(dst)
}

// Voices reports how many voices are currently allocated, sounding or
// releasing.
func (l *LiveSynth) Voices() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.voices)
}

// SetMasterVolume sets the runtime volume scalar, clamped at 0.
func (l *LiveSynth) SetMasterVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	l.volumeBits.Store(math.Float64bits(volume))
}

// MasterVolume returns the current master volume.
func (l *LiveSynth) MasterVolume() float64 {
	return math.Float64frombits(l.volumeBits.Load())
}

// Start opens the shared audio device and begins streaming the voice table.
func (l *LiveSynth) Start() error {
	l.mu.Lock()
	if l.audio != nil {
		l.mu.Unlock()
		return errors.New("midisynth: live synth already started")
	}
	l.mu.Unlock()

	backend, err := intaudio.NewPlayer(l.sampleRate, l)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.audio = backend
	l.mu.Unlock()
	backend.Play()
	l.logger.Info("live synth started", "sampleRate", l.sampleRate, "polyphony", l.capacity)
	return nil
}

// Stop ends streaming and silences every voice. The synth can Start again.
func (l *LiveSynth) Stop() error {
	l.mu.Lock()
	backend := l.audio
	l.audio = nil
	l.voices = make(map[uint16]*intsynth.Voice, l.capacity)
	l.chain.Reset()
	l.mu.Unlock()
	if backend == nil {
		return nil
	}
	return backend.Stop()
}
