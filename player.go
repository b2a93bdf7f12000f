package midisynth

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	intaudio "github.com/cbegin/midisynth-go/internal/audio"
	intfx "github.com/cbegin/midisynth-go/internal/effects"
	intseq "github.com/cbegin/midisynth-go/internal/sequencer"
)

// ErrPlayerClosed is returned by Play after Close.
var ErrPlayerClosed = errors.New("midisynth: player closed")

// defaultReleaseTail is the ring-out rendered past the final event unless
// WithReleaseTail overrides it.
const defaultReleaseTail = 2.0

// EventKind identifies playback notifications delivered by Watch.
type EventKind int

const (
	// EventStarted fires once playback begins.
	EventStarted EventKind = iota
	// EventBlock fires at every rendered block boundary; the event
	// carries the sounding voices.
	EventBlock
	// EventTempo fires when the song changes tempo.
	EventTempo
	// EventEnded fires when the stream is exhausted or playback is
	// stopped.
	EventEnded
)

// Event is one playback notification.
type Event struct {
	Kind        EventKind
	Voices      []VoiceInfo   // EventBlock: sounding voices, caller-owned copy
	TempoMicros int           // EventTempo: microseconds per quarter note
	Elapsed     time.Duration // EventBlock: audio rendered so far
}

// Option configures playback and offline rendering.
type Option func(*config)

type config struct {
	masterVolume   float64
	programRouting bool
	noiseSeed      int64
	releaseTail    float64
	tailSet        bool
	effectSpec     string
	logger         *log.Logger
	bufferSize     time.Duration
	sampleTap      func([]float32)
}

func defaultOptions() config {
	return config{masterVolume: 1, noiseSeed: 1}
}

// WithMasterVolume sets the initial master volume. 1 is unity; negative
// values clamp to silence.
func WithMasterVolume(volume float64) Option {
	return func(c *config) { c.masterVolume = volume }
}

// WithProgramRouting makes program-change messages select patches from the
// bank per channel. Off by default.
func WithProgramRouting(enabled bool) Option {
	return func(c *config) { c.programRouting = enabled }
}

// WithNoiseSeed seeds the noise generator. The default seed is 1, so
// identical inputs render identical audio.
func WithNoiseSeed(seed int64) Option {
	return func(c *config) { c.noiseSeed = seed }
}

// WithReleaseTail sets how many seconds of ring-out to render past the
// final event. The default is two seconds; zero cuts playback at the last
// block boundary.
func WithReleaseTail(seconds float64) Option {
	return func(c *config) {
		c.releaseTail = seconds
		c.tailSet = true
	}
}

// WithEffects installs a master-bus effect chain from a text spec such as
// "delay 250,0.4,0.3; reverb". See the effects package for the grammar.
func WithEffects(spec string) Option {
	return func(c *config) { c.effectSpec = spec }
}

// WithLogger routes playback logging through the given logger. Logging is
// discarded by default.
func WithLogger(logger *log.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithBufferSize adjusts the audio device buffer, trading latency for
// stutter resistance. Zero keeps the backend default.
func WithBufferSize(d time.Duration) Option {
	return func(c *config) { c.bufferSize = d }
}

// WithSampleTap installs a callback invoked with each rendered mono buffer
// after volume and effects. The callback runs on the audio goroutine; keep
// work brief and non-blocking.
func WithSampleTap(tap func([]float32)) Option {
	return func(c *config) { c.sampleTap = tap }
}

// sequencerOptions translates the shared options into sequencer options.
func (c config) sequencerOptions(extra ...intseq.Option) []intseq.Option {
	tail := defaultReleaseTail
	if c.tailSet {
		tail = c.releaseTail
	}
	opts := []intseq.Option{
		intseq.WithProgramRouting(c.programRouting),
		intseq.WithNoiseSeed(c.noiseSeed),
		intseq.WithReleaseTail(tail),
	}
	return append(opts, extra...)
}

// Player plays one song through the audio device. Create it with NewPlayer,
// subscribe with Watch before Play, and Close it when done. Methods are
// safe for concurrent use.
type Player struct {
	mu         sync.Mutex
	song       *Song
	patches    []Patch
	sampleRate int
	cfg        config
	logger     *log.Logger
	chain      *intfx.Chain
	masterEQ   *intfx.EQ5Band
	volume     float64

	audio     *intaudio.Player
	source    *playerSource
	done      chan struct{}
	closeDone func()
	closed    bool

	eventMu sync.Mutex
	eventCh chan Event
}

// NewPlayer builds a player for the given song and patch bank. An empty
// bank plays the default patches. The audio device itself is only opened by
// Play.
func NewPlayer(song *Song, patches []Patch, sampleRate int, opts ...Option) (*Player, error) {
	if song == nil {
		return nil, errors.New("midisynth: nil song")
	}
	if sampleRate <= 0 {
		return nil, errors.New("midisynth: sample rate must be positive")
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
	volume := cfg.masterVolume
	if volume < 0 {
		volume = 0
	}
	return &Player{
		song:       song,
		patches:    patches,
		sampleRate: sampleRate,
		cfg:        cfg,
		logger:     logger,
		chain:      chain,
		masterEQ:   intfx.NewEQ5Band(sampleRate),
		volume:     volume,
	}, nil
}

// playerSource adapts the sequencer's pull interface to the audio bridge.
// Master volume, effects, the EQ, and the sample tap are all applied here,
// on the audio goroutine; the volume is read lock-free from an atomic bit
// pattern.
type playerSource struct {
	seq        *intseq.Sequencer
	volumeBits atomic.Uint64
	chain      *intfx.Chain
	eq         *intfx.EQ5Band
	tap        func([]float32)
	rendered   atomic.Int64
	finished   atomic.Bool
	onFinished func()
}

func (s *playerSource) Process(dst []float32) int {
	n := s.seq.Process(dst)
	out := dst[:n]
	if volume := s.volume(); volume != 1 {
		for i := range out {
			out[i] = float32(float64(out[i]) * volume)
		}
	}
	s.chain.ProcessBlock(out)
	for i, v := range out {
		out[i] = s.eq.Process(v)
	}
	if s.tap != nil && n > 0 {
		s.tap(out)
	}
	s.rendered.Add(int64(n))
	if s.seq.Finished() && !s.finished.Swap(true) && s.onFinished != nil {
		s.onFinished()
	}
	return n
}

func (s *playerSource) Finished() bool { return s.finished.Load() }

func (s *playerSource) volume() float64 {
	return math.Float64frombits(s.volumeBits.Load())
}

func (s *playerSource) setVolume(v float64) {
	s.volumeBits.Store(math.Float64bits(v))
}

// Play starts playback from the top of the song, replacing any playback
// already running. The shared audio device is opened on first use; every
// player in the process must agree on the sample rate.
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPlayerClosed
	}

	if p.audio != nil {
		_ = p.audio.Stop()
		p.audio = nil
	}
	if p.closeDone != nil {
		p.closeDone()
	}
	p.chain.Reset()
	p.masterEQ.Reset()

	src := &playerSource{
		chain: p.chain,
		eq:    p.masterEQ,
		tap:   p.cfg.sampleTap,
	}
	src.setVolume(p.volume)

	var seq *intseq.Sequencer
	lastTempo := intseq.DefaultTempo
	observer := func(voices []intseq.VoiceInfo) {
		if tempo := seq.TempoMicros(); tempo != lastTempo {
			lastTempo = tempo
			p.logger.Debug("tempo change", "usecPerQuarter", tempo, "bpm", seq.BPM())
			p.sendEvent(Event{Kind: EventTempo, TempoMicros: tempo})
		}
		if !p.watching() {
			return
		}
		snapshot := make([]VoiceInfo, len(voices))
		copy(snapshot, voices)
		elapsed := time.Duration(float64(src.rendered.Load()) / float64(p.sampleRate) * float64(time.Second))
		p.sendEvent(Event{Kind: EventBlock, Voices: snapshot, Elapsed: elapsed})
	}
	seq = intseq.New(p.song.Header, p.song.Merged(), p.patches, p.sampleRate,
		p.cfg.sequencerOptions(intseq.WithBlockObserver(observer))...)
	src.seq = seq

	done := make(chan struct{})
	var once sync.Once
	closeDone := func() { once.Do(func() { close(done) }) }
	src.onFinished = func() {
		p.logger.Debug("playback ended")
		p.sendEvent(Event{Kind: EventEnded})
		closeDone()
	}

	backend, err := intaudio.NewPlayer(p.sampleRate, src)
	if err != nil {
		return err
	}
	if p.cfg.bufferSize > 0 {
		backend.SetBufferSize(p.cfg.bufferSize)
	}

	p.source = src
	p.audio = backend
	p.done = done
	p.closeDone = closeDone

	p.logger.Info("playback started",
		"sampleRate", p.sampleRate,
		"tracks", len(p.song.Tracks),
		"patches", len(p.patches),
		"maxVoices", seq.MaxVoices())
	backend.Play()
	p.sendEvent(Event{Kind: EventStarted})
	return nil
}

// Pause suspends the audio device without losing position.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Pause()
	}
}

// Resume continues a paused playback.
func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Play()
	}
}

// Stop ends playback. The player can Play again afterwards.
func (p *Player) Stop() error {
	p.mu.Lock()
	audio := p.audio
	closeDone := p.closeDone
	p.audio = nil
	p.source = nil
	p.closeDone = nil
	p.mu.Unlock()

	if audio == nil {
		return nil
	}
	err := audio.Stop()
	p.sendEvent(Event{Kind: EventEnded})
	if closeDone != nil {
		closeDone()
	}
	p.logger.Debug("playback stopped")
	return err
}

// Close stops playback and marks the player unusable.
func (p *Player) Close() error {
	err := p.Stop()
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return err
}

// Wait blocks until the current playback ends, is stopped, or the context
// is done. It returns immediately when nothing is playing.
func (p *Player) Wait(ctx context.Context) error {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Watch returns a channel receiving playback events: EventStarted,
// EventBlock (per rendered block, with voices), EventTempo, and EventEnded.
// The channel is buffered and sends never block; slow receivers miss
// intermediate block events. Only the most recent Watch channel receives
// events; call Watch before Play.
func (p *Player) Watch() <-chan Event {
	ch := make(chan Event, 64)
	p.eventMu.Lock()
	p.eventCh = ch
	p.eventMu.Unlock()
	return ch
}

func (p *Player) sendEvent(ev Event) {
	p.eventMu.Lock()
	ch := p.eventCh
	p.eventMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full; drop event
		}
	}
}

func (p *Player) watching() bool {
	p.eventMu.Lock()
	defer p.eventMu.Unlock()
	return p.eventCh != nil
}

// SetMasterVolume sets the runtime volume scalar. 1 is default; negative
// values clamp to 0. Takes effect immediately on the audio goroutine.
func (p *Player) SetMasterVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = volume
	if p.source != nil {
		p.source.setVolume(volume)
	}
}

// MasterVolume returns the current master volume.
func (p *Player) MasterVolume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// SetEQBand sets the gain for a master EQ band (0-4). 1.0 = unity.
// Band frequencies: 0=<200Hz, 1=200-800Hz, 2=800-2.5kHz, 3=2.5-8kHz, 4=>8kHz.
// Takes effect immediately on the audio goroutine (lock-free).
func (p *Player) SetEQBand(band int, gain float32) {
	p.masterEQ.SetGain(band, gain)
}

// EQBand returns the current gain for a master EQ band (0-4).
func (p *Player) EQBand(band int) float32 {
	return p.masterEQ.Gain(band)
}

// Position returns the playback position reported by the audio device,
// i.e. what the listener actually hears right now. Zero when not playing.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	audio := p.audio
	p.mu.Unlock()
	if audio == nil {
		return 0
	}
	return audio.Position()
}
