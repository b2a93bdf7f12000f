package midisynth

import (
	"encoding/binary"
	"errors"
	"math"

	intfx "github.com/cbegin/midisynth-go/internal/effects"
	intseq "github.com/cbegin/midisynth-go/internal/sequencer"
)

// RenderSong renders the whole song offline to mono float32 samples,
// honoring the same options as live playback: master volume, effects,
// program routing, noise seed, and release tail (two seconds unless
// overridden).
func RenderSong(song *Song, patches []Patch, sampleRate int, opts ...Option) ([]float32, error) {
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

	seq := intseq.New(song.Header, song.Merged(), patches, sampleRate, cfg.sequencerOptions()...)
	var out []float32
	err = seq.Run(func(block []float32, _ []intseq.VoiceInfo) error {
		out = append(out, block...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	volume := cfg.masterVolume
	if volume < 0 {
		volume = 0
	}
	if volume != 1 {
		for i := range out {
			out[i] = float32(float64(out[i]) * volume)
		}
	}
	chain.ProcessBlock(out)
	if cfg.sampleTap != nil && len(out) > 0 {
		cfg.sampleTap(out)
	}
	return out, nil
}

// EncodeWAVFloat32LE encodes mono samples as a WAV byte stream, IEEE
// float32 little endian, with the mono signal duplicated into each of the
// requested channels.
func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	if channels < 1 {
		channels = 1
	}
	dataSize := len(samples) * channels * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	off := 44
	for _, s := range samples {
		u := math.Float32bits(s)
		for c := 0; c < channels; c++ {
			binary.LittleEndian.PutUint32(out[off:], u)
			off += 4
		}
	}
	return out
}
