package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/cbegin/midisynth-go"
)

func main() {
	var (
		filePath    = flag.String("file", "", "path to a Standard MIDI File (required)")
		patchPath   = flag.String("patches", "", "path to a patch bank text file (built-in bank when empty)")
		sampleRate  = flag.Int("sample-rate", 48000, "output sample rate")
		volume      = flag.Float64("volume", 1.0, "master volume scalar")
		wavPath     = flag.String("wav", "", "render to a WAV file instead of playing")
		wavChannels = flag.Int("channels", 2, "channel count for -wav output")
		programs    = flag.Bool("programs", false, "honor program-change messages")
		seed        = flag.Int64("seed", 1, "noise generator seed")
		tail        = flag.Float64("tail", 2.0, "release tail in seconds after the final event")
		fx          = flag.String("fx", "", `master effect chain, e.g. "delay 250,0.4,0.3; reverb"`)
		quiet       = flag.Bool("quiet", false, "only log errors")
		verbose     = flag.Bool("verbose", false, "log tempo changes and playback details")
	)
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}
	if *quiet {
		logger.SetLevel(log.ErrorLevel)
	}

	if *filePath == "" {
		logger.Fatal("no input file; use -file song.mid")
	}
	data, err := os.ReadFile(*filePath)
	if err != nil {
		logger.Fatal("read input", "err", err)
	}
	song, err := midisynth.DecodeSongBytes(data)
	if err != nil {
		logger.Fatal("decode input", "err", err)
	}
	logger.Debug("decoded song",
		"format", song.Header.Format,
		"tracks", len(song.Tracks),
		"messages", len(song.Merged()))

	patches, err := loadPatches(*patchPath)
	if err != nil {
		logger.Fatal("load patches", "err", err)
	}

	opts := []midisynth.Option{
		midisynth.WithMasterVolume(*volume),
		midisynth.WithProgramRouting(*programs),
		midisynth.WithNoiseSeed(*seed),
		midisynth.WithReleaseTail(*tail),
		midisynth.WithEffects(*fx),
		midisynth.WithLogger(logger),
	}

	if *wavPath != "" {
		renderWAV(logger, song, patches, *sampleRate, *wavPath, *wavChannels, opts)
		return
	}

	pl, err := midisynth.NewPlayer(song, patches, *sampleRate, opts...)
	if err != nil {
		logger.Fatal("create player", "err", err)
	}
	defer pl.Close()

	ch := pl.Watch()
	if err := pl.Play(); err != nil {
		logger.Fatal("start playback", "err", err)
	}
	for event := range ch {
		switch event.Kind {
		case midisynth.EventTempo:
			logger.Info("tempo change", "bpm", fmt.Sprintf("%.1f", 60e6/float64(event.TempoMicros)))
		case midisynth.EventEnded:
			fmt.Println("playback completed")
			goto done
		}
	}
done:
	if err := pl.Wait(context.Background()); err != nil {
		logger.Fatal("wait", "err", err)
	}
}

func loadPatches(path string) ([]midisynth.Patch, error) {
	if path == "" {
		return nil, nil
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return midisynth.ParsePatches(string(text))
}

func renderWAV(logger *log.Logger, song *midisynth.Song, patches []midisynth.Patch, sampleRate int, path string, channels int, opts []midisynth.Option) {
	start := time.Now()
	samples, err := midisynth.RenderSong(song, patches, sampleRate, opts...)
	if err != nil {
		logger.Fatal("render", "err", err)
	}
	wav := midisynth.EncodeWAVFloat32LE(samples, sampleRate, channels)
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		logger.Fatal("write output", "err", err)
	}
	logger.Info("wrote WAV",
		"path", path,
		"seconds", fmt.Sprintf("%.2f", float64(len(samples))/float64(sampleRate)),
		"channels", channels,
		"took", time.Since(start).Round(time.Millisecond))
}
