package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/cbegin/midisynth-go"
)

func main() {
	var (
		list       = flag.Bool("list", false, "list MIDI input ports and exit")
		portName   = flag.String("port", "", "input port index or name substring (first port when empty)")
		patchPath  = flag.String("patches", "", "path to a patch bank text file")
		polyphony  = flag.Int("poly", 8, "polyphony cap")
		sampleRate = flag.Int("sample-rate", 48000, "output sample rate")
		volume     = flag.Float64("volume", 1.0, "master volume scalar")
		fx         = flag.String("fx", "", "master effect chain spec")
		programs   = flag.Bool("programs", false, "honor program-change messages")
		verbose    = flag.Bool("verbose", false, "log every note event")
	)
	flag.Parse()
	defer midi.CloseDriver()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	if *list {
		for i, p := range midi.GetInPorts() {
			fmt.Printf("%d: %s\n", i, p.String())
		}
		return
	}

	in, err := findInPort(*portName)
	if err != nil {
		logger.Fatal("select input port", "err", err)
	}

	var patches []midisynth.Patch
	if *patchPath != "" {
		text, err := os.ReadFile(*patchPath)
		if err != nil {
			logger.Fatal("read patches", "err", err)
		}
		patches, err = midisynth.ParsePatches(string(text))
		if err != nil {
			logger.Fatal("parse patches", "err", err)
		}
	}

	ls, err := midisynth.NewLiveSynth(patches, *sampleRate, *polyphony,
		midisynth.WithMasterVolume(*volume),
		midisynth.WithEffects(*fx),
		midisynth.WithProgramRouting(*programs),
		midisynth.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("create synth", "err", err)
	}
	if err := ls.Start(); err != nil {
		logger.Fatal("open audio device", "err", err)
	}
	defer ls.Stop()

	stop, err := midi.ListenTo(in, func(msg midi.Message, timestampms int32) {
		var channel, note, velocity, program uint8
		switch {
		case msg.GetNoteOn(&channel, &note, &velocity):
			ls.NoteOn(channel, note, velocity)
		case msg.GetNoteOff(&channel, &note, &velocity):
			ls.NoteOff(channel, note)
		case msg.GetProgramChange(&channel, &program):
			ls.ProgramChange(channel, program)
		}
	})
	if err != nil {
		logger.Fatal("open input port", "err", err)
	}
	defer stop()

	logger.Info("listening", "port", in.String(), "sampleRate", *sampleRate, "polyphony", *polyphony)
	fmt.Println("play your keyboard; ctrl+c to quit")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")
}

// findInPort picks a MIDI input: by index, by case-insensitive name
// substring, or the first port when the spec is empty.
func findInPort(spec string) (drivers.In, error) {
	ins := midi.GetInPorts()
	if len(ins) == 0 {
		return nil, fmt.Errorf("no MIDI input ports found")
	}
	if spec == "" {
		return ins[0], nil
	}
	if idx, err := strconv.Atoi(spec); err == nil {
		if idx < 0 || idx >= len(ins) {
			return nil, fmt.Errorf("port index %d out of range (have %d ports)", idx, len(ins))
		}
		return ins[idx], nil
	}
	for _, p := range ins {
		if strings.Contains(strings.ToLower(p.String()), strings.ToLower(spec)) {
			return p, nil
		}
	}
	var names []string
	for _, p := range ins {
		names = append(names, p.String())
	}
	return nil, fmt.Errorf("no input port matching %q (have: %s)", spec, strings.Join(names, ", "))
}
