package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cbegin/midisynth-go"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	meterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("84"))
	noteStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("219"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// defaultTempo is the MIDI default of 120 bpm, shown until the song sets its
// own tempo.
const defaultTempo = 500000

type playbackMsg midisynth.Event

type model struct {
	player *midisynth.Player
	events <-chan midisynth.Event
	name   string
	header midisynth.Header

	voices   []midisynth.VoiceInfo
	channels [16]int
	seen     [16]bool
	tempo    int
	elapsed  time.Duration
	volume   float64
	paused   bool
	done     bool
}

// listenPlayback waits for one playback event and re-arms itself from Update.
func listenPlayback(ch <-chan midisynth.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return playbackMsg(ev)
	}
}

func (m model) Init() tea.Cmd {
	return listenPlayback(m.events)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			_ = m.player.Stop()
			m.done = true
			return m, tea.Quit

		case " ":
			if m.paused {
				m.player.Resume()
			} else {
				m.player.Pause()
			}
			m.paused = !m.paused

		case "+", "=":
			m.volume = clamp(m.volume+0.05, 0, 2)
			m.player.SetMasterVolume(m.volume)

		case "-", "_":
			m.volume = clamp(m.volume-0.05, 0, 2)
			m.player.SetMasterVolume(m.volume)
		}

	case playbackMsg:
		switch ev := midisynth.Event(msg); ev.Kind {
		case midisynth.EventBlock:
			m.voices = ev.Voices
			m.elapsed = ev.Elapsed
			m.channels = [16]int{}
			for _, v := range ev.Voices {
				ch := int(v.Channel) & 0x0F
				m.channels[ch]++
				m.seen[ch] = true
			}
		case midisynth.EventTempo:
			m.tempo = ev.TempoMicros
		case midisynth.EventEnded:
			m.done = true
			return m, tea.Quit
		}
		return m, listenPlayback(m.events)
	}
	return m, nil
}

func (m model) View() string {
	if m.done {
		return ""
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(titleStyle.Render(fmt.Sprintf("midisynth  %s", m.name)))
	out.WriteString("\n")
	out.WriteString(labelStyle.Render(fmt.Sprintf("format %d  %d tracks  %s",
		m.header.Format, m.header.NumTracks, divisionText(m.header))))
	out.WriteString("\n\n")

	state := "PLAY"
	if m.paused {
		state = "PAUSE"
	}
	out.WriteString(fmt.Sprintf("%s  %5.1f bpm  %02d:%02d  vol %3d%%\n\n",
		state,
		60e6/float64(m.tempo),
		int(m.elapsed.Minutes()), int(m.elapsed.Seconds())%60,
		int(m.volume*100+0.5)))

	for ch := 0; ch < 16; ch++ {
		if !m.seen[ch] {
			continue
		}
		meter := strings.Repeat("█", m.channels[ch]) + strings.Repeat(" ", max(0, 8-m.channels[ch]))
		out.WriteString(labelStyle.Render(fmt.Sprintf("ch %2d ", ch)))
		out.WriteString(meterStyle.Render(meter))
		out.WriteString(noteStyle.Render(channelNotes(m.voices, uint8(ch))))
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(helpStyle.Render("space:pause/resume  +/-:volume  q:quit"))
	out.WriteString("\n")
	return out.String()
}

func channelNotes(voices []midisynth.VoiceInfo, channel uint8) string {
	var names []string
	for _, v := range voices {
		if v.Channel == channel {
			names = append(names, noteName(v.Note))
		}
	}
	return strings.Join(names, " ")
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

func noteName(n uint8) string {
	return fmt.Sprintf("%s%d", noteNames[n%12], int(n)/12-1)
}

func divisionText(h midisynth.Header) string {
	if h.SMPTE() {
		return fmt.Sprintf("SMPTE %g fps x%d", h.FramesPerSecond(), h.TicksPerUnit)
	}
	return fmt.Sprintf("%d ticks/quarter", h.TicksPerUnit)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func main() {
	var (
		filePath   = flag.String("file", "", "path to a Standard MIDI File (required)")
		patchPath  = flag.String("patches", "", "path to a patch bank text file")
		sampleRate = flag.Int("sample-rate", 48000, "output sample rate")
		volume     = flag.Float64("volume", 1.0, "master volume scalar")
		fx         = flag.String("fx", "", "master effect chain spec")
		programs   = flag.Bool("programs", false, "honor program-change messages")
	)
	flag.Parse()

	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "no input file; use -file song.mid")
		os.Exit(1)
	}
	data, err := os.ReadFile(*filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read input: %v\n", err)
		os.Exit(1)
	}
	song, err := midisynth.DecodeSongBytes(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode input: %v\n", err)
		os.Exit(1)
	}

	var patches []midisynth.Patch
	if *patchPath != "" {
		text, err := os.ReadFile(*patchPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read patches: %v\n", err)
			os.Exit(1)
		}
		patches, err = midisynth.ParsePatches(string(text))
		if err != nil {
			fmt.Fprintf(os.Stderr, "parse patches: %v\n", err)
			os.Exit(1)
		}
	}

	pl, err := midisynth.NewPlayer(song, patches, *sampleRate,
		midisynth.WithMasterVolume(*volume),
		midisynth.WithEffects(*fx),
		midisynth.WithProgramRouting(*programs),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create player: %v\n", err)
		os.Exit(1)
	}
	defer pl.Close()

	m := model{
		player: pl,
		events: pl.Watch(),
		name:   filepath.Base(*filePath),
		header: song.Header,
		tempo:  defaultTempo,
		volume: clamp(*volume, 0, 2),
	}
	if err := pl.Play(); err != nil {
		fmt.Fprintf(os.Stderr, "start playback: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tui: %v\n", err)
		os.Exit(1)
	}
}
