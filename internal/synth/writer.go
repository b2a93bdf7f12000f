package synth

import (
	"fmt"
	"strings"
)

// FormatPatches renders a bank back to the text ParsePatches reads; parsing
// the result reproduces the bank exactly. One synth per line, one '!' line
// per closing level.
func FormatPatches(patches []Patch) string {
	var b strings.Builder
	for _, p := range patches {
		for i := range p {
			writeSynthText(&b, &p[i])
		}
		b.WriteString("!\n")
	}
	b.WriteString("!\n")
	return b.String()
}

func writeSynthText(b *strings.Builder, s *Synth) {
	fmt.Fprintf(b, "F%d A", s.Shape)
	writeEnvelopeText(b, s.DCA)
	b.WriteString(" W")
	writeEnvelopeText(b, s.DCW)
	b.WriteString(" O")
	writeEnvelopeText(b, s.DCO)
	fmt.Fprintf(b, " V%s T%s !\n", lfoText(s.Vibrato), lfoText(s.Tremolo))
}

func writeEnvelopeText(b *strings.Builder, e Envelope) {
	for i, p := range e.Points {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(b, "%g,%g", p.Duration, p.Amplitude)
		if i == e.sustainIndex() {
			b.WriteByte('\'')
		}
	}
	b.WriteByte('!')
}

func lfoText(l LFO) string {
	return fmt.Sprintf("%g,%g,%d,%g,%g!", l.Frequency, l.Depth, l.Shape, l.Offset, l.DC)
}

// String renders the breakpoints followed by the sustain index.
func (e Envelope) String() string {
	var b strings.Builder
	for _, p := range e.Points {
		fmt.Fprintf(&b, "%g,%g : ", p.Duration, p.Amplitude)
	}
	fmt.Fprintf(&b, "SUS %d", e.sustainIndex())
	return b.String()
}

func (l LFO) String() string {
	return fmt.Sprintf("[%ghz, %g, %g, %g]", l.Frequency, l.Depth, l.Offset, l.DC)
}

func (s *Synth) String() string {
	return fmt.Sprintf("[\n\tA%s\n\tO%s\n\tW%s\n\tV%s\n\tT%s\n]", s.DCA, s.DCO, s.DCW, s.Vibrato, s.Tremolo)
}

func (p Patch) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "{#%d\n", len(p))
	for i := range p {
		b.WriteString(p[i].String())
		b.WriteByte('\n')
	}
	b.WriteByte('}')
	return b.String()
}
