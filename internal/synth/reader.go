package synth

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformedPatch reports unusable patch text.
var ErrMalformedPatch = errors.New("synth: malformed patch text")

// ParsePatches reads a bank of patches from text. The format nests three
// '!'-terminated levels:
//
//	bank  := { patch } "!"
//	patch := { synth } "!"
//	synth := { element } "!"
//
// where an element is one of
//
//	A <envelope>   amplitude (DCA)
//	W <envelope>   wave parameter (DCW)
//	O <envelope>   pitch offset in semitones (DCO)
//	V <lfo>        vibrato
//	T <lfo>        tremolo
//	F <digit>      waveshape: 0 sin-saw, 1 resonant saw, 2 noise
//
// An envelope is duration,amplitude pairs separated by commas or whitespace,
// terminated by '!'; a quote directly after a pair marks it as the sustain
// point (the first pair sustains when no quote appears). An LFO is up to
// five numbers — frequency, depth, shape id, offset, dc — and may stop early
// at '!'. End of input closes an open bank; every other shortfall is an
// ErrMalformedPatch.
func ParsePatches(src string) ([]Patch, error) {
	s := &scanner{src: src}
	var patches []Patch
	for {
		s.skipSpace()
		if s.eof() {
			break
		}
		if s.peek() == '!' {
			s.next()
			break
		}
		p, err := s.patch()
		if err != nil {
			return nil, err
		}
		patches = append(patches, p)
	}
	if len(patches) == 0 {
		return nil, fmt.Errorf("%w: no patches defined", ErrMalformedPatch)
	}
	return patches, nil
}

type scanner struct {
	src string
	pos int
}

func (s *scanner) eof() bool  { return s.pos >= len(s.src) }
func (s *scanner) peek() byte { return s.src[s.pos] }

func (s *scanner) next() byte {
	c := s.src[s.pos]
	s.pos++
	return c
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.src) && isSpace(s.src[s.pos]) {
		s.pos++
	}
}

// skipSeparators consumes whitespace and commas between numbers.
func (s *scanner) skipSeparators() {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if !isSpace(c) && c != ',' {
			return
		}
		s.pos++
	}
}

func (s *scanner) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s at offset %d", ErrMalformedPatch, fmt.Sprintf(format, args...), s.pos)
}

func (s *scanner) number() (float64, error) {
	s.skipSpace()
	start := s.pos
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E' {
			s.pos++
			continue
		}
		break
	}
	if start == s.pos {
		return 0, s.errorf("expected a number")
	}
	v, err := strconv.ParseFloat(s.src[start:s.pos], 64)
	if err != nil {
		return 0, s.errorf("bad number %q", s.src[start:s.pos])
	}
	return v, nil
}

// integer reads a number and requires it to be a whole value in [lo, hi].
func (s *scanner) integer(lo, hi int, what string) (int, error) {
	v, err := s.number()
	if err != nil {
		return 0, err
	}
	n := int(v)
	if float64(n) != v || n < lo || n > hi {
		return 0, s.errorf("%s must be an integer in [%d, %d], got %g", what, lo, hi, v)
	}
	return n, nil
}

func (s *scanner) patch() (Patch, error) {
	var p Patch
	for {
		s.skipSpace()
		if s.eof() {
			return nil, s.errorf("unterminated patch")
		}
		if s.peek() == '!' {
			s.next()
			break
		}
		def, err := s.synthDef()
		if err != nil {
			return nil, err
		}
		p = append(p, def)
	}
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: patch with no synths", ErrMalformedPatch)
	}
	return p, nil
}

func (s *scanner) synthDef() (Synth, error) {
	def := DefaultSynth()
	for {
		s.skipSpace()
		if s.eof() {
			return Synth{}, s.errorf("unterminated synth")
		}
		switch c := s.next(); c {
		case '!':
			return def, nil
		case 'A':
			env, err := s.envelope()
			if err != nil {
				return Synth{}, err
			}
			def.DCA = env
		case 'W':
			env, err := s.envelope()
			if err != nil {
				return Synth{}, err
			}
			def.DCW = env
		case 'O':
			env, err := s.envelope()
			if err != nil {
				return Synth{}, err
			}
			def.DCO = env
		case 'V':
			l, err := s.lfo()
			if err != nil {
				return Synth{}, err
			}
			def.Vibrato = l
		case 'T':
			l, err := s.lfo()
			if err != nil {
				return Synth{}, err
			}
			def.Tremolo = l
		case 'F':
			id, err := s.integer(0, int(ShapeNoise), "waveshape id")
			if err != nil {
				return Synth{}, err
			}
			def.Shape = Waveshape(id)
			s.skipSeparators()
		default:
			return Synth{}, s.errorf("unknown element tag %q", string(c))
		}
	}
}

func (s *scanner) envelope() (Envelope, error) {
	var points []Breakpoint
	sustain := 0
	for {
		dur, err := s.number()
		if err != nil {
			return Envelope{}, err
		}
		s.skipSeparators()
		amp, err := s.number()
		if err != nil {
			return Envelope{}, err
		}
		points = append(points, Breakpoint{Duration: dur, Amplitude: amp})
		s.skipSeparators()
		if !s.eof() && s.peek() == '\'' {
			s.next()
			sustain = len(points) - 1
			s.skipSeparators()
		}
		if s.eof() {
			return Envelope{}, s.errorf("unterminated envelope")
		}
		if s.peek() == '!' {
			s.next()
			return Envelope{Points: points, Sustain: sustain}, nil
		}
	}
}

// lfo reads frequency, depth, shape id, offset, dc. The field list may stop
// early at '!'; omitted fields keep their zero defaults, including the
// inert zero shape.
func (s *scanner) lfo() (LFO, error) {
	l := LFO{Shape: LFOZero}

	freq, err := s.number()
	if err != nil {
		return LFO{}, err
	}
	l.Frequency = freq
	s.skipSeparators()
	depth, err := s.number()
	if err != nil {
		return LFO{}, err
	}
	l.Depth = depth
	if done, err := s.lfoEnd(); done || err != nil {
		return l, err
	}

	id, err := s.integer(0, int(LFOZero), "lfo shape id")
	if err != nil {
		return LFO{}, err
	}
	l.Shape = LFOShape(id)
	if done, err := s.lfoEnd(); done || err != nil {
		return l, err
	}

	offset, err := s.number()
	if err != nil {
		return LFO{}, err
	}
	l.Offset = offset
	if done, err := s.lfoEnd(); done || err != nil {
		return l, err
	}

	dc, err := s.number()
	if err != nil {
		return LFO{}, err
	}
	l.DC = dc
	done, err := s.lfoEnd()
	if err != nil {
		return LFO{}, err
	}
	if !done {
		return LFO{}, s.errorf("expected '!' after lfo fields")
	}
	return l, nil
}

// lfoEnd consumes a terminating '!' if one follows the current field.
func (s *scanner) lfoEnd() (bool, error) {
	s.skipSeparators()
	if s.eof() {
		return false, s.errorf("unterminated lfo")
	}
	if s.peek() == '!' {
		s.next()
		return true, nil
	}
	return false, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
