package effects

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse builds a chain from a text spec: semicolon-separated entries, each
// an effect name followed by comma-separated numeric parameters. Trailing
// parameters may be omitted and take defaults.
//
//	delay 250,0.4,0.3         ms, feedback, wet
//	reverb 0.5,0.7,0.25       room, feedback, wet
//	chorus 15,0.2,3,0.8,0.5   ms, feedback, depth ms, rate Hz, wet
//	distortion 4,0.7,4000     pre gain, post gain, lpf Hz
//	compressor -18,4,5,80,3   threshold dB, ratio, attack ms, release ms, makeup dB
//	eq3 1,1,1,250,4000        low, mid, high, low Hz, high Hz
//	eq5                       runtime-adjustable five band, unity gains
func Parse(sampleRate int, spec string) (*Chain, error) {
	chain := NewChain()
	for _, entry := range strings.Split(spec, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		effect, err := parseEffect(sampleRate, entry)
		if err != nil {
			return nil, err
		}
		chain.Add(effect)
	}
	return chain, nil
}

func parseEffect(sampleRate int, entry string) (Effect, error) {
	name, rest, _ := strings.Cut(entry, " ")
	var params []float64
	for _, field := range strings.Split(rest, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("effect %q: bad parameter %q", name, field)
		}
		params = append(params, v)
	}
	get := func(idx int, def float64) float64 {
		if idx < len(params) {
			return params[idx]
		}
		return def
	}
	switch strings.ToLower(name) {
	case "delay":
		return NewDelay(sampleRate, get(0, 250), float32(get(1, 0.4)), float32(get(2, 0.3))), nil
	case "reverb":
		return NewReverb(sampleRate, float32(get(0, 0.5)), float32(get(1, 0.7)), float32(get(2, 0.25))), nil
	case "chorus":
		return NewChorus(sampleRate, float32(get(0, 15)), float32(get(1, 0.2)), float32(get(2, 3)), float32(get(3, 0.8)), float32(get(4, 0.5))), nil
	case "distortion":
		return NewDistortion(sampleRate, float32(get(0, 4)), float32(get(1, 0.7)), float32(get(2, 4000))), nil
	case "compressor":
		return NewCompressor(sampleRate, float32(get(0, -18)), float32(get(1, 4)), float32(get(2, 5)), float32(get(3, 80)), float32(get(4, 3))), nil
	case "eq3":
		return NewEQ3Band(sampleRate, float32(get(0, 1)), float32(get(1, 1)), float32(get(2, 1)), float32(get(3, 250)), float32(get(4, 4000))), nil
	case "eq5":
		return NewEQ5Band(sampleRate), nil
	}
	return nil, fmt.Errorf("unknown effect %q", name)
}
