package effects

import (
	"math"
	"testing"
)

func TestDelayProducesOutput(t *testing.T) {
	d := NewDelay(44100, 100, 0.5, 0.5)
	// Feed a pulse and check delayed output appears
	d.Process(1.0)
	for i := 0; i < 4409; i++ { // ~100ms at 44100Hz
		d.Process(0)
	}
	out := d.Process(0)
	if math.Abs(float64(out)) < 0.01 {
		t.Errorf("expected delayed output, got %f", out)
	}
}

func TestDelayResetClearsBuffer(t *testing.T) {
	d := NewDelay(44100, 10, 0.5, 1.0)
	d.Process(1.0)
	d.Reset()
	for i := 0; i < 2000; i++ {
		if out := d.Process(0); out != 0 {
			t.Fatalf("expected silence after reset, got %f at sample %d", out, i)
		}
	}
}

func TestReverbProducesTail(t *testing.T) {
	r := NewReverb(44100, 0.5, 0.7, 0.5)
	// Feed impulse
	r.Process(1.0)
	// After some samples, reverb tail should be present
	var maxOut float32
	for i := 0; i < 10000; i++ {
		out := r.Process(0)
		if out > maxOut {
			maxOut = out
		}
	}
	if maxOut < 0.001 {
		t.Error("expected reverb tail")
	}
}

func TestDistortionClips(t *testing.T) {
	d := NewDistortion(44100, 10, 0.5, 0)
	out := d.Process(0.5)
	// With high pregain, tanh should compress the signal
	if math.Abs(float64(out)) > 1.0 {
		t.Error("distortion output should be bounded")
	}
	if math.Abs(float64(out)) < 0.01 {
		t.Error("expected non-zero distortion output")
	}
}

func TestChainAppliesEffectsInOrder(t *testing.T) {
	c := NewChain(
		NewDistortion(44100, 2, 1, 0),
		NewDelay(44100, 10, 0, 0.5),
	)
	if out := c.Process(0.5); out == 0 {
		t.Error("chain should produce output")
	}
}

func TestChainProcessBlock(t *testing.T) {
	c := NewChain(NewDistortion(44100, 2, 1, 0))
	block := []float32{0.5, -0.5, 0.25}
	c.ProcessBlock(block)
	for i, s := range block {
		if s == 0 {
			t.Errorf("sample %d should be shaped, got 0", i)
		}
	}

	// An empty chain leaves the block untouched.
	empty := NewChain()
	block2 := []float32{0.5, -0.5}
	empty.ProcessBlock(block2)
	if block2[0] != 0.5 || block2[1] != -0.5 {
		t.Error("empty chain should pass samples through")
	}
}

func TestEQ3BandUnityGain(t *testing.T) {
	eq := NewEQ3Band(44100, 1.0, 1.0, 1.0, 300, 3000)
	// With unity gains, output should approximate input after warmup
	for i := 0; i < 1000; i++ {
		eq.Process(0.5)
	}
	out := eq.Process(0.5)
	if math.Abs(float64(out)-0.5) > 0.1 {
		t.Errorf("expected ~0.5 with unity gains, got %f", out)
	}
}

func TestEQ5BandUnityGainAndAdjust(t *testing.T) {
	eq := NewEQ5Band(44100)
	for i := 0; i < 2000; i++ {
		eq.Process(0.5)
	}
	out := eq.Process(0.5)
	if math.Abs(float64(out)-0.5) > 0.1 {
		t.Errorf("expected ~0.5 with unity gains, got %f", out)
	}

	eq.SetGain(0, 0)
	if eq.Gain(0) != 0 {
		t.Errorf("expected gain 0, got %f", eq.Gain(0))
	}
	// Killing the bass band must reduce a settled DC signal.
	for i := 0; i < 2000; i++ {
		eq.Process(0.5)
	}
	out = eq.Process(0.5)
	if out > 0.4 {
		t.Errorf("expected reduced output with bass cut, got %f", out)
	}
}

func TestCompressorReducesLoud(t *testing.T) {
	c := NewCompressor(44100, -10, 4, 1, 50, 0)
	// Feed loud signal repeatedly to let envelope settle
	var out float32
	for i := 0; i < 1000; i++ {
		out = c.Process(1.0)
	}
	if out >= 1.0 {
		t.Errorf("compressor should reduce loud signals, got %f", out)
	}
}

func TestParseBuildsChain(t *testing.T) {
	chain, err := Parse(44100, "delay 100,0.4,0.5; reverb 0.5,0.7,0.25; eq5")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if chain.Len() != 3 {
		t.Fatalf("expected 3 effects, got %d", chain.Len())
	}
}

func TestParseDefaultsAndErrors(t *testing.T) {
	chain, err := Parse(44100, "distortion")
	if err != nil {
		t.Fatalf("parse with defaults: %v", err)
	}
	if chain.Len() != 1 {
		t.Fatalf("expected 1 effect, got %d", chain.Len())
	}

	if _, err := Parse(44100, "flanger 1,2"); err == nil {
		t.Error("expected an error for an unknown effect")
	}
	if _, err := Parse(44100, "delay ten"); err == nil {
		t.Error("expected an error for a bad parameter")
	}

	chain, err = Parse(44100, "  ")
	if err != nil {
		t.Fatalf("parse empty: %v", err)
	}
	if chain.Len() != 0 {
		t.Fatalf("expected empty chain, got %d effects", chain.Len())
	}
}
