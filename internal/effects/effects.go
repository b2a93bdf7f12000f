// Package effects implements the master-bus effect rack: mono sample
// processors that run after the sequencer mix and before the audio device
// or file encoder.
package effects

// Effect processes mono audio one sample at a time.
type Effect interface {
	Process(in float32) float32
	Reset()
}

// Chain applies a sequence of effects in order.
type Chain struct {
	effects []Effect
}

func NewChain(effects ...Effect) *Chain {
	return &Chain{effects: effects}
}

func (c *Chain) Process(in float32) float32 {
	for _, e := range c.effects {
		in = e.Process(in)
	}
	return in
}

// ProcessBlock runs the chain over a block in place.
func (c *Chain) ProcessBlock(block []float32) {
	if len(c.effects) == 0 {
		return
	}
	for i, s := range block {
		block[i] = c.Process(s)
	}
}

func (c *Chain) Reset() {
	for _, e := range c.effects {
		e.Reset()
	}
}

func (c *Chain) Add(e Effect) {
	c.effects = append(c.effects, e)
}

func (c *Chain) Len() int {
	return len(c.effects)
}
