package smf

// Merge interleaves per-track message streams into one delta-ordered stream.
// Each track cursor tracks the absolute tick of its next unconsumed message;
// the smallest tick wins each round, ties going to the lowest track index, so
// the merge is stable and total tick time is preserved. Emitted deltas are
// rebased against the previously emitted message.
func Merge(tracks [][]Message) []Message {
	type cursor struct {
		msgs []Message
		idx  int
		tick uint64
	}
	cursors := make([]cursor, 0, len(tracks))
	total := 0
	for _, t := range tracks {
		if len(t) == 0 {
			continue
		}
		cursors = append(cursors, cursor{msgs: t, tick: uint64(t[0].Delta)})
		total += len(t)
	}

	out := make([]Message, 0, total)
	var last uint64
	for {
		best := -1
		for i := range cursors {
			c := &cursors[i]
			if c.idx >= len(c.msgs) {
				continue
			}
			if best < 0 || c.tick < cursors[best].tick {
				best = i
			}
		}
		if best < 0 {
			return out
		}
		c := &cursors[best]
		m := c.msgs[c.idx]
		m.Delta = uint32(c.tick - last)
		last = c.tick
		out = append(out, m)
		c.idx++
		if c.idx < len(c.msgs) {
			c.tick += uint64(c.msgs[c.idx].Delta)
		}
	}
}

type noteKey struct {
	channel uint8
	note    uint8
}

// MaxPolyphony scans a message stream and returns the peak number of
// simultaneously sounding notes, never less than 1. A note-on with velocity
// zero releases its note, matching how the sequencer allocates voices.
func MaxPolyphony(messages []Message) int {
	active := make(map[noteKey]struct{})
	peak := 1
	for _, m := range messages {
		if len(m.Data) == 0 {
			continue
		}
		key := noteKey{channel: m.Channel, note: m.Data[0]}
		switch m.Type {
		case NoteOn:
			if len(m.Data) > 1 && m.Data[1] > 0 {
				active[key] = struct{}{}
				if len(active) > peak {
					peak = len(active)
				}
			} else {
				delete(active, key)
			}
		case NoteOff:
			delete(active, key)
		}
	}
	return peak
}
