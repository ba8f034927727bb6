package monitor

// History represents the probe history of a single target: counters since
// the last clear plus a ring buffer with the most recent outcomes. It is
// owned by a single Loop and not safe for concurrent use.
type History struct {
	results  []Outcome
	count    int
	position int

	sent       int
	lost       int
	lostInRow  int
	maxLostRow int
}

// NewHistory creates a new History object with a specific capacity.
func NewHistory(capacity int) History {
	if capacity < 1 {
		capacity = 1
	}
	return History{
		results: make([]Outcome, capacity),
	}
}

// AddOutcome saves a probe outcome into the internal history.
func (h *History) AddOutcome(o Outcome) {
	h.results[h.position] = o
	h.position = (h.position + 1) % len(h.results)

	if h.count < len(h.results) {
		h.count++
	}

	h.sent++
	if o == TimedOut {
		h.lost++
		h.lostInRow++
		if h.lostInRow > h.maxLostRow {
			h.maxLostRow = h.lostInRow
		}
	} else {
		h.lostInRow = 0
	}
}

func (h *History) clear() {
	h.count = 0
	h.position = 0
	h.sent = 0
	h.lost = 0
	h.lostInRow = 0
	h.maxLostRow = 0
}

// ComputeAndClear aggregates the history into a single data point and
// clears it.
func (h *History) ComputeAndClear() *Summary {
	result := h.Compute()
	h.clear()
	return result
}

// Compute aggregates the history into a single data point. It returns nil
// if nothing was recorded.
func (h *History) Compute() *Summary {
	if h.sent == 0 {
		return nil
	}

	recentLost := 0
	for i := 0; i < h.count; i++ {
		if h.results[i] == TimedOut {
			recentLost++
		}
	}

	return &Summary{
		PacketsSent:   h.sent,
		PacketsLost:   h.lost,
		MaxLostInRow:  h.maxLostRow,
		RecentSent:    h.count,
		RecentLost:    recentLost,
		RecentLossPct: float64(recentLost) / float64(h.count) * 100,
	}
}
