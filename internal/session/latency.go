package session

import "time"

// latencyRing keeps the most recent ack latency samples in arrival order.
// Once full, each new sample overwrites the oldest one.
type latencyRing struct {
	samples []time.Duration
	next    int
	count   int
}

func newLatencyRing(capacity int) *latencyRing {
	return &latencyRing{samples: make([]time.Duration, capacity)}
}

func (r *latencyRing) add(d time.Duration) {
	r.samples[r.next] = d
	r.next = (r.next + 1) % len(r.samples)
	if r.count < len(r.samples) {
		r.count++
	}
}

func (r *latencyRing) len() int {
	return r.count
}

// average returns the rolling mean over the retained samples, or 0 when no
// samples have arrived yet.
func (r *latencyRing) average() time.Duration {
	if r.count == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range r.snapshot() {
		total += d
	}
	return total / time.Duration(r.count)
}

// snapshot returns the retained samples, oldest first.
func (r *latencyRing) snapshot() []time.Duration {
	out := make([]time.Duration, 0, r.count)
	start := r.next - r.count
	if start < 0 {
		start += len(r.samples)
	}
	for i := 0; i < r.count; i++ {
		out = append(out, r.samples[(start+i)%len(r.samples)])
	}
	return out
}
