package session

import "time"

// pendingAcks maps frame numbers to their local send times so ack latency
// can be computed when the server confirms a frame. The map is bounded:
// once it holds limit entries, the oldest unacknowledged frame is evicted
// for every new one recorded.
type pendingAcks struct {
	limit int
	order []int
	times map[int]time.Time
}

func newPendingAcks(limit int) *pendingAcks {
	return &pendingAcks{
		limit: limit,
		times: make(map[int]time.Time, limit),
	}
}

// record stores the send time of a frame, evicting the oldest entry when the
// tracker is full.
func (p *pendingAcks) record(frame int, sentAt time.Time) {
	if _, exists := p.times[frame]; !exists {
		p.order = append(p.order, frame)
	}
	p.times[frame] = sentAt

	for len(p.times) > p.limit {
		oldest := p.order[0]
		p.order = p.order[1:]
		delete(p.times, oldest)
	}
}

// take removes and returns the send time of a frame. The second return is
// false for frames that were never recorded or already evicted, late and
// duplicate acks hit this path.
func (p *pendingAcks) take(frame int) (time.Time, bool) {
	sentAt, ok := p.times[frame]
	if !ok {
		return time.Time{}, false
	}
	delete(p.times, frame)
	for i, n := range p.order {
		if n == frame {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return sentAt, true
}

func (p *pendingAcks) len() int {
	return len(p.times)
}
