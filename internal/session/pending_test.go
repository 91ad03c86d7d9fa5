package session

import (
	"testing"
	"time"
)

func TestPendingAcks_RecordAndTake(t *testing.T) {
	p := newPendingAcks(1000)
	sentAt := time.Now()

	p.record(1, sentAt)
	p.record(2, sentAt.Add(100*time.Millisecond))

	got, ok := p.take(1)
	if !ok {
		t.Fatal("expected frame 1 to be tracked")
	}
	if !got.Equal(sentAt) {
		t.Errorf("expected send time %v, got %v", sentAt, got)
	}
	if p.len() != 1 {
		t.Errorf("expected 1 entry after take, got %d", p.len())
	}

	// Taking the same frame again must miss.
	if _, ok := p.take(1); ok {
		t.Error("duplicate take should miss")
	}
}

func TestPendingAcks_UnknownFrame(t *testing.T) {
	p := newPendingAcks(10)
	p.record(5, time.Now())

	if _, ok := p.take(99); ok {
		t.Error("unknown frame should not be found")
	}
	if p.len() != 1 {
		t.Errorf("failed take must not mutate the tracker, got len %d", p.len())
	}
}

func TestPendingAcks_EvictsOldestFirst(t *testing.T) {
	p := newPendingAcks(1000)
	base := time.Now()

	for n := 1; n <= 1500; n++ {
		p.record(n, base.Add(time.Duration(n)*time.Millisecond))
		if p.len() > 1000 {
			t.Fatalf("tracker exceeded bound at frame %d: %d entries", n, p.len())
		}
	}

	if p.len() != 1000 {
		t.Fatalf("expected exactly 1000 entries, got %d", p.len())
	}

	// Frames 1..500 were the oldest and must have been evicted.
	for n := 1; n <= 500; n++ {
		if _, ok := p.take(n); ok {
			t.Fatalf("frame %d should have been evicted", n)
		}
	}
	// Frames 501..1500 must all survive.
	for n := 501; n <= 1500; n++ {
		if _, ok := p.take(n); !ok {
			t.Fatalf("frame %d should still be tracked", n)
		}
	}
}

func TestPendingAcks_TakeReordersNothing(t *testing.T) {
	p := newPendingAcks(3)
	base := time.Now()

	p.record(1, base)
	p.record(2, base)
	p.record(3, base)

	// Ack the middle frame, then overflow. Frame 1 is now the oldest and
	// must be the next eviction victim.
	p.take(2)
	p.record(4, base)
	p.record(5, base)

	if _, ok := p.take(1); ok {
		t.Error("frame 1 should have been evicted")
	}
	for _, n := range []int{3, 4, 5} {
		if _, ok := p.take(n); !ok {
			t.Errorf("frame %d should still be tracked", n)
		}
	}
}
