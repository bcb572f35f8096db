package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(limit int, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := New(limit, window)
	l.now = clock.now
	return l, clock
}

func TestAllowBurstThenRefill(t *testing.T) {
	l, clock := newTestLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("request %d rejected within burst", i)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Fatal("fourth request allowed")
	}
	if !l.Allow("10.0.0.2") {
		t.Error("keys should not share a bucket")
	}

	clock.advance(20 * time.Second)
	if !l.Allow("10.0.0.1") {
		t.Error("token not refilled after a third of the window")
	}
	if l.Allow("10.0.0.1") {
		t.Error("only one token should have refilled")
	}
}

func TestRefillCapsAtLimit(t *testing.T) {
	l, clock := newTestLimiter(2, time.Second)
	l.Allow("k")
	clock.advance(time.Hour)
	allowed := 0
	for i := 0; i < 5; i++ {
		if l.Allow("k") {
			allowed++
		}
	}
	if allowed != 2 {
		t.Errorf("allowed %d after long idle, want 2", allowed)
	}
}

func TestEvictIdle(t *testing.T) {
	l, clock := newTestLimiter(5, time.Second)
	l.Allow("old")
	clock.advance(3 * time.Second)
	l.Allow("new")
	l.evictIdle()
	if l.Len() != 1 {
		t.Errorf("Len = %d, want 1", l.Len())
	}
}
