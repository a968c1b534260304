package bridge

import (
	"testing"
	"time"
)

func TestBackoffStartsAtBase(t *testing.T) {
	b := NewBackoff()
	d := b.Next()
	if d < backoffBase || d > backoffBase+backoffBase/10 {
		t.Errorf("initial delay = %s, want %s plus at most 10%% jitter", d, backoffBase)
	}
}

func TestBackoffGrowsMonotonically(t *testing.T) {
	b := NewBackoff()
	prev := time.Duration(0)
	for i := 0; i < 30; i++ {
		b.Failure()
		b.mu.Lock()
		delay := b.delay
		b.mu.Unlock()
		if delay < prev {
			t.Fatalf("delay shrank at failure %d: %s < %s", i+1, delay, prev)
		}
		prev = delay
	}
}

func TestBackoffCapped(t *testing.T) {
	b := NewBackoff()
	for i := 0; i < 100; i++ {
		b.Failure()
	}
	b.mu.Lock()
	delay := b.delay
	b.mu.Unlock()
	if delay != backoffMax {
		t.Errorf("delay = %s, want cap %s", delay, backoffMax)
	}
	for i := 0; i < 10; i++ {
		if d := b.Next(); d > backoffMax {
			t.Errorf("Next() = %s exceeds cap %s", d, backoffMax)
		}
	}
}

func TestBackoffGrowthRates(t *testing.T) {
	b := NewBackoff()

	// The first two failures keep the base delay.
	b.Failure()
	b.Failure()
	b.mu.Lock()
	delay := b.delay
	b.mu.Unlock()
	if delay != backoffBase {
		t.Errorf("delay after 2 failures = %s, want %s", delay, backoffBase)
	}

	// The third failure starts growing at 1.2x.
	b.Failure()
	b.mu.Lock()
	delay = b.delay
	b.mu.Unlock()
	want := time.Duration(float64(backoffBase) * 1.2)
	if delay != want {
		t.Errorf("delay after 3 failures = %s, want %s", delay, want)
	}
}

func TestBackoffStableConnectionClampsFailures(t *testing.T) {
	b := NewBackoff()
	for i := 0; i < 12; i++ {
		b.Failure()
	}
	if b.Failures() != 12 {
		t.Fatalf("failures = %d, want 12", b.Failures())
	}

	// A connection that survived the stability window resets the streak.
	b.ConnectionClosed(stabilityWindow + time.Second)
	if got := b.Failures(); got != 2 {
		t.Errorf("failures after stable drop = %d, want 2", got)
	}
	if d := b.Next(); d > 2*backoffBase {
		t.Errorf("delay after stable drop = %s, want near base", d)
	}
}

func TestBackoffShortConnectionCountsAsFailure(t *testing.T) {
	b := NewBackoff()
	for i := 0; i < 5; i++ {
		b.ConnectionClosed(time.Second)
	}
	if got := b.Failures(); got != 5 {
		t.Errorf("failures = %d, want 5", got)
	}
}

func TestBackoffReset(t *testing.T) {
	b := NewBackoff()
	for i := 0; i < 8; i++ {
		b.Failure()
	}
	b.Reset()
	if b.Failures() != 0 {
		t.Errorf("failures after reset = %d", b.Failures())
	}
	if d := b.Next(); d > backoffBase+backoffBase/10 {
		t.Errorf("delay after reset = %s, want base", d)
	}
}
