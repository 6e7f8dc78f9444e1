package watchdog

import (
	"testing"
	"time"
)

func TestBackoffDoublesAndCaps(t *testing.T) {
	b := NewBackoff()

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		60 * time.Second,
		60 * time.Second,
	}
	for i, expected := range want {
		// Child crashes immediately every time
		got := b.Delay(100 * time.Millisecond)
		if got != expected {
			t.Fatalf("exit %d: expected delay %s, got %s", i+1, expected, got)
		}
	}
}

func TestBackoffResetsAfterHealthyRun(t *testing.T) {
	b := NewBackoff()

	b.Delay(time.Second)
	b.Delay(time.Second)
	if got := b.Delay(time.Second); got != 4*time.Second {
		t.Fatalf("expected 4s, got %s", got)
	}

	// A 6 minute run means the fault was isolated, not a crash-loop
	if got := b.Delay(6 * time.Minute); got != time.Second {
		t.Fatalf("expected reset to 1s after healthy run, got %s", got)
	}
	if got := b.Delay(time.Second); got != 2*time.Second {
		t.Fatalf("expected doubling to resume at 2s, got %s", got)
	}
}

func TestBackoffBoundaryAtHealthyThreshold(t *testing.T) {
	b := NewBackoff()

	b.Delay(time.Second)
	b.Delay(time.Second)

	// Exactly the threshold counts as healthy
	if got := b.Delay(5 * time.Minute); got != time.Second {
		t.Fatalf("expected reset at exactly 5m, got %s", got)
	}
}
