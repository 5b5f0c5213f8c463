package sched

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"orderlink/internal/config"
)

func TestNextDelay(t *testing.T) {
	window := config.Window{StartHour: 8, EndHour: 20}
	short, long := 2*time.Minute, 15*time.Minute

	noon := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	if got := NextDelay(noon, short, long, window); got != short {
		t.Fatalf("inside window: got %v", got)
	}
	night := time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC)
	if got := NextDelay(night, short, long, window); got != long {
		t.Fatalf("outside window: got %v", got)
	}
}

func TestEveryRunsImmediately(t *testing.T) {
	var runs atomic.Int32
	s := Every(time.Hour, func(ctx context.Context) { runs.Add(1) })
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("job did not run immediately")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
