// Package sched fires background jobs on fixed or adaptive intervals. Jobs
// carry their own reentrancy guards; the scheduler only provides cadence.
package sched

import (
	"context"
	"time"

	"orderlink/internal/config"
)

// Schedule is a running cadence; Stop ends it.
type Schedule struct {
	stop chan struct{}
}

func (s *Schedule) Stop() { close(s.stop) }

// Every runs the job once immediately, then on every interval.
func Every(interval time.Duration, run func(ctx context.Context)) *Schedule {
	s := &Schedule{stop: make(chan struct{})}
	go func() {
		run(context.Background())
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				run(context.Background())
			}
		}
	}()
	return s
}

// Adaptive runs the job once immediately, then re-arms a timer whose delay
// depends on whether the current time falls in the business-hours window:
// short inside, long outside. Upstream volume and staleness tolerance both
// track time of day for the lead feed.
func Adaptive(short, long time.Duration, window config.Window, run func(ctx context.Context)) *Schedule {
	s := &Schedule{stop: make(chan struct{})}
	go func() {
		run(context.Background())
		for {
			timer := time.NewTimer(NextDelay(time.Now(), short, long, window))
			select {
			case <-s.stop:
				timer.Stop()
				return
			case <-timer.C:
				run(context.Background())
			}
		}
	}()
	return s
}

// NextDelay picks the adaptive delay for a tick fired at now.
func NextDelay(now time.Time, short, long time.Duration, window config.Window) time.Duration {
	if window.Contains(now) {
		return short
	}
	return long
}
