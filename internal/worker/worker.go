// Package worker runs the periodic jobs: the daily check-in reset and the
// janitor that trims in-memory rate and invite windows.
package worker

import (
	"context"
	"log/slog"
	"time"
)

type Resetter interface {
	ResetCheckIns(ctx context.Context) (int64, error)
}

type Sweeper interface {
	Sweep(now time.Time) int
}

// NextReset returns the first hour:minute in loc strictly after now.
func NextReset(now time.Time, loc *time.Location, hour, minute int) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}

type DailyReset struct {
	Resetter Resetter
	Location *time.Location
	Hour     int
	Minute   int
	Logger   *slog.Logger
	Now      func() time.Time
}

// Run fires the reset once a day until ctx is cancelled. A failed reset is
// logged and retried at the next day's slot.
func (d DailyReset) Run(ctx context.Context) error {
	logger, now, loc := d.Logger, d.Now, d.Location
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}

	for {
		next := NextReset(now(), loc, d.Hour, d.Minute)
		logger.Debug("next check-in reset scheduled", "at", next)
		timer := time.NewTimer(next.Sub(now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			if _, err := d.Resetter.ResetCheckIns(ctx); err != nil {
				logger.Error("check-in reset failed", "err", err)
			}
		}
	}
}

// RunJanitor sweeps every sweeper on each tick until ctx is cancelled.
func RunJanitor(ctx context.Context, logger *slog.Logger, every time.Duration, now func() time.Time, sweepers ...Sweeper) error {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t := now()
			removed := 0
			for _, s := range sweepers {
				removed += s.Sweep(t)
			}
			if removed > 0 {
				logger.Debug("janitor swept idle entries", "removed", removed)
			}
		}
	}
}
