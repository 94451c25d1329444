package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
)

// warmupSchedule overrides the first trigger and then defers to base.
type warmupSchedule struct {
	base  cron.Schedule
	first time.Time
}

func (s *warmupSchedule) Next(t time.Time) time.Time {
	if !s.first.IsZero() && t.Before(s.first) {
		return s.first
	}
	return s.base.Next(t)
}

func withWarmup(base cron.Schedule, now time.Time, warmup time.Duration) cron.Schedule {
	if warmup <= 0 {
		return base
	}
	return &warmupSchedule{base: base, first: now.Add(warmup)}
}
