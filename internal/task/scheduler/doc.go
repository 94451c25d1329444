// Package scheduler triggers named jobs on cron or interval schedules.
//
// Each job may carry a warm-up delay that replaces its first trigger, and a
// job still running when its next trigger fires is skipped, not queued.
package scheduler
