package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "cinebot/pkg/logx"
)

func TestParseSchedule(t *testing.T) {
	cases := []struct {
		in    string
		kind  SpecKind
		every time.Duration
		cron  string
	}{
		{in: "600s", kind: SpecInterval, every: 10 * time.Minute},
		{in: "600", kind: SpecInterval, every: 10 * time.Minute},
		{in: "00:10", kind: SpecInterval, every: 10 * time.Minute},
		{in: "1h30m", kind: SpecInterval, every: 90 * time.Minute},
		{in: "@every 10m", kind: SpecInterval, every: 10 * time.Minute},
		{in: "every: 02:30", kind: SpecInterval, every: 150 * time.Minute},
		{in: "*/10 * * * *", kind: SpecCron, cron: "*/10 * * * *"},
		{in: "@hourly", kind: SpecCron, cron: "@hourly"},
		{in: "cron: 0 9 * * *", kind: SpecCron, cron: "0 9 * * *"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseSchedule(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, got.Kind)
			assert.Equal(t, tc.every, got.Every)
			assert.Equal(t, tc.cron, got.Cron)
		})
	}
}

func TestParseScheduleRejects(t *testing.T) {
	for _, in := range []string{"", "  ", "soon", "00:75", "500ms", "0", "-5m", "cron:"} {
		_, err := ParseSchedule(in)
		assert.Error(t, err, in)
	}
}

func TestParsedSpecString(t *testing.T) {
	ps, err := ParseSchedule("600")
	require.NoError(t, err)
	assert.Equal(t, "@every 10m0s", ps.String())
}

func TestWarmupOverridesFirstTrigger(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := withWarmup(cron.Every(10*time.Minute), now, 10*time.Second)

	first := s.Next(now)
	assert.Equal(t, now.Add(10*time.Second), first)
	assert.Equal(t, first.Add(10*time.Minute), s.Next(first))
}

func TestWarmupZeroKeepsBase(t *testing.T) {
	base := cron.Every(time.Minute)
	assert.Equal(t, base, withWarmup(base, time.Now(), 0))
}

func TestAddValidates(t *testing.T) {
	s := New(Config{}, logx.Nop())
	run := func(context.Context) error { return nil }

	assert.Error(t, s.Add(Job{Spec: "10m", Run: run}))
	assert.Error(t, s.Add(Job{Name: "x", Spec: "10m"}))
	assert.Error(t, s.Add(Job{Name: "x", Spec: "nope", Run: run}))
	assert.Error(t, s.Add(Job{Name: "x", Spec: "99 99 * * *", Run: run}))
	assert.NoError(t, s.Add(Job{Name: "x", Spec: "10m", Run: run}))
}

func TestAddReplacesByName(t *testing.T) {
	s := New(Config{}, logx.Nop())
	run := func(context.Context) error { return nil }
	require.NoError(t, s.Add(Job{Name: "broadcast", Spec: "10m", Run: run}))
	require.NoError(t, s.Add(Job{Name: "broadcast", Spec: "5m", Run: run}))

	snap := s.Snapshot()
	require.Len(t, snap.Schedules, 1)
	assert.Equal(t, "@every 5m0s", snap.Schedules[0].Spec)
	assert.True(t, s.Remove("broadcast"))
	assert.False(t, s.Remove("broadcast"))
}

func TestWarmupRunsBeforeInterval(t *testing.T) {
	s := New(Config{Timezone: "UTC"}, logx.Nop())
	var runs atomic.Int32
	require.NoError(t, s.Add(Job{
		Name:   "tick",
		Spec:   "1h",
		Warmup: 50 * time.Millisecond,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	}))
	s.Start(context.Background())
	defer s.Stop(context.Background())

	require.Eventually(t, func() bool { return runs.Load() == 1 }, 3*time.Second, 10*time.Millisecond)
	snap := s.Snapshot()
	require.Len(t, snap.Schedules, 1)
	assert.Equal(t, "UTC", snap.Timezone)
	assert.Equal(t, uint64(1), snap.Schedules[0].Runs)
	assert.True(t, snap.Schedules[0].Next.After(time.Now().Add(50*time.Minute)))
}

func TestFireSkipsOverlap(t *testing.T) {
	s := New(Config{}, logx.Nop())
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, s.Add(Job{
		Name: "slow",
		Spec: "10m",
		Run: func(context.Context) error {
			close(started)
			<-release
			return nil
		},
	}))
	st := s.jobs[0]

	done := make(chan struct{})
	go func() {
		s.fire(st)
		close(done)
	}()
	<-started
	s.fire(st)
	close(release)
	<-done

	assert.Equal(t, uint64(1), st.runs.Load())
	assert.Equal(t, uint64(1), st.skipped.Load())
}

func TestFireRecordsFailureAndPanic(t *testing.T) {
	s := New(Config{}, logx.Nop())
	require.NoError(t, s.Add(Job{Name: "bad", Spec: "10m", Run: func(context.Context) error {
		return errors.New("boom")
	}}))
	require.NoError(t, s.Add(Job{Name: "panics", Spec: "10m", Run: func(context.Context) error {
		panic("kaboom")
	}}))

	s.fire(s.jobs[0])
	s.fire(s.jobs[1])

	snap := s.Snapshot()
	assert.Equal(t, "boom", snap.Schedules[0].LastErr)
	assert.Equal(t, uint64(1), snap.Schedules[0].Failed)
	assert.Contains(t, snap.Schedules[1].LastErr, "panic: kaboom")
	assert.False(t, snap.Schedules[1].Running)
}

func TestFireAppliesTimeout(t *testing.T) {
	s := New(Config{}, logx.Nop())
	require.NoError(t, s.Add(Job{Name: "t", Spec: "10m", Timeout: 20 * time.Millisecond, Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}))
	s.fire(s.jobs[0])
	assert.Equal(t, context.DeadlineExceeded.Error(), s.Snapshot().Schedules[0].LastErr)
}
