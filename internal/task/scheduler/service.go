package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	logx "cinebot/pkg/logx"
)

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg: cfg,
		log: log,
		// SecondOptional allows both 5-field and 6-field (with seconds) specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Add registers job, replacing any job with the same name. Jobs added
// before Start are registered when Start runs.
func (s *Service) Add(job Job) error {
	if strings.TrimSpace(job.Name) == "" {
		return errors.New("job name required")
	}
	if job.Run == nil {
		return fmt.Errorf("job %s: run func required", job.Name)
	}
	ps, err := ParseSchedule(job.Spec)
	if err != nil {
		return fmt.Errorf("job %s: %w", job.Name, err)
	}
	if ps.Kind == SpecCron {
		if _, err := s.parser.Parse(ps.Cron); err != nil {
			return fmt.Errorf("job %s: invalid cron %q: %w", job.Name, ps.Cron, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(job.Name)
	st := &jobState{job: job, parsed: ps}
	s.jobs = append(s.jobs, st)
	if s.c != nil {
		s.registerLocked(st)
	}
	return nil
}

// Remove reports whether a job with that name existed.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(name)
}

func (s *Service) removeLocked(name string) bool {
	for i, st := range s.jobs {
		if st.job.Name != name {
			continue
		}
		if s.c != nil && st.entryID != 0 {
			s.c.Remove(st.entryID)
		}
		s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
		return true
	}
	return false
}

func (s *Service) registerLocked(st *jobState) {
	var base cron.Schedule
	if st.parsed.Kind == SpecInterval {
		base = cron.Every(st.parsed.Every)
	} else {
		sch, err := s.parser.Parse(st.parsed.Cron)
		if err != nil {
			s.log.Error("schedule register failed", logx.String("name", st.job.Name), logx.Err(err))
			return
		}
		base = sch
	}
	sched := withWarmup(base, time.Now().In(s.loc), st.job.Warmup)
	st.entryID = s.c.Schedule(sched, cron.FuncJob(func() { s.fire(st) }))
	s.log.Debug("schedule registered",
		logx.String("name", st.job.Name),
		logx.String("spec", st.parsed.String()),
		logx.Duration("warmup", st.job.Warmup),
	)
}

// fire runs one trigger. A trigger that lands while the previous run is
// still going is counted and dropped.
func (s *Service) fire(st *jobState) {
	if !st.running.CompareAndSwap(false, true) {
		st.skipped.Add(1)
		s.log.Warn("job still running; trigger skipped", logx.String("name", st.job.Name))
		return
	}
	defer st.running.Store(false)

	s.mu.Lock()
	base := s.ctx
	s.mu.Unlock()
	if base == nil {
		base = context.Background()
	}
	ctx := base
	if st.job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(base, st.job.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := runGuarded(ctx, st.job.Run)
	took := time.Since(start)
	st.runs.Add(1)

	st.lastMu.Lock()
	st.lastDur = took
	st.lastErr = ""
	if err != nil {
		st.lastErr = err.Error()
	}
	st.lastMu.Unlock()

	if err != nil {
		st.failed.Add(1)
		s.log.Warn("job failed", logx.String("name", st.job.Name), logx.Duration("took", took), logx.Err(err))
		return
	}
	s.log.Debug("job done", logx.String("name", st.job.Name), logx.Duration("took", took))
}

func runGuarded(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx)
}

// Apply restarts triggering when the timezone changed.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	s.cfg = cfg
	if s.c == nil || oldTZ == strings.TrimSpace(cfg.Timezone) {
		return
	}
	s.log.Info("timezone changed; restarting schedules", logx.String("from", oldTZ), logx.String("to", cfg.Timezone))
	s.c.Stop()
	s.startLocked()
}

// Start begins triggering. Job contexts derive from ctx.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.startLocked()
	s.log.Info("service started", logx.String("tz", s.loc.String()), logx.Int("schedules", len(s.jobs)))
}

func (s *Service) startLocked() {
	s.loc = s.loadLocationLocked()
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	for _, st := range s.jobs {
		s.registerLocked(st)
	}
	s.c.Start()
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; using local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// Stop halts triggering, cancels running jobs and waits for them until ctx ends.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	c, cancel := s.c, s.cancel
	s.c, s.cancel = nil, nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	done := c.Stop()
	if cancel != nil {
		cancel()
	}
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("stop timed out waiting for running jobs")
	}
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Snapshot{Running: s.c != nil, Timezone: s.cfg.Timezone}
	if s.loc != nil {
		out.Timezone = s.loc.String()
	}
	for _, st := range s.jobs {
		info := ScheduleInfo{
			Name:    st.job.Name,
			Spec:    st.parsed.String(),
			Runs:    st.runs.Load(),
			Skipped: st.skipped.Load(),
			Failed:  st.failed.Load(),
			Running: st.running.Load(),
		}
		if s.c != nil && st.entryID != 0 {
			e := s.c.Entry(st.entryID)
			info.Next, info.Prev = e.Next, e.Prev
		}
		st.lastMu.Lock()
		info.LastErr, info.LastTook = st.lastErr, st.lastDur
		st.lastMu.Unlock()
		out.Schedules = append(out.Schedules, info)
	}
	return out
}
