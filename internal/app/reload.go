package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"cinebot/internal/config"
	"cinebot/internal/eventbus"
	"cinebot/internal/observability/metrics"
	"cinebot/internal/task/scheduler"
	logx "cinebot/pkg/logx"
	"cinebot/pkg/systemd"
)

// validate rejects a reload the running components could not apply.
func validate(_ context.Context, cfg *config.Config) error {
	if _, err := scheduler.ParseSchedule(cfg.Broadcast.Interval); err != nil {
		return fmt.Errorf("broadcast.interval: %w", err)
	}
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
		}
	}
	return nil
}

func (a *App) watchConfig() {
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				// coalesce bursts
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							next = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(c, last, next)
				last = next
			}
		}
	})
}

func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	_, _ = systemd.Reloading()
	defer func() { _, _ = systemd.Ready() }()

	if restart := config.RestartRequired(sections); len(restart) > 0 {
		a.log.Warn("config sections changed that apply after restart", logx.Strs("sections", restart))
	}
	if prev.Broadcast.Window != next.Broadcast.Window {
		a.log.Warn("broadcast.window applies after restart", logx.Int("window", a.sampler.Cap()))
	}

	// Target before Apply so enabling the chat sink does not warn.
	a.logs.SetChatTarget(next.Telegram.LogChat, next.Logging.Telegram.ThreadID)
	a.logs.Apply(logConfig(next))

	a.router.SetOwners(next.Telegram.OwnerUserIDs)
	a.handler.Apply(handlerConfig(next, a.catalog.AIEnabled()))
	a.orch.Apply(broadcastConfig(next))
	a.sched.Apply(scheduler.Config{Timezone: next.Scheduler.Timezone})
	a.applySchedule(prev, next)

	if err := a.ops.Reconfigure(ctx, opsConfig(next)); err != nil {
		a.log.Warn("ops reconfigure failed; keeping previous", logx.Err(err))
	}
	a.sups.Set("ops", a.ops.Supervisor())

	a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigApplied, Data: sections})
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// applySchedule registers, replaces or drops the broadcast tick. Only a
// tick that was off gets the warm-up again.
func (a *App) applySchedule(prev, next *config.Config) {
	switch {
	case !next.Broadcast.Enabled:
		if a.sched.Remove(broadcastJob) {
			a.log.Info("broadcast disabled via config")
		}
	case !prev.Broadcast.Enabled || prev.Broadcast.Interval != next.Broadcast.Interval:
		if err := a.sched.Add(tickJob(next, !prev.Broadcast.Enabled, a.tick)); err != nil {
			a.log.Warn("broadcast schedule rejected; keeping previous", logx.Err(err))
			return
		}
		a.log.Info("broadcast scheduled", logx.String("interval", next.Broadcast.Interval))
	}
}

// watchBus logs in-process events and exports the bus drop counter.
func (a *App) watchBus() {
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		var reported uint64
		flush := func() {
			if n := a.bus.Dropped(); n > reported {
				metrics.AddBusDrops(n - reported)
				reported = n
			}
		}
		for {
			select {
			case <-c.Done():
				flush()
				return
			case <-ticker.C:
				flush()
			case e, ok := <-events:
				if !ok {
					return
				}
				level := a.log.Debug
				if slices.Contains(loudEvents, e.Type) {
					level = a.log.Info
				}
				level("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})
}

var loudEvents = []string{eventbus.TypeConfigApplied}
