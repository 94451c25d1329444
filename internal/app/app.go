// Package app wires cinebot together and owns its lifecycle: ordered
// start, hot reload and bounded shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cinebot/internal/broadcast"
	"cinebot/internal/config"
	"cinebot/internal/dedup"
	"cinebot/internal/ephemeral"
	"cinebot/internal/eventbus"
	"cinebot/internal/handler"
	"cinebot/internal/observability/ops"
	rtsup "cinebot/internal/runtime/supervisor"
	"cinebot/internal/storage"
	"cinebot/internal/task/scheduler"
	kit "cinebot/internal/transport"
	telegram "cinebot/internal/transport/telegram/adapter"
	"cinebot/internal/transport/telegram/router"
	logx "cinebot/pkg/logx"
	"cinebot/pkg/posterx"
	"cinebot/pkg/systemd"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor
	sups *router.SupervisorRegistry

	root logx.Logger
	log  logx.Logger
	logs *logx.Service
	bus  *eventbus.MemBus

	adapter *telegram.Adapter
	router  *router.Manager
	catalog *Catalog
	store   storage.Store
	sampler *dedup.Sampler
	eph     *ephemeral.Scheduler
	orch    *broadcast.Orchestrator
	handler *handler.Handler
	sched   *scheduler.Service
	ops     *ops.Service

	startedAt time.Time
	updates   chan kit.Update
}

func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "telegram"))
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: config.Dur(cfg.Telegram.PollTimeout, 10*time.Second),
	}, bootLog)
	if err != nil {
		return nil, err
	}

	// logx.New applies immediately and warns about a chat sink without a
	// target, so start with the sink off and enable it once the target is set.
	logCfg := logConfig(cfg)
	bootCfg := logCfg
	bootCfg.Chat.Enabled = false
	logSvc, root := logx.New(bootCfg, ad)
	logSvc.SetChatTarget(cfg.Telegram.LogChat, cfg.Logging.Telegram.ThreadID)
	logSvc.Apply(logCfg)

	bus := eventbus.New()

	cat, err := OpenCatalog(ctx, cfg, bus, root)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	store, err := storage.Open(storageConfig(cfg), root)
	if err != nil {
		_ = cat.Close()
		logSvc.Close()
		return nil, err
	}
	if _, off := store.(storage.Disabled); off {
		root.Warn("storage disabled; broadcasts will be skipped")
	}

	a := &App{
		cfgm:    cfgm,
		sups:    router.NewSupervisorRegistry(),
		root:    root,
		log:     root.With(logx.String("comp", "app")),
		logs:    logSvc,
		bus:     bus,
		adapter: ad,
		catalog: cat,
		store:   store,
		sampler: dedup.New(cfg.Broadcast.Window),
		eph:     ephemeral.New(ad, root),
		sched:   scheduler.New(scheduler.Config{Timezone: cfg.Scheduler.Timezone}, root.With(logx.String("comp", "scheduler"))),
		updates: make(chan kit.Update, 256),
	}
	poster := posterFetcher()

	bd := broadcast.Deps{
		Store:     store,
		Sampler:   a.sampler,
		Lookup:    cat.Engine,
		Messenger: ad,
		Ephemeral: a.eph,
		Bus:       bus,
		Log:       root,
		Poster:    poster,
	}
	if cat.Enrich != nil {
		bd.Enrich = cat.Enrich
	}
	a.orch = broadcast.New(broadcastConfig(cfg), bd)

	a.router = router.New(root, ad, router.Options{
		Workers:        cfg.Telegram.Workers,
		DefaultTimeout: config.Dur(cfg.Telegram.CommandTimeout, 30*time.Second),
		Owners:         cfg.Telegram.OwnerUserIDs,
	}, a.sups)

	hd := handler.Deps{
		Resolver:  cat.Engine,
		Trending:  cat.Trending,
		AI:        cat.AI,
		Messenger: ad,
		Ephemeral: a.eph,
		Broadcast: a.orch,
		Help:      a.router.HelpText,
		Status:    a.status,
		Poster:    poster,
		Log:       root,
	}
	if cat.TMDb != nil {
		hd.Lists = cat.TMDb
	}
	a.handler = handler.New(handlerConfig(cfg, cat.AIEnabled()), hd)
	a.router.SetRegistry(a.handler.Commands(), a.handler.Callbacks())
	a.router.SetTextHandler(a.handler.Text)
	a.router.SetJoinHandler(a.handler.Join)

	a.ops = ops.New(opsConfig(cfg), a.ready, root)
	return a, nil
}

func posterFetcher() func(ctx context.Context, url string) ([]byte, error) {
	client := &http.Client{Timeout: 15 * time.Second}
	return func(ctx context.Context, url string) ([]byte, error) {
		return posterx.FetchCropped(ctx, client, url)
	}
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.startedAt = time.Now()
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.sups.Set("app", a.sup)

	a.cfgm.SetLogger(a.root.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(validate)

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.sups.Set("telegram.adapter", a.adapter.Supervisor())
	a.router.SetBotUsername(a.adapter.Username())

	menuCtx, cancel := context.WithTimeout(a.sup.Context(), 10*time.Second)
	if err := a.router.SyncMenu(menuCtx); err != nil {
		a.log.Warn("command menu sync failed", logx.Err(err))
	}
	cancel()

	if err := a.ops.Start(a.sup.Context()); err != nil {
		return err
	}
	a.sups.Set("ops", a.ops.Supervisor())

	cfg := a.cfgm.Get()
	if cfg.Broadcast.Enabled {
		if err := a.sched.Add(tickJob(cfg, true, a.tick)); err != nil {
			return err
		}
	}
	a.sched.Start(a.sup.Context())

	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})
	a.watchBus()
	a.watchConfig()
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})
	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		if err := systemd.Watchdog(c); err != nil {
			a.log.Warn("systemd watchdog disabled", logx.Err(err))
		}
	})

	if _, err := systemd.Ready(); err != nil {
		a.log.Warn("systemd notify failed", logx.Err(err))
	}
	a.log.Info("app started",
		logx.String("bot", a.adapter.Username()),
		logx.Bool("broadcast", cfg.Broadcast.Enabled),
		logx.Int("targets", len(cfg.Broadcast.Targets)),
		logx.Bool("ai", a.catalog.AIEnabled()),
	)
	return nil
}

// tick runs one broadcast. Its error is only context cancellation.
func (a *App) tick(ctx context.Context) error {
	rep, err := a.orch.Tick(ctx)
	if rep.Skipped {
		a.log.Debug("broadcast skipped", logx.String("run", rep.RunID), logx.String("reason", rep.Reason))
		return err
	}
	a.log.Info("broadcast done",
		logx.String("run", rep.RunID),
		logx.String("title", rep.Title),
		logx.Int("sent", rep.Sent),
		logx.Int("failed", rep.Failed),
		logx.Duration("took", rep.Took),
	)
	return err
}

// ready backs /readyz: polling must be up and a remote cache reachable.
func (a *App) ready(ctx context.Context) error {
	if a.sup == nil || a.sup.Context().Err() != nil {
		return errors.New("stopping")
	}
	if a.adapter.Supervisor() == nil {
		return errors.New("telegram not started")
	}
	if err := a.catalog.Ping(ctx); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

func (a *App) status() handler.Status {
	st := handler.Status{
		Uptime:      time.Since(a.startedAt),
		DedupWindow: len(a.sampler.Window()),
		DedupCap:    a.sampler.Cap(),
		Pending:     a.eph.Pending(),
		Supervisors: a.sups.Counters(),
		Schedules:   a.sched.Snapshot().Schedules,
	}
	if rep, ok := a.orch.LastReport(); ok {
		st.LastBroadcast = &rep
	}
	return st
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if _, err := systemd.Stopping(); err != nil {
		a.log.Debug("systemd notify failed", logx.Err(err))
	}

	a.sup.Cancel()

	// step bounds one shutdown stage so a stuck component cannot stall the rest.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
		if max <= 0 {
			a.log.Warn("stop step skipped: no time left", logx.String("name", name))
			return
		}
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
			go func() {
				if err := <-done; err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err))
				}
			}()
		}
	}

	// Triggers first, then in-flight broadcast and handlers, then the transport.
	step("scheduler", 3*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("ops", time.Second, func(c context.Context) error { a.ops.Stop(c); return nil })
	step("supervisor", 3*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("ephemeral", 2*time.Second, func(c context.Context) error { return a.eph.Stop(c) })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })
	step("cache", time.Second, func(context.Context) error { return a.catalog.Close() })

	a.log.Info("stopped", logx.Duration("uptime", time.Since(a.startedAt).Round(time.Second)))
	a.logs.Close()
	return nil
}
