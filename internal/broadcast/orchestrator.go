package broadcast

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"cinebot/internal/caption"
	"cinebot/internal/eventbus"
	"cinebot/internal/observability/metrics"
	"cinebot/internal/storage"
	kit "cinebot/internal/transport"
	logx "cinebot/pkg/logx"
	"cinebot/pkg/tgui"
)

// Callback scope and action of the "Next" button.
const (
	NextScope  = "movie"
	NextAction = "next"
)

const defaultPoolSize = 50

type Orchestrator struct {
	d Deps

	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	running atomic.Bool

	lastMu sync.Mutex
	last   *Report
}

func New(cfg Config, d Deps) *Orchestrator {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	d.Log = d.Log.With(logx.String("comp", "broadcast"))
	o := &Orchestrator{d: d}
	o.Apply(cfg)
	return o
}

// Apply swaps the config; a tick in progress keeps the old one.
func (o *Orchestrator) Apply(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.PerCategory <= 0 {
		cfg.PerCategory = defaultPoolSize
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 10
	}
	o.mu.Lock()
	o.cfg = cfg
	o.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	o.mu.Unlock()
}

func (o *Orchestrator) snapshot() (Config, *rate.Limiter) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg, o.limiter
}

// LastReport returns the most recent tick report.
func (o *Orchestrator) LastReport() (Report, bool) {
	o.lastMu.Lock()
	defer o.lastMu.Unlock()
	if o.last == nil {
		return Report{}, false
	}
	return *o.last, true
}

// Tick runs SELECT, ENRICH, RENDER, FANOUT and SCHEDULE_DELETE once.
// Overlapping calls are skipped. An empty pool is a skipped tick, not an
// error; only context cancellation is returned.
func (o *Orchestrator) Tick(ctx context.Context) (Report, error) {
	rep := Report{RunID: uuid.NewString()[:8], StartedAt: time.Now()}
	if !o.running.CompareAndSwap(false, true) {
		metrics.BroadcastTick("overlap")
		rep.Skipped, rep.Reason = true, "previous tick still running"
		return rep, nil
	}
	defer o.running.Store(false)

	cfg, lim := o.snapshot()
	log := o.d.Log.With(logx.String("run", rep.RunID))

	finish := func(result string) (Report, error) {
		rep.Took = time.Since(rep.StartedAt)
		metrics.BroadcastTick(result)
		o.lastMu.Lock()
		cp := rep
		o.last = &cp
		o.lastMu.Unlock()
		if o.d.Bus != nil {
			o.d.Bus.Publish(eventbus.Event{Type: eventbus.TypeBroadcastTick, Data: rep})
		}
		return rep, ctx.Err()
	}

	if len(cfg.Targets) == 0 {
		rep.Skipped, rep.Reason = true, "no targets"
		return finish("empty")
	}

	pool := o.selectPool(ctx, cfg)
	entry, ok := o.d.Sampler.PickUnseen(pool)
	if !ok {
		rep.Skipped, rep.Reason = true, "empty pool"
		log.Debug("broadcast tick skipped: empty pool")
		return finish("empty")
	}
	rep.EntryID, rep.Title = entry.ID, entry.Title

	msg := o.compose(ctx, cfg, entry)
	rep.Deliveries = o.fanout(ctx, cfg, lim, cfg.Targets, msg)
	for _, d := range rep.Deliveries {
		if d.Err != nil {
			rep.Failed++
		} else {
			rep.Sent++
		}
	}
	o.audit(rep)

	fields := []logx.Field{
		logx.String("title", entry.Title),
		logx.Int("sent", rep.Sent),
		logx.Int("failed", rep.Failed),
		logx.Duration("dur", time.Since(rep.StartedAt)),
	}
	if rep.Failed > 0 {
		log.Warn("broadcast tick finished with failures", fields...)
		return finish("partial")
	}
	log.Info("broadcast tick finished", fields...)
	return finish("sent")
}

// selectPool merges the recent entries of every category, without duplicates.
func (o *Orchestrator) selectPool(ctx context.Context, cfg Config) []storage.Entry {
	if o.d.Store == nil {
		return nil
	}
	cats := cfg.Categories
	if len(cats) == 0 {
		cats = []string{""}
	}
	var pool []storage.Entry
	seen := map[string]bool{}
	for _, c := range cats {
		entries, err := o.d.Store.Recent(ctx, c, cfg.PerCategory)
		if err != nil {
			if !errors.Is(err, storage.ErrDisabled) {
				o.d.Log.Warn("content store read failed", logx.String("category", c), logx.Err(err))
			}
			continue
		}
		for _, e := range entries {
			if !seen[e.ID] {
				seen[e.ID] = true
				pool = append(pool, e)
			}
		}
	}
	return pool
}

// record enriches entry; every lookup is optional and the title alone
// still renders.
func (o *Orchestrator) record(ctx context.Context, entry storage.Entry) caption.MediaRecord {
	if entry.CatalogBID > 0 && o.d.Enrich != nil {
		rec, err := o.d.Enrich.ByID(ctx, entry.CatalogBID)
		if err == nil {
			return rec
		}
		o.d.Log.Debug("enrich by id failed", logx.Int("id", entry.CatalogBID), logx.Err(err))
	}
	if o.d.Lookup != nil {
		if rec, ok := o.d.Lookup.Lookup(ctx, entry.Title); ok {
			return rec
		}
	}
	return caption.MediaRecord{
		Title: entry.Title, Year: caption.Unknown, Rating: caption.Unknown,
		Director: caption.Unknown, Plot: caption.Unknown, Poster: caption.Unknown,
		Trailer: caption.Unknown, Source: caption.Unknown,
	}
}

func (o *Orchestrator) compose(ctx context.Context, cfg Config, entry storage.Entry) message {
	rec := o.record(ctx, entry)
	if entry.Link != "" {
		rec.Link = entry.Link
	}
	m := message{entry: entry, caption: caption.SafeRender(rec)}

	in := tgui.NewInline()
	if b := caption.Buttons(rec, cfg.Links); b != nil {
		for _, row := range b.Rows {
			in.Row(row...)
		}
	}
	in.Row(tgui.Btn("⏭ Next", tgui.Data(NextScope, NextAction, "")))
	m.markup = in.Markup()

	if caption.Has(rec.Poster) {
		p := &kit.Photo{URL: rec.Poster, Caption: m.caption}
		if cfg.CropPosters && o.d.Poster != nil {
			if b, err := o.d.Poster(ctx, rec.Poster); err == nil {
				p.Data = b
			} else {
				o.d.Log.Debug("poster crop failed; sending url", logx.Err(err))
			}
		}
		m.photo = p
	}
	return m
}

func (o *Orchestrator) audit(rep Report) {
	if o.d.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, d := range rep.Deliveries {
		e := storage.AuditEntry{
			RunID:    rep.RunID,
			Kind:     "broadcast",
			ChatID:   d.Target.ChatID,
			ThreadID: d.Target.ThreadID,
			EntryID:  rep.EntryID,
			Title:    rep.Title,
			OK:       d.Err == nil,
			TookMS:   time.Since(rep.StartedAt).Milliseconds(),
		}
		if d.Err != nil {
			e.Error = d.Err.Error()
		}
		if err := o.d.Store.AppendAudit(ctx, e); err != nil && !errors.Is(err, storage.ErrDisabled) {
			o.d.Log.Debug("audit append failed", logx.Err(err))
			return
		}
	}
}

// Next replaces a broadcast message in one chat with a freshly sampled
// title. The old message is deleted right away.
func (o *Orchestrator) Next(ctx context.Context, old kit.MessageRef) (kit.MessageRef, error) {
	cfg, lim := o.snapshot()
	if o.d.Ephemeral != nil {
		o.d.Ephemeral.Supersede(ctx, old)
	}
	entry, ok := o.d.Sampler.PickUnseen(o.selectPool(ctx, cfg))
	if !ok {
		return kit.MessageRef{}, storage.ErrNotFound
	}
	msg := o.compose(ctx, cfg, entry)
	ds := o.fanout(ctx, cfg, lim, []kit.ChatTarget{old.Target()}, msg)
	return ds[0].Ref, ds[0].Err
}
