package broadcast

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"cinebot/internal/eventbus"
	"cinebot/internal/observability/metrics"
	kit "cinebot/internal/transport"
	logx "cinebot/pkg/logx"
)

// fanout sends msg to every target on a bounded pool sharing one limiter.
// Each target gets exactly one attempt. Results keep the target order.
func (o *Orchestrator) fanout(ctx context.Context, cfg Config, lim *rate.Limiter, targets []kit.ChatTarget, msg message) []Delivery {
	out := make([]Delivery, len(targets))
	var g errgroup.Group
	g.SetLimit(cfg.Workers)
	for i, t := range targets {
		g.Go(func() error {
			out[i] = o.sendOne(ctx, cfg, lim, t, msg)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (o *Orchestrator) sendOne(ctx context.Context, cfg Config, lim *rate.Limiter, t kit.ChatTarget, msg message) (d Delivery) {
	d.Target = t
	defer func() {
		if r := recover(); r != nil {
			o.d.Log.Error("panic in broadcast send", logx.Int64("chat_id", t.ChatID), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			d.Err = fmt.Errorf("panic: %v", r)
		}
		metrics.BroadcastDelivery(d.Err == nil)
		if d.Err != nil && o.d.Bus != nil {
			o.d.Bus.Publish(eventbus.Event{Type: eventbus.TypeDeliveryFailed, Data: d})
		}
	}()

	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			d.Err = err
			return d
		}
	}
	sctx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
	defer cancel()

	opt := &kit.SendOptions{ParseMode: "HTML", Markup: msg.markup}
	if o.d.Ephemeral != nil && cfg.DeleteAfter > 0 {
		opt.OnSent = func(ref kit.MessageRef) { o.d.Ephemeral.Register(ref, cfg.DeleteAfter) }
	}
	if msg.photo != nil {
		d.Ref, d.Err = o.d.Messenger.SendPhoto(sctx, t, *msg.photo, opt)
	} else {
		opt.DisablePreview = true
		d.Ref, d.Err = o.d.Messenger.SendText(sctx, t, msg.caption, opt)
	}
	if d.Err != nil {
		o.d.Log.Warn("broadcast send failed", logx.Int64("chat_id", t.ChatID), logx.Int("thread_id", t.ThreadID), logx.Err(d.Err))
	}
	return d
}
