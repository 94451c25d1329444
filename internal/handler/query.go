package handler

import (
	"context"
	"strings"

	"cinebot/internal/caption"
	"cinebot/internal/resolve"
	kit "cinebot/internal/transport"
	"cinebot/internal/transport/telegram/router"
	logx "cinebot/pkg/logx"
	"cinebot/pkg/tgui"
)

const notFoundText = "❗ Movie not found. Please check the spelling."

// Text handles plain messages. In groups only /movie triggers a lookup.
func (h *Handler) Text(ctx context.Context, req *router.Request) error {
	if req.IsGroup {
		return nil
	}
	return h.lookup(ctx, req, req.Text)
}

func (h *Handler) movie(ctx context.Context, req *router.Request) error {
	q := strings.TrimSpace(req.Text)
	if q == "" {
		return h.reply(ctx, req.Chat, "Usage: "+tgui.Code("/movie <title>").String(), nil)
	}
	return h.lookup(ctx, req, q)
}

func (h *Handler) lookup(ctx context.Context, req *router.Request, q string) error {
	res := h.d.Resolver.Resolve(ctx, resolve.MediaQuery(q))
	req.Logger.Debug("query resolved",
		logx.String("query", res.Query),
		logx.String("kind", res.Kind.String()),
		logx.String("corrected", res.CorrectedTitle),
	)
	return h.sendResult(ctx, req.Chat, res)
}

// sendResult renders one resolution: a record as photo or text, AI text
// as plain text, and a miss as the not-found notice with a search link.
func (h *Handler) sendResult(ctx context.Context, to kit.ChatTarget, res resolve.Result) error {
	switch res.Kind {
	case resolve.KindRecord:
		text := caption.SafeRender(res.Record)
		markup := h.recordButtons(res.Record)
		if caption.Has(res.Record.Poster) {
			return h.replyPhoto(ctx, to, res.Record.Poster, text, markup, true)
		}
		return h.reply(ctx, to, text, markup)
	case resolve.KindAIText:
		return h.reply(ctx, to, tgui.Esc(res.Text).String(), nil)
	default:
		url := res.SearchURL
		if url == "" {
			url = resolve.SearchURL(res.Query)
		}
		return h.reply(ctx, to, notFoundText, tgui.NewInline().Row(tgui.URLBtn("🔍 Try Google", url)).Markup())
	}
}

func (h *Handler) recordButtons(rec caption.MediaRecord) *kit.Markup {
	cfg := h.config()
	in := tgui.NewInline()
	if b := caption.Buttons(rec, cfg.Links); b != nil {
		for _, row := range b.Rows {
			in.Row(row...)
		}
	}
	if cfg.AIEnabled && caption.Has(rec.Title) {
		in.Row(tgui.Btn("🎲 Fun fact", tgui.Data(Scope, ActionFact, rec.Title)))
	}
	return in.Markup()
}
