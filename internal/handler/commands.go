package handler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cinebot/internal/ai"
	"cinebot/internal/caption"
	"cinebot/internal/catalog"
	"cinebot/internal/storage"
	kit "cinebot/internal/transport"
	"cinebot/internal/transport/telegram/router"
	logx "cinebot/pkg/logx"
	"cinebot/pkg/tgui"
)

const (
	aiOffText         = "🤖 The AI assistant is turned off."
	aiUnavailableText = "⚠️ The AI assistant is unavailable right now. Try again later."
	listFailedText    = "⚠️ Couldn't load the list right now. Try again later."
)

func greeting(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "Good morning"
	case hour >= 12 && hour < 18:
		return "Good afternoon"
	case hour >= 18 && hour < 22:
		return "Good evening"
	}
	return "Good night"
}

func (h *Handler) startButtons(cfg Config) *kit.Markup {
	in := tgui.NewInline().
		Row(tgui.Btn("🎬 Trending Movies", tgui.Data(Scope, ActionTrending, ""))).
		Row(tgui.URLBtn("📥 Server 1", cfg.Links.Server1)).
		Row(tgui.URLBtn("📥 Server 2", cfg.Links.Server2))
	if admin := strings.TrimPrefix(cfg.AdminUsername, "@"); admin != "" {
		in.Row(tgui.URLBtn("👤 Admin Support", "https://t.me/"+admin))
	}
	return in.Markup()
}

func (h *Handler) start(ctx context.Context, req *router.Request) error {
	cfg := h.config()
	name := "there"
	if m := req.Update.Message; m != nil && strings.TrimSpace(m.FromName) != "" {
		name = strings.TrimSpace(m.FromName)
	}
	var b strings.Builder
	b.WriteString(greeting(h.d.Now().Hour()) + ", " + tgui.B(name).String() + "! 🎬\n\n")
	b.WriteString("I'm your AI Movie Assistant. Search any film to get details, trailer,\n")
	b.WriteString("streaming availability and download links.")
	if admin := strings.TrimPrefix(cfg.AdminUsername, "@"); admin != "" {
		b.WriteString("\n\n<i>Made with ❤️ by</i> @" + tgui.Esc(admin).String())
	}
	if cfg.WelcomeImage != "" {
		return h.replyPhoto(ctx, req.Chat, cfg.WelcomeImage, b.String(), h.startButtons(cfg), false)
	}
	return h.reply(ctx, req.Chat, b.String(), h.startButtons(cfg))
}

// Join greets a member who just joined a group.
func (h *Handler) Join(ctx context.Context, req *router.Request) error {
	cfg := h.config()
	if !cfg.WelcomeNew {
		return nil
	}
	name := strings.TrimSpace(req.Text)
	if name == "" {
		name = "there"
	}
	text := "👋 Welcome, " + tgui.B(name).String() + "!\nSend " + tgui.Code("/movie <title>").String() + " and I'll find it for you."
	return h.reply(ctx, req.Chat, text, h.startButtons(cfg))
}

func (h *Handler) help(ctx context.Context, req *router.Request) error {
	if h.d.Help == nil {
		return nil
	}
	return h.reply(ctx, req.Chat, h.d.Help(req.IsOwner), nil)
}

func (h *Handler) ask(ctx context.Context, req *router.Request) error {
	q := strings.TrimSpace(req.Text)
	if q == "" {
		return h.reply(ctx, req.Chat, "Please provide a question. Usage: "+tgui.Code("/ai <your question>").String()+" 😊", nil)
	}
	return h.reply(ctx, req.Chat, h.complete(ctx, ai.QuestionPrompt(q), ""), nil)
}

// complete returns escaped AI text under an optional pre-escaped header,
// or a notice when the generator is off or failed.
func (h *Handler) complete(ctx context.Context, prompt, header string) string {
	ans, err := h.d.AI.Complete(ctx, prompt)
	switch {
	case errors.Is(err, ai.ErrDisabled):
		return aiOffText
	case err != nil:
		h.d.Log.Warn("ai completion failed", logx.Err(err))
		return aiUnavailableText
	}
	if header != "" {
		return header + "\n\n" + tgui.Esc(ans).String()
	}
	return tgui.Esc(ans).String()
}

// listText renders up to listSize items as "<b>n.</b> Title (Year)".
func listText(header string, items []catalog.Item) string {
	lines := []string{header}
	for _, it := range items {
		if len(lines) > listSize {
			break
		}
		rec := caption.Normalize(it)
		if !caption.Has(rec.Title) {
			continue
		}
		line := fmt.Sprintf("<b>%d.</b> %s", len(lines), tgui.Esc(rec.Title))
		if caption.Has(rec.Year) {
			line += " (" + tgui.Esc(rec.Year).String() + ")"
		}
		lines = append(lines, line)
	}
	if len(lines) == 1 {
		lines = append(lines, "Nothing to show right now.")
	}
	return strings.Join(lines, "\n")
}

// trendingText prefers catalog B's ranked list and falls back to the
// aggregated title list, which carries no years.
func (h *Handler) trendingText(ctx context.Context) string {
	const header = "<b>🔥 Trending Movies:</b>"
	if h.d.Lists != nil {
		items, err := h.d.Lists.Trending(ctx, "day")
		if err == nil && len(items) > 0 {
			return listText(header, items)
		}
		if err != nil {
			h.d.Log.Debug("catalog trending failed; using aggregated titles", logx.Err(err))
		}
	}
	lines := []string{header}
	if h.d.Trending != nil {
		titles, err := h.d.Trending.Titles(ctx)
		if err != nil {
			h.d.Log.Debug("trending titles failed", logx.Err(err))
		}
		for i, t := range titles {
			if i == listSize {
				break
			}
			lines = append(lines, fmt.Sprintf("<b>%d.</b> %s", i+1, tgui.Esc(t)))
		}
	}
	if len(lines) == 1 {
		lines = append(lines, "Nothing to show right now.")
	}
	return strings.Join(lines, "\n")
}

func (h *Handler) trending(ctx context.Context, req *router.Request) error {
	return h.reply(ctx, req.Chat, h.trendingText(ctx), nil)
}

func (h *Handler) trendingCallback(ctx context.Context, req *router.Request) error {
	return h.reply(ctx, req.Chat, h.trendingText(ctx), nil)
}

func (h *Handler) upcoming(ctx context.Context, req *router.Request) error {
	if h.d.Lists == nil {
		return h.reply(ctx, req.Chat, listFailedText, nil)
	}
	items, err := h.d.Lists.Upcoming(ctx)
	if err != nil {
		h.d.Log.Warn("upcoming failed", logx.Err(err))
		return h.reply(ctx, req.Chat, listFailedText, nil)
	}
	return h.reply(ctx, req.Chat, listText("<b>📅 Upcoming Movies:</b>", items), nil)
}

func (h *Handler) recommend(ctx context.Context, req *router.Request) error {
	genre := strings.ToLower(strings.TrimSpace(req.Text))
	if genre == "" {
		return h.reply(ctx, req.Chat, "Usage: "+tgui.Code("/recommend <genre>").String()+", e.g. "+tgui.Code("/recommend action").String(), nil)
	}
	if h.d.Lists == nil {
		return h.reply(ctx, req.Chat, listFailedText, nil)
	}
	genres, err := h.d.Lists.Genres(ctx)
	if err != nil {
		h.d.Log.Warn("genre list failed", logx.Err(err))
		return h.reply(ctx, req.Chat, listFailedText, nil)
	}
	id, ok := genres[genre]
	if !ok {
		names := make([]string, 0, len(genres))
		for n := range genres {
			names = append(names, n)
		}
		sort.Strings(names)
		return h.reply(ctx, req.Chat, "Unknown genre. Try one of: "+tgui.Esc(strings.Join(names, ", ")).String(), nil)
	}
	items, err := h.d.Lists.Discover(ctx, id)
	if err != nil {
		h.d.Log.Warn("discover failed", logx.String("genre", genre), logx.Err(err))
		return h.reply(ctx, req.Chat, listFailedText, nil)
	}
	return h.reply(ctx, req.Chat, listText("<b>🎯 Popular in "+tgui.Esc(genre).String() + ":</b>", items), nil)
}

func (h *Handler) status(ctx context.Context, req *router.Request) error {
	if h.d.Status == nil {
		return nil
	}
	return h.reply(ctx, req.Chat, formatStatus(h.d.Status()), nil)
}

func formatStatus(st Status) string {
	lines := []string{
		"<b>📊 Status</b>",
		"Uptime: " + st.Uptime.Round(time.Second).String(),
		fmt.Sprintf("Dedup window: %d/%d", st.DedupWindow, st.DedupCap),
		fmt.Sprintf("Pending deletions: %d", st.Pending),
	}
	if r := st.LastBroadcast; r != nil {
		line := fmt.Sprintf("Last broadcast: %s, sent %d, failed %d", r.StartedAt.Format("15:04:05"), r.Sent, r.Failed)
		if r.Skipped {
			line = fmt.Sprintf("Last broadcast: %s, skipped (%s)", r.StartedAt.Format("15:04:05"), tgui.Esc(r.Reason))
		} else if r.Title != "" {
			line += ", " + tgui.I(r.Title).String()
		}
		lines = append(lines, line)
	}
	if len(st.Schedules) > 0 {
		lines = append(lines, "", "<b>Schedules</b>")
		for _, s := range st.Schedules {
			line := fmt.Sprintf("• %s %s runs %d, skipped %d", tgui.Esc(s.Name), tgui.Code(s.Spec), s.Runs, s.Skipped)
			if !s.Next.IsZero() {
				line += ", next " + s.Next.Format("15:04:05")
			}
			if s.LastErr != "" {
				line += ", last error: " + tgui.Esc(tgui.TruncRunes(s.LastErr, 120)).String()
			}
			lines = append(lines, line)
		}
	}
	if len(st.Supervisors) > 0 {
		names := make([]string, 0, len(st.Supervisors))
		for n := range st.Supervisors {
			names = append(names, n)
		}
		sort.Strings(names)
		lines = append(lines, "", "<b>Supervisors</b>")
		for _, n := range names {
			c := st.Supervisors[n]
			lines = append(lines, fmt.Sprintf("• %s active %d, started %d", tgui.Esc(n), c.Active, c.Started))
		}
	}
	return strings.Join(lines, "\n")
}

func (h *Handler) nextCallback(ctx context.Context, req *router.Request) error {
	if h.d.Broadcast == nil {
		return nil
	}
	old := kit.MessageRef{ChatID: req.Chat.ChatID, ThreadID: req.Chat.ThreadID, MessageID: req.MessageID}
	if _, err := h.d.Broadcast.Next(ctx, old); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			req.Logger.Debug("next: nothing to sample")
			return nil
		}
		return err
	}
	return nil
}

func (h *Handler) factCallback(ctx context.Context, req *router.Request) error {
	title := strings.TrimSpace(req.Payload)
	if title == "" {
		return nil
	}
	return h.reply(ctx, req.Chat, h.complete(ctx, ai.FunFactPrompt(title), "🎲 "+tgui.B(title).String()), nil)
}
