package adapter

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	kit "cinebot/internal/transport"
)

const (
	telegramTextLimit    = 4000
	telegramCaptionLimit = 1024
)

// toReplyMarkup converts the neutral keyboard; nil for an empty one.
func toReplyMarkup(m *kit.Markup) *tele.ReplyMarkup {
	if m.Empty() {
		return nil
	}
	rows := make([][]tele.InlineButton, 0, len(m.Rows))
	for _, r := range m.Rows {
		row := make([]tele.InlineButton, 0, len(r))
		for _, b := range r {
			if b.Text == "" {
				continue
			}
			row = append(row, tele.InlineButton{Text: b.Text, URL: b.URL, Data: b.Data})
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

func sendOptions(to kit.ChatTarget, opt *kit.SendOptions, withMarkup bool) *tele.SendOptions {
	so := &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
		ThreadID:              to.ThreadID,
	}
	if withMarkup {
		so.ReplyMarkup = toReplyMarkup(opt.Markup)
	}
	return so
}

// SendText splits long text. Markup rides on the first chunk and the first
// chunk's ref is returned. Every delivered chunk is reported to opt.OnSent,
// also when a later chunk fails.
func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	chunks := splitTelegramText(text, telegramTextLimit, opt.ParseMode)
	chat := &tele.Chat{ID: to.ChatID}

	var first kit.MessageRef
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return first, err
		}
		msg, err := a.bot.Send(chat, chunk, sendOptions(to, opt, i == 0))
		if err != nil {
			if i > 0 {
				return first, fmt.Errorf("send chunk %d/%d: %w", i+1, len(chunks), err)
			}
			return first, err
		}
		ref := kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
		if i == 0 {
			first = ref
		}
		opt.Sent(ref)
	}
	return first, nil
}

// SendPhoto uploads p.Data when set, otherwise lets Telegram fetch p.URL.
func (a *Adapter) SendPhoto(ctx context.Context, to kit.ChatTarget, p kit.Photo, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	if err := ctx.Err(); err != nil {
		return kit.MessageRef{}, err
	}
	var file tele.File
	switch {
	case len(p.Data) > 0:
		file = tele.FromReader(bytes.NewReader(p.Data))
	case strings.TrimSpace(p.URL) != "":
		file = tele.FromURL(p.URL)
	default:
		return kit.MessageRef{}, fmt.Errorf("send photo: no url or data")
	}
	photo := &tele.Photo{File: file, Caption: clipRunes(p.Caption, telegramCaptionLimit)}
	msg, err := a.bot.Send(&tele.Chat{ID: to.ChatID}, photo, sendOptions(to, opt, true))
	if err != nil {
		return kit.MessageRef{}, err
	}
	ref := kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
	opt.Sent(ref)
	return ref, nil
}

// Delete maps "already gone" style failures to kit.ErrMessageGone.
func (a *Adapter) Delete(ctx context.Context, ref kit.MessageRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ref.IsZero() {
		return kit.ErrMessageGone
	}
	err := a.bot.Delete(&tele.Message{ID: ref.MessageID, Chat: &tele.Chat{ID: ref.ChatID}})
	if err != nil && isGone(err) {
		return fmt.Errorf("%w: %v", kit.ErrMessageGone, err)
	}
	return err
}

func isGone(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "message to delete not found") ||
		strings.Contains(s, "message can't be deleted") ||
		strings.Contains(s, "message_id_invalid")
}

func (a *Adapter) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text})
}

func clipRunes(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}

// splitTelegramText splits long messages, preferring newline boundaries and,
// in HTML mode, never cutting inside a tag.
func splitTelegramText(s string, limit int, parseMode string) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := min(start+limit, len(rs))

		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}

		if strings.EqualFold(parseMode, "HTML") && end < len(rs) {
			lastOpen, lastClose := -1, -1
			for i := start; i < end; i++ {
				switch rs[i] {
				case '<':
					lastOpen = i
				case '>':
					lastClose = i
				}
			}
			if lastOpen > lastClose && lastOpen > start+1 {
				end = lastOpen
			}
		}

		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
