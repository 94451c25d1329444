package caption

import (
	"strings"
	"unicode/utf8"

	kit "cinebot/internal/transport"
	"cinebot/pkg/tgui"
)

const boxRule = "━━━━━━━━━━━━━━━━━━"

// Links are the fixed mirror buttons attached to every caption.
type Links struct {
	Server1  string
	Server2  string
	Download string
}

// Render builds the HTML caption. Values are escaped; the result never
// exceeds tgui.MaxCaptionLen runes. The plot shrinks first, then the cast
// is dropped, then only the header remains.
func Render(rec MediaRecord) string {
	out := render(rec, rec.Plot, true)
	if utf8.RuneCountInString(out) <= tgui.MaxCaptionLen {
		return out
	}

	// budget what the plot may use with everything else in place
	over := utf8.RuneCountInString(out) - tgui.MaxCaptionLen
	if keep := utf8.RuneCountInString(rec.Plot) - over - 1; keep >= 40 {
		if out = render(rec, tgui.TruncRunes(rec.Plot, keep), true); utf8.RuneCountInString(out) <= tgui.MaxCaptionLen {
			return out
		}
	}
	if out = render(rec, tgui.TruncRunes(rec.Plot, 200), false); utf8.RuneCountInString(out) <= tgui.MaxCaptionLen {
		return out
	}
	return minimal(rec.Title)
}

func render(rec MediaRecord, plot string, withCast bool) string {
	var b strings.Builder
	b.WriteString(header(strings.ToUpper(orUnknown(rec.Title))) + "\n")
	b.WriteString("┏" + boxRule + "\n")
	b.WriteString("┃ <b>Year:</b> " + esc(rec.Year) + "\n")
	b.WriteString("┃ <b>IMDb:</b> ⭐ " + esc(rec.Rating) + "\n")
	b.WriteString("┃ <b>Genre:</b> " + escList(rec.Genres) + "\n")
	b.WriteString("┃ <b>Director:</b> " + esc(rec.Director) + "\n")
	b.WriteString("┗" + boxRule + "\n\n")
	b.WriteString("<b>📝 Plot:</b>\n" + tgui.I(orUnknown(plot)).String() + "\n")
	if withCast && len(rec.Cast) > 0 {
		b.WriteString("\n<b>🎞️ Cast:</b> " + escList(rec.Cast) + "\n")
	}
	if len(rec.Platforms) > 0 {
		b.WriteString("\n<b>📺 Streaming on:</b> " + escList(rec.Platforms))
	}
	return strings.TrimRight(b.String(), "\n")
}

func minimal(title string) string {
	return header(tgui.TruncRunes(strings.ToUpper(orUnknown(title)), 200))
}

func header(title string) string {
	return "🎬 <b>" + tgui.U(title).String() + "</b>"
}

// SafeRender is Render that never panics; on failure it returns the
// generic header-only caption.
func SafeRender(rec MediaRecord) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = minimal(rec.Title)
		}
	}()
	return Render(rec)
}

// Buttons lays out Trailer, the cross-reference link and the two mirrors.
// Rows with nothing usable are dropped; the result may be nil.
func Buttons(rec MediaRecord, links Links) *kit.Markup {
	in := tgui.NewInline()
	if Has(rec.Trailer) {
		in.Row(tgui.URLBtn("▶️ Watch Trailer", rec.Trailer))
	}
	link := rec.Link
	if link == "" {
		link = links.Download
	}
	if link != "" {
		in.Row(tgui.URLBtn("📥 Download", link))
	}
	in.Row(tgui.URLBtn("📥 Server 1", links.Server1), tgui.URLBtn("📥 Server 2", links.Server2))
	return in.Markup()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return Unknown
	}
	return s
}

func esc(s string) string { return tgui.Esc(orUnknown(s)).String() }

func escList(l []string) string {
	if len(l) == 0 {
		return Unknown
	}
	return tgui.Esc(strings.Join(l, ", ")).String()
}
