package tgui

import (
	kit "cinebot/internal/transport"
)

// Inline builds an adapter-neutral inline keyboard row by row.
type Inline struct {
	rows [][]kit.Button
}

func NewInline() *Inline { return &Inline{} }

// Row appends a row. Buttons with no text are dropped; an empty row is skipped.
func (i *Inline) Row(btn ...kit.Button) *Inline {
	row := make([]kit.Button, 0, len(btn))
	for _, b := range btn {
		if b.Text == "" || (b.URL == "" && b.Data == "") {
			continue
		}
		row = append(row, b)
	}
	if len(row) > 0 {
		i.rows = append(i.rows, row)
	}
	return i
}

// Markup returns the keyboard or nil when it has no buttons.
func (i *Inline) Markup() *kit.Markup {
	if len(i.rows) == 0 {
		return nil
	}
	return &kit.Markup{Rows: i.rows}
}

// Btn creates a callback button with raw callback data.
func Btn(text, data string) kit.Button { return kit.Button{Text: text, Data: data} }

// URLBtn creates a URL button.
func URLBtn(text, url string) kit.Button { return kit.Button{Text: text, URL: url} }
