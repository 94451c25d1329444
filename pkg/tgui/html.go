package tgui

import "html"

// H is Telegram HTML that is already escaped for ParseMode="HTML".
type H string

func (h H) String() string { return string(h) }

// Esc escapes text for Telegram HTML parse mode.
func Esc(s string) H { return H(html.EscapeString(s)) }

func wrap(tag string, inner H) H { return H("<" + tag + ">" + inner.String() + "</" + tag + ">") }

func B(s string) H    { return wrap("b", Esc(s)) }
func I(s string) H    { return wrap("i", Esc(s)) }
func U(s string) H    { return wrap("u", Esc(s)) }
func Code(s string) H { return wrap("code", Esc(s)) }
