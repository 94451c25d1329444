// Package tgui holds small helpers for Telegram HTML captions and inline keyboards.
//
// Keyboards are built as transport.Markup so domain code never imports telebot.
package tgui
