package transport

import (
	"context"
	"errors"
)

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
	UpdateJoin     UpdateKind = "join"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
	Join     *Join
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // telegram forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	FromName     string
	Text         string
	IsGroup      bool
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	ThreadID  int
	MessageID int
	Data      string
}

// Join is emitted when a user joins a group the bot is in.
type Join struct {
	ChatID   int64
	ThreadID int
	UserID   int64
	Name     string
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

// Target returns the chat the message lives in.
func (r MessageRef) Target() ChatTarget { return ChatTarget{ChatID: r.ChatID, ThreadID: r.ThreadID} }

// IsZero reports whether r points at no message.
func (r MessageRef) IsZero() bool { return r.ChatID == 0 && r.MessageID == 0 }

// Button is a labeled action: either a URL link or opaque callback data.
type Button struct {
	Text string
	URL  string
	Data string
}

// Markup is an adapter-neutral inline keyboard.
type Markup struct {
	Rows [][]Button
}

// Empty reports whether m has no buttons at all.
func (m *Markup) Empty() bool {
	if m == nil {
		return true
	}
	for _, r := range m.Rows {
		if len(r) > 0 {
			return false
		}
	}
	return true
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	Markup         *Markup
	// OnSent is called once for every message Telegram accepted, including
	// each chunk of a split text and chunks sent before a later failure.
	OnSent func(MessageRef)
}

// Sent reports a delivered message to OnSent, if set. Safe on nil.
func (o *SendOptions) Sent(ref MessageRef) {
	if o != nil && o.OnSent != nil {
		o.OnSent(ref)
	}
}

// Photo is sent either by URL or from raw bytes (Data wins when set).
type Photo struct {
	URL     string
	Data    []byte
	Caption string
}

// ErrMessageGone is returned by Delete when the message no longer exists
// or can no longer be deleted (too old, missing rights).
var ErrMessageGone = errors.New("transport: message gone")

// Messenger is the outbound surface used by domain code.
type Messenger interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendPhoto(ctx context.Context, to ChatTarget, p Photo, opt *SendOptions) (MessageRef, error)
	Delete(ctx context.Context, ref MessageRef) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

type Adapter interface {
	Messenger

	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is an optional interface that adapters can implement
// to update platform-specific bot command menus (e.g. Telegram /menu list).
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
