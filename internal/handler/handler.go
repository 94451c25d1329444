// Package handler answers interactive chat traffic: title lookups, the
// informational commands and the inline-button callbacks. Every reply it
// sends is registered for automatic deletion.
package handler

import (
	"context"
	"sync"
	"time"

	"cinebot/internal/ai"
	"cinebot/internal/broadcast"
	"cinebot/internal/caption"
	"cinebot/internal/catalog"
	"cinebot/internal/resolve"
	rtsup "cinebot/internal/runtime/supervisor"
	"cinebot/internal/task/scheduler"
	kit "cinebot/internal/transport"
	"cinebot/internal/transport/telegram/router"
	logx "cinebot/pkg/logx"
)

// Callback routes, as "scope:action".
const (
	Scope          = "movie"
	ActionTrending = "trending"
	ActionFact     = "fact"
)

// listSize is how many titles the list commands show.
const listSize = 5

type Config struct {
	DeleteAfter   time.Duration
	CropPosters   bool
	WelcomeNew    bool
	AIEnabled     bool
	AdminUsername string
	WelcomeImage  string
	Links         caption.Links
}

type Resolver interface {
	Resolve(ctx context.Context, q resolve.MediaQuery) resolve.Result
}

// Lists is the catalog B surface behind the list commands.
type Lists interface {
	Trending(ctx context.Context, window string) ([]catalog.Item, error)
	Upcoming(ctx context.Context) ([]catalog.Item, error)
	Genres(ctx context.Context) (map[string]int, error)
	Discover(ctx context.Context, genreID int) ([]catalog.Item, error)
}

type TitleSource interface {
	Titles(ctx context.Context) ([]string, error)
}

type Ephemeral interface {
	Register(ref kit.MessageRef, delay time.Duration)
}

// Nexter replaces a broadcast message with a fresh one.
type Nexter interface {
	Next(ctx context.Context, old kit.MessageRef) (kit.MessageRef, error)
}

// Status is the owner-facing runtime snapshot shown by /status.
type Status struct {
	Uptime        time.Duration
	DedupWindow   int
	DedupCap      int
	Pending       int
	Supervisors   map[string]rtsup.Counters
	Schedules     []scheduler.ScheduleInfo
	LastBroadcast *broadcast.Report
}

type Deps struct {
	Resolver  Resolver
	Lists     Lists
	Trending  TitleSource
	AI        ai.Generator
	Messenger kit.Messenger
	Ephemeral Ephemeral
	Broadcast Nexter
	Help      func(owner bool) string
	Status    func() Status
	// Poster returns cropped JPEG bytes for a poster URL; nil disables cropping.
	Poster func(ctx context.Context, url string) ([]byte, error)
	Log    logx.Logger
	Now    func() time.Time
}

type Handler struct {
	d Deps

	mu  sync.RWMutex
	cfg Config
}

func New(cfg Config, d Deps) *Handler {
	if d.AI == nil {
		d.AI = ai.Disabled{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	d.Log = d.Log.With(logx.String("comp", "handler"))
	return &Handler{d: d, cfg: cfg}
}

// Apply swaps the hot-reloadable settings.
func (h *Handler) Apply(cfg Config) {
	h.mu.Lock()
	h.cfg = cfg
	h.mu.Unlock()
}

func (h *Handler) config() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// Commands lists the slash commands in menu order.
func (h *Handler) Commands() []router.Command {
	return []router.Command{
		{Name: "start", Description: "Welcome and quick links", Handle: h.start},
		{Name: "help", Description: "Show commands", Handle: h.help},
		{Name: "movie", Aliases: []string{"m"}, Description: "Look up a movie", Usage: "/movie <title>", Handle: h.movie},
		{Name: "trending", Description: "Trending movies today", Handle: h.trending},
		{Name: "upcoming", Description: "Upcoming releases", Handle: h.upcoming},
		{Name: "recommend", Description: "Popular movies in a genre", Usage: "/recommend <genre>", Handle: h.recommend},
		{Name: "ai", Description: "Ask the movie assistant", Usage: "/ai <question>", Timeout: 30 * time.Second, Handle: h.ask},
		{Name: "status", Description: "Runtime status", Access: router.AccessOwnerOnly, Handle: h.status},
	}
}

func (h *Handler) Callbacks() []router.CallbackRoute {
	return []router.CallbackRoute{
		{Scope: Scope, Action: ActionTrending, Handle: h.trendingCallback},
		{Scope: broadcast.NextScope, Action: broadcast.NextAction, Handle: h.nextCallback},
		{Scope: Scope, Action: ActionFact, Timeout: 30 * time.Second, Handle: h.factCallback},
	}
}

// reply sends HTML text and schedules deletion of every message it
// produced. A failed send registers only the chunks that went out.
func (h *Handler) reply(ctx context.Context, to kit.ChatTarget, text string, markup *kit.Markup) error {
	_, err := h.d.Messenger.SendText(ctx, to, text, &kit.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: true,
		Markup:         markup,
		OnSent:         h.expire,
	})
	return err
}

// replyPhoto sends a photo, cropped first when crop is set and cropping is
// enabled. A failed crop falls back to the raw URL.
func (h *Handler) replyPhoto(ctx context.Context, to kit.ChatTarget, url, text string, markup *kit.Markup, crop bool) error {
	p := kit.Photo{URL: url, Caption: text}
	if crop && h.config().CropPosters && h.d.Poster != nil {
		if b, err := h.d.Poster(ctx, url); err == nil {
			p.Data = b
		} else {
			h.d.Log.Debug("poster crop failed; sending url", logx.Err(err))
		}
	}
	_, err := h.d.Messenger.SendPhoto(ctx, to, p, &kit.SendOptions{ParseMode: "HTML", Markup: markup, OnSent: h.expire})
	return err
}

func (h *Handler) expire(ref kit.MessageRef) {
	if d := h.config().DeleteAfter; d > 0 && h.d.Ephemeral != nil {
		h.d.Ephemeral.Register(ref, d)
	}
}
