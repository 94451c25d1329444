// Package broadcast publishes one sampled title per tick to every
// configured chat. Targets are independent: one failure never blocks or
// rolls back another, and each success gets its own scheduled deletion.
package broadcast

import (
	"context"
	"time"

	"cinebot/internal/caption"
	"cinebot/internal/dedup"
	"cinebot/internal/eventbus"
	"cinebot/internal/storage"
	kit "cinebot/internal/transport"
	logx "cinebot/pkg/logx"
)

type Config struct {
	Targets     []kit.ChatTarget
	Categories  []string
	PerCategory int
	DeleteAfter time.Duration
	Workers     int
	RatePerSec  float64
	SendTimeout time.Duration
	CropPosters bool
	Links       caption.Links
}

type Enricher interface {
	ByID(ctx context.Context, id int) (caption.MediaRecord, error)
}

// TitleLookup resolves a title through the structured catalog path only.
type TitleLookup interface {
	Lookup(ctx context.Context, title string) (caption.MediaRecord, bool)
}

type Ephemeral interface {
	Register(ref kit.MessageRef, delay time.Duration)
	Supersede(ctx context.Context, ref kit.MessageRef)
}

type Deps struct {
	Store     storage.Store
	Sampler   *dedup.Sampler
	Enrich    Enricher
	Lookup    TitleLookup
	Messenger kit.Messenger
	Ephemeral Ephemeral
	Bus       eventbus.Bus
	Log       logx.Logger
	// Poster returns cropped JPEG bytes for a poster URL; nil disables cropping.
	Poster func(ctx context.Context, url string) ([]byte, error)
}

// Delivery is the outcome for one target.
type Delivery struct {
	Target kit.ChatTarget
	Ref    kit.MessageRef
	Err    error
}

type Report struct {
	RunID   string
	Skipped bool
	Reason  string
	EntryID string
	Title   string
	Sent    int
	Failed  int

	Deliveries []Delivery
	StartedAt  time.Time
	Took       time.Duration
}

// message is one rendered broadcast, sent unchanged to every target.
type message struct {
	entry   storage.Entry
	caption string
	markup  *kit.Markup
	photo   *kit.Photo
}
