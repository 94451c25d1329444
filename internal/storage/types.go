package storage

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrNotFound = errors.New("storage: not found")
)

type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Entry is one broadcastable title.
type Entry struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	// CatalogBID cross-references the TMDb id; 0 means resolve by title.
	CatalogBID int       `json:"catalog_b_id,omitempty"`
	Link       string    `json:"link,omitempty"`
	InsertedAt time.Time `json:"inserted_at"`
}

// AuditEntry records one broadcast delivery attempt.
type AuditEntry struct {
	At       time.Time `json:"at"`
	RunID    string    `json:"run_id"`
	Kind     string    `json:"kind"`
	ChatID   int64     `json:"chat_id"`
	ThreadID int       `json:"thread_id,omitempty"`
	EntryID  string    `json:"entry_id"`
	Title    string    `json:"title"`
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
	TookMS   int64     `json:"took_ms"`
}

type Store interface {
	// Recent returns up to n entries of category, newest first.
	// An empty category matches all.
	Recent(ctx context.Context, category string, n int) ([]Entry, error)
	// FindByTitle matches case-insensitively.
	FindByTitle(ctx context.Context, title string) (Entry, error)
	// Upsert inserts e or updates the entry with the same title and category.
	// Missing ID and InsertedAt are filled in.
	Upsert(ctx context.Context, e Entry) (Entry, error)
	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

func titleKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func normalizeCategory(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
