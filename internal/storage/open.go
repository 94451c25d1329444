package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	logx "cinebot/pkg/logx"
)

// Open initializes the configured store. "none" (or empty) yields Disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "none":
		return Disabled{}, nil
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

// Disabled is the "none" driver.
type Disabled struct{}

func (Disabled) Recent(context.Context, string, int) ([]Entry, error) { return nil, ErrDisabled }
func (Disabled) FindByTitle(context.Context, string) (Entry, error)   { return Entry{}, ErrDisabled }
func (Disabled) Upsert(context.Context, Entry) (Entry, error)         { return Entry{}, ErrDisabled }
func (Disabled) AppendAudit(context.Context, AuditEntry) error        { return ErrDisabled }
func (Disabled) Close() error                                         { return nil }

// prepare validates e and fills generated fields.
func prepare(e Entry) (Entry, error) {
	e.Title = strings.Join(strings.Fields(e.Title), " ")
	if e.Title == "" {
		return Entry{}, errors.New("storage: entry title is empty")
	}
	e.Category = normalizeCategory(e.Category)
	if e.Category == "" {
		e.Category = "movies"
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.InsertedAt.IsZero() {
		e.InsertedAt = time.Now().UTC()
	}
	return e, nil
}
