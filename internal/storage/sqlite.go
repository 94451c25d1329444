package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	logx "cinebot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// tsLayout is fixed-width so TEXT ordering matches time ordering.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// auditRetention bounds the audit table; pruning runs every pruneEvery appends.
const auditRetention = 30 * 24 * time.Hour

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger

	opCount    atomic.Uint64
	pruneEvery uint64
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log.With(logx.String("comp", "storage.sqlite")), pruneEvery: 500}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const entryCols = `id, title, category, catalog_b_id, COALESCE(link, ''), inserted_at`

func scanEntry(sc interface{ Scan(...any) error }) (Entry, error) {
	var (
		e  Entry
		at string
	)
	if err := sc.Scan(&e.ID, &e.Title, &e.Category, &e.CatalogBID, &e.Link, &at); err != nil {
		return Entry{}, err
	}
	e.InsertedAt, _ = time.Parse(tsLayout, at)
	return e, nil
}

func (s *sqliteStore) Recent(ctx context.Context, category string, n int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if n <= 0 {
		return nil, nil
	}
	q := `SELECT ` + entryCols + ` FROM entries`
	args := []any{}
	if c := normalizeCategory(category); c != "" {
		q += ` WHERE category = ?`
		args = append(args, c)
	}
	q += ` ORDER BY inserted_at DESC, id LIMIT ?`
	args = append(args, n)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqliteStore) FindByTitle(ctx context.Context, title string) (Entry, error) {
	if s == nil || s.db == nil {
		return Entry{}, ErrDisabled
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryCols+` FROM entries WHERE title_key = ? ORDER BY inserted_at DESC LIMIT 1`,
		titleKey(title))
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

func (s *sqliteStore) Upsert(ctx context.Context, e Entry) (Entry, error) {
	if s == nil || s.db == nil {
		return Entry{}, ErrDisabled
	}
	e, err := prepare(e)
	if err != nil {
		return Entry{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO entries(id, title, title_key, category, catalog_b_id, link, inserted_at)
		 VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(title_key, category) DO UPDATE SET
		   title = excluded.title,
		   catalog_b_id = CASE WHEN excluded.catalog_b_id > 0 THEN excluded.catalog_b_id ELSE entries.catalog_b_id END,
		   link = COALESCE(excluded.link, entries.link)
		 RETURNING `+entryCols,
		e.ID, e.Title, titleKey(e.Title), e.Category, e.CatalogBID, nullStr(e.Link), e.InsertedAt.UTC().Format(tsLayout),
	)
	return scanEntry(row)
}

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	ok := 0
	if e.OK {
		ok = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, run_id, kind, chat_id, thread_id, entry_id, title, ok, err, took_ms)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		e.At.UTC().Format(tsLayout), e.RunID, e.Kind, e.ChatID, e.ThreadID,
		nullStr(e.EntryID), nullStr(e.Title), ok, nullStr(e.Error), e.TookMS,
	)
	if err == nil && s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		if perr := s.pruneAudit(pctx); perr != nil {
			s.log.Debug("audit prune failed", logx.Err(perr))
		}
		cancel()
	}
	return err
}

func (s *sqliteStore) pruneAudit(ctx context.Context) error {
	cutoff := time.Now().Add(-auditRetention).UTC().Format(tsLayout)
	_, err := s.db.ExecContext(ctx, `DELETE FROM audit WHERE at < ?`, cutoff)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
