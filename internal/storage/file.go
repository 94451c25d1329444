package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	logx "cinebot/pkg/logx"
)

// fileStore keeps entries in memory and persists them as a JSON snapshot.
//
// Files:
//   - <prefix>.entries.json (snapshot, rewritten via tmp+rename on every upsert)
//   - <prefix>.audit.jsonl  (append-only JSON Lines)
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	auditFile    *os.File
	snapshotPath string
	entries      map[string]Entry // by id
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	af, err := os.OpenFile(prefix+".audit.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	entries := map[string]Entry{}
	snap := prefix + ".entries.json"
	if err := loadSnapshot(snap, entries); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("entries snapshot unreadable; starting empty", logx.String("path", snap), logx.Err(err))
	}

	return &fileStore{
		log:          log.With(logx.String("comp", "storage.file")),
		auditFile:    af,
		snapshotPath: snap,
		entries:      entries,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return nil
	}
	err := s.auditFile.Close()
	s.auditFile = nil
	return err
}

func (s *fileStore) Recent(_ context.Context, category string, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	c := normalizeCategory(category)
	s.mu.Lock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if c == "" || e.Category == c {
			out = append(out, e)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].InsertedAt.Equal(out[j].InsertedAt) {
			return out[i].InsertedAt.After(out[j].InsertedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *fileStore) FindByTitle(_ context.Context, title string) (Entry, error) {
	key := titleKey(title)
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		best  Entry
		found bool
	)
	for _, e := range s.entries {
		if titleKey(e.Title) == key && (!found || e.InsertedAt.After(best.InsertedAt)) {
			best, found = e, true
		}
	}
	if !found {
		return Entry{}, ErrNotFound
	}
	return best, nil
}

func (s *fileStore) Upsert(_ context.Context, e Entry) (Entry, error) {
	e, err := prepare(e)
	if err != nil {
		return Entry{}, err
	}
	key := titleKey(e.Title)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, old := range s.entries {
		if titleKey(old.Title) == key && old.Category == e.Category {
			old.Title = e.Title
			if e.CatalogBID > 0 {
				old.CatalogBID = e.CatalogBID
			}
			if e.Link != "" {
				old.Link = e.Link
			}
			s.entries[id] = old
			return old, s.snapshotLocked()
		}
	}
	s.entries[e.ID] = e
	return e, s.snapshotLocked()
}

func (s *fileStore) AppendAudit(_ context.Context, e AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return errors.New("audit file closed")
	}
	return json.NewEncoder(s.auditFile).Encode(e)
}

func (s *fileStore) snapshotLocked() error {
	list := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(list); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.snapshotPath)
}

func loadSnapshot(path string, out map[string]Entry) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var list []Entry
	if err := json.NewDecoder(f).Decode(&list); err != nil {
		return err
	}
	for _, e := range list {
		if e.ID != "" && e.Title != "" {
			out[e.ID] = e
		}
	}
	return nil
}
