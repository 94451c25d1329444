// Package cache stores catalog response bodies keyed by request.
package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	logx "cinebot/pkg/logx"
)

// Cache is a byte cache with per-entry TTL. Errors are reported, never fatal:
// callers treat any error as a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Stats() Stats
	Close() error
}

type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	Size   int   `json:"size"`
}

type counters struct {
	hits, misses, sets atomic.Int64
}

func (c *counters) snapshot(size int) Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Sets: c.sets.Load(), Size: size}
}

// Options select the driver.
type Options struct {
	Driver   string // memory, redis, none
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Open returns the configured cache. "none" yields a cache that never hits.
func Open(ctx context.Context, opt Options, log logx.Logger) (Cache, error) {
	switch strings.ToLower(strings.TrimSpace(opt.Driver)) {
	case "", "memory":
		return NewMemory(time.Minute), nil
	case "redis":
		return NewRedis(ctx, opt, log)
	default:
		return Nop{}, nil
	}
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Nop) Stats() Stats                                             { return Stats{} }
func (Nop) Close() error                                             { return nil }

type entry struct {
	val     []byte
	expires time.Time
}

// Memory is an in-process cache with a janitor goroutine.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	stats   counters
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemory starts a janitor sweeping expired entries every interval (0 disables it).
func NewMemory(interval time.Duration) *Memory {
	m := &Memory{entries: map[string]entry{}, now: time.Now, stop: make(chan struct{})}
	if interval > 0 {
		go m.janitor(interval)
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || !m.now().Before(e.expires) {
		m.stats.misses.Add(1)
		return nil, false, nil
	}
	m.stats.hits.Add(1)
	return e.val, true, nil
}

func (m *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	cp := append([]byte(nil), val...)
	m.mu.Lock()
	m.entries[key] = entry{val: cp, expires: m.now().Add(ttl)}
	m.mu.Unlock()
	m.stats.sets.Add(1)
	return nil
}

func (m *Memory) Stats() Stats {
	m.mu.RLock()
	n := len(m.entries)
	m.mu.RUnlock()
	return m.stats.snapshot(n)
}

func (m *Memory) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}

func (m *Memory) sweep() {
	now := m.now()
	m.mu.Lock()
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
	m.mu.Unlock()
}

func (m *Memory) janitor(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-t.C:
			m.sweep()
		}
	}
}
