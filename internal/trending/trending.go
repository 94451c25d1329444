// Package trending collects popular titles from several best-effort
// sources. The list feeds fuzzy correction and the /trending command.
package trending

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	logx "cinebot/pkg/logx"
)

// Source yields titles in popularity order. An empty list is valid.
type Source interface {
	Name() string
	Titles(ctx context.Context) ([]string, error)
}

// Aggregator merges its sources in order, drops case-insensitive duplicates
// and caches the result for ttl. Failing sources are skipped. Concurrent
// misses share one fetch, which runs without holding the cache lock.
type Aggregator struct {
	sources []Source
	ttl     time.Duration
	timeout time.Duration
	log     logx.Logger
	now     func() time.Time
	sf      singleflight.Group

	mu      sync.Mutex
	cached  []string
	expires time.Time
}

func NewAggregator(log logx.Logger, ttl, timeout time.Duration, sources ...Source) *Aggregator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Aggregator{
		sources: sources,
		ttl:     ttl,
		timeout: timeout,
		log:     log.With(logx.String("comp", "trending")),
		now:     time.Now,
	}
}

func (a *Aggregator) Titles(ctx context.Context) ([]string, error) {
	if cached, ok := a.fresh(); ok {
		return cached, nil
	}
	// The shared fetch outlives a canceled caller; per-source timeouts bound it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := a.sf.DoChan("titles", func() (any, error) {
		out := a.fetch(fetchCtx)
		a.mu.Lock()
		a.cached = out
		a.expires = a.now().Add(a.ttl)
		a.mu.Unlock()
		return out, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return append([]string(nil), res.Val.([]string)...), nil
	}
}

func (a *Aggregator) fresh() ([]string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cached != nil && a.now().Before(a.expires) {
		return append([]string(nil), a.cached...), true
	}
	return nil, false
}

func (a *Aggregator) fetch(ctx context.Context) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, s := range a.sources {
		sctx, cancel := context.WithTimeout(ctx, a.timeout)
		titles, err := s.Titles(sctx)
		cancel()
		if err != nil {
			a.log.Warn("trending source failed", logx.String("source", s.Name()), logx.Err(err))
			continue
		}
		for _, t := range titles {
			t = strings.Join(strings.Fields(t), " ")
			k := strings.ToLower(t)
			if t == "" || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, t)
		}
	}
	return out
}

// Invalidate drops the cached list.
func (a *Aggregator) Invalidate() {
	a.mu.Lock()
	a.cached = nil
	a.mu.Unlock()
}

// Static is a fixed fallback list.
type Static []string

func (Static) Name() string { return "static" }

func (s Static) Titles(context.Context) ([]string, error) { return append([]string(nil), s...), nil }
