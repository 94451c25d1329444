package trending

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinebot/internal/catalog"
	logx "cinebot/pkg/logx"
)

type failing struct{}

func (failing) Name() string { return "failing" }
func (failing) Titles(context.Context) ([]string, error) {
	return nil, errors.New("down")
}

type counting struct {
	n      int
	titles []string
}

func (c *counting) Name() string { return "counting" }
func (c *counting) Titles(context.Context) ([]string, error) {
	c.n++
	return c.titles, nil
}

func TestAggregatorMergesAndCaches(t *testing.T) {
	c := &counting{titles: []string{"Coolie", "  war   2 "}}
	agg := NewAggregator(logx.Nop(), time.Minute, time.Second, failing{}, c, Static{"WAR 2", "Kingdom"})
	now := time.Unix(0, 0)
	agg.now = func() time.Time { return now }

	got, err := agg.Titles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Coolie", "war 2", "Kingdom"}, got)

	_, _ = agg.Titles(context.Background())
	assert.Equal(t, 1, c.n)

	now = now.Add(2 * time.Minute)
	_, _ = agg.Titles(context.Background())
	assert.Equal(t, 2, c.n)

	agg.Invalidate()
	_, _ = agg.Titles(context.Background())
	assert.Equal(t, 3, c.n)
}

type gated struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (g *gated) Name() string { return "gated" }
func (g *gated) Titles(context.Context) ([]string, error) {
	if g.calls.Add(1) == 1 {
		close(g.started)
	}
	<-g.release
	return []string{"Coolie"}, nil
}

func TestAggregatorSharesOneFetch(t *testing.T) {
	g := &gated{started: make(chan struct{}), release: make(chan struct{})}
	agg := NewAggregator(logx.Nop(), time.Minute, 5*time.Second, g)

	var wg sync.WaitGroup
	results := make([][]string, 3)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = agg.Titles(context.Background())
		}()
	}
	<-g.started

	// a caller with a short deadline is not held behind the slow fetch
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := agg.Titles(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(g.release)
	wg.Wait()
	assert.Equal(t, int32(1), g.calls.Load())
	for _, r := range results {
		assert.Equal(t, []string{"Coolie"}, r)
	}
}

func TestAggregatorEmptyIsValid(t *testing.T) {
	got, err := NewAggregator(logx.Nop(), time.Minute, time.Second, failing{}).Titles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIMDbSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
		_, _ = w.Write([]byte(`<html><body>
			<div class="ipc-poster-card"><span class="ipc-poster-card__title">Coolie</span></div>
			<div class="ipc-poster-card"><span class="ipc-poster-card__title"> War 2 </span></div>
			<div class="other">Not a title</div>
		</body></html>`))
	}))
	defer srv.Close()

	got, err := IMDbSource{URL: srv.URL}.Titles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Coolie", "War 2"}, got)
}

func TestIMDbSourceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	_, err := IMDbSource{URL: srv.URL}.Titles(context.Background())
	assert.Error(t, err)
}

func TestFeedSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(`<?xml version="1.0"?>
<rss version="2.0"><channel><title>Box office</title>
<item><title>Kingdom</title></item>
<item><title>Mahavatar Narsimha</title></item>
</channel></rss>`))
	}))
	defer srv.Close()

	got, err := FeedSource{URLs: []string{srv.URL, "http://127.0.0.1:1/unreachable"}}.Titles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Kingdom", "Mahavatar Narsimha"}, got)

	_, err = FeedSource{URLs: []string{"http://127.0.0.1:1/unreachable"}}.Titles(context.Background())
	assert.Error(t, err)
}

type fakeLister []catalog.Item

func (f fakeLister) Trending(context.Context, string) ([]catalog.Item, error) { return f, nil }

func TestTMDbSource(t *testing.T) {
	src := TMDbSource{C: fakeLister{
		{Source: catalog.SourceTMDb, Fields: catalog.Fields{"title": "Coolie"}},
		{Source: catalog.SourceTMDb, Fields: catalog.Fields{"name": "a tv show"}},
	}}
	got, err := src.Titles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Coolie"}, got)
}
