// Package resolve turns a free-text title into a record, an AI answer or
// a not-found result. The fallback chain is an explicit state machine:
//
//	exact_lookup -> search -> fuzzy -> ai_fallback -> not_found -> done
//
// A fuzzy match against the trending list re-enters exact_lookup once with
// the corrected title; a second miss skips fuzzy and goes to ai_fallback.
package resolve

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"cinebot/internal/ai"
	"cinebot/internal/caption"
	"cinebot/internal/catalog"
	"cinebot/internal/eventbus"
	"cinebot/internal/observability/metrics"
	logx "cinebot/pkg/logx"
)

type State string

const (
	StateExactLookup State = "exact_lookup"
	StateSearch      State = "search"
	StateFuzzy       State = "fuzzy"
	StateAIFallback  State = "ai_fallback"
	StateNotFound    State = "not_found"
	StateDone        State = "done"
)

type Kind int

const (
	KindNotFound Kind = iota
	KindRecord
	KindAIText
)

func (k Kind) String() string {
	switch k {
	case KindRecord:
		return "record"
	case KindAIText:
		return "ai_text"
	default:
		return "not_found"
	}
}

// DefaultThreshold is the minimum similarity for a trending-title correction.
const DefaultThreshold = 0.6

const searchBase = "https://www.google.com/search?q="

// MediaQuery is a user-typed title.
type MediaQuery string

// Clean trims and collapses inner whitespace.
func (q MediaQuery) Clean() string { return strings.Join(strings.Fields(string(q)), " ") }

type Result struct {
	Kind   Kind
	Query  string
	Record caption.MediaRecord
	// Text is the AI answer for KindAIText.
	Text           string
	CorrectedTitle string
	// SearchURL is the web-search escape hatch for KindNotFound.
	SearchURL string
	Trace     []State
}

type ExactLookup interface {
	LookupExact(ctx context.Context, title string) (catalog.Item, error)
}

type Searcher interface {
	Search(ctx context.Context, title string) ([]catalog.Item, error)
}

type Enricher interface {
	ByID(ctx context.Context, id int) (caption.MediaRecord, error)
}

type TrendingSource interface {
	Titles(ctx context.Context) ([]string, error)
}

type Deps struct {
	A        ExactLookup
	B        Searcher
	Enrich   Enricher
	Trending TrendingSource
	AI       ai.Generator
	Bus      eventbus.Bus
	Log      logx.Logger

	Threshold float64
}

type Engine struct {
	d Deps
}

func New(d Deps) *Engine {
	if d.Threshold <= 0 {
		d.Threshold = DefaultThreshold
	}
	if d.AI == nil {
		d.AI = ai.Disabled{}
	}
	d.Log = d.Log.With(logx.String("comp", "resolve"))
	return &Engine{d: d}
}

// run is the mutable state of one resolution.
type run struct {
	query     string
	title     string
	corrected bool
	res       Result
}

// Resolve never fails: upstream errors only move the chain forward.
func (e *Engine) Resolve(ctx context.Context, q MediaQuery) Result {
	start := time.Now()
	r := &run{query: q.Clean()}
	r.title = r.query
	r.res.Query = r.query

	state := StateExactLookup
	if r.query == "" {
		state = StateNotFound
	}
	for state != StateDone {
		r.res.Trace = append(r.res.Trace, state)
		metrics.ResolveState(string(state))
		state = e.step(ctx, r, state)
	}
	r.res.Trace = append(r.res.Trace, StateDone)

	metrics.Resolved(r.res.Kind.String())
	e.d.Log.Debug("resolved",
		logx.String("query", r.query),
		logx.String("outcome", r.res.Kind.String()),
		logx.String("corrected", r.res.CorrectedTitle),
		logx.Duration("dur", time.Since(start)),
	)
	if e.d.Bus != nil {
		e.d.Bus.Publish(eventbus.Event{Type: eventbus.TypeResolveDone, Data: r.res})
	}
	return r.res
}

// step runs one state and returns the next.
func (e *Engine) step(ctx context.Context, r *run, s State) State {
	switch s {
	case StateExactLookup:
		return e.exact(ctx, r)
	case StateSearch:
		return e.search(ctx, r)
	case StateFuzzy:
		return e.fuzzy(ctx, r)
	case StateAIFallback:
		return e.aiFallback(ctx, r)
	case StateNotFound:
		r.res.Kind = KindNotFound
		r.res.SearchURL = SearchURL(r.query)
		return StateDone
	default:
		return StateDone
	}
}

func (e *Engine) exact(ctx context.Context, r *run) State {
	if e.d.A == nil {
		return StateSearch
	}
	it, err := e.d.A.LookupExact(ctx, r.title)
	if err != nil {
		e.logMiss("catalog A", r.title, err)
		return StateSearch
	}
	return r.found(caption.Normalize(it))
}

func (e *Engine) search(ctx context.Context, r *run) State {
	if e.d.B == nil {
		return StateFuzzy
	}
	items, err := e.d.B.Search(ctx, r.title)
	if err != nil || len(items) == 0 {
		e.logMiss("catalog B", r.title, err)
		return StateFuzzy
	}
	top := items[0]
	if e.d.Enrich == nil || top.ID() == 0 {
		return r.found(caption.Normalize(top))
	}
	rec, err := e.d.Enrich.ByID(ctx, top.ID())
	if err != nil {
		e.logMiss("catalog B details", r.title, err)
		return StateFuzzy
	}
	return r.found(rec)
}

func (e *Engine) fuzzy(ctx context.Context, r *run) State {
	if r.corrected || e.d.Trending == nil {
		return StateAIFallback
	}
	titles, err := e.d.Trending.Titles(ctx)
	if err != nil {
		e.d.Log.Debug("trending unavailable", logx.Err(err))
	}
	match, score, ok := BestMatch(r.query, titles, e.d.Threshold)
	if !ok || strings.EqualFold(match, r.query) {
		return StateAIFallback
	}
	e.d.Log.Debug("fuzzy correction", logx.String("query", r.query), logx.String("match", match), logx.Float64("score", score))
	r.corrected = true
	r.title = match
	r.res.CorrectedTitle = match
	return StateExactLookup
}

func (e *Engine) aiFallback(ctx context.Context, r *run) State {
	prompt := ai.UnknownTitlePrompt(r.query)
	if r.res.CorrectedTitle != "" {
		prompt = ai.CorrectionPrompt(r.query, r.res.CorrectedTitle)
	}
	text, err := e.d.AI.Complete(ctx, prompt)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil && !errors.Is(err, ai.ErrDisabled) {
			e.d.Log.Warn("ai fallback failed", logx.String("query", r.query), logx.Err(err))
		}
		return StateNotFound
	}
	r.res.Kind = KindAIText
	r.res.Text = strings.TrimSpace(text)
	return StateDone
}

func (r *run) found(rec caption.MediaRecord) State {
	r.res.Kind = KindRecord
	r.res.Record = rec
	return StateDone
}

func (e *Engine) logMiss(src, title string, err error) {
	if err == nil || errors.Is(err, catalog.ErrNotFound) {
		e.d.Log.Debug(src+" miss", logx.String("title", title))
		return
	}
	e.d.Log.Warn(src+" unavailable", logx.String("title", title), logx.Err(err))
}

// Lookup runs only the structured part of the chain (exact, then search)
// for title. Used where an AI answer is no substitute for a record.
func (e *Engine) Lookup(ctx context.Context, title string) (caption.MediaRecord, bool) {
	r := &run{query: MediaQuery(title).Clean()}
	r.title = r.query
	if r.query == "" {
		return caption.MediaRecord{}, false
	}
	if e.exact(ctx, r) == StateDone || e.search(ctx, r) == StateDone {
		return r.res.Record, true
	}
	return caption.MediaRecord{}, false
}

// SearchURL is the web-search link offered when nothing matched.
func SearchURL(query string) string {
	return searchBase + url.QueryEscape(strings.TrimSpace(query))
}
