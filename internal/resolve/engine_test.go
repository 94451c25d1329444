package resolve

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinebot/internal/ai"
	"cinebot/internal/caption"
	"cinebot/internal/catalog"
	"cinebot/internal/eventbus"
	logx "cinebot/pkg/logx"
)

type fakeA struct {
	mu     sync.Mutex
	titles map[string]catalog.Item
	err    error
	calls  []string
}

func (f *fakeA) LookupExact(_ context.Context, title string) (catalog.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, title)
	if f.err != nil {
		return catalog.Item{}, f.err
	}
	if it, ok := f.titles[strings.ToLower(title)]; ok {
		return it, nil
	}
	return catalog.Item{}, catalog.ErrNotFound
}

type fakeB struct {
	results map[string][]catalog.Item
	err     error
	calls   int
}

func (f *fakeB) Search(_ context.Context, title string) ([]catalog.Item, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.results[strings.ToLower(title)], nil
}

type fakeEnrich struct{ calls int }

func (f *fakeEnrich) ByID(_ context.Context, id int) (caption.MediaRecord, error) {
	f.calls++
	return caption.MediaRecord{Title: "Enriched", CatalogBID: id, Trailer: "https://yt"}, nil
}

type fakeTrending struct {
	titles []string
	calls  int
}

func (f *fakeTrending) Titles(context.Context) ([]string, error) {
	f.calls++
	return f.titles, nil
}

type fakeAI struct {
	text    string
	err     error
	prompts []string
}

func (f *fakeAI) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.text, f.err
}

func omdbItem(title, year string) catalog.Item {
	return catalog.Item{Source: catalog.SourceOMDb, Fields: catalog.Fields{"Title": title, "Year": year, "Response": "True"}}
}

func tmdbItem(id int, title string) catalog.Item {
	return catalog.Item{Source: catalog.SourceTMDb, Fields: catalog.Fields{"id": float64(id), "title": title}}
}

func TestCatalogAIsAuthoritative(t *testing.T) {
	a := &fakeA{titles: map[string]catalog.Item{"the matrix": omdbItem("The Matrix", "1999")}}
	b := &fakeB{}
	en := &fakeEnrich{}
	e := New(Deps{A: a, B: b, Enrich: en, Log: logx.Nop()})

	res := e.Resolve(context.Background(), "  The   Matrix ")
	require.Equal(t, KindRecord, res.Kind)
	assert.Equal(t, "The Matrix", res.Record.Title)
	assert.Equal(t, 0, b.calls)
	assert.Equal(t, 0, en.calls)
	assert.Equal(t, []State{StateExactLookup, StateDone}, res.Trace)

	out := caption.Render(res.Record)
	assert.Contains(t, out, "THE MATRIX")
	assert.Contains(t, out, "1999")
}

func TestFallsBackToBWhenAUnavailable(t *testing.T) {
	a := &fakeA{err: catalog.ErrUpstreamUnavailable}
	b := &fakeB{results: map[string][]catalog.Item{"heat": {tmdbItem(949, "Heat"), tmdbItem(1, "Heat 2")}}}
	en := &fakeEnrich{}
	e := New(Deps{A: a, B: b, Enrich: en, Log: logx.Nop()})

	res := e.Resolve(context.Background(), "Heat")
	require.Equal(t, KindRecord, res.Kind)
	assert.Equal(t, 949, res.Record.CatalogBID)
	assert.Equal(t, 1, en.calls)
	assert.Equal(t, []State{StateExactLookup, StateSearch, StateDone}, res.Trace)
}

func TestFuzzyAndAIRunOnce(t *testing.T) {
	a := &fakeA{err: catalog.ErrUpstreamUnavailable}
	b := &fakeB{}
	tr := &fakeTrending{titles: []string{"Coolie", "War 2"}}
	gen := &fakeAI{text: "Maybe you meant **Something**."}
	e := New(Deps{A: a, B: b, Trending: tr, AI: gen, Log: logx.Nop()})

	res := e.Resolve(context.Background(), "Qwertyuiop")
	require.Equal(t, KindAIText, res.Kind)
	assert.Equal(t, "Maybe you meant **Something**.", res.Text)
	assert.Equal(t, 1, tr.calls)
	assert.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Qwertyuiop")
	assert.Equal(t, []State{StateExactLookup, StateSearch, StateFuzzy, StateAIFallback, StateDone}, res.Trace)
}

func TestMisspelledQueryResolvesToCorrectedRecord(t *testing.T) {
	a := &fakeA{titles: map[string]catalog.Item{"kingdom": omdbItem("Kingdom", "2025")}}
	b := &fakeB{}
	tr := &fakeTrending{titles: []string{"Coolie", "War 2", "Kingdom"}}
	gen := &fakeAI{text: "unused"}
	e := New(Deps{A: a, B: b, Trending: tr, AI: gen, Log: logx.Nop()})

	res := e.Resolve(context.Background(), "Kingdum")
	require.Equal(t, KindRecord, res.Kind)
	assert.Equal(t, "Kingdom", res.Record.Title)
	assert.Equal(t, "Kingdom", res.CorrectedTitle)
	assert.Equal(t, []string{"Kingdum", "Kingdom"}, a.calls)
	assert.Empty(t, gen.prompts)
	assert.Equal(t, []State{
		StateExactLookup, StateSearch, StateFuzzy,
		StateExactLookup, StateDone,
	}, res.Trace)
}

func TestCorrectedMissGoesStraightToAI(t *testing.T) {
	a := &fakeA{}
	b := &fakeB{}
	tr := &fakeTrending{titles: []string{"Kingdom"}}
	gen := &fakeAI{}
	e := New(Deps{A: a, B: b, Trending: tr, AI: gen, Log: logx.Nop()})

	res := e.Resolve(context.Background(), "Kingdum")
	require.Equal(t, KindNotFound, res.Kind)
	assert.Equal(t, 1, tr.calls)
	assert.Equal(t, 2, b.calls)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "'Kingdom'")
	assert.Equal(t, "https://www.google.com/search?q=Kingdum", res.SearchURL)
	assert.Equal(t, []State{
		StateExactLookup, StateSearch, StateFuzzy,
		StateExactLookup, StateSearch, StateAIFallback,
		StateNotFound, StateDone,
	}, res.Trace)
}

func TestNotFoundWhenAIDisabledOrFails(t *testing.T) {
	for _, gen := range []ai.Generator{ai.Disabled{}, &fakeAI{err: errors.New("quota")}, &fakeAI{text: "   "}} {
		e := New(Deps{A: &fakeA{}, B: &fakeB{}, AI: gen, Log: logx.Nop()})
		res := e.Resolve(context.Background(), "no such film")
		assert.Equal(t, KindNotFound, res.Kind)
		assert.Equal(t, "https://www.google.com/search?q=no+such+film", res.SearchURL)
	}
}

func TestEmptyQuery(t *testing.T) {
	a := &fakeA{}
	e := New(Deps{A: a, Log: logx.Nop()})
	res := e.Resolve(context.Background(), "   ")
	assert.Equal(t, KindNotFound, res.Kind)
	assert.Empty(t, a.calls)
}

func TestResolvePublishesEvent(t *testing.T) {
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(1)
	defer unsub()

	e := New(Deps{A: &fakeA{titles: map[string]catalog.Item{"heat": omdbItem("Heat", "1995")}}, Bus: bus, Log: logx.Nop()})
	e.Resolve(context.Background(), "heat")

	ev := <-ch
	assert.Equal(t, eventbus.TypeResolveDone, ev.Type)
	res, ok := ev.Data.(Result)
	require.True(t, ok)
	assert.Equal(t, KindRecord, res.Kind)
}

func TestLookupIsStructuredOnly(t *testing.T) {
	tr := &fakeTrending{titles: []string{"Heat"}}
	gen := &fakeAI{text: "prose"}
	e := New(Deps{A: &fakeA{}, B: &fakeB{}, Trending: tr, AI: gen, Log: logx.Nop()})

	_, ok := e.Lookup(context.Background(), "Heet")
	assert.False(t, ok)
	assert.Zero(t, tr.calls)
	assert.Empty(t, gen.prompts)

	e = New(Deps{A: &fakeA{titles: map[string]catalog.Item{"heat": omdbItem("Heat", "1995")}}, Log: logx.Nop()})
	rec, ok := e.Lookup(context.Background(), "Heat")
	require.True(t, ok)
	assert.Equal(t, "1995", rec.Year)
}

func TestBestMatch(t *testing.T) {
	cands := []string{"Coolie", "War 2", "Kingdom", "Mahavatar Narsimha", "Son of Sardaar 2"}

	m, score, ok := BestMatch("mahavatar narsimah", cands, DefaultThreshold)
	require.True(t, ok)
	assert.Equal(t, "Mahavatar Narsimha", m)
	assert.GreaterOrEqual(t, score, DefaultThreshold)

	_, _, ok = BestMatch("Interstellar", cands, DefaultThreshold)
	assert.False(t, ok)

	_, _, ok = BestMatch("", cands, DefaultThreshold)
	assert.False(t, ok)

	assert.InDelta(t, 1.0, Similarity("HEAT", "heat"), 1e-9)
}
