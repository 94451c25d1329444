package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// TMDb is catalog B: ranked search plus per-id enrichment.
type TMDb struct {
	c         *client
	region    string
	imageBase string
}

func NewTMDb(opt Options, region, imageBase string) *TMDb {
	if region == "" {
		region = "IN"
	}
	return &TMDb{c: newClient(SourceTMDb, "api_key", opt), region: strings.ToUpper(region), imageBase: imageBase}
}

func (t *TMDb) Region() string { return t.region }

func (t *TMDb) item(f Fields) Item {
	return Item{Source: SourceTMDb, Fields: f, ImageBase: t.imageBase}
}

func (t *TMDb) list(ctx context.Context, op, path string, q url.Values) ([]Item, error) {
	f, err := t.c.getJSON(ctx, op, path, q)
	if err != nil {
		return nil, err
	}
	results := f.Objects("results")
	out := make([]Item, 0, len(results))
	for _, r := range results {
		out = append(out, t.item(r))
	}
	return out, nil
}

// Search returns candidates in TMDb rank order. No results is an empty slice.
func (t *TMDb) Search(ctx context.Context, title string) ([]Item, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, nil
	}
	return t.list(ctx, "search", "/search/movie", url.Values{"query": {title}})
}

// Details fetches the full record with credits.
func (t *TMDb) Details(ctx context.Context, id int) (Item, error) {
	if id <= 0 {
		return Item{}, ErrNotFound
	}
	f, err := t.c.getJSON(ctx, "details", "/movie/"+strconv.Itoa(id), url.Values{"append_to_response": {"credits"}})
	if err != nil {
		return Item{}, err
	}
	return t.item(f), nil
}

// Trailer returns the first YouTube trailer URL.
func (t *TMDb) Trailer(ctx context.Context, id int) (string, error) {
	f, err := t.c.getJSON(ctx, "videos", "/movie/"+strconv.Itoa(id)+"/videos", nil)
	if err != nil {
		return "", err
	}
	for _, v := range f.Objects("results") {
		if v.Str("site") == "YouTube" && v.Str("type") == "Trailer" && v.Str("key") != "" {
			return "https://www.youtube.com/watch?v=" + url.QueryEscape(v.Str("key")), nil
		}
	}
	return "", fmt.Errorf("tmdb trailer %d: %w", id, ErrNotFound)
}

// Platforms returns flat-rate streaming provider names for the configured region.
func (t *TMDb) Platforms(ctx context.Context, id int) ([]string, error) {
	f, err := t.c.getJSON(ctx, "providers", "/movie/"+strconv.Itoa(id)+"/watch/providers", nil)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range f.Map("results").Map(t.region).Objects("flatrate") {
		if n := p.Str("provider_name"); n != "" {
			out = append(out, n)
		}
	}
	return out, nil
}

// Trending lists trending movies; window is "day" or "week".
func (t *TMDb) Trending(ctx context.Context, window string) ([]Item, error) {
	if window != "week" {
		window = "day"
	}
	return t.list(ctx, "trending", "/trending/movie/"+window, nil)
}

func (t *TMDb) Upcoming(ctx context.Context) ([]Item, error) {
	return t.list(ctx, "upcoming", "/movie/upcoming", url.Values{"region": {t.region}})
}

// Genres maps lower-cased genre names to TMDb genre ids.
func (t *TMDb) Genres(ctx context.Context) (map[string]int, error) {
	f, err := t.c.getJSON(ctx, "genres", "/genre/movie/list", nil)
	if err != nil {
		return nil, err
	}
	out := map[string]int{}
	for _, g := range f.Objects("genres") {
		id, ok := g.Num("id")
		if name := strings.ToLower(g.Str("name")); ok && name != "" {
			out[name] = int(id)
		}
	}
	return out, nil
}

// Discover lists popular movies in one genre.
func (t *TMDb) Discover(ctx context.Context, genreID int) ([]Item, error) {
	return t.list(ctx, "discover", "/discover/movie", url.Values{
		"with_genres": {strconv.Itoa(genreID)},
		"sort_by":     {"popularity.desc"},
	})
}
