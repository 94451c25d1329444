package trending

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"cinebot/internal/catalog"
)

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// TMDbLister is the part of the TMDb client TMDbSource needs.
type TMDbLister interface {
	Trending(ctx context.Context, window string) ([]catalog.Item, error)
}

type TMDbSource struct {
	C TMDbLister
}

func (TMDbSource) Name() string { return "tmdb" }

func (s TMDbSource) Titles(ctx context.Context) ([]string, error) {
	items, err := s.C.Trending(ctx, "day")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if t := it.Fields.Str("title"); t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

// IMDbSource scrapes poster-card titles from an IMDb chart page.
type IMDbSource struct {
	URL    string
	Client *http.Client
}

func (IMDbSource) Name() string { return "imdb" }

func (s IMDbSource) Titles(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUA)
	resp, err := client(s.Client).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("imdb chart: http %d", resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}
	var out []string
	doc.Find(".ipc-poster-card__title").Each(func(_ int, sel *goquery.Selection) {
		if t := strings.TrimSpace(sel.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out, nil
}

// FeedSource reads item titles from RSS or Atom feeds.
type FeedSource struct {
	URLs   []string
	Client *http.Client
}

func (FeedSource) Name() string { return "feeds" }

// Titles returns what the readable feeds yielded; it fails only when every
// feed failed.
func (s FeedSource) Titles(ctx context.Context) ([]string, error) {
	parser := gofeed.NewParser()
	var (
		out  []string
		errs []error
	)
	for _, u := range s.URLs {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		req.Header.Set("User-Agent", browserUA)
		resp, err := client(s.Client).Do(req)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		feed, err := parser.Parse(resp.Body)
		resp.Body.Close()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", u, err))
			continue
		}
		for _, it := range feed.Items {
			if it != nil && strings.TrimSpace(it.Title) != "" {
				out = append(out, strings.TrimSpace(it.Title))
			}
		}
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func client(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return http.DefaultClient
}
