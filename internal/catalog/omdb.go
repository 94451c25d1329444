package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"cinebot/internal/observability/metrics"
)

// OMDb is catalog A: a flat record for a near-exact title.
type OMDb struct {
	c *client
}

func NewOMDb(opt Options) *OMDb {
	return &OMDb{c: newClient(SourceOMDb, "apikey", opt)}
}

// LookupExact returns ErrNotFound when OMDb answers Response=False.
func (o *OMDb) LookupExact(ctx context.Context, title string) (Item, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Item{}, ErrNotFound
	}
	f, err := o.c.getJSON(ctx, "lookup", "/", url.Values{"t": {title}, "plot": {"short"}})
	if err != nil {
		return Item{}, err
	}
	if !strings.EqualFold(f.Str("Response"), "True") || f.Str("Title") == "" {
		metrics.CatalogRequest(string(SourceOMDb), "lookup", "not_found")
		return Item{}, fmt.Errorf("omdb %q: %w", title, ErrNotFound)
	}
	return Item{Source: SourceOMDb, Fields: f}, nil
}
