// Package enrich builds a full MediaRecord from a TMDb id: details plus
// the optional trailer and streaming platforms, fetched in parallel.
package enrich

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"cinebot/internal/caption"
	"cinebot/internal/catalog"
	logx "cinebot/pkg/logx"
)

// Catalog is the subset of catalog B enrichment needs.
type Catalog interface {
	Details(ctx context.Context, id int) (catalog.Item, error)
	Trailer(ctx context.Context, id int) (string, error)
	Platforms(ctx context.Context, id int) ([]string, error)
}

type Enricher struct {
	b   Catalog
	log logx.Logger
}

func New(b Catalog, log logx.Logger) *Enricher {
	return &Enricher{b: b, log: log.With(logx.String("comp", "enrich"))}
}

// ByID returns the normalized record for id. Only a details failure is an
// error; trailer and platforms are best effort and leave their fields unset.
func (e *Enricher) ByID(ctx context.Context, id int) (caption.MediaRecord, error) {
	if e == nil || e.b == nil {
		return caption.MediaRecord{}, catalog.ErrUpstreamUnavailable
	}

	var (
		details   catalog.Item
		trailer   string
		platforms []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		it, err := e.b.Details(gctx, id)
		if err != nil {
			return fmt.Errorf("details %d: %w", id, err)
		}
		details = it
		return nil
	})
	g.Go(func() error {
		t, err := e.b.Trailer(gctx, id)
		if err != nil {
			e.log.Debug("trailer lookup failed", logx.Int("id", id), logx.Err(err))
			return nil
		}
		trailer = t
		return nil
	})
	g.Go(func() error {
		p, err := e.b.Platforms(gctx, id)
		if err != nil {
			e.log.Debug("platforms lookup failed", logx.Int("id", id), logx.Err(err))
			return nil
		}
		platforms = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return caption.MediaRecord{}, err
	}

	rec := caption.Normalize(details)
	if rec.CatalogBID == 0 {
		rec.CatalogBID = id
	}
	if trailer != "" {
		rec.Trailer = trailer
	}
	rec.Platforms = platforms
	return rec, nil
}
