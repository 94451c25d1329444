package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"cinebot/internal/ai"
	"cinebot/internal/cache"
	"cinebot/internal/catalog"
	"cinebot/internal/config"
	"cinebot/internal/enrich"
	"cinebot/internal/eventbus"
	"cinebot/internal/resolve"
	"cinebot/internal/storage"
	"cinebot/internal/trending"
	logx "cinebot/pkg/logx"
)

// Catalog is the lookup side of the bot: both catalogs, enrichment, the AI
// generator, the trending list and the resolution engine on top. The
// one-shot CLI commands build it without the Telegram side.
type Catalog struct {
	Cache cache.Cache
	// OMDb and TMDb are nil when their key is unset.
	OMDb     *catalog.OMDb
	TMDb     *catalog.TMDb
	Enrich   *enrich.Enricher
	AI       ai.Generator
	Trending *trending.Aggregator
	Engine   *resolve.Engine
}

// OpenCatalog builds the lookup stack from cfg. bus may be nil.
func OpenCatalog(ctx context.Context, cfg *config.Config, bus eventbus.Bus, log logx.Logger) (*Catalog, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	ch, err := cache.Open(ctx, cacheOptions(cfg), log.With(logx.String("comp", "cache")))
	if err != nil {
		return nil, err
	}
	c := &Catalog{Cache: ch}

	if strings.TrimSpace(cfg.Catalog.OMDbKey) != "" {
		c.OMDb = catalog.NewOMDb(catalogOptions(cfg, cfg.Catalog.OMDbBaseURL, cfg.Catalog.OMDbKey, ch, log))
	} else {
		log.Warn("catalog A disabled: no omdb key")
	}
	if strings.TrimSpace(cfg.Catalog.TMDbKey) != "" {
		c.TMDb = catalog.NewTMDb(catalogOptions(cfg, cfg.Catalog.TMDbBaseURL, cfg.Catalog.TMDbKey, ch, log),
			cfg.Catalog.Region, cfg.Catalog.ImageBase)
		c.Enrich = enrich.New(c.TMDb, log)
	} else {
		log.Warn("catalog B disabled: no tmdb key")
	}

	c.AI, err = ai.New(ctx, ai.Options{
		Enabled: cfg.AI.Enabled,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		Timeout: config.Dur(cfg.AI.Timeout, 15*time.Second),
	}, log)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}

	c.Trending = trending.NewAggregator(log.With(logx.String("comp", "trending")),
		config.Dur(cfg.Trending.CacheTTL, 30*time.Minute),
		config.Dur(cfg.Trending.Timeout, 10*time.Second),
		c.trendingSources(cfg)...,
	)

	d := resolve.Deps{
		Trending: c.Trending,
		AI:       c.AI,
		Bus:      bus,
		Log:      log,
	}
	// Assign through the nil checks so a missing catalog stays a nil interface.
	if c.OMDb != nil {
		d.A = c.OMDb
	}
	if c.TMDb != nil {
		d.B = c.TMDb
		d.Enrich = c.Enrich
	}
	c.Engine = resolve.New(d)
	return c, nil
}

func (c *Catalog) trendingSources(cfg *config.Config) []trending.Source {
	client := &http.Client{Timeout: config.Dur(cfg.Trending.Timeout, 10*time.Second)}
	var out []trending.Source
	if cfg.Trending.TMDb && c.TMDb != nil {
		out = append(out, trending.TMDbSource{C: c.TMDb})
	}
	if u := strings.TrimSpace(cfg.Trending.IMDbURL); u != "" {
		out = append(out, trending.IMDbSource{URL: u, Client: client})
	}
	if len(cfg.Trending.Feeds) > 0 {
		out = append(out, trending.FeedSource{URLs: cfg.Trending.Feeds, Client: client})
	}
	return append(out, trending.Static(cfg.Trending.Static))
}

// AIEnabled reports whether a real generator is wired.
func (c *Catalog) AIEnabled() bool {
	_, off := c.AI.(ai.Disabled)
	return !off
}

// Ping checks the remote cache when there is one.
func (c *Catalog) Ping(ctx context.Context) error {
	if p, ok := c.Cache.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (c *Catalog) Close() error {
	if c == nil || c.Cache == nil {
		return nil
	}
	return c.Cache.Close()
}

// OpenStore opens the configured content store.
func OpenStore(cfg *config.Config, log logx.Logger) (storage.Store, error) {
	return storage.Open(storageConfig(cfg), log)
}
