package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"cinebot/internal/cache"
	"cinebot/internal/observability/metrics"
	logx "cinebot/pkg/logx"
)

const maxBody = 4 << 20

// Options configure one catalog client.
type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
	Cache      cache.Cache
	CacheTTL   time.Duration
	HTTPClient *http.Client
	Log        logx.Logger
}

type client struct {
	name    Source
	base    string
	key     string
	keyName string
	timeout time.Duration
	http    *http.Client
	limiter *rate.Limiter
	cache   cache.Cache
	ttl     time.Duration
	log     logx.Logger
}

func newClient(name Source, keyName string, opt Options) *client {
	c := &client{
		name:    name,
		base:    strings.TrimRight(opt.BaseURL, "/"),
		key:     opt.APIKey,
		keyName: keyName,
		timeout: opt.Timeout,
		http:    opt.HTTPClient,
		cache:   opt.Cache,
		ttl:     opt.CacheTTL,
		log:     opt.Log.With(logx.String("comp", "catalog"), logx.String("catalog", string(name))),
	}
	if c.timeout <= 0 {
		c.timeout = 12 * time.Second
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.cache == nil {
		c.cache = cache.Nop{}
	}
	if opt.RatePerSec > 0 {
		burst := max(opt.Burst, 1)
		c.limiter = rate.NewLimiter(rate.Limit(opt.RatePerSec), burst)
	}
	return c
}

// getJSON fetches base+path with q and decodes a JSON object.
// Successful bodies are cached under a key that never contains the API key.
func (c *client) getJSON(ctx context.Context, op, path string, q url.Values) (Fields, error) {
	if q == nil {
		q = url.Values{}
	}
	cacheKey := string(c.name) + ":" + path + "?" + q.Encode()

	if b, ok, _ := c.cache.Get(ctx, cacheKey); ok {
		var f Fields
		if err := json.Unmarshal(b, &f); err == nil {
			metrics.CatalogRequest(string(c.name), op, "cached")
			return f, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			metrics.CatalogRequest(string(c.name), op, "unavailable")
			return nil, fmt.Errorf("%s %s: rate wait: %w: %w", c.name, op, ErrUpstreamUnavailable, err)
		}
	}

	full := url.Values{}
	for k, v := range q {
		full[k] = v
	}
	if c.key != "" {
		full.Set(c.keyName, c.key)
	}
	u := c.base + path + "?" + full.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%s %s: build request: %w", c.name, op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.CatalogRequest(string(c.name), op, "unavailable")
		c.log.Debug("catalog request failed", logx.String("op", op), logx.Err(redactErr(err, c.key)))
		return nil, fmt.Errorf("%s %s: %w", c.name, op, ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		metrics.CatalogRequest(string(c.name), op, "unavailable")
		return nil, fmt.Errorf("%s %s: status %d: %w", c.name, op, resp.StatusCode, ErrUpstreamUnavailable)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		metrics.CatalogRequest(string(c.name), op, "unavailable")
		return nil, fmt.Errorf("%s %s: read body: %w", c.name, op, ErrUpstreamUnavailable)
	}
	var f Fields
	if err := json.Unmarshal(body, &f); err != nil {
		metrics.CatalogRequest(string(c.name), op, "unavailable")
		return nil, fmt.Errorf("%s %s: decode: %w", c.name, op, ErrUpstreamUnavailable)
	}

	_ = c.cache.Set(ctx, cacheKey, body, c.ttl)
	metrics.CatalogRequest(string(c.name), op, "ok")
	return f, nil
}

// redactErr strips the API key from url.Error messages.
func redactErr(err error, key string) error {
	if err == nil || key == "" {
		return err
	}
	msg := err.Error()
	if !strings.Contains(msg, key) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(msg, key, "REDACTED"))
}
