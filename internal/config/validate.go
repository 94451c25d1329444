package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Validate checks a config after defaults were applied.
// All problems are reported together.
func Validate(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	var errs []error

	if strings.TrimSpace(c.Telegram.Token) == "" {
		errs = append(errs, fmt.Errorf("telegram.token is empty (set it or %s)", EnvTelegramToken))
	}

	durations := []struct{ path, raw string }{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"telegram.command_timeout", c.Telegram.CommandTimeout},
		{"catalog.timeout", c.Catalog.Timeout},
		{"ai.timeout", c.AI.Timeout},
		{"trending.cache_ttl", c.Trending.CacheTTL},
		{"trending.timeout", c.Trending.Timeout},
		{"broadcast.interval", c.Broadcast.Interval},
		{"broadcast.warmup", c.Broadcast.Warmup},
		{"broadcast.delete_after", c.Broadcast.DeleteAfter},
		{"broadcast.send_timeout", c.Broadcast.SendTimeout},
		{"ephemeral.delete_after", c.Ephemeral.DeleteAfter},
		{"cache.ttl", c.Cache.TTL},
		{"storage.busy_timeout", c.Storage.BusyTimeout},
		{"ops.read_timeout", c.Ops.ReadTimeout},
		{"ops.write_timeout", c.Ops.WriteTimeout},
	}
	for _, d := range durations {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			errs = append(errs, err)
		}
	}
	if d, err := ParseDurationField("", c.Broadcast.Interval); err == nil && d > 0 && d < time.Second {
		errs = append(errs, errors.New("broadcast.interval must be >= 1s"))
	}

	if c.Broadcast.Enabled && len(c.Broadcast.Targets) == 0 {
		errs = append(errs, errors.New("broadcast.enabled requires at least one target"))
	}
	seen := map[int64]bool{}
	for _, t := range c.Broadcast.Targets {
		if t == 0 {
			errs = append(errs, errors.New("broadcast.targets: 0 is not a chat id"))
		}
		if seen[t] {
			errs = append(errs, fmt.Errorf("broadcast.targets: duplicate %d", t))
		}
		seen[t] = true
	}

	switch strings.ToLower(c.Cache.Driver) {
	case "memory", "none":
	case "redis":
		if strings.TrimSpace(c.Cache.Addr) == "" {
			errs = append(errs, errors.New("cache.addr is required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.driver: unknown %q", c.Cache.Driver))
	}

	switch strings.ToLower(c.Storage.Driver) {
	case "sqlite", "file", "none":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown %q", c.Storage.Driver))
	}

	if c.AI.Enabled && strings.TrimSpace(c.AI.APIKey) == "" {
		errs = append(errs, fmt.Errorf("ai.enabled requires ai.api_key (or %s)", EnvGeminiKey))
	}

	if c.Ops.Enabled {
		host, _, err := net.SplitHostPort(c.Ops.Addr)
		if err != nil {
			errs = append(errs, fmt.Errorf("ops.addr: %w", err))
		} else if !IsLoopbackHost(host) && !c.Ops.AllowInsecure && strings.TrimSpace(c.Ops.Token) == "" {
			errs = append(errs, errors.New("ops.addr is not loopback: set ops.token or ops.allow_insecure"))
		}
	}

	return errors.Join(errs...)
}

// IsLoopbackHost reports whether host is localhost or a loopback IP.
func IsLoopbackHost(host string) bool {
	host = strings.Trim(strings.TrimSpace(host), "[]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
