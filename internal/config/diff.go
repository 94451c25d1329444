package config

import (
	"reflect"
	"sort"
	"strings"

	logx "cinebot/pkg/logx"
)

// SummarizeConfigChange returns the changed top-level sections and safe
// structured attrs for logging. Secrets are only reported as set/unset.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	o, n := redacted(*oldCfg), redacted(*newCfg)

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)
	section := func(name string, a, b any, fields ...logx.Field) {
		if reflect.DeepEqual(a, b) {
			return
		}
		changed = append(changed, name)
		attrs = append(attrs, fields...)
	}

	section("telegram", o.Telegram, n.Telegram,
		logx.Int("telegram.owner_count", len(n.Telegram.OwnerUserIDs)),
		logx.Int("telegram.workers", n.Telegram.Workers),
		logx.Bool("telegram.token_set", n.Telegram.Token != ""),
	)
	section("logging", o.Logging, n.Logging,
		logx.String("logging.level", n.Logging.Level),
		logx.Bool("logging.console", n.Logging.Console),
		logx.Bool("logging.file", n.Logging.File.Enabled),
		logx.Bool("logging.telegram", n.Logging.Telegram.Enabled),
	)
	section("catalog", o.Catalog, n.Catalog,
		logx.String("catalog.region", n.Catalog.Region),
		logx.String("catalog.timeout", n.Catalog.Timeout),
		logx.Bool("catalog.omdb_key_set", n.Catalog.OMDbKey != ""),
		logx.Bool("catalog.tmdb_key_set", n.Catalog.TMDbKey != ""),
	)
	section("ai", o.AI, n.AI,
		logx.Bool("ai.enabled", n.AI.Enabled),
		logx.String("ai.model", n.AI.Model),
	)
	section("trending", o.Trending, n.Trending,
		logx.Int("trending.feeds", len(n.Trending.Feeds)),
		logx.Int("trending.static", len(n.Trending.Static)),
	)
	section("broadcast", o.Broadcast, n.Broadcast,
		logx.Bool("broadcast.enabled", n.Broadcast.Enabled),
		logx.Int("broadcast.targets", len(n.Broadcast.Targets)),
		logx.String("broadcast.interval", n.Broadcast.Interval),
		logx.Int("broadcast.window", n.Broadcast.Window),
	)
	section("ephemeral", o.Ephemeral, n.Ephemeral,
		logx.String("ephemeral.delete_after", n.Ephemeral.DeleteAfter),
	)
	section("links", o.Links, n.Links)
	section("cache", o.Cache, n.Cache,
		logx.String("cache.driver", n.Cache.Driver),
		logx.String("cache.ttl", n.Cache.TTL),
	)
	section("storage", o.Storage, n.Storage,
		logx.String("storage.driver", n.Storage.Driver),
		logx.Bool("storage.path_set", strings.TrimSpace(n.Storage.Path) != ""),
	)
	section("ops", o.Ops, n.Ops,
		logx.Bool("ops.enabled", n.Ops.Enabled),
		logx.String("ops.addr", n.Ops.Addr),
		logx.Bool("ops.token_set", n.Ops.Token != ""),
		logx.Bool("ops.pprof", n.Ops.Pprof),
	)
	section("scheduler", o.Scheduler, n.Scheduler,
		logx.String("scheduler.timezone", n.Scheduler.Timezone),
	)

	sort.Strings(changed)
	return changed, attrs
}

// RestartRequired reports sections that cannot be applied without a restart.
func RestartRequired(changed []string) []string {
	var out []string
	for _, s := range changed {
		switch s {
		case "telegram", "storage", "cache", "catalog", "ai", "trending":
			out = append(out, s)
		}
	}
	return out
}

// redacted replaces secrets with a marker so a rotated key still counts as a change
// without the value ever reaching a log line.
func redacted(c Config) Config {
	mask := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return ""
		}
		return "set:" + hashHex(s)
	}
	c.Telegram.Token = mask(c.Telegram.Token)
	c.Catalog.OMDbKey = mask(c.Catalog.OMDbKey)
	c.Catalog.TMDbKey = mask(c.Catalog.TMDbKey)
	c.AI.APIKey = mask(c.AI.APIKey)
	c.Cache.Password = mask(c.Cache.Password)
	c.Ops.Token = mask(c.Ops.Token)
	return c
}
