package config

import "strings"

// Defaults used when the file leaves a value empty.
const (
	DefaultOMDbBaseURL       = "https://www.omdbapi.com/"
	DefaultTMDbBaseURL       = "https://api.themoviedb.org/3"
	DefaultImageBase         = "https://image.tmdb.org/t/p/w780"
	DefaultRegion            = "IN"
	DefaultCatalogTimeout    = "12s"
	DefaultAIModel           = "gemini-2.0-flash"
	DefaultBroadcastInterval = "600s"
	DefaultBroadcastWarmup   = "10s"
	DefaultBroadcastWindow   = 50
	DefaultDeleteAfter       = "10m"
	DefaultOpsAddr           = "127.0.0.1:9090"
)

// DefaultTrendingStatic is the last-resort trending list.
var DefaultTrendingStatic = []string{"Coolie", "War 2", "Kingdom", "Mahavatar Narsimha", "Son of Sardaar 2"}

// ApplyDefaults fills empty values in place.
func ApplyDefaults(c *Config) {
	setStr := func(p *string, v string) {
		if strings.TrimSpace(*p) == "" {
			*p = v
		}
	}
	setInt := func(p *int, v int) {
		if *p <= 0 {
			*p = v
		}
	}

	setStr(&c.Telegram.PollTimeout, "10s")
	setStr(&c.Telegram.CommandTimeout, "30s")
	setInt(&c.Telegram.Workers, 8)

	setStr(&c.Logging.Level, "info")

	setStr(&c.Catalog.OMDbBaseURL, DefaultOMDbBaseURL)
	setStr(&c.Catalog.TMDbBaseURL, DefaultTMDbBaseURL)
	setStr(&c.Catalog.ImageBase, DefaultImageBase)
	setStr(&c.Catalog.Region, DefaultRegion)
	setStr(&c.Catalog.Timeout, DefaultCatalogTimeout)
	if c.Catalog.RatePerSec <= 0 {
		c.Catalog.RatePerSec = 5
	}
	setInt(&c.Catalog.Burst, 5)

	setStr(&c.AI.Model, DefaultAIModel)
	setStr(&c.AI.Timeout, "15s")

	if len(c.Trending.Static) == 0 {
		c.Trending.Static = append([]string(nil), DefaultTrendingStatic...)
	}
	setStr(&c.Trending.CacheTTL, "30m")
	setStr(&c.Trending.Timeout, "10s")

	setStr(&c.Broadcast.Interval, DefaultBroadcastInterval)
	setStr(&c.Broadcast.Warmup, DefaultBroadcastWarmup)
	setInt(&c.Broadcast.Window, DefaultBroadcastWindow)
	if len(c.Broadcast.Categories) == 0 {
		c.Broadcast.Categories = []string{"movies"}
	}
	setInt(&c.Broadcast.PerCategory, 50)
	setStr(&c.Broadcast.DeleteAfter, DefaultDeleteAfter)
	setInt(&c.Broadcast.Workers, 4)
	if c.Broadcast.RatePerSec <= 0 {
		c.Broadcast.RatePerSec = 10
	}
	setStr(&c.Broadcast.SendTimeout, "15s")

	setStr(&c.Ephemeral.DeleteAfter, DefaultDeleteAfter)

	setStr(&c.Cache.Driver, "memory")
	setStr(&c.Cache.TTL, "1h")
	setStr(&c.Cache.Prefix, "cinebot:")

	setStr(&c.Storage.Driver, "sqlite")
	setStr(&c.Storage.Path, "./data/cinebot.db")
	setStr(&c.Storage.BusyTimeout, "5s")

	setStr(&c.Ops.Addr, DefaultOpsAddr)
	setInt(&c.Ops.RatePerMin, 120)
	setStr(&c.Ops.ReadTimeout, "10s")
	setStr(&c.Ops.WriteTimeout, "30s")
}
