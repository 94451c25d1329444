package app

import (
	"context"
	"time"

	"cinebot/internal/broadcast"
	"cinebot/internal/cache"
	"cinebot/internal/caption"
	"cinebot/internal/catalog"
	"cinebot/internal/config"
	"cinebot/internal/handler"
	"cinebot/internal/observability/ops"
	"cinebot/internal/storage"
	"cinebot/internal/task/scheduler"
	kit "cinebot/internal/transport"
	logx "cinebot/pkg/logx"
)

// broadcastJob is the scheduler name of the broadcast tick.
const broadcastJob = "broadcast"

func logConfig(c *config.Config) logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File: logx.FileConfig{
			Enabled: c.Logging.File.Enabled,
			Path:    c.Logging.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    c.Logging.Telegram.Enabled,
			ThreadID:   c.Logging.Telegram.ThreadID,
			MinLevel:   c.Logging.Telegram.MinLevel,
			RatePerSec: c.Logging.Telegram.RatePerSec,
		},
	}
}

func cacheOptions(c *config.Config) cache.Options {
	return cache.Options{
		Driver:   c.Cache.Driver,
		Addr:     c.Cache.Addr,
		Password: c.Cache.Password,
		DB:       c.Cache.DB,
		Prefix:   c.Cache.Prefix,
	}
}

func catalogOptions(c *config.Config, base, key string, ch cache.Cache, log logx.Logger) catalog.Options {
	return catalog.Options{
		BaseURL:    base,
		APIKey:     key,
		Timeout:    config.Dur(c.Catalog.Timeout, 12*time.Second),
		RatePerSec: c.Catalog.RatePerSec,
		Burst:      c.Catalog.Burst,
		Cache:      ch,
		CacheTTL:   config.Dur(c.Cache.TTL, time.Hour),
		Log:        log,
	}
}

func storageConfig(c *config.Config) storage.Config {
	return storage.Config{
		Driver:      c.Storage.Driver,
		Path:        c.Storage.Path,
		BusyTimeout: config.Dur(c.Storage.BusyTimeout, 5*time.Second),
	}
}

func links(c *config.Config) caption.Links {
	return caption.Links{Server1: c.Links.Server1, Server2: c.Links.Server2, Download: c.Links.Download}
}

func targets(ids []int64) []kit.ChatTarget {
	out := make([]kit.ChatTarget, 0, len(ids))
	for _, id := range ids {
		out = append(out, kit.ChatTarget{ChatID: id})
	}
	return out
}

func broadcastConfig(c *config.Config) broadcast.Config {
	return broadcast.Config{
		Targets:     targets(c.Broadcast.Targets),
		Categories:  c.Broadcast.Categories,
		PerCategory: c.Broadcast.PerCategory,
		DeleteAfter: config.Dur(c.Broadcast.DeleteAfter, 10*time.Minute),
		Workers:     c.Broadcast.Workers,
		RatePerSec:  c.Broadcast.RatePerSec,
		SendTimeout: config.Dur(c.Broadcast.SendTimeout, 15*time.Second),
		CropPosters: c.Telegram.CropPosters,
		Links:       links(c),
	}
}

func handlerConfig(c *config.Config, aiEnabled bool) handler.Config {
	return handler.Config{
		DeleteAfter:   config.Dur(c.Ephemeral.DeleteAfter, 10*time.Minute),
		CropPosters:   c.Telegram.CropPosters,
		WelcomeNew:    c.Telegram.WelcomeNew,
		AIEnabled:     aiEnabled,
		AdminUsername: c.Telegram.AdminUsername,
		WelcomeImage:  c.Telegram.WelcomeImage,
		Links:         links(c),
	}
}

func opsConfig(c *config.Config) ops.Config {
	return ops.Config{
		Enabled:       c.Ops.Enabled,
		Addr:          c.Ops.Addr,
		Token:         c.Ops.Token,
		AllowInsecure: c.Ops.AllowInsecure,
		Pprof:         c.Ops.Pprof,
		RatePerMin:    c.Ops.RatePerMin,
		ReadTimeout:   config.Dur(c.Ops.ReadTimeout, 10*time.Second),
		WriteTimeout:  config.Dur(c.Ops.WriteTimeout, 30*time.Second),
	}
}

// tickJob schedules run on the broadcast interval. The warm-up delays only
// the first trigger after registration.
func tickJob(c *config.Config, warmup bool, run func(ctx context.Context) error) scheduler.Job {
	j := scheduler.Job{Name: broadcastJob, Spec: c.Broadcast.Interval, Run: run}
	if warmup {
		j.Warmup = config.Dur(c.Broadcast.Warmup, 10*time.Second)
	}
	return j
}
