package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	logx "cinebot/pkg/logx"
)

type Config struct {
	// Timezone is an IANA name, e.g. "Asia/Kolkata". Empty means local time.
	Timezone string
}

// Job is one schedule registration. Spec accepts anything ParseSchedule does.
type Job struct {
	Name    string
	Spec    string
	Warmup  time.Duration
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

type jobState struct {
	job     Job
	parsed  ParsedSpec
	entryID cron.EntryID

	running atomic.Bool
	runs    atomic.Uint64
	skipped atomic.Uint64
	failed  atomic.Uint64

	lastMu  sync.Mutex
	lastErr string
	lastDur time.Duration
}

type Service struct {
	mu sync.Mutex

	log    logx.Logger
	cfg    Config
	loc    *time.Location
	parser cron.Parser
	c      *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	jobs   []*jobState
}

type ScheduleInfo struct {
	Name     string
	Spec     string
	Next     time.Time
	Prev     time.Time
	Runs     uint64
	Skipped  uint64
	Failed   uint64
	Running  bool
	LastErr  string
	LastTook time.Duration
}

type Snapshot struct {
	Running   bool
	Timezone  string
	Schedules []ScheduleInfo
}
