package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinebot/internal/broadcast"
	"cinebot/internal/caption"
	"cinebot/internal/config"
	"cinebot/internal/dedup"
	"cinebot/internal/ephemeral"
	"cinebot/internal/resolve"
	"cinebot/internal/task/scheduler"
	kit "cinebot/internal/transport"
	"cinebot/internal/transport/telegram/router"
	logx "cinebot/pkg/logx"
)

func testConfig() *config.Config {
	c := &config.Config{}
	c.Telegram.Token = "t"
	c.Cache.Driver = "none"
	c.Storage.Driver = "none"
	config.ApplyDefaults(c)
	return c
}

func TestBroadcastConfigMapping(t *testing.T) {
	c := testConfig()
	c.Broadcast.Targets = []int64{-100, -200}
	c.Broadcast.DeleteAfter = "5m"
	c.Telegram.CropPosters = true
	c.Links.Server1 = "https://s1.example/"

	bc := broadcastConfig(c)
	assert.Equal(t, []kit.ChatTarget{{ChatID: -100}, {ChatID: -200}}, bc.Targets)
	assert.Equal(t, 5*time.Minute, bc.DeleteAfter)
	assert.Equal(t, 15*time.Second, bc.SendTimeout)
	assert.True(t, bc.CropPosters)
	assert.Equal(t, "https://s1.example/", bc.Links.Server1)
	assert.Equal(t, []string{"movies"}, bc.Categories)
}

func TestHandlerAndLogMapping(t *testing.T) {
	c := testConfig()
	c.Telegram.AdminUsername = "@owner"
	c.Logging.Telegram.Enabled = true
	c.Logging.Telegram.ThreadID = 7

	hc := handlerConfig(c, true)
	assert.Equal(t, 10*time.Minute, hc.DeleteAfter)
	assert.True(t, hc.AIEnabled)
	assert.Equal(t, "@owner", hc.AdminUsername)

	lc := logConfig(c)
	assert.Equal(t, "info", lc.Level)
	assert.True(t, lc.Chat.Enabled)
	assert.Equal(t, 7, lc.Chat.ThreadID)
}

func TestTickJobWarmup(t *testing.T) {
	c := testConfig()
	run := func(context.Context) error { return nil }

	j := tickJob(c, true, run)
	assert.Equal(t, broadcastJob, j.Name)
	assert.Equal(t, "600s", j.Spec)
	assert.Equal(t, 10*time.Second, j.Warmup)

	assert.Zero(t, tickJob(c, false, run).Warmup)
}

func TestValidate(t *testing.T) {
	c := testConfig()
	require.NoError(t, validate(context.Background(), c))

	bad := *c
	bad.Broadcast.Interval = "whenever"
	assert.ErrorContains(t, validate(context.Background(), &bad), "broadcast.interval")

	bad = *c
	bad.Scheduler.Timezone = "Mars/Olympus"
	assert.ErrorContains(t, validate(context.Background(), &bad), "scheduler.timezone")
}

func TestApplyScheduleTogglesBroadcast(t *testing.T) {
	a := &App{log: logx.Nop(), sched: scheduler.New(scheduler.Config{}, logx.Nop())}
	off := testConfig()
	on := testConfig()
	on.Broadcast.Enabled = true
	on.Broadcast.Targets = []int64{-1}

	a.applySchedule(off, on)
	snap := a.sched.Snapshot()
	require.Len(t, snap.Schedules, 1)
	assert.Equal(t, "@every 10m0s", snap.Schedules[0].Spec)

	faster := *on
	faster.Broadcast.Interval = "5m"
	a.applySchedule(on, &faster)
	snap = a.sched.Snapshot()
	require.Len(t, snap.Schedules, 1)
	assert.Equal(t, "@every 5m0s", snap.Schedules[0].Spec)

	a.applySchedule(&faster, off)
	assert.Empty(t, a.sched.Snapshot().Schedules)
}

func TestStatusSnapshot(t *testing.T) {
	sampler := dedup.New(3)
	a := &App{
		sups:      router.NewSupervisorRegistry(),
		sampler:   sampler,
		eph:       ephemeral.New(nil, logx.Nop()),
		sched:     scheduler.New(scheduler.Config{}, logx.Nop()),
		orch:      broadcast.New(broadcast.Config{}, broadcast.Deps{}),
		startedAt: time.Now().Add(-time.Minute),
	}
	st := a.status()
	assert.Equal(t, 3, st.DedupCap)
	assert.Zero(t, st.DedupWindow)
	assert.Zero(t, st.Pending)
	assert.Nil(t, st.LastBroadcast)
	assert.GreaterOrEqual(t, st.Uptime, time.Minute)
}

func TestOpenCatalogResolvesThroughCatalogA(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("t") == "The Matrix" {
			_, _ = w.Write([]byte(`{"Title":"The Matrix","Year":"1999","Director":"Lana Wachowski","Response":"True"}`))
			return
		}
		_, _ = w.Write([]byte(`{"Response":"False","Error":"Movie not found!"}`))
	}))
	defer srv.Close()

	c := testConfig()
	c.Catalog.OMDbKey = "k"
	c.Catalog.OMDbBaseURL = srv.URL
	c.Trending.Static = []string{"Inception"}

	cat, err := OpenCatalog(context.Background(), c, nil, logx.Nop())
	require.NoError(t, err)
	defer cat.Close()

	assert.NotNil(t, cat.OMDb)
	assert.Nil(t, cat.TMDb)
	assert.Nil(t, cat.Enrich)
	assert.False(t, cat.AIEnabled())
	assert.NoError(t, cat.Ping(context.Background()))

	res := cat.Engine.Resolve(context.Background(), resolve.MediaQuery("The Matrix"))
	require.Equal(t, resolve.KindRecord, res.Kind)
	text := caption.SafeRender(res.Record)
	assert.Contains(t, text, "THE MATRIX")
	assert.Contains(t, text, "1999")

	res = cat.Engine.Resolve(context.Background(), resolve.MediaQuery("zzqx unknown"))
	assert.Equal(t, resolve.KindNotFound, res.Kind)
	assert.True(t, strings.HasPrefix(res.SearchURL, "https://www.google.com/search?q="))
}
