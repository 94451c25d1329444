package router

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kit "cinebot/internal/transport"
	logx "cinebot/pkg/logx"
)

type fakeMessenger struct {
	mu      sync.Mutex
	texts   []string
	answers []string
}

func (f *fakeMessenger) SendText(_ context.Context, _ kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return kit.MessageRef{ChatID: 1, MessageID: len(f.texts)}, nil
}

func (f *fakeMessenger) SendPhoto(context.Context, kit.ChatTarget, kit.Photo, *kit.SendOptions) (kit.MessageRef, error) {
	return kit.MessageRef{}, nil
}

func (f *fakeMessenger) Delete(context.Context, kit.MessageRef) error { return nil }

func (f *fakeMessenger) AnswerCallback(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeMessenger) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

// runJobs drains queued jobs inline so tests need no worker goroutines.
func runJobs(m *Manager) {
	for {
		select {
		case job := <-m.jobs:
			job()
		default:
			return
		}
	}
}

func newTestManager(msgr kit.Messenger) *Manager {
	return New(logx.Nop(), msgr, Options{Owners: []int64{7}, BotUsername: "cinebot"}, NewSupervisorRegistry())
}

func msgUpdate(from int64, text string, group bool) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ID: 10, ChatID: 100, FromID: from, Text: text, IsGroup: group}}
}

func TestRouteCommandWithArgs(t *testing.T) {
	fm := &fakeMessenger{}
	m := newTestManager(fm)

	var got *Request
	m.SetRegistry([]Command{{Name: "movie", Aliases: []string{"m"}, Handle: func(_ context.Context, r *Request) error {
		got = r
		return nil
	}}}, nil)

	m.Route(context.Background(), msgUpdate(1, `/movie@cinebot The "Dark Knight"`, true))
	runJobs(m)
	require.NotNil(t, got)
	assert.Equal(t, "movie", got.Command)
	assert.Equal(t, `The "Dark Knight"`, got.Text)
	assert.Equal(t, []string{"The", "Dark Knight"}, got.Args)
	assert.True(t, got.IsGroup)

	got = nil
	m.Route(context.Background(), msgUpdate(1, "/m Heat", false))
	runJobs(m)
	require.NotNil(t, got)
	assert.Equal(t, "Heat", got.Text)
}

func TestRouteIgnoresOtherBots(t *testing.T) {
	fm := &fakeMessenger{}
	m := newTestManager(fm)
	called := false
	m.SetRegistry([]Command{{Name: "movie", Handle: func(context.Context, *Request) error {
		called = true
		return nil
	}}}, nil)

	m.Route(context.Background(), msgUpdate(1, "/movie@otherbot Heat", true))
	runJobs(m)
	assert.False(t, called)
	assert.Empty(t, fm.sent())
}

func TestUnknownCommandRepliesOnlyInPrivate(t *testing.T) {
	fm := &fakeMessenger{}
	m := newTestManager(fm)
	m.SetRegistry(nil, nil)

	m.Route(context.Background(), msgUpdate(1, "/nope", true))
	assert.Empty(t, fm.sent())
	m.Route(context.Background(), msgUpdate(1, "/nope", false))
	assert.Equal(t, []string{"Unknown command. Try /help"}, fm.sent())
}

func TestOwnerOnly(t *testing.T) {
	fm := &fakeMessenger{}
	m := newTestManager(fm)
	calls := 0
	m.SetRegistry([]Command{{Name: "status", Access: AccessOwnerOnly, Handle: func(_ context.Context, r *Request) error {
		calls++
		assert.True(t, r.IsOwner)
		return nil
	}}}, nil)

	m.Route(context.Background(), msgUpdate(1, "/status", false))
	m.Route(context.Background(), msgUpdate(7, "/status", false))
	runJobs(m)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"unauthorized"}, fm.sent())
}

func TestTextAndCallbackRouting(t *testing.T) {
	fm := &fakeMessenger{}
	m := newTestManager(fm)

	var text, payload string
	m.SetTextHandler(func(_ context.Context, r *Request) error {
		text = r.Text
		return nil
	})
	m.SetRegistry(nil, []CallbackRoute{{Scope: "movie", Action: "fact", Handle: func(_ context.Context, r *Request) error {
		payload = r.Payload
		return nil
	}}})

	m.Route(context.Background(), msgUpdate(1, "  Inception ", false))
	m.Route(context.Background(), kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "cb1", ChatID: 100, Data: "movie:fact:Mission: Impossible"}})
	runJobs(m)

	assert.Equal(t, "Inception", text)
	assert.Equal(t, "Mission: Impossible", payload)
	assert.Equal(t, []string{""}, fm.answers)
}

func TestPanicInHandlerIsRecovered(t *testing.T) {
	fm := &fakeMessenger{}
	m := newTestManager(fm)
	m.SetRegistry([]Command{{Name: "boom", Handle: func(context.Context, *Request) error { panic("x") }}}, nil)
	m.Route(context.Background(), msgUpdate(1, "/boom", false))
	assert.NotPanics(t, func() { runJobs(m) })
}

func TestDispatchLoopStops(t *testing.T) {
	fm := &fakeMessenger{}
	m := newTestManager(fm)
	done := make(chan struct{})
	m.SetTextHandler(func(context.Context, *Request) error {
		close(done)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan kit.Update, 1)
	errc := make(chan error, 1)
	go func() { errc <- m.DispatchLoop(ctx, updates) }()

	updates <- msgUpdate(1, "Heat", false)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}
	cancel()
	require.NoError(t, <-errc)
}

func TestTokenizeAndSanitize(t *testing.T) {
	assert.Equal(t, []string{"a", "b c", "d"}, tokenizeCommandLine(`a "b c" d`))
	assert.Equal(t, []string{""}, tokenizeCommandLine(`""`))
	assert.Equal(t, "fun_fact", sanitizeTelegramCommand("Fun-Fact"))
	assert.Equal(t, "cmd_2fast", sanitizeTelegramCommand("2fast"))
	assert.Equal(t, "", sanitizeTelegramCommand("!!!"))
}

func TestHelpTextHidesOwnerCommands(t *testing.T) {
	m := newTestManager(&fakeMessenger{})
	noop := func(context.Context, *Request) error { return nil }
	m.SetRegistry([]Command{
		{Name: "trending", Description: "top 5", Handle: noop},
		{Name: "status", Access: AccessOwnerOnly, Handle: noop},
		{Name: "secret", Hidden: true, Handle: noop},
	}, nil)

	assert.NotContains(t, m.HelpText(false), "/status")
	assert.Contains(t, m.HelpText(true), "/status")
	assert.Contains(t, m.HelpText(false), "/trending</code> - top 5")
	assert.NotContains(t, m.HelpText(true), "secret")
}
