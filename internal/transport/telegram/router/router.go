// Package router turns transport updates into handler calls on a bounded
// worker pool: slash commands, inline-button callbacks, plain text and joins.
package router

import (
	"context"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"cinebot/internal/observability/metrics"
	rtsup "cinebot/internal/runtime/supervisor"
	kit "cinebot/internal/transport"
	logx "cinebot/pkg/logx"
	"cinebot/pkg/tgui"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Access      Access
	// Hidden commands work but stay out of /help and the Telegram menu.
	Hidden  bool
	Timeout time.Duration
	Handle  HandlerFunc
}

// CallbackRoute matches callback data "scope:action[:payload]".
type CallbackRoute struct {
	Scope   string
	Action  string
	Access  Access
	Timeout time.Duration
	Handle  HandlerFunc
}

type Request struct {
	Update    kit.Update
	Chat      kit.ChatTarget
	FromID    int64
	MessageID int
	IsGroup   bool
	Command   string
	Args      []string
	// Text is the message text, or the argument tail for commands.
	Text    string
	Payload string
	ReqID   string
	Logger  logx.Logger
	IsOwner bool
}

type Options struct {
	Workers        int
	QueueSize      int
	DefaultTimeout time.Duration
	Owners         []int64
	// BotUsername lets "/cmd@this_bot" match while "/cmd@other_bot" is ignored.
	BotUsername string
}

type Manager struct {
	mu        sync.RWMutex
	cmds      map[string]*Command
	ordered   []Command
	callbacks map[string]CallbackRoute
	text      HandlerFunc
	join      HandlerFunc
	owners    []int64

	log     logx.Logger
	msgr    kit.Messenger
	opt     Options
	sups    *SupervisorRegistry
	jobs    chan func()
	runMu   sync.Mutex
	running bool
}

func New(log logx.Logger, msgr kit.Messenger, opt Options, sups *SupervisorRegistry) *Manager {
	if opt.Workers <= 0 {
		opt.Workers = 4
	}
	if opt.QueueSize <= 0 {
		opt.QueueSize = 256
	}
	return &Manager{
		cmds:      map[string]*Command{},
		callbacks: map[string]CallbackRoute{},
		owners:    append([]int64(nil), opt.Owners...),
		log:       log.With(logx.String("comp", "telegram.router")),
		msgr:      msgr,
		opt:       opt,
		sups:      sups,
		jobs:      make(chan func(), opt.QueueSize),
	}
}

// SetOwners is safe to call during hot-reload.
func (m *Manager) SetOwners(owners []int64) {
	cp := append([]int64(nil), owners...)
	m.mu.Lock()
	m.owners = cp
	m.mu.Unlock()
}

func (m *Manager) SetBotUsername(name string) {
	m.mu.Lock()
	m.opt.BotUsername = strings.TrimPrefix(strings.TrimSpace(name), "@")
	m.mu.Unlock()
}

// SetRegistry replaces all routes atomically.
func (m *Manager) SetRegistry(cmds []Command, cbs []CallbackRoute) {
	ordered := make([]Command, 0, len(cmds))
	for _, c := range cmds {
		name := sanitizeTelegramCommand(c.Name)
		if name == "" || c.Handle == nil {
			continue
		}
		c.Name = name
		ordered = append(ordered, c)
	}
	byName := make(map[string]*Command, len(ordered))
	for i := range ordered {
		byName[ordered[i].Name] = &ordered[i]
	}
	// aliases never shadow a real command
	for i := range ordered {
		for _, a := range ordered[i].Aliases {
			if sa := sanitizeTelegramCommand(a); sa != "" {
				if _, exists := byName[sa]; !exists {
					byName[sa] = &ordered[i]
				}
			}
		}
	}

	cb := map[string]CallbackRoute{}
	for _, r := range cbs {
		s, a := strings.TrimSpace(r.Scope), strings.TrimSpace(r.Action)
		if s == "" || a == "" || r.Handle == nil {
			continue
		}
		cb[s+":"+a] = r
	}

	m.mu.Lock()
	m.cmds = byName
	m.ordered = ordered
	m.callbacks = cb
	m.mu.Unlock()
}

func (m *Manager) SetTextHandler(h HandlerFunc) {
	m.mu.Lock()
	m.text = h
	m.mu.Unlock()
}

func (m *Manager) SetJoinHandler(h HandlerFunc) {
	m.mu.Lock()
	m.join = h
	m.mu.Unlock()
}

// Commands returns the visible commands in registration order.
func (m *Manager) Commands() []Command {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Command, 0, len(m.ordered))
	for _, c := range m.ordered {
		if !c.Hidden {
			out = append(out, c)
		}
	}
	return out
}

// SyncMenu pushes visible commands to the Telegram menu when the messenger supports it.
func (m *Manager) SyncMenu(ctx context.Context) error {
	up, ok := m.msgr.(kit.CommandMenuUpdater)
	if !ok {
		return nil
	}
	var menu []kit.BotCommand
	for _, c := range m.Commands() {
		if c.Access == AccessEveryone {
			menu = append(menu, kit.BotCommand{Command: c.Name, Description: c.Description})
		}
	}
	return up.UpdateMenuCommands(ctx, menu)
}

func (m *Manager) isOwner(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.owners {
		if o == id {
			return true
		}
	}
	return false
}

// tryEnqueue never blocks and survives a closed queue.
func (m *Manager) tryEnqueue(fn func()) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case m.jobs <- fn:
		return true
	default:
		return false
	}
}

// DispatchLoop routes updates until ctx is done or updates is closed.
func (m *Manager) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.New(ctx, rtsup.WithLogger(m.log), rtsup.WithCancelOnError(false))
	m.sups.Set("telegram.router", sup)
	m.runMu.Lock()
	m.running = true
	m.runMu.Unlock()
	m.log.Info("command dispatcher started", logx.Int("workers", m.opt.Workers), logx.Int("job_queue_cap", cap(m.jobs)))

	for i := 0; i < m.opt.Workers; i++ {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-m.jobs:
					if !ok {
						return nil
					}
					m.runJob(idx, job)
				}
			}
		}, rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
	}

	defer func() {
		m.runMu.Lock()
		m.running = false
		m.runMu.Unlock()
		sup.Cancel()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		m.sups.Delete("telegram.router")
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			m.Route(ctx, up)
		}
	}
}

func (m *Manager) runJob(worker int, job func()) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic in command job", logx.Int("worker", worker), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	job()
}

// Route dispatches one update onto the worker pool.
func (m *Manager) Route(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		m.routeMessage(ctx, up)
	case kit.UpdateCallback:
		m.routeCallback(ctx, up)
	case kit.UpdateJoin:
		m.routeJoin(ctx, up)
	}
}

func (m *Manager) newRequest(up kit.Update, chat kit.ChatTarget, from int64, command string) *Request {
	rid := newReqID()
	return &Request{
		Update:  up,
		Chat:    chat,
		FromID:  from,
		Command: command,
		ReqID:   rid,
		IsOwner: m.isOwner(from),
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", chat.ChatID),
			logx.Int64("from_id", from),
			logx.String("cmd", command),
		),
	}
}

func (m *Manager) enqueue(ctx context.Context, req *Request, h HandlerFunc, timeout time.Duration, after func()) bool {
	if timeout <= 0 {
		timeout = m.opt.DefaultTimeout
	}
	final := Chain(h, MWPanicRecover(m.log), MWRequestLog(m.log), MWTimeout(timeout))
	return m.tryEnqueue(func() {
		_ = final(ctx, req)
		if after != nil {
			after()
		}
	})
}

func (m *Manager) routeMessage(ctx context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	if !strings.HasPrefix(text, "/") {
		m.mu.RLock()
		h := m.text
		m.mu.RUnlock()
		if h == nil {
			return
		}
		metrics.Update(string(up.Kind), "text")
		req := m.newRequest(up, chat, msg.FromID, "text")
		req.MessageID, req.IsGroup, req.Text = msg.ID, msg.IsGroup, text
		if !m.enqueue(ctx, req, h, 0, nil) {
			m.log.Warn("job queue full; text dropped", logx.Int64("chat_id", msg.ChatID))
		}
		return
	}

	word, tail := splitCommand(text)
	name, target, _ := strings.Cut(word, "@")
	m.mu.RLock()
	botName := m.opt.BotUsername
	cmd := m.cmds[strings.ToLower(name)]
	m.mu.RUnlock()
	if target != "" && botName != "" && !strings.EqualFold(target, botName) {
		return
	}
	if cmd == nil {
		metrics.Update(string(up.Kind), "unknown")
		if !msg.IsGroup {
			_, _ = m.msgr.SendText(ctx, chat, "Unknown command. Try /help", nil)
		}
		return
	}
	metrics.Update(string(up.Kind), cmd.Name)

	req := m.newRequest(up, chat, msg.FromID, cmd.Name)
	if cmd.Access == AccessOwnerOnly && !req.IsOwner {
		_, _ = m.msgr.SendText(ctx, chat, "unauthorized", nil)
		return
	}
	req.MessageID, req.IsGroup = msg.ID, msg.IsGroup
	req.Text = tail
	req.Args = tokenizeCommandLine(tail)
	if !m.enqueue(ctx, req, cmd.Handle, cmd.Timeout, nil) {
		_, _ = m.msgr.SendText(ctx, chat, "busy, try again", nil)
	}
}

func (m *Manager) routeCallback(ctx context.Context, up kit.Update) {
	cb := up.Callback
	if cb == nil {
		return
	}
	scope, action, payload, ok := tgui.ParseData(cb.Data)
	if !ok {
		_ = m.msgr.AnswerCallback(ctx, cb.ID, "")
		return
	}
	key := scope + ":" + action
	m.mu.RLock()
	route, found := m.callbacks[key]
	m.mu.RUnlock()
	if !found {
		_ = m.msgr.AnswerCallback(ctx, cb.ID, "")
		return
	}
	metrics.Update(string(up.Kind), key)

	req := m.newRequest(up, kit.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID}, cb.FromID, "cb:"+key)
	if route.Access == AccessOwnerOnly && !req.IsOwner {
		_ = m.msgr.AnswerCallback(ctx, cb.ID, "forbidden")
		return
	}
	req.MessageID = cb.MessageID
	req.Payload = payload
	// answer after the handler so the button spinner stops
	if !m.enqueue(ctx, req, route.Handle, route.Timeout, func() { _ = m.msgr.AnswerCallback(ctx, cb.ID, "") }) {
		_ = m.msgr.AnswerCallback(ctx, cb.ID, "busy")
	}
}

func (m *Manager) routeJoin(ctx context.Context, up kit.Update) {
	j := up.Join
	m.mu.RLock()
	h := m.join
	m.mu.RUnlock()
	if j == nil || h == nil {
		return
	}
	metrics.Update(string(up.Kind), "join")
	req := m.newRequest(up, kit.ChatTarget{ChatID: j.ChatID, ThreadID: j.ThreadID}, j.UserID, "join")
	req.IsGroup = true
	req.Text = j.Name
	_ = m.enqueue(ctx, req, h, 0, nil)
}
