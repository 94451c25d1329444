// Package ephemeral deletes sent messages after a delay. Deletion failures
// (already gone, too old, missing rights) are logged and swallowed.
package ephemeral

import (
	"context"
	"errors"
	"sync"
	"time"

	"cinebot/internal/observability/metrics"
	kit "cinebot/internal/transport"
	logx "cinebot/pkg/logx"
)

// Deleter is the part of the messenger the scheduler needs.
type Deleter interface {
	Delete(ctx context.Context, ref kit.MessageRef) error
}

type pending struct {
	version uint64
	fireAt  time.Time
	timer   *time.Timer
}

type Scheduler struct {
	d             Deleter
	log           logx.Logger
	deleteTimeout time.Duration

	mu       sync.Mutex
	pending  map[kit.MessageRef]*pending
	seq      uint64
	stopped  bool
	inflight sync.WaitGroup
}

func New(d Deleter, log logx.Logger) *Scheduler {
	return &Scheduler{
		d:             d,
		log:           log.With(logx.String("comp", "ephemeral")),
		deleteTimeout: 10 * time.Second,
		pending:       map[kit.MessageRef]*pending{},
	}
}

// Register deletes ref once after delay. Registering the same ref again
// replaces the earlier timer. A zero ref or non-positive delay is ignored.
func (s *Scheduler) Register(ref kit.MessageRef, delay time.Duration) {
	if ref.IsZero() || delay <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if old := s.pending[ref]; old != nil {
		old.timer.Stop()
	}
	s.seq++
	v := s.seq
	s.pending[ref] = &pending{
		version: v,
		fireAt:  time.Now().Add(delay),
		timer:   time.AfterFunc(delay, func() { s.fire(ref, v) }),
	}
	metrics.SetEphemeralPending(len(s.pending))
}

func (s *Scheduler) fire(ref kit.MessageRef, version uint64) {
	s.mu.Lock()
	p := s.pending[ref]
	if s.stopped || p == nil || p.version != version {
		s.mu.Unlock()
		return
	}
	delete(s.pending, ref)
	metrics.SetEphemeralPending(len(s.pending))
	s.inflight.Add(1)
	s.mu.Unlock()

	defer s.inflight.Done()
	ctx, cancel := context.WithTimeout(context.Background(), s.deleteTimeout)
	defer cancel()
	s.delete(ctx, ref, "ok")
}

// Supersede deletes ref now and cancels its pending timer, if any.
func (s *Scheduler) Supersede(ctx context.Context, ref kit.MessageRef) {
	if ref.IsZero() {
		return
	}
	s.mu.Lock()
	if p := s.pending[ref]; p != nil {
		p.timer.Stop()
		delete(s.pending, ref)
		metrics.SetEphemeralPending(len(s.pending))
	}
	s.mu.Unlock()
	s.delete(ctx, ref, "superseded")
}

func (s *Scheduler) delete(ctx context.Context, ref kit.MessageRef, okResult string) {
	err := s.d.Delete(ctx, ref)
	switch {
	case err == nil:
		metrics.EphemeralDelete(okResult)
	case errors.Is(err, kit.ErrMessageGone):
		metrics.EphemeralDelete("gone")
		s.log.Debug("message already gone", logx.Int64("chat_id", ref.ChatID), logx.Int("message_id", ref.MessageID))
	default:
		metrics.EphemeralDelete("error")
		s.log.Warn("delete failed", logx.Int64("chat_id", ref.ChatID), logx.Int("message_id", ref.MessageID), logx.Err(err))
	}
}

// Pending reports how many deletions are scheduled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop cancels every pending timer and waits for in-flight deletes until
// ctx ends. Cancelled deletions are dropped.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	dropped := len(s.pending)
	for ref, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, ref)
	}
	metrics.SetEphemeralPending(0)
	s.mu.Unlock()

	if dropped > 0 {
		s.log.Info("pending deletions dropped on stop", logx.Int("count", dropped))
	}
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
