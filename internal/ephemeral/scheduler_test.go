package ephemeral

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	kit "cinebot/internal/transport"
	logx "cinebot/pkg/logx"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeDeleter behaves like Telegram: the second delete of a message fails.
type fakeDeleter struct {
	mu    sync.Mutex
	gone  map[kit.MessageRef]bool
	calls []kit.MessageRef
	errs  []error
	fail  error
	done  chan struct{}
}

func newFakeDeleter() *fakeDeleter {
	return &fakeDeleter{gone: map[kit.MessageRef]bool{}, done: make(chan struct{}, 16)}
}

func (f *fakeDeleter) Delete(_ context.Context, ref kit.MessageRef) error {
	f.mu.Lock()
	defer func() {
		f.mu.Unlock()
		f.done <- struct{}{}
	}()
	f.calls = append(f.calls, ref)
	var err error
	switch {
	case f.fail != nil:
		err = f.fail
	case f.gone[ref]:
		err = kit.ErrMessageGone
	default:
		f.gone[ref] = true
	}
	f.errs = append(f.errs, err)
	return err
}

func (f *fakeDeleter) wait(t *testing.T) {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(2 * time.Second):
		t.Fatal("delete not called")
	}
}

func (f *fakeDeleter) snapshot() ([]kit.MessageRef, []error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]kit.MessageRef(nil), f.calls...), append([]error(nil), f.errs...)
}

var ref1 = kit.MessageRef{ChatID: 1, MessageID: 10}

func TestRegisterFiresOnce(t *testing.T) {
	d := newFakeDeleter()
	s := New(d, logx.Nop())
	s.Register(ref1, 10*time.Millisecond)
	assert.Equal(t, 1, s.Pending())

	d.wait(t)
	time.Sleep(30 * time.Millisecond)
	calls, errs := d.snapshot()
	assert.Equal(t, []kit.MessageRef{ref1}, calls)
	assert.Equal(t, []error{nil}, errs)
	assert.Zero(t, s.Pending())
	require.NoError(t, s.Stop(context.Background()))
}

func TestManualDeleteThenFireIsHarmless(t *testing.T) {
	d := newFakeDeleter()
	s := New(d, logx.Nop())
	s.Register(ref1, 20*time.Millisecond)

	require.NoError(t, d.Delete(context.Background(), ref1))
	d.wait(t)
	d.wait(t)

	_, errs := d.snapshot()
	require.Len(t, errs, 2)
	assert.ErrorIs(t, errs[1], kit.ErrMessageGone)
	require.NoError(t, s.Stop(context.Background()))
}

func TestSupersedeCancelsTimer(t *testing.T) {
	d := newFakeDeleter()
	s := New(d, logx.Nop())
	s.Register(ref1, 20*time.Millisecond)
	s.Supersede(context.Background(), ref1)
	d.wait(t)
	assert.Zero(t, s.Pending())

	time.Sleep(60 * time.Millisecond)
	calls, _ := d.snapshot()
	assert.Len(t, calls, 1)
	require.NoError(t, s.Stop(context.Background()))
}

func TestReRegisterKeepsNewestTimer(t *testing.T) {
	d := newFakeDeleter()
	s := New(d, logx.Nop())
	s.Register(ref1, 10*time.Millisecond)
	s.Register(ref1, 40*time.Millisecond)
	assert.Equal(t, 1, s.Pending())

	time.Sleep(25 * time.Millisecond)
	calls, _ := d.snapshot()
	assert.Empty(t, calls)

	d.wait(t)
	calls, _ = d.snapshot()
	assert.Len(t, calls, 1)
	require.NoError(t, s.Stop(context.Background()))
}

func TestDeleteErrorsAreSwallowed(t *testing.T) {
	d := newFakeDeleter()
	d.fail = errors.New("forbidden")
	s := New(d, logx.Nop())
	s.Register(ref1, time.Millisecond)
	d.wait(t)
	require.NoError(t, s.Stop(context.Background()))
}

func TestStopDropsPending(t *testing.T) {
	d := newFakeDeleter()
	s := New(d, logx.Nop())
	s.Register(ref1, time.Hour)
	s.Register(kit.MessageRef{ChatID: 2, MessageID: 1}, time.Hour)
	require.NoError(t, s.Stop(context.Background()))
	assert.Zero(t, s.Pending())

	s.Register(ref1, time.Millisecond)
	assert.Zero(t, s.Pending())

	s.Register(kit.MessageRef{}, time.Millisecond)
	calls, _ := d.snapshot()
	assert.Empty(t, calls)
}
