package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

type fakeRunner struct {
	mu       sync.Mutex
	triggers []Trigger
	last     time.Time
}

func (r *fakeRunner) Run(_ context.Context, t Trigger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers = append(r.triggers, t)
}

func (r *fakeRunner) LastCompleted() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *fakeRunner) count(t Trigger) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.triggers {
		if got == t {
			n++
		}
	}
	return n
}

type staticOnline struct{ online atomic.Bool }

func (o *staticOnline) IsOnline(context.Context) bool { return o.online.Load() }

func online(v bool) *staticOnline {
	o := &staticOnline{}
	o.online.Store(v)
	return o
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_StartTriggersImmediatelyAndOnInterval(t *testing.T) {
	r := &fakeRunner{}
	s := New(r, online(true), Config{}, discard())

	require.NoError(t, s.Start(context.Background(), 20*time.Millisecond))
	defer s.Stop()

	assert.Eventually(t, func() bool { return r.count(TriggerStartup) == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return r.count(TriggerInterval) >= 2 }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, s.Start(context.Background(), time.Second), ErrAlreadyStarted)
}

func TestScheduler_OfflineSkipsTriggers(t *testing.T) {
	r := &fakeRunner{}
	s := New(r, online(false), Config{}, discard())

	require.NoError(t, s.Start(context.Background(), 10*time.Millisecond))
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Empty(t, r.triggers)
}

func TestScheduler_ReconnectIsDelayed(t *testing.T) {
	r := &fakeRunner{}
	conn := &SignalSource{log: discard()}
	s := New(r, online(true), Config{ReconnectDelay: 30 * time.Millisecond}, discard(), WithConnectivity(conn))

	require.NoError(t, s.Start(context.Background(), time.Hour))
	defer s.Stop()

	conn.Trigger()
	assert.Zero(t, r.count(TriggerReconnect))
	assert.Eventually(t, func() bool { return r.count(TriggerReconnect) == 1 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_FocusDebounce(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &fakeRunner{last: now.Add(-10 * time.Second)}
	focus := &SignalSource{log: discard()}
	s := New(r, online(true), Config{}, discard(),
		WithFocus(focus),
		WithClock(func() time.Time { return now }),
	)

	require.NoError(t, s.Start(context.Background(), time.Hour))
	defer s.Stop()

	focus.Trigger()
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, r.count(TriggerFocus))

	r.mu.Lock()
	r.last = now.Add(-31 * time.Second)
	r.mu.Unlock()

	focus.Trigger()
	assert.Eventually(t, func() bool { return r.count(TriggerFocus) == 1 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_StopCancelsPendingWork(t *testing.T) {
	r := &fakeRunner{}
	conn := &SignalSource{log: discard()}
	focus := &SignalSource{log: discard()}
	s := New(r, online(true), Config{ReconnectDelay: 50 * time.Millisecond}, discard(),
		WithConnectivity(conn),
		WithFocus(focus),
	)

	// Stop без Start безопасен
	s.Stop()

	require.NoError(t, s.Start(context.Background(), time.Hour))
	assert.Eventually(t, func() bool { return r.count(TriggerStartup) == 1 }, time.Second, 5*time.Millisecond)

	conn.Trigger()
	s.Stop()
	s.Stop()

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, r.count(TriggerReconnect))

	focus.Trigger()
	conn.Trigger()
	assert.Zero(t, r.count(TriggerFocus))
	assert.Empty(t, conn.subs)
	assert.Empty(t, focus.subs)
}

type fakeHealth struct {
	mu  sync.Mutex
	err error
}

func (h *fakeHealth) HealthCheck(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *fakeHealth) set(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
}

func TestConnectivityMonitor_NotifiesOnRestore(t *testing.T) {
	h := &fakeHealth{err: errors.New("dial tcp: connection refused")}
	m := NewConnectivityMonitor(h, time.Hour, discard())

	var restored atomic.Int32
	unsub := m.Subscribe(func() { restored.Add(1) })

	ctx := context.Background()
	assert.False(t, m.IsOnline(ctx))

	h.set(nil)
	assert.True(t, m.IsOnline(ctx))
	assert.True(t, m.IsOnline(ctx))
	assert.Equal(t, int32(1), restored.Load())

	h.set(errors.New("timeout"))
	assert.False(t, m.IsOnline(ctx))
	unsub()
	h.set(nil)
	assert.True(t, m.IsOnline(ctx))
	assert.Equal(t, int32(1), restored.Load())
}

func TestConnectivityMonitor_FirstCheckIsNotARestore(t *testing.T) {
	m := NewConnectivityMonitor(&fakeHealth{}, time.Hour, discard())

	var restored atomic.Int32
	m.Subscribe(func() { restored.Add(1) })

	assert.True(t, m.IsOnline(context.Background()))
	assert.Zero(t, restored.Load())
}
