package scheduler

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"time"

	"golang.org/x/exp/slog"
)

// notifier - список подписчиков одного источника
type notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]func()
}

func (n *notifier) Subscribe(fn func()) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]func())
	}
	id := n.next
	n.next++
	n.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

func (n *notifier) notify() {
	n.mu.Lock()
	fns := make([]func(), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ConnectivityMonitor опрашивает health endpoint сервера и сообщает
// подписчикам о переходе offline -> online.
type ConnectivityMonitor struct {
	notifier

	checker  HealthChecker
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger

	mu     sync.Mutex
	known  bool
	online bool
}

func NewConnectivityMonitor(checker HealthChecker, interval time.Duration, log *slog.Logger) *ConnectivityMonitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &ConnectivityMonitor{
		checker:  checker,
		interval: interval,
		timeout:  5 * time.Second,
		log:      log.With("component", "connectivity"),
	}
}

// Run опрашивает сервер до отмены контекста.
func (m *ConnectivityMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// IsOnline делает живую проверку и обновляет состояние.
func (m *ConnectivityMonitor) IsOnline(ctx context.Context) bool {
	return m.check(ctx)
}

func (m *ConnectivityMonitor) check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.checker.HealthCheck(ctx)
	online := err == nil

	m.mu.Lock()
	restored := m.known && !m.online && online
	if m.known && m.online && !online {
		m.log.Warn("server unreachable", "error", err)
	}
	m.known = true
	m.online = online
	m.mu.Unlock()

	if restored {
		m.log.Info("connection restored")
		m.notify()
	}
	return online
}

// SignalSource превращает сигналы процесса в уведомления (SIGUSR1 - "фокус").
type SignalSource struct {
	notifier

	signals []os.Signal
	log     *slog.Logger
}

func NewSignalSource(log *slog.Logger, signals ...os.Signal) *SignalSource {
	return &SignalSource{
		signals: signals,
		log:     log.With("component", "signal-source"),
	}
}

func (s *SignalSource) Run(ctx context.Context) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, s.signals...)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-ch:
			s.log.Debug("signal received", "signal", sig.String())
			s.notify()
		}
	}
}

// Trigger уведомляет подписчиков без сигнала.
func (s *SignalSource) Trigger() {
	s.notify()
}
