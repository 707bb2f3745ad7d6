// Package scheduler запускает синхронизацию по таймеру, по восстановлению
// связи и по возврату фокуса.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/exp/slog"
)

var ErrAlreadyStarted = errors.New("scheduler already started")

// Trigger - причина запуска синхронизации
type Trigger string

const (
	TriggerStartup   Trigger = "startup"
	TriggerInterval  Trigger = "interval"
	TriggerReconnect Trigger = "reconnect"
	TriggerFocus     Trigger = "focus"
)

const (
	DefaultInterval       = 60 * time.Second
	DefaultFocusDebounce  = 30 * time.Second
	DefaultReconnectDelay = 2 * time.Second
)

// Runner выполняет один проход синхронизации
type Runner interface {
	Run(ctx context.Context, trigger Trigger)
	LastCompleted() time.Time
}

type OnlineChecker interface {
	IsOnline(ctx context.Context) bool
}

// Source - источник уведомлений (связь восстановлена, фокус вернулся)
type Source interface {
	Subscribe(fn func()) (unsubscribe func())
}

type Config struct {
	Interval       time.Duration
	FocusDebounce  time.Duration
	ReconnectDelay time.Duration
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithConnectivity подписывает планировщик на восстановление связи.
func WithConnectivity(src Source) Option {
	return func(s *Scheduler) { s.connectivity = src }
}

// WithFocus подписывает планировщик на возврат фокуса.
func WithFocus(src Source) Option {
	return func(s *Scheduler) { s.focus = src }
}

type Scheduler struct {
	runner       Runner
	online       OnlineChecker
	connectivity Source
	focus        Source
	cfg          Config
	now          func() time.Time
	log          *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	unsubs  []func()
	timers  map[*time.Timer]struct{}
	wg      sync.WaitGroup
}

func New(runner Runner, online OnlineChecker, cfg Config, log *slog.Logger, opts ...Option) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.FocusDebounce <= 0 {
		cfg.FocusDebounce = DefaultFocusDebounce
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	s := &Scheduler{
		runner: runner,
		online: online,
		cfg:    cfg,
		now:    time.Now,
		log:    log.With("component", "scheduler"),
		timers: make(map[*time.Timer]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start сразу запускает синхронизацию, затем повторяет ее с интервалом.
// interval <= 0 берется из конфигурации.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = s.cfg.Interval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.started = true

	if s.connectivity != nil {
		s.unsubs = append(s.unsubs, s.connectivity.Subscribe(func() { s.onReconnect(ctx) }))
	}
	if s.focus != nil {
		s.unsubs = append(s.unsubs, s.focus.Subscribe(func() { s.onFocus(ctx) }))
	}

	s.wg.Add(1)
	go s.loop(ctx, interval)

	s.log.Info("scheduler started", "interval", interval)
	return nil
}

// Stop останавливает таймеры и подписки. Повторный вызов ничего не делает.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.cancel()
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
	for t := range s.timers {
		if t.Stop() {
			s.wg.Done()
		}
		delete(s.timers, t)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()

	s.trigger(ctx, TriggerStartup)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.trigger(ctx, TriggerInterval)
		}
	}
}

// onReconnect откладывает запуск, чтобы сеть успела стабилизироваться.
func (s *Scheduler) onReconnect(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}

	s.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(s.cfg.ReconnectDelay, func() {
		defer s.wg.Done()
		s.mu.Lock()
		delete(s.timers, t)
		s.mu.Unlock()
		s.trigger(ctx, TriggerReconnect)
	})
	s.timers[t] = struct{}{}
}

func (s *Scheduler) onFocus(ctx context.Context) {
	if last := s.runner.LastCompleted(); !last.IsZero() && s.now().Sub(last) < s.cfg.FocusDebounce {
		s.log.Debug("focus sync skipped", "since_last", s.now().Sub(last))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.trigger(ctx, TriggerFocus)
	}()
}

func (s *Scheduler) trigger(ctx context.Context, t Trigger) {
	if ctx.Err() != nil {
		return
	}
	if !s.online.IsOnline(ctx) {
		s.log.Debug("offline, sync skipped", "trigger", t)
		return
	}
	s.runner.Run(ctx, t)
}
