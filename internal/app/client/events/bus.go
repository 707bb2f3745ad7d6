package events

import (
	"fmt"
	"sync"

	"golang.org/x/exp/slog"
)

type Handler func(Event)

// Bus - синхронная шина: Publish вызывает подписчиков в порядке подписки.
type Bus struct {
	mu       sync.RWMutex
	handlers map[uint64]Handler
	order    []uint64
	next     uint64
	log      *slog.Logger
}

func NewBus(log *slog.Logger) *Bus {
	return &Bus{
		handlers: make(map[uint64]Handler),
		log:      log.With("component", "events"),
	}
}

// Subscribe регистрирует обработчик и возвращает функцию отписки.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.handlers[id] = h
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish доставляет событие всем подписчикам. Паника подписчика не мешает остальным.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	hs := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		hs = append(hs, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range hs {
		b.deliver(h, e)
	}
}

func (b *Bus) deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panic", "event", e.Name(), "panic", fmt.Sprint(r))
		}
	}()
	h(e)
}

// Len - число подписчиков
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
