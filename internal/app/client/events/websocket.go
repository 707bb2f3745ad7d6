package events

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/exp/slog"
)

const writeTimeout = 5 * time.Second

// Broadcaster транслирует события шины всем подключенным websocket клиентам.
type Broadcaster struct {
	clients   map[*websocket.Conn]struct{}
	clientsMu sync.RWMutex

	queue chan Envelope
	now   func() time.Time
	log   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBroadcaster(log *slog.Logger) *Broadcaster {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Broadcaster{
		clients: make(map[*websocket.Conn]struct{}),
		queue:   make(chan Envelope, 100),
		now:     time.Now,
		log:     log.With("component", "ws"),
		ctx:     ctx,
		cancel:  cancel,
	}

	b.wg.Add(1)
	go b.loop()
	return b
}

// Handle - подписчик шины, ставит событие в очередь отправки.
func (b *Broadcaster) Handle(e Event) {
	select {
	case b.queue <- Wrap(e, b.now()):
	case <-b.ctx.Done():
	default:
		b.log.Warn("broadcast queue full, dropping event", "event", e.Name())
	}
}

// ServeHTTP принимает websocket подключение.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		b.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	b.clientsMu.Lock()
	b.clients[conn] = struct{}{}
	count := len(b.clients)
	b.clientsMu.Unlock()
	b.log.Debug("client connected", "total", count)

	go b.readLoop(conn)
}

// ClientCount - число подключенных клиентов
func (b *Broadcaster) ClientCount() int {
	b.clientsMu.RLock()
	defer b.clientsMu.RUnlock()
	return len(b.clients)
}

// Close отключает всех клиентов и останавливает рассылку.
func (b *Broadcaster) Close() {
	b.cancel()

	b.clientsMu.Lock()
	for conn := range b.clients {
		_ = conn.Close(websocket.StatusGoingAway, "shutting down")
		delete(b.clients, conn)
	}
	b.clientsMu.Unlock()

	b.wg.Wait()
}

func (b *Broadcaster) loop() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			return
		case env := <-b.queue:
			data, err := json.Marshal(env)
			if err != nil {
				b.log.Error("failed to marshal event", "event", env.Event, "error", err)
				continue
			}

			b.clientsMu.RLock()
			conns := make([]*websocket.Conn, 0, len(b.clients))
			for c := range b.clients {
				conns = append(conns, c)
			}
			b.clientsMu.RUnlock()

			for _, c := range conns {
				ctx, cancel := context.WithTimeout(b.ctx, writeTimeout)
				err := c.Write(ctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					b.log.Debug("failed to send event", "error", err)
					b.remove(c)
				}
			}
		}
	}
}

// readLoop нужен только чтобы заметить отключение клиента.
func (b *Broadcaster) readLoop(conn *websocket.Conn) {
	defer b.remove(conn)
	for {
		if _, _, err := conn.Read(b.ctx); err != nil {
			return
		}
	}
}

func (b *Broadcaster) remove(conn *websocket.Conn) {
	b.clientsMu.Lock()
	_, ok := b.clients[conn]
	delete(b.clients, conn)
	b.clientsMu.Unlock()

	if ok {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
}
