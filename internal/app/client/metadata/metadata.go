// Package metadata хранит метки последней синхронизации коллекций.
// Уровни хранения опрашиваются по порядку, запись идет во все уровни,
// ошибки никогда не выходят наружу.
package metadata

import (
	"context"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"possync/internal/app/client/kv"
	"possync/internal/domain/record"
)

// Tier - один уровень хранения меток
type Tier interface {
	Name() string
	LastSync(ctx context.Context, collection record.Collection) (string, bool, error)
	SetLastSync(ctx context.Context, collection record.Collection, value string) error
}

// Store - хранилище меток с упорядоченным списком уровней
type Store struct {
	tiers       []Tier
	collections []record.Collection
	now         func() time.Time
	log         *slog.Logger

	// сериализует read-compare-write в SetLastSync
	mu sync.Mutex
}

type Option func(*Store)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithCollections задает набор коллекций для ResetAll.
func WithCollections(cs []record.Collection) Option {
	return func(s *Store) { s.collections = cs }
}

func New(log *slog.Logger, tiers []Tier, opts ...Option) *Store {
	s := &Store{
		tiers:       tiers,
		collections: record.Collections(),
		now:         time.Now,
		log:         log.With("component", "metadata"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetLastSync возвращает метку из первого уровня, где она есть.
func (s *Store) GetLastSync(ctx context.Context, collection record.Collection) (time.Time, bool) {
	for _, tier := range s.tiers {
		raw, ok, err := tier.LastSync(ctx, collection)
		if err != nil {
			s.log.Debug("tier read failed", "tier", tier.Name(), "collection", collection, "error", err)
			continue
		}
		if !ok || raw == "" {
			continue
		}
		ts, err := record.ParseTime(raw)
		if err != nil {
			s.log.Debug("bad timestamp in tier", "tier", tier.Name(), "collection", collection, "value", raw)
			continue
		}
		return ts, true
	}
	return time.Time{}, false
}

// SetLastSync записывает метку во все уровни. Нулевое значение означает "сейчас".
// Метка старше уже сохраненной игнорируется.
func (s *Store) SetLastSync(ctx context.Context, collection record.Collection, ts time.Time) {
	if ts.IsZero() {
		ts = s.now()
	}
	ts = ts.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.GetLastSync(ctx, collection); ok && cur.After(ts) {
		s.log.Debug("ignoring older lastSync", "collection", collection, "current", cur, "new", ts)
		return
	}
	s.writeAll(ctx, collection, record.FormatTime(ts))
}

// ResetAll возвращает все коллекции к epoch, следующий проход будет полным.
func (s *Store) ResetAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value := record.FormatTime(record.Epoch)
	for _, c := range s.collections {
		s.writeAll(ctx, c, value)
	}
	s.log.Info("sync timestamps reset", "collections", len(s.collections))
}

func (s *Store) writeAll(ctx context.Context, collection record.Collection, value string) {
	for _, tier := range s.tiers {
		if err := tier.SetLastSync(ctx, collection, value); err != nil {
			s.log.Warn("tier write failed", "tier", tier.Name(), "collection", collection, "error", err)
		}
	}
}

// NeedsFullSync - метки нет или она равна epoch.
func NeedsFullSync(ts time.Time, ok bool) bool {
	return !ok || ts.IsZero() || !ts.After(record.Epoch)
}

// KVTier хранит метки в kv.Store под ключами sync_<collection>.
type KVTier struct {
	name  string
	store kv.Store
}

func NewKVTier(name string, store kv.Store) *KVTier {
	return &KVTier{name: name, store: store}
}

func Key(collection record.Collection) string {
	return "sync_" + string(collection)
}

func (t *KVTier) Name() string { return t.name }

func (t *KVTier) LastSync(ctx context.Context, collection record.Collection) (string, bool, error) {
	return t.store.Get(ctx, Key(collection))
}

func (t *KVTier) SetLastSync(ctx context.Context, collection record.Collection, value string) error {
	return t.store.Set(ctx, Key(collection), value)
}
