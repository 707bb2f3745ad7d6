package client

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"possync/internal/app/client/dedupe"
	"possync/internal/app/client/events"
	"possync/internal/app/client/metadata"
	"possync/internal/domain/record"
)

// MetadataStore - метки последней синхронизации
type MetadataStore interface {
	GetLastSync(ctx context.Context, collection record.Collection) (time.Time, bool)
	SetLastSync(ctx context.Context, collection record.Collection, ts time.Time)
	ResetAll(ctx context.Context)
}

type Publisher interface {
	Publish(e events.Event)
}

// SyncOptions - параметры одного прохода по коллекции
type SyncOptions struct {
	// Full - запросить коллекцию целиком, без since
	Full bool
	// Force - не брать ответ из кеша
	Force bool
}

// CollectionResult - итог прохода по одной коллекции
type CollectionResult struct {
	Success      bool              `json:"success"`
	Collection   record.Collection `json:"collection"`
	UpdatedCount int               `json:"updatedCount"`
	DeletedCount int               `json:"deletedCount"`
	Skipped      int               `json:"skipped"`
	Error        string            `json:"error,omitempty"`
}

// CollectionSyncer сверяет одну коллекцию с delta API за один вызов.
type CollectionSyncer struct {
	source DeltaSource
	store  Storage
	meta   MetadataStore
	group  *dedupe.Group[*Delta]
	bus    Publisher
	now    func() time.Time
	log    *slog.Logger
}

func NewCollectionSyncer(source DeltaSource, store Storage, meta MetadataStore, group *dedupe.Group[*Delta], bus Publisher, now func() time.Time, log *slog.Logger) *CollectionSyncer {
	if now == nil {
		now = time.Now
	}
	return &CollectionSyncer{
		source: source,
		store:  store,
		meta:   meta,
		group:  group,
		bus:    bus,
		now:    now,
		log:    log.With("component", "collection-syncer"),
	}
}

// Sync никогда не паникует и не возвращает ошибку: сбой попадает в результат,
// метка lastSync при этом не меняется.
func (s *CollectionSyncer) Sync(ctx context.Context, collection record.Collection, opts SyncOptions) (res CollectionResult) {
	res.Collection = collection
	log := s.log.With("collection", collection)

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic during collection sync", "panic", fmt.Sprint(r))
			res = CollectionResult{Collection: collection, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()

	if err := collection.Validate(); err != nil {
		res.Error = err.Error()
		return res
	}

	var since *time.Time
	if !opts.Full {
		if ts, ok := s.meta.GetLastSync(ctx, collection); !metadata.NeedsFullSync(ts, ok) {
			since = &ts
		}
	}

	key := dedupe.Key{Collection: string(collection)}
	if since != nil {
		key.Since = record.FormatTime(*since)
	}
	delta, shared, err := s.group.Do(ctx, key, dedupe.Options{Force: opts.Force, Incremental: since != nil},
		func(ctx context.Context) (*Delta, error) {
			return s.source.FetchDelta(ctx, collection, since)
		})
	if err != nil {
		log.Warn("delta request failed", "error", err)
		res.Error = err.Error()
		return res
	}

	local, err := s.store.GetAll(ctx, collection)
	if err != nil {
		log.Error("failed to load local records", "error", err)
		res.Error = fmt.Sprintf("load local records: %v", err)
		return res
	}

	rr := reconcile(local, delta, s.now())
	if len(rr.writes) > 0 {
		if err := s.store.UpdateMany(ctx, collection, rr.writes, true); err != nil {
			log.Error("batch write failed", "error", err, "records", len(rr.writes))
			res.Error = fmt.Sprintf("batch write: %v", err)
			return res
		}
	}

	cursor := s.now()
	if delta.Cursor != nil {
		cursor = *delta.Cursor
	}
	s.meta.SetLastSync(ctx, collection, cursor)

	res.Success = true
	res.UpdatedCount = rr.updated
	res.DeletedCount = rr.deleted
	res.Skipped = rr.skipped

	log.Debug("collection synced",
		"full", since == nil,
		"shared", shared,
		"updated", rr.updated,
		"deleted", rr.deleted,
		"skipped", rr.skipped,
	)
	s.bus.Publish(events.CollectionSynced{
		Collection: string(collection),
		Updated:    rr.updated,
		Deleted:    rr.deleted,
	})
	return res
}
