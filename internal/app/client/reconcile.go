package client

import (
	"time"

	"possync/internal/domain/record"
)

// reconcileResult - что нужно записать в хранилище по итогам сверки
type reconcileResult struct {
	writes  []*record.Record
	updated int
	deleted int
	skipped int
}

// snapshot - индекс локальных записей по id, _id и localId
type snapshot struct {
	byKey map[string]*record.Record
}

func newSnapshot(local []*record.Record) *snapshot {
	s := &snapshot{byKey: make(map[string]*record.Record, len(local)*2)}
	// сначала первичные ключи, чтобы чужой serverId не перекрыл id
	for _, r := range local {
		s.byKey[r.ID] = r
	}
	for _, r := range local {
		for _, k := range []string{r.ServerID, r.LocalID} {
			if k == "" {
				continue
			}
			if _, ok := s.byKey[k]; !ok {
				s.byKey[k] = r
			}
		}
	}
	return s
}

func (s *snapshot) resolve(in *record.Record) *record.Record {
	for _, k := range []string{in.ID, in.ServerID, in.LocalID} {
		if k == "" {
			continue
		}
		if r, ok := s.byKey[k]; ok {
			return r
		}
	}
	return nil
}

func (s *snapshot) put(r *record.Record) {
	for _, k := range r.Keys() {
		s.byKey[k] = r
	}
}

// reconcile сводит delta с локальным снимком коллекции.
// Грязные записи (IsSynced=false) не трогаются, удаленные не воскрешаются неявно.
func reconcile(local []*record.Record, delta *Delta, now time.Time) reconcileResult {
	var (
		snap    = newSnapshot(local)
		order   []string
		staged  = make(map[string]*record.Record)
		updated = make(map[string]struct{})
		deleted = make(map[string]struct{})
		res     reconcileResult
	)

	stage := func(r *record.Record) {
		if _, ok := staged[r.ID]; !ok {
			order = append(order, r.ID)
		}
		staged[r.ID] = r
		snap.put(r)
	}

	for _, in := range delta.Updated {
		if in == nil || (in.ID == "" && in.ServerID == "") {
			res.skipped++
			continue
		}
		existing := snap.resolve(in)
		if existing != nil && !existing.IsSynced {
			res.skipped++
			continue
		}

		merged := mergeIncoming(existing, in, now)
		if merged == nil {
			res.skipped++
			continue
		}
		if existing != nil && unchanged(existing, merged) {
			res.skipped++
			continue
		}

		stage(merged)
		updated[merged.ID] = struct{}{}
		delete(deleted, merged.ID)
	}

	for _, t := range delta.Deleted {
		if t == nil {
			continue
		}
		existing := snap.resolve(t)
		// неизвестная запись: создавать надгробие не для чего
		if existing == nil {
			continue
		}
		if !existing.IsSynced || existing.IsDeleted {
			res.skipped++
			continue
		}

		tomb := existing.Clone()
		tomb.IsDeleted = true
		tomb.IsSynced = true
		tomb.UpdatedAt = t.UpdatedAt
		if tomb.UpdatedAt.IsZero() {
			tomb.UpdatedAt = now.UTC()
		}
		if tomb.ServerID == "" && t.ServerID != "" {
			tomb.ServerID = t.ServerID
		}

		stage(tomb)
		deleted[tomb.ID] = struct{}{}
		delete(updated, tomb.ID)
	}

	res.writes = make([]*record.Record, 0, len(order))
	for _, id := range order {
		res.writes = append(res.writes, staged[id])
	}
	res.updated = len(updated)
	res.deleted = len(deleted)
	return res
}

// persistID выбирает идентификатор, под которым запись хранится локально.
// Ссылки других записей на локальный id должны продолжать работать.
func persistID(existing, in *record.Record) string {
	switch {
	case existing != nil:
		return existing.ID
	case in.LocalID != "":
		return in.LocalID
	case in.ID != "" && in.IDKind == record.KindLocal:
		return in.ID
	case in.ServerID != "":
		return in.ServerID
	default:
		return in.ID
	}
}

// mergeIncoming строит новую версию записи. nil - входящая версия не применяется.
func mergeIncoming(existing, in *record.Record, now time.Time) *record.Record {
	merged := in.Clone()
	merged.ID = persistID(existing, in)
	merged.IsSynced = true
	if merged.UpdatedAt.IsZero() {
		merged.UpdatedAt = now.UTC()
	}

	switch {
	case existing != nil:
		merged.IDKind = existing.IDKind
	case merged.ID == in.ID:
		merged.IDKind = in.IDKind
	case merged.ID == in.ServerID:
		merged.IDKind = record.KindServer
	default:
		merged.IDKind = record.KindLocal
	}

	if existing == nil {
		return merged
	}

	if existing.LocalID != "" {
		merged.LocalID = existing.LocalID
	}
	if merged.ServerID == "" {
		merged.ServerID = existing.ServerID
	}

	if existing.IsDeleted && !merged.IsDeleted {
		newer := merged.UpdatedAt.After(existing.UpdatedAt)
		switch {
		case newer && in.ExplicitlyUndeleted():
			// явное восстановление более новой версией
		case newer:
			merged.IsDeleted = true
		default:
			return nil
		}
	}
	return merged
}

func unchanged(existing, merged *record.Record) bool {
	return existing.IsSynced &&
		existing.ID == merged.ID &&
		existing.LocalID == merged.LocalID &&
		existing.SameContent(merged)
}
