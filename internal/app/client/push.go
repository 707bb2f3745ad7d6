package client

import (
	"context"
	"fmt"

	"possync/internal/domain/record"
)

// RecordPusher - отправка локальных изменений на сервер
type RecordPusher interface {
	PushRecords(ctx context.Context, collection record.Collection, recs []*record.Record) ([]*record.Record, error)
}

// PushResult - итог отправки одной коллекции
type PushResult struct {
	Collection record.Collection `json:"collection"`
	Pushed     int               `json:"pushed"`
	Confirmed  int               `json:"confirmed"`
	Error      string            `json:"error,omitempty"`
}

// PushDirty отправляет все несинхронизированные записи.
func (a *App) PushDirty(ctx context.Context) []PushResult {
	return pushDirty(ctx, a.httpClient, a.storage, a.sync.Collections())
}

func pushDirty(ctx context.Context, pusher RecordPusher, store Storage, collections []record.Collection) []PushResult {
	var out []PushResult
	for _, c := range collections {
		res := pushCollection(ctx, pusher, store, c)
		if res.Pushed > 0 || res.Error != "" {
			out = append(out, res)
		}
	}
	return out
}

// pushCollection помечает запись синхронизированной, только если она не
// менялась локально, пока запрос был в пути.
func pushCollection(ctx context.Context, pusher RecordPusher, store Storage, c record.Collection) PushResult {
	res := PushResult{Collection: c}

	local, err := store.GetAll(ctx, c)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	var dirty []*record.Record
	for _, r := range local {
		if !r.IsSynced {
			dirty = append(dirty, r)
		}
	}
	if len(dirty) == 0 {
		return res
	}
	res.Pushed = len(dirty)

	saved, err := pusher.PushRecords(ctx, c, dirty)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	sent := newSnapshot(dirty)
	current, err := store.GetAll(ctx, c)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	now := newSnapshot(current)

	var confirmed []*record.Record
	for _, in := range saved {
		if in == nil {
			continue
		}
		was, cur := sent.resolve(in), now.resolve(in)
		if was == nil || cur == nil || !cur.UpdatedAt.Equal(was.UpdatedAt) {
			continue
		}

		r := cur.Clone()
		r.IsSynced = true
		if in.ServerID != "" {
			r.ServerID = in.ServerID
		}
		if !in.UpdatedAt.IsZero() {
			r.UpdatedAt = in.UpdatedAt
		}
		confirmed = append(confirmed, r)
	}

	if len(confirmed) > 0 {
		if err := store.UpdateMany(ctx, c, confirmed, false); err != nil {
			res.Error = fmt.Sprintf("batch write: %v", err)
			return res
		}
	}
	res.Confirmed = len(confirmed)
	return res
}
