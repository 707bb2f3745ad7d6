package sync

import (
	"encoding/json"
	"time"

	"possync/internal/domain/record"
)

// StoredRecord - запись коллекции в хранилище сервера
type StoredRecord struct {
	SellerID   string
	Collection record.Collection
	ServerID   string
	LocalID    string
	Data       map[string]json.RawMessage
	IsDeleted  bool
	UpdatedAt  time.Time
}

// ToRecord собирает запись в формате delta API. Если запись заведена на
// терминале, id повторяет localId, чтобы клиент узнал свою запись.
func (s StoredRecord) ToRecord() *record.Record {
	r := &record.Record{
		ID:        s.ServerID,
		IDKind:    record.KindServer,
		ServerID:  s.ServerID,
		LocalID:   s.LocalID,
		IsSynced:  true,
		IsDeleted: s.IsDeleted,
		UpdatedAt: s.UpdatedAt.UTC(),
		Fields:    s.Data,
	}
	if s.LocalID != "" {
		r.ID = s.LocalID
		r.IDKind = record.KindLocal
	}
	if r.Fields == nil {
		r.Fields = map[string]json.RawMessage{}
	}
	return r
}

// Changes - ответ на GET /sync/{resource}
type Changes struct {
	Updated    []*record.Record
	Deleted    []*record.Record
	ServerTime time.Time
}

// ServiceConfig конфигурация сервиса синхронизации
type ServiceConfig struct {
	// MaxBatch - сколько записей принимается за один POST
	MaxBatch int
	// MaxChanges - сколько записей отдается за один GET, строго больше MaxBatch
	MaxChanges int
	// CommitWindow - на сколько курсор отстает от часов сервера.
	// Запись получает updatedAt до коммита и становится видна позже;
	// транзакция ProcessBatch ограничена этим же окном.
	CommitWindow time.Duration
}
