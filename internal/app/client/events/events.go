// Package events - шина событий синхронизации.
package events

import (
	"time"
)

// Event - закрытое множество событий движка синхронизации.
// Реализации есть только в этом пакете.
type Event interface {
	Name() string
	isEvent()
}

const (
	NameSyncStarted      = "sync_started"
	NameCollectionSynced = "collection_synced"
	NameSyncCompleted    = "sync_completed"
	NameSyncError        = "sync_error"
)

// SyncStarted публикуется перед началом прохода оркестратора.
type SyncStarted struct {
	Mode string `json:"type"`
}

func (SyncStarted) isEvent()     {}
func (SyncStarted) Name() string { return NameSyncStarted }

// CollectionSynced - коллекция успешно сверена.
type CollectionSynced struct {
	Collection string `json:"collection"`
	Updated    int    `json:"updated"`
	Deleted    int    `json:"deleted"`
}

func (CollectionSynced) isEvent()     {}
func (CollectionSynced) Name() string { return NameCollectionSynced }

// Summary - итог прохода
type Summary struct {
	TotalUpdated int       `json:"totalUpdated"`
	TotalDeleted int       `json:"totalDeleted"`
	Timestamp    time.Time `json:"timestamp"`
}

// SyncCompleted публикуется после завершения прохода, даже если часть коллекций упала.
type SyncCompleted struct {
	Summary Summary `json:"summary"`
	Failed  int     `json:"failed"`
}

func (SyncCompleted) isEvent()     {}
func (SyncCompleted) Name() string { return NameSyncCompleted }

// SyncError - сбой самого оркестратора, а не отдельной коллекции.
type SyncError struct {
	Err string `json:"error"`
}

func (SyncError) isEvent()     {}
func (SyncError) Name() string { return NameSyncError }

// Envelope - представление события для внешних потребителей
type Envelope struct {
	Event     string    `json:"event"`
	Payload   Event     `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

func Wrap(e Event, now time.Time) Envelope {
	return Envelope{Event: e.Name(), Payload: e, Timestamp: now.UTC()}
}
