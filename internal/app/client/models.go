package client

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"possync/internal/domain/record"
)

var ErrAlreadyExists = errors.New("record already exists")

// Storage - локальное хранилище коллекций
type Storage interface {
	GetAll(ctx context.Context, collection record.Collection) ([]*record.Record, error)
	Add(ctx context.Context, collection record.Collection, rec *record.Record) error
	Update(ctx context.Context, collection record.Collection, rec *record.Record) error
	UpdateMany(ctx context.Context, collection record.Collection, recs []*record.Record, skipValidation bool) error
	Delete(ctx context.Context, collection record.Collection, id string) error
}

// MemoryStorage - in-memory хранилище для тестов и режима без диска
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[record.Collection]map[string]*record.Record
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[record.Collection]map[string]*record.Record),
	}
}

func (m *MemoryStorage) GetAll(_ context.Context, collection record.Collection) ([]*record.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*record.Record, 0, len(m.records[collection]))
	for _, r := range m.records[collection] {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStorage) Get(_ context.Context, collection record.Collection, id string) (*record.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[collection][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", record.ErrNotFound, collection, id)
	}
	return r.Clone(), nil
}

func (m *MemoryStorage) Add(_ context.Context, collection record.Collection, rec *record.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[collection][rec.ID]; ok {
		return fmt.Errorf("%w: %s/%s", ErrAlreadyExists, collection, rec.ID)
	}
	m.put(collection, rec)
	return nil
}

func (m *MemoryStorage) Update(_ context.Context, collection record.Collection, rec *record.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[collection][rec.ID]; !ok {
		return fmt.Errorf("%w: %s/%s", record.ErrNotFound, collection, rec.ID)
	}
	m.put(collection, rec)
	return nil
}

func (m *MemoryStorage) UpdateMany(_ context.Context, collection record.Collection, recs []*record.Record, skipValidation bool) error {
	if !skipValidation {
		for _, r := range recs {
			if err := r.Validate(); err != nil {
				return err
			}
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range recs {
		m.put(collection, r)
	}
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, collection record.Collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records[collection], id)
	return nil
}

func (m *MemoryStorage) put(collection record.Collection, rec *record.Record) {
	if m.records[collection] == nil {
		m.records[collection] = make(map[string]*record.Record)
	}
	m.records[collection][rec.ID] = rec.Clone()
}
