package client

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"possync/internal/domain/record"
)

func newTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(id string, synced bool) *record.Record {
	return &record.Record{
		ID:        id,
		IDKind:    record.KindServer,
		ServerID:  id,
		IsSynced:  synced,
		UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Fields:    map[string]json.RawMessage{"name": json.RawMessage(`"Alice"`)},
	}
}

func TestSQLiteStorage_AddGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	rec := sampleRecord("c1", true)
	require.NoError(t, s.Add(ctx, record.Customers, rec))

	got, err := s.Get(ctx, record.Customers, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.FieldString("name"))
	assert.Equal(t, record.KindServer, got.IDKind)
	assert.True(t, got.IsSynced)
	assert.Equal(t, rec.UpdatedAt, got.UpdatedAt)

	got.Fields["name"] = json.RawMessage(`"Alice V2"`)
	got.IsSynced = false
	require.NoError(t, s.Update(ctx, record.Customers, got))

	got, err = s.Get(ctx, record.Customers, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Alice V2", got.FieldString("name"))
	assert.False(t, got.IsSynced)

	total, dirty, err := s.CountRecords(ctx, record.Customers)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, dirty)

	require.NoError(t, s.Delete(ctx, record.Customers, "c1"))
	_, err = s.Get(ctx, record.Customers, "c1")
	assert.ErrorIs(t, err, record.ErrNotFound)
}

func TestSQLiteStorage_UpdateMissing(t *testing.T) {
	s := newTestSQLite(t)
	err := s.Update(context.Background(), record.Orders, sampleRecord("nope", true))
	assert.ErrorIs(t, err, record.ErrNotFound)
}

func TestSQLiteStorage_UpdateManyUpserts(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	require.NoError(t, s.Add(ctx, record.Products, sampleRecord("p1", true)))

	p1 := sampleRecord("p1", true)
	p1.IsDeleted = true
	p2 := sampleRecord("p2", true)
	require.NoError(t, s.UpdateMany(ctx, record.Products, []*record.Record{p1, p2}, true))

	all, err := s.GetAll(ctx, record.Products)
	require.NoError(t, err)
	require.Len(t, all, 2)

	byID := map[string]*record.Record{}
	for _, r := range all {
		byID[r.ID] = r
	}
	assert.True(t, byID["p1"].IsDeleted)
	assert.False(t, byID["p2"].IsDeleted)

	// коллекции изолированы
	other, err := s.GetAll(ctx, record.Customers)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSQLiteStorage_UpdateManyRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	bad := &record.Record{ID: "bad"}
	err := s.UpdateMany(ctx, record.Orders, []*record.Record{sampleRecord("o1", true), bad}, false)
	assert.ErrorIs(t, err, record.ErrInvalidRecord)

	all, err := s.GetAll(ctx, record.Orders)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSQLiteStorage_MetadataTier(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	_, ok, err := s.LastSync(ctx, record.Orders)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetLastSync(ctx, record.Orders, "2024-01-01T00:00:00Z"))
	require.NoError(t, s.SetLastSync(ctx, record.Orders, "2024-02-01T00:00:00Z"))

	v, ok, err := s.LastSync(ctx, record.Orders)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2024-02-01T00:00:00Z", v)
}

func TestMemoryStorage_AddTwice(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()

	require.NoError(t, m.Add(ctx, record.Orders, sampleRecord("o1", true)))
	err := m.Add(ctx, record.Orders, sampleRecord("o1", true))
	assert.ErrorIs(t, err, ErrAlreadyExists)

	// хранилище отдает копии
	all, _ := m.GetAll(ctx, record.Orders)
	all[0].Fields["name"] = json.RawMessage(`"changed"`)
	got, err := m.Get(ctx, record.Orders, "o1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.FieldString("name"))
}
