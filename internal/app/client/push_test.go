package client

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"possync/internal/domain/record"
)

type MockPusher struct {
	mock.Mock
}

func (m *MockPusher) PushRecords(ctx context.Context, collection record.Collection, recs []*record.Record) ([]*record.Record, error) {
	args := m.Called(ctx, collection, recs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*record.Record), args.Error(1)
}

func TestPushCollection_ConfirmsEcho(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	dirty := record.NewLocal(map[string]json.RawMessage{"name": json.RawMessage(`"Tea"`)}, created)
	require.NoError(t, store.Add(ctx, record.Products, dirty))
	synced := sampleRecord("p-synced", true)
	require.NoError(t, store.Add(ctx, record.Products, synced))

	p := &MockPusher{}
	p.On("PushRecords", mock.Anything, record.Products, mock.MatchedBy(func(recs []*record.Record) bool {
		return len(recs) == 1 && recs[0].ID == dirty.ID
	})).Return([]*record.Record{{
		ID:        dirty.ID,
		IDKind:    record.KindLocal,
		ServerID:  "S1",
		LocalID:   dirty.ID,
		IsSynced:  true,
		UpdatedAt: created.Add(time.Second),
	}}, nil).Once()

	res := pushCollection(ctx, p, store, record.Products)
	assert.Empty(t, res.Error)
	assert.Equal(t, 1, res.Pushed)
	assert.Equal(t, 1, res.Confirmed)

	got, err := store.Get(ctx, record.Products, dirty.ID)
	require.NoError(t, err)
	assert.True(t, got.IsSynced)
	assert.Equal(t, "S1", got.ServerID)
	assert.Equal(t, dirty.ID, got.LocalID)
	assert.Equal(t, "Tea", got.FieldString("name"))
	p.AssertExpectations(t)
}

func TestPushCollection_ChangedInFlightStaysDirty(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	dirty := record.NewLocal(nil, created)
	require.NoError(t, store.Add(ctx, record.Customers, dirty))

	p := &MockPusher{}
	p.On("PushRecords", mock.Anything, record.Customers, mock.Anything).Run(func(mock.Arguments) {
		edited := dirty.Clone()
		edited.UpdatedAt = created.Add(time.Minute)
		require.NoError(t, store.Update(ctx, record.Customers, edited))
	}).Return([]*record.Record{{ID: dirty.ID, ServerID: "S1", LocalID: dirty.ID}}, nil)

	res := pushCollection(ctx, p, store, record.Customers)
	assert.Equal(t, 0, res.Confirmed)

	got, err := store.Get(ctx, record.Customers, dirty.ID)
	require.NoError(t, err)
	assert.False(t, got.IsSynced)
	assert.Empty(t, got.ServerID)
}

func TestPushCollection_SendsLocalDeletion(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	deletedAt := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)

	tomb := sampleRecord("S7", true)
	tomb.IsDeleted = true
	tomb.IsSynced = false
	tomb.UpdatedAt = deletedAt
	require.NoError(t, store.Add(ctx, record.Customers, tomb))

	p := &MockPusher{}
	p.On("PushRecords", mock.Anything, record.Customers, mock.MatchedBy(func(recs []*record.Record) bool {
		return len(recs) == 1 && recs[0].ID == "S7" && recs[0].IsDeleted
	})).Return([]*record.Record{{
		ID:        "S7",
		IDKind:    record.KindServer,
		ServerID:  "S7",
		IsSynced:  true,
		IsDeleted: true,
		UpdatedAt: deletedAt.Add(time.Second),
	}}, nil).Once()

	res := pushCollection(ctx, p, store, record.Customers)
	assert.Empty(t, res.Error)
	assert.Equal(t, 1, res.Pushed)
	assert.Equal(t, 1, res.Confirmed)

	got, err := store.Get(ctx, record.Customers, "S7")
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)
	assert.True(t, got.IsSynced)
	assert.True(t, got.UpdatedAt.Equal(deletedAt.Add(time.Second)))
	p.AssertExpectations(t)
}

func TestPushDirty_SkipsCleanCollections(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	require.NoError(t, store.Add(ctx, record.Orders, record.NewLocal(nil, time.Now())))

	p := &MockPusher{}
	p.On("PushRecords", mock.Anything, record.Orders, mock.Anything).
		Return(nil, errors.New("503 Service Unavailable"))

	out := pushDirty(ctx, p, store, []record.Collection{record.Customers, record.Orders})
	require.Len(t, out, 1)
	assert.Equal(t, record.Orders, out[0].Collection)
	assert.Contains(t, out[0].Error, "503")
	p.AssertNumberOfCalls(t, "PushRecords", 1)
}
