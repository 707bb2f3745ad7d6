package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"possync/internal/app/client/dedupe"
	"possync/internal/app/client/events"
	"possync/internal/app/client/kv"
	"possync/internal/app/client/metadata"
	"possync/internal/domain/record"
)

// MockDeltaSource мок delta API
type MockDeltaSource struct {
	mock.Mock
}

func (m *MockDeltaSource) FetchDelta(ctx context.Context, collection record.Collection, since *time.Time) (*Delta, error) {
	args := m.Called(ctx, collection, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Delta), args.Error(1)
}

type fixture struct {
	source *MockDeltaSource
	store  *MemoryStorage
	meta   *metadata.Store
	group  *dedupe.Group[*Delta]
	bus    *events.Bus
	syncer *CollectionSyncer
	now    time.Time

	mu     sync.Mutex
	events []events.Event
}

func newFixture(t *testing.T, collections ...record.Collection) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		source: &MockDeltaSource{},
		store:  NewMemoryStorage(),
		group:  dedupe.New[*Delta](time.Minute),
		bus:    events.NewBus(log),
		now:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if len(collections) == 0 {
		collections = record.Collections()
	}
	clock := func() time.Time { return f.now }
	tier := metadata.NewKVTier("file", kv.NewFileKV(filepath.Join(t.TempDir(), "kv.json")))
	f.meta = metadata.New(log, []metadata.Tier{tier}, metadata.WithClock(clock), metadata.WithCollections(collections))
	f.syncer = NewCollectionSyncer(f.source, f.store, f.meta, f.group, f.bus, clock, log)
	f.bus.Subscribe(func(e events.Event) {
		f.mu.Lock()
		f.events = append(f.events, e)
		f.mu.Unlock()
	})
	return f
}

func (f *fixture) service(cfg SyncConfig) *SyncService {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSyncService(f.syncer, f.meta, f.group, f.bus, cfg, func() time.Time { return f.now }, log)
}

func (f *fixture) eventNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.events))
	for _, e := range f.events {
		names = append(names, e.Name())
	}
	return names
}

func decode(t *testing.T, raw string) *record.Record {
	t.Helper()
	var r record.Record
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	return &r
}

func TestCollectionSyncer_NewRecordFromEmptyState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.source.On("FetchDelta", mock.Anything, record.Customers, (*time.Time)(nil)).Return(&Delta{
		Updated: []*record.Record{decode(t, `{"id":"c1","name":"Alice","updatedAt":"2024-01-01T00:00:00Z"}`)},
	}, nil).Once()

	res := f.syncer.Sync(ctx, record.Customers, SyncOptions{})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, res.UpdatedCount)
	assert.Equal(t, 0, res.DeletedCount)

	got, err := f.store.Get(ctx, record.Customers, "c1")
	require.NoError(t, err)
	assert.True(t, got.IsSynced)
	assert.Equal(t, "Alice", got.FieldString("name"))

	ts, ok := f.meta.GetLastSync(ctx, record.Customers)
	require.True(t, ok)
	assert.False(t, ts.Before(f.now))
	assert.Equal(t, []string{events.NameCollectionSynced}, f.eventNames())
	f.source.AssertExpectations(t)
}

func TestCollectionSyncer_DirtyRecordIsKept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	local := decode(t, `{"id":"c1","name":"Alice V2","isSynced":false,"updatedAt":"2024-01-02T00:00:00Z"}`)
	require.NoError(t, f.store.Add(ctx, record.Customers, local))

	f.source.On("FetchDelta", mock.Anything, record.Customers, mock.Anything).Return(&Delta{
		Updated: []*record.Record{decode(t, `{"id":"c1","name":"Alice Server","updatedAt":"2024-01-03T00:00:00Z"}`)},
		Deleted: []*record.Record{decode(t, `{"id":"c1","updatedAt":"2024-01-04T00:00:00Z"}`)},
	}, nil)

	res := f.syncer.Sync(ctx, record.Customers, SyncOptions{})
	require.True(t, res.Success, res.Error)
	assert.Zero(t, res.UpdatedCount)
	assert.Zero(t, res.DeletedCount)
	assert.Equal(t, 2, res.Skipped)

	got, err := f.store.Get(ctx, record.Customers, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Alice V2", got.FieldString("name"))
	assert.False(t, got.IsSynced)
	assert.False(t, got.IsDeleted)
}

func TestCollectionSyncer_TombstoneSkipsDirtyRecord(t *testing.T) {
	tests := []struct {
		name  string
		local string
		tomb  string
	}{
		{
			name:  "offline record by local id",
			local: `{"id":"c1","localId":"c1","name":"Draft","isSynced":false,"updatedAt":"2024-01-02T00:00:00Z"}`,
			tomb:  `{"id":"c1","localId":"c1","_id":"srv-1","updatedAt":"2024-02-01T00:00:00Z"}`,
		},
		{
			name:  "edited server record by _id",
			local: `{"id":"srv-2","_id":"srv-2","name":"Draft","isSynced":false,"updatedAt":"2024-01-02T00:00:00Z"}`,
			tomb:  `{"_id":"srv-2","updatedAt":"2024-02-01T00:00:00Z"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			local := decode(t, tt.local)
			require.NoError(t, f.store.Add(ctx, record.Customers, local))

			f.source.On("FetchDelta", mock.Anything, record.Customers, mock.Anything).Return(&Delta{
				Deleted: []*record.Record{decode(t, tt.tomb)},
			}, nil)

			res := f.syncer.Sync(ctx, record.Customers, SyncOptions{})
			require.True(t, res.Success, res.Error)
			assert.Zero(t, res.DeletedCount)
			assert.Equal(t, 1, res.Skipped)

			got, err := f.store.Get(ctx, record.Customers, local.ID)
			require.NoError(t, err)
			assert.False(t, got.IsDeleted)
			assert.False(t, got.IsSynced)
			assert.Equal(t, "Draft", got.FieldString("name"))
			assert.True(t, got.UpdatedAt.Equal(local.UpdatedAt))
		})
	}
}

func TestCollectionSyncer_UnknownTombstoneIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.source.On("FetchDelta", mock.Anything, record.Customers, mock.Anything).Return(&Delta{
		Deleted: []*record.Record{decode(t, `{"id":"c2","updatedAt":"2024-02-01T00:00:00Z"}`)},
	}, nil)

	res := f.syncer.Sync(ctx, record.Customers, SyncOptions{})
	require.True(t, res.Success, res.Error)
	assert.Zero(t, res.DeletedCount)

	all, err := f.store.GetAll(ctx, record.Customers)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCollectionSyncer_ServerIDAssignmentKeepsLocalID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := record.NewLocal(map[string]json.RawMessage{"name": json.RawMessage(`"Bob"`)}, f.now.Add(-time.Hour))
	tempID := created.ID
	require.NoError(t, f.store.Add(ctx, record.Customers, created))

	order := record.NewLocal(map[string]json.RawMessage{"customerId": json.RawMessage(`"` + tempID + `"`)}, f.now)
	order.IsSynced = true
	require.NoError(t, f.store.Add(ctx, record.Orders, order))

	// запись отправлена на сервер
	created.IsSynced = true
	require.NoError(t, f.store.Update(ctx, record.Customers, created))

	f.source.On("FetchDelta", mock.Anything, record.Customers, mock.Anything).Return(&Delta{
		Updated: []*record.Record{decode(t, `{"id":"`+tempID+`","_id":"S1","localId":"`+tempID+`","name":"Bob","updatedAt":"2024-03-01T11:00:00Z"}`)},
	}, nil)

	res := f.syncer.Sync(ctx, record.Customers, SyncOptions{})
	require.True(t, res.Success, res.Error)

	all, err := f.store.GetAll(ctx, record.Customers)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, tempID, all[0].ID)
	assert.Equal(t, tempID, all[0].LocalID)
	assert.Equal(t, "S1", all[0].ServerID)
	assert.Equal(t, record.KindLocal, all[0].IDKind)

	orders, err := f.store.GetAll(ctx, record.Orders)
	require.NoError(t, err)
	ref, err := f.store.Get(ctx, record.Customers, orders[0].FieldString("customerId"))
	require.NoError(t, err)
	assert.Equal(t, "S1", ref.ServerID)
}

func TestCollectionSyncer_TombstoneMonotonic(t *testing.T) {
	tests := []struct {
		name        string
		incoming    string
		wantDeleted bool
		wantName    string
	}{
		{
			name:        "older version stays deleted",
			incoming:    `{"id":"p1","name":"Old","isDeleted":false,"updatedAt":"2024-01-01T00:00:00Z"}`,
			wantDeleted: true,
			wantName:    "Tomb",
		},
		{
			name:        "newer version without flag stays deleted",
			incoming:    `{"id":"p1","name":"New","updatedAt":"2024-03-01T00:00:00Z"}`,
			wantDeleted: true,
			wantName:    "New",
		},
		{
			name:        "newer explicit undelete resurrects",
			incoming:    `{"id":"p1","name":"Back","isDeleted":false,"updatedAt":"2024-03-01T00:00:00Z"}`,
			wantDeleted: false,
			wantName:    "Back",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			tomb := decode(t, `{"id":"p1","name":"Tomb","isSynced":true,"isDeleted":true,"updatedAt":"2024-02-01T00:00:00Z"}`)
			require.NoError(t, f.store.Add(ctx, record.Products, tomb))

			f.source.On("FetchDelta", mock.Anything, record.Products, mock.Anything).Return(&Delta{
				Updated: []*record.Record{decode(t, tt.incoming)},
			}, nil)

			res := f.syncer.Sync(ctx, record.Products, SyncOptions{})
			require.True(t, res.Success, res.Error)

			got, err := f.store.Get(ctx, record.Products, "p1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantDeleted, got.IsDeleted)
			assert.Equal(t, tt.wantName, got.FieldString("name"))
		})
	}
}

func TestCollectionSyncer_TombstoneMarksSyncedRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Add(ctx, record.Products,
		decode(t, `{"id":"p1","_id":"p1","name":"Tea","isSynced":true,"updatedAt":"2024-01-01T00:00:00Z"}`)))

	f.source.On("FetchDelta", mock.Anything, record.Products, mock.Anything).Return(&Delta{
		Deleted: []*record.Record{decode(t, `{"_id":"p1","updatedAt":"2024-02-01T00:00:00Z"}`)},
	}, nil)

	res := f.syncer.Sync(ctx, record.Products, SyncOptions{})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, res.DeletedCount)

	got, err := f.store.Get(ctx, record.Products, "p1")
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)
	assert.Equal(t, "Tea", got.FieldString("name"))
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), got.UpdatedAt)
}

func TestCollectionSyncer_FailureKeepsLastSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	f.meta.SetLastSync(ctx, record.Orders, before)

	f.source.On("FetchDelta", mock.Anything, record.Orders, mock.Anything).
		Return(nil, errors.New("connection refused"))

	res := f.syncer.Sync(ctx, record.Orders, SyncOptions{})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "connection refused")

	ts, ok := f.meta.GetLastSync(ctx, record.Orders)
	require.True(t, ok)
	assert.True(t, ts.Equal(before))
	assert.Empty(t, f.eventNames())
}

func TestCollectionSyncer_IncrementalUsesCursor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	last := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	f.meta.SetLastSync(ctx, record.Orders, last)
	cursor := time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)

	f.source.On("FetchDelta", mock.Anything, record.Orders, mock.MatchedBy(func(since *time.Time) bool {
		return since != nil && since.Equal(last)
	})).Return(&Delta{Cursor: &cursor}, nil).Once()

	res := f.syncer.Sync(ctx, record.Orders, SyncOptions{})
	require.True(t, res.Success, res.Error)

	ts, ok := f.meta.GetLastSync(ctx, record.Orders)
	require.True(t, ok)
	assert.True(t, ts.Equal(cursor))
	f.source.AssertExpectations(t)
}

func TestCollectionSyncer_UnknownCollection(t *testing.T) {
	f := newFixture(t)

	res := f.syncer.Sync(context.Background(), record.Collection("widgets"), SyncOptions{})
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	f.source.AssertNotCalled(t, "FetchDelta", mock.Anything, mock.Anything, mock.Anything)
}

func TestCollectionSyncer_PanicBecomesResult(t *testing.T) {
	f := newFixture(t)

	f.source.On("FetchDelta", mock.Anything, record.Refunds, mock.Anything).Run(func(mock.Arguments) {
		panic("boom")
	})

	res := f.syncer.Sync(context.Background(), record.Refunds, SyncOptions{})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "boom")
}

func TestSyncService_Idempotent(t *testing.T) {
	f := newFixture(t, record.Customers)
	ctx := context.Background()

	f.source.On("FetchDelta", mock.Anything, record.Customers, mock.Anything).Return(&Delta{
		Updated: []*record.Record{
			decode(t, `{"id":"c1","name":"Alice","updatedAt":"2024-01-01T00:00:00Z"}`),
			decode(t, `{"id":"c2","name":"Bob","updatedAt":"2024-01-01T00:00:00Z"}`),
		},
		Deleted: []*record.Record{decode(t, `{"id":"c2","updatedAt":"2024-01-02T00:00:00Z"}`)},
	}, nil)

	svc := f.service(SyncConfig{Collections: []record.Collection{record.Customers}})

	first := svc.Sync(ctx, ModeIncremental)
	require.True(t, first.Success)
	assert.Equal(t, 1, first.Summary.TotalUpdated)
	assert.Equal(t, 1, first.Summary.TotalDeleted)

	f.now = f.now.Add(time.Minute)
	second := svc.Sync(ctx, ModeIncremental)
	require.True(t, second.Success)
	assert.Zero(t, second.Summary.TotalUpdated)
	assert.Zero(t, second.Summary.TotalDeleted)

	stats := svc.GetStats()
	assert.Equal(t, 2, stats.TotalSyncs)
	assert.Equal(t, 1, stats.TotalUpdated)
	assert.Equal(t, f.now, svc.LastCompleted())
}

func TestSyncService_FullModeContainsFailures(t *testing.T) {
	cs := []record.Collection{record.Customers, record.Products, record.Orders}

	for _, parallel := range []bool{false, true} {
		name := "sequential"
		if parallel {
			name = "parallel"
		}
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, cs...)
			ctx := context.Background()
			for _, c := range cs {
				f.meta.SetLastSync(ctx, c, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
			}

			f.source.On("FetchDelta", mock.Anything, record.Customers, (*time.Time)(nil)).Return(&Delta{
				Updated: []*record.Record{decode(t, `{"id":"c1","updatedAt":"2024-01-01T00:00:00Z"}`)},
			}, nil)
			f.source.On("FetchDelta", mock.Anything, record.Products, (*time.Time)(nil)).
				Return(nil, errors.New("503 Service Unavailable"))
			f.source.On("FetchDelta", mock.Anything, record.Orders, (*time.Time)(nil)).Return(&Delta{}, nil)

			svc := f.service(SyncConfig{Parallel: parallel, MaxParallel: 2, Collections: cs})
			res := svc.Sync(ctx, ModeFull)

			require.True(t, res.Success)
			assert.Equal(t, ModeFull, res.Mode)
			assert.True(t, res.Results[record.Customers].Success)
			assert.False(t, res.Results[record.Products].Success)
			assert.True(t, res.Results[record.Orders].Success)
			assert.Equal(t, []record.Collection{record.Products}, res.FailedCollections())

			for _, c := range cs {
				ts, ok := f.meta.GetLastSync(ctx, c)
				require.True(t, ok)
				assert.True(t, metadata.NeedsFullSync(ts, ok), c)
			}
			f.source.AssertExpectations(t)
		})
	}
}

func TestSyncService_EventSequence(t *testing.T) {
	f := newFixture(t, record.Customers, record.Products)
	f.source.On("FetchDelta", mock.Anything, mock.Anything, mock.Anything).Return(&Delta{}, nil)

	svc := f.service(SyncConfig{Collections: []record.Collection{record.Customers, record.Products}})
	res := svc.Sync(context.Background(), ModeIncremental)
	require.True(t, res.Success)

	assert.Equal(t, []string{
		events.NameSyncStarted,
		events.NameCollectionSynced,
		events.NameCollectionSynced,
		events.NameSyncCompleted,
	}, f.eventNames())
}

func TestSyncService_CancelledContext(t *testing.T) {
	f := newFixture(t, record.Customers)
	svc := f.service(SyncConfig{Collections: []record.Collection{record.Customers}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := svc.Sync(ctx, ModeIncremental)
	assert.False(t, res.Success)
	assert.Equal(t, context.Canceled.Error(), res.Error)
	assert.Equal(t, []string{events.NameSyncStarted, events.NameSyncError}, f.eventNames())
	assert.Equal(t, 1, svc.GetStats().TotalErrors)
	f.source.AssertNotCalled(t, "FetchDelta", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncService_MutualExclusion(t *testing.T) {
	f := newFixture(t, record.Customers)
	release := make(chan struct{})
	entered := make(chan struct{})

	f.source.On("FetchDelta", mock.Anything, record.Customers, mock.Anything).Run(func(mock.Arguments) {
		close(entered)
		<-release
	}).Return(&Delta{}, nil).Once()

	svc := f.service(SyncConfig{Collections: []record.Collection{record.Customers}})

	done := make(chan *SyncResult)
	go func() { done <- svc.Sync(context.Background(), ModeIncremental) }()
	<-entered
	assert.True(t, svc.IsSyncing())

	second := svc.Sync(context.Background(), ModeFull)
	assert.False(t, second.Success)
	assert.Equal(t, ErrSyncInProgress.Error(), second.Error)

	close(release)
	first := <-done
	assert.True(t, first.Success)
	assert.False(t, svc.IsSyncing())

	f.source.AssertNumberOfCalls(t, "FetchDelta", 1)
}
