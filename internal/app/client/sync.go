package client

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"

	"possync/internal/app/client/events"
	"possync/internal/domain/record"
)

var ErrSyncInProgress = errors.New("Sync in progress")

// Mode - режим прохода оркестратора
type Mode string

const (
	ModeIncremental Mode = "incremental"
	ModeFull        Mode = "full"
)

// SyncConfig конфигурация синхронизации
type SyncConfig struct {
	Parallel    bool
	MaxParallel int
	Collections []record.Collection
}

// SyncStats статистика синхронизации
type SyncStats struct {
	TotalSyncs        int       `json:"total_syncs"`
	LastSuccessful    time.Time `json:"last_successful"`
	LastFailed        time.Time `json:"last_failed"`
	TotalUpdated      int       `json:"total_updated"`
	TotalDeleted      int       `json:"total_deleted"`
	FailedCollections int       `json:"failed_collections"`
	TotalErrors       int       `json:"total_errors"`
	AvgSyncDuration   float64   `json:"avg_sync_duration"`
}

// SyncResult результат синхронизации
type SyncResult struct {
	// Success - оркестратор дошел до конца; результаты коллекций смотреть в Results
	Success  bool                                   `json:"success"`
	Mode     Mode                                   `json:"mode"`
	Results  map[record.Collection]CollectionResult `json:"results"`
	Summary  events.Summary                         `json:"summary"`
	Error    string                                 `json:"error,omitempty"`
	Duration time.Duration                          `json:"duration"`
}

// FailedCollections возвращает коллекции с неуспешным результатом.
func (r *SyncResult) FailedCollections() []record.Collection {
	var out []record.Collection
	for c, res := range r.Results {
		if !res.Success {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type collectionSyncer interface {
	Sync(ctx context.Context, collection record.Collection, opts SyncOptions) CollectionResult
}

type cacheClearer interface {
	ClearAll()
}

// SyncService управляет синхронизацией всех коллекций
type SyncService struct {
	syncer collectionSyncer
	meta   MetadataStore
	cache  cacheClearer
	bus    Publisher
	config SyncConfig
	now    func() time.Time
	log    *slog.Logger

	running atomic.Bool

	mu            sync.RWMutex
	stats         SyncStats
	lastCompleted time.Time
}

// NewSyncService создает новый сервис синхронизации
func NewSyncService(syncer collectionSyncer, meta MetadataStore, cache cacheClearer, bus Publisher, config SyncConfig, now func() time.Time, log *slog.Logger) *SyncService {
	if len(config.Collections) == 0 {
		config.Collections = record.Collections()
	}
	if config.MaxParallel <= 0 {
		config.MaxParallel = 4
	}
	if now == nil {
		now = time.Now
	}
	return &SyncService{
		syncer: syncer,
		meta:   meta,
		cache:  cache,
		bus:    bus,
		config: config,
		now:    now,
		log:    log.With("component", "sync"),
	}
}

// Sync запускает проход по всем коллекциям. Одновременно выполняется
// не более одного прохода, повторный вызов сразу получает ErrSyncInProgress.
func (s *SyncService) Sync(ctx context.Context, mode Mode) (result *SyncResult) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Debug("sync skipped, another run is active", "mode", mode)
		return &SyncResult{Success: false, Mode: mode, Error: ErrSyncInProgress.Error()}
	}
	defer s.running.Store(false)

	start := s.now()
	result = &SyncResult{
		Mode:    mode,
		Results: make(map[record.Collection]CollectionResult, len(s.config.Collections)),
	}

	s.bus.Publish(events.SyncStarted{Mode: string(mode)})
	s.log.Info("Начало синхронизации", "mode", mode, "collections", len(s.config.Collections), "parallel", s.config.Parallel)

	defer func() {
		if r := recover(); r != nil {
			s.fail(result, start, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		s.fail(result, start, err)
		return result
	}

	opts := SyncOptions{}
	if mode == ModeFull {
		opts = SyncOptions{Full: true, Force: true}
	}

	if s.config.Parallel {
		s.runParallel(ctx, opts, result)
	} else {
		s.runSequential(ctx, opts, result)
	}

	if mode == ModeFull {
		s.meta.ResetAll(ctx)
		if s.cache != nil {
			s.cache.ClearAll()
		}
	}

	for _, r := range result.Results {
		result.Summary.TotalUpdated += r.UpdatedCount
		result.Summary.TotalDeleted += r.DeletedCount
	}
	result.Summary.Timestamp = s.now().UTC()
	result.Duration = s.now().Sub(start)
	result.Success = true

	failed := result.FailedCollections()
	s.recordRun(result, len(failed))

	if len(failed) > 0 {
		s.log.Warn("Синхронизация завершена с ошибками",
			"mode", mode,
			"duration", result.Duration,
			"failed", failed,
		)
	} else {
		s.log.Info("Синхронизация успешно завершена",
			"mode", mode,
			"duration", result.Duration,
			"updated", result.Summary.TotalUpdated,
			"deleted", result.Summary.TotalDeleted,
		)
	}

	s.bus.Publish(events.SyncCompleted{Summary: result.Summary, Failed: len(failed)})
	return result
}

func (s *SyncService) runSequential(ctx context.Context, opts SyncOptions, result *SyncResult) {
	for _, c := range s.config.Collections {
		result.Results[c] = s.syncer.Sync(ctx, c, opts)
	}
}

// runParallel - ошибки коллекций остаются в результатах, поэтому
// группа никогда не отменяет соседние проходы.
func (s *SyncService) runParallel(ctx context.Context, opts SyncOptions, result *SyncResult) {
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(s.config.MaxParallel)

	for _, c := range s.config.Collections {
		c := c
		g.Go(func() error {
			r := s.syncer.Sync(ctx, c, opts)
			mu.Lock()
			result.Results[c] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

func (s *SyncService) fail(result *SyncResult, start time.Time, err error) {
	result.Success = false
	result.Error = err.Error()
	result.Duration = s.now().Sub(start)

	s.mu.Lock()
	s.stats.TotalSyncs++
	s.stats.TotalErrors++
	s.stats.LastFailed = s.now()
	s.mu.Unlock()

	s.log.Error("Ошибка синхронизации", "mode", result.Mode, "error", err)
	s.bus.Publish(events.SyncError{Err: err.Error()})
}

func (s *SyncService) recordRun(result *SyncResult, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.TotalSyncs++
	if failed == 0 {
		s.stats.LastSuccessful = s.now()
	} else {
		s.stats.LastFailed = s.now()
		s.stats.FailedCollections += failed
	}
	s.stats.TotalUpdated += result.Summary.TotalUpdated
	s.stats.TotalDeleted += result.Summary.TotalDeleted

	// Обновляем среднюю продолжительность
	if s.stats.AvgSyncDuration == 0 {
		s.stats.AvgSyncDuration = result.Duration.Seconds()
	} else {
		s.stats.AvgSyncDuration = (s.stats.AvgSyncDuration*float64(s.stats.TotalSyncs-1) +
			result.Duration.Seconds()) / float64(s.stats.TotalSyncs)
	}

	s.lastCompleted = s.now()
}

// GetStats возвращает копию статистики
func (s *SyncService) GetStats() SyncStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// LastCompleted - время окончания последнего завершенного прохода
func (s *SyncService) LastCompleted() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastCompleted
}

func (s *SyncService) IsSyncing() bool {
	return s.running.Load()
}

// Collections - коллекции, которые обходит сервис
func (s *SyncService) Collections() []record.Collection {
	return append([]record.Collection(nil), s.config.Collections...)
}
