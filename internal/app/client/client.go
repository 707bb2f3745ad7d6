package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/exp/slog"

	"possync/internal/app/client/config"
	"possync/internal/app/client/dedupe"
	"possync/internal/app/client/events"
	"possync/internal/app/client/kv"
	"possync/internal/app/client/metadata"
	"possync/internal/app/client/scheduler"
	"possync/internal/domain/record"
)

var ErrNoToken = errors.New("токен не найден. Выполните вход: possync auth login")

// App - координатор синхронизации: владеет хранилищем, метками,
// клиентом API, шиной событий и планировщиком.
type App struct {
	config     *config.Config
	log        *slog.Logger
	httpClient *httpClient
	storage    Storage
	sqlite     *SQLiteStorage
	redis      *kv.RedisKV
	meta       *metadata.Store
	group      *dedupe.Group[*Delta]
	bus        *events.Bus
	syncer     *CollectionSyncer
	sync       *SyncService
	monitor    *scheduler.ConnectivityMonitor
	scheduler  *scheduler.Scheduler
	now        func() time.Time
}

// Status - состояние синхронизации для `sync status`
type Status struct {
	Authenticated bool               `json:"authenticated"`
	Syncing       bool               `json:"syncing"`
	Stats         SyncStats          `json:"stats"`
	Collections   []CollectionStatus `json:"collections"`
}

type CollectionStatus struct {
	Collection record.Collection `json:"collection"`
	LastSync   *time.Time        `json:"lastSync,omitempty"`
	Total      int               `json:"total"`
	Dirty      int               `json:"dirty"`
}

// RecordFilter фильтр для списка записей
type RecordFilter struct {
	Deleted bool
	Dirty   bool
}

func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	app := &App{
		config: cfg,
		log:    log,
		now:    time.Now,
	}

	// Инициализируем локальное хранилище (используем SQLite)
	var tiers []metadata.Tier
	sqliteStorage, err := NewSQLiteStorage(cfg.DataPath)
	if err != nil {
		log.Warn("Не удалось инициализировать SQLite, используем память", "error", err)
		app.storage = NewMemoryStorage()
	} else {
		app.sqlite = sqliteStorage
		app.storage = sqliteStorage
		tiers = append(tiers, sqliteStorage)
	}

	if cfg.RedisAddr != "" {
		rkv, err := kv.NewRedisKV(ctx, cfg.RedisAddr, "possync:")
		if err != nil {
			log.Warn("Redis недоступен, метки хранятся локально", "error", err)
		} else {
			app.redis = rkv
			tiers = append(tiers, metadata.NewKVTier("redis", rkv))
		}
	}
	tiers = append(tiers, metadata.NewKVTier("file", kv.NewFileKV(cfg.KVPath)))

	app.meta = metadata.New(log, tiers)
	app.httpClient = NewHTTPClient(cfg.BaseURL(), cfg.Sync.RequestTimeout, log)
	app.group = dedupe.New[*Delta](cfg.Sync.CacheTTL)
	app.bus = events.NewBus(log)
	app.syncer = NewCollectionSyncer(app.httpClient, app.storage, app.meta, app.group, app.bus, app.now, log)
	app.sync = NewSyncService(app.syncer, app.meta, app.group, app.bus, SyncConfig{
		Parallel:    cfg.Sync.Parallel,
		MaxParallel: cfg.Sync.MaxParallel,
	}, app.now, log)

	app.monitor = scheduler.NewConnectivityMonitor(app.httpClient, cfg.Sync.ConnectivityInterval, log)

	// Загружаем токен если он есть
	if token, err := app.GetToken(); err == nil {
		app.httpClient.SetToken(token)
		log.Debug("Токен загружен из файла")
	}

	return app, nil
}

// NewScheduler собирает планировщик поверх сервиса синхронизации.
// focus может быть nil.
func (a *App) NewScheduler(focus scheduler.Source) *scheduler.Scheduler {
	opts := []scheduler.Option{scheduler.WithConnectivity(a.monitor)}
	if focus != nil {
		opts = append(opts, scheduler.WithFocus(focus))
	}
	a.scheduler = scheduler.New(a, a.monitor, scheduler.Config{
		Interval:       a.config.Sync.Interval,
		FocusDebounce:  a.config.Sync.FocusDebounce,
		ReconnectDelay: a.config.Sync.ReconnectDelay,
	}, a.log, opts...)
	return a.scheduler
}

// Run реализует scheduler.Runner.
func (a *App) Run(ctx context.Context, trigger scheduler.Trigger) {
	res := a.sync.Sync(ctx, ModeIncremental)
	if !res.Success {
		a.log.Debug("Синхронизация не выполнена", "trigger", trigger, "error", res.Error)
		return
	}
	a.log.Debug("Синхронизация по триггеру", "trigger", trigger, "failed", len(res.FailedCollections()))
}

func (a *App) LastCompleted() time.Time {
	return a.sync.LastCompleted()
}

func (a *App) Sync(ctx context.Context, mode Mode) *SyncResult {
	return a.sync.Sync(ctx, mode)
}

func (a *App) Events() *events.Bus {
	return a.bus
}

func (a *App) Logger() *slog.Logger {
	return a.log
}

func (a *App) Config() *config.Config {
	return a.config
}

func (a *App) Monitor() *scheduler.ConnectivityMonitor {
	return a.monitor
}

func (a *App) CheckConnection(ctx context.Context) error {
	return a.httpClient.HealthCheck(ctx)
}

// Status собирает метки и счетчики по всем коллекциям.
func (a *App) Status(ctx context.Context) (*Status, error) {
	st := &Status{
		Authenticated: a.IsAuthenticated(),
		Syncing:       a.sync.IsSyncing(),
		Stats:         a.sync.GetStats(),
	}

	for _, c := range a.sync.Collections() {
		cs := CollectionStatus{Collection: c}
		if ts, ok := a.meta.GetLastSync(ctx, c); !metadata.NeedsFullSync(ts, ok) {
			cs.LastSync = &ts
		}

		total, dirty, err := a.countRecords(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c, err)
		}
		cs.Total, cs.Dirty = total, dirty
		st.Collections = append(st.Collections, cs)
	}
	return st, nil
}

func (a *App) countRecords(ctx context.Context, c record.Collection) (total, dirty int, err error) {
	if a.sqlite != nil {
		return a.sqlite.CountRecords(ctx, c)
	}
	recs, err := a.storage.GetAll(ctx, c)
	if err != nil {
		return 0, 0, err
	}
	for _, r := range recs {
		if !r.IsSynced {
			dirty++
		}
	}
	return len(recs), dirty, nil
}

// ResetSync сбрасывает все метки: следующий проход будет полным.
func (a *App) ResetSync(ctx context.Context) {
	a.meta.ResetAll(ctx)
	a.group.ClearAll()
	a.log.Info("Метки синхронизации сброшены")
}

// AddRecord заводит локальную запись, она уйдет на сервер при `sync push`.
func (a *App) AddRecord(ctx context.Context, collection record.Collection, data []byte) (*record.Record, error) {
	if err := collection.Validate(); err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", record.ErrInvalidRecord, err)
	}
	for _, k := range []string{"id", "_id", "serverId", "localId", "isSynced", "isDeleted", "updatedAt"} {
		delete(fields, k)
	}

	rec := record.NewLocal(fields, a.now())
	if err := a.storage.Add(ctx, collection, rec); err != nil {
		return nil, fmt.Errorf("failed to add record: %w", err)
	}

	a.log.Info("Запись создана", "collection", collection, "id", rec.ID)
	return rec, nil
}

// ListRecords возвращает записи коллекции. Удаленные скрыты, пока не запрошены явно.
func (a *App) ListRecords(ctx context.Context, collection record.Collection, filter RecordFilter) ([]*record.Record, error) {
	if err := collection.Validate(); err != nil {
		return nil, err
	}

	recs, err := a.storage.GetAll(ctx, collection)
	if err != nil {
		return nil, err
	}

	out := recs[:0]
	for _, r := range recs {
		if r.IsDeleted && !filter.Deleted {
			continue
		}
		if filter.Dirty && r.IsSynced {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// IsAuthenticated проверяет, сохранен ли токен продавца
func (a *App) IsAuthenticated() bool {
	token, err := a.GetToken()
	return err == nil && token != ""
}

// GetToken возвращает сохраненный токен
func (a *App) GetToken() (string, error) {
	tokenBytes, err := os.ReadFile(a.config.TokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("ошибка чтения токена: %w", err)
	}
	token := strings.TrimSpace(string(tokenBytes))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// SaveToken сохраняет токен аутентификации
func (a *App) SaveToken(token string) error {
	if err := os.WriteFile(a.config.TokenPath, []byte(token), 0600); err != nil {
		return fmt.Errorf("ошибка сохранения токена: %w", err)
	}

	a.httpClient.SetToken(token)
	return nil
}

// ClearToken удаляет токен
func (a *App) ClearToken() error {
	if err := os.Remove(a.config.TokenPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления токена: %w", err)
	}
	a.httpClient.SetToken("")
	return nil
}

// Register регистрирует нового продавца
func (a *App) Register(ctx context.Context, login, password string) (string, error) {
	id, err := a.httpClient.Register(ctx, login, password)
	if err != nil {
		return "", err
	}

	a.log.Info("Продавец успешно зарегистрирован", "login", login)
	return id, nil
}

// Login выполняет вход и сохраняет токен
func (a *App) Login(ctx context.Context, login, password string) (string, error) {
	token, err := a.httpClient.Login(ctx, login, password)
	if err != nil {
		return "", err
	}

	if err = a.SaveToken(token); err != nil {
		return "", err
	}

	a.log.Info("Вход выполнен успешно", "login", login)
	return token, nil
}

func (a *App) Close() error {
	var errs []error
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.sqlite != nil {
		errs = append(errs, a.sqlite.Close())
	}
	return errors.Join(errs...)
}
