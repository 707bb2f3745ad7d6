package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"possync/internal/app/server/api/http/middleware/auth"
	"possync/internal/domain/record"
)

// Servicer интерфейс сервиса синхронизации
type Servicer interface {
	// Changes возвращает изменения коллекции после указанного времени
	Changes(ctx context.Context, collection record.Collection, since *time.Time) (*Changes, error)

	// ProcessBatch сохраняет пакет записей, присланных терминалом
	ProcessBatch(ctx context.Context, collection record.Collection, recs []*record.Record) ([]*record.Record, error)
}

// Service реализация сервиса синхронизации
type Service struct {
	repo   Repository
	log    *slog.Logger
	config *ServiceConfig
	now    func() time.Time
}

const (
	DefaultMaxBatch     = 500
	DefaultMaxChanges   = 10000
	DefaultCommitWindow = 30 * time.Second
)

// NewService создает новый сервис синхронизации
func NewService(repo Repository, log *slog.Logger, config *ServiceConfig) *Service {
	cfg := ServiceConfig{}
	if config != nil {
		cfg = *config
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = DefaultMaxBatch
	}
	if cfg.MaxChanges <= 0 {
		cfg.MaxChanges = DefaultMaxChanges
	}
	if cfg.CommitWindow <= 0 {
		cfg.CommitWindow = DefaultCommitWindow
	}

	log = log.With("component", "sync")
	// страница из записей одного пакета не сдвинула бы курсор
	if cfg.MaxChanges <= cfg.MaxBatch {
		log.Warn("max changes raised above max batch", "max_batch", cfg.MaxBatch, "max_changes", cfg.MaxChanges)
		cfg.MaxChanges = cfg.MaxBatch * 2
	}

	return &Service{
		repo:   repo,
		log:    log,
		config: &cfg,
		now:    time.Now,
	}
}

// Changes возвращает изменения после указанного времени
func (s *Service) Changes(ctx context.Context, collection record.Collection, since *time.Time) (*Changes, error) {
	// Получаем sellerID из контекста (устанавливается middleware аутентификации)
	sellerID, ok := auth.GetSellerID(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	if err := collection.Validate(); err != nil {
		return nil, err
	}

	// курсор фиксируем до выборки и отодвигаем на окно коммита: запись,
	// которая еще в транзакции, придет в следующий раз. Повтор клиент пропустит
	serverTime := s.now().UTC().Add(-s.config.CommitWindow)

	var from time.Time
	if since != nil {
		from = *since
	}
	stored, err := s.repo.Changes(ctx, sellerID, collection, from, s.config.MaxChanges)
	if err != nil {
		return nil, fmt.Errorf("failed to get changes: %w", err)
	}

	out := &Changes{
		Updated:    make([]*record.Record, 0, len(stored)),
		Deleted:    make([]*record.Record, 0),
		ServerTime: serverTime,
	}
	for _, st := range stored {
		r := st.ToRecord()
		if st.IsDeleted {
			out.Deleted = append(out.Deleted, r)
			continue
		}
		out.Updated = append(out.Updated, r)
	}

	if len(stored) >= s.config.MaxChanges {
		// хвост уйдет следующим запросом. Курсор чуть раньше последней записи:
		// у записей одного пакета одинаковый updatedAt, повтор клиент пропустит
		if cursor := stored[len(stored)-1].UpdatedAt.UTC().Add(-time.Microsecond); cursor.Before(serverTime) {
			out.ServerTime = cursor
		}
		s.log.Warn("changes truncated", "seller_id", sellerID, "collection", collection, "limit", s.config.MaxChanges)
	}

	s.log.Debug("changes served",
		"seller_id", sellerID,
		"collection", collection,
		"full", since == nil,
		"updated", len(out.Updated),
		"deleted", len(out.Deleted),
	)
	return out, nil
}

// ProcessBatch обрабатывает пакет записей для синхронизации.
// Сервер выдает _id новым записям и ставит свой updatedAt, localId сохраняется.
func (s *Service) ProcessBatch(ctx context.Context, collection record.Collection, recs []*record.Record) ([]*record.Record, error) {
	sellerID, ok := auth.GetSellerID(ctx)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	if err := collection.Validate(); err != nil {
		return nil, err
	}
	if len(recs) > s.config.MaxBatch {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(recs), s.config.MaxBatch)
	}

	now := s.now().UTC()
	// от метки до коммита не больше окна, иначе запись может проскочить мимо курсора
	ctx, cancel := context.WithTimeout(ctx, s.config.CommitWindow)
	defer cancel()

	batch := make([]StoredRecord, 0, len(recs))
	for _, r := range recs {
		if r == nil {
			continue
		}
		serverID, err := s.resolveServerID(ctx, sellerID, collection, r)
		if err != nil {
			return nil, err
		}

		localID := r.LocalID
		if localID == "" && r.IDKind == record.KindLocal {
			localID = r.ID
		}

		batch = append(batch, StoredRecord{
			SellerID:   sellerID,
			Collection: collection,
			ServerID:   serverID,
			LocalID:    localID,
			Data:       r.Fields,
			IsDeleted:  r.IsDeleted,
			UpdatedAt:  now,
		})
	}

	if err := s.repo.UpsertBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to save batch: %w", err)
	}

	out := make([]*record.Record, 0, len(batch))
	for _, st := range batch {
		out = append(out, st.ToRecord())
	}

	s.log.Info("batch saved", "seller_id", sellerID, "collection", collection, "records", len(out))
	return out, nil
}

func (s *Service) resolveServerID(ctx context.Context, sellerID string, collection record.Collection, r *record.Record) (string, error) {
	if r.ServerID != "" {
		if _, err := uuid.Parse(r.ServerID); err != nil {
			return "", fmt.Errorf("%w: _id %q is not issued by this server", record.ErrInvalidRecord, r.ServerID)
		}
		return r.ServerID, nil
	}

	localID := r.LocalID
	if localID == "" {
		localID = r.ID
	}
	if localID == "" {
		return uuid.NewString(), nil
	}

	id, err := s.repo.FindServerID(ctx, sellerID, collection, localID)
	switch {
	case err == nil:
		return id, nil
	case errors.Is(err, ErrRecordNotFound):
		return uuid.NewString(), nil
	default:
		return "", fmt.Errorf("failed to resolve record %s: %w", localID, err)
	}
}
