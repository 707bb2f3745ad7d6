package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/exp/slog"

	"possync/internal/domain/record"
	"possync/internal/domain/sync"
)

// SyncRepository реализация репозитория синхронизации для PostgreSQL
type SyncRepository struct {
	db  *Storage
	log *slog.Logger
}

// NewSyncRepository создает новый репозиторий синхронизации
func NewSyncRepository(db *Storage, log *slog.Logger) *SyncRepository {
	return &SyncRepository{
		db:  db,
		log: log,
	}
}

// Changes возвращает записи коллекции, измененные после since
func (r *SyncRepository) Changes(ctx context.Context, sellerID string, collection record.Collection, since time.Time, limit int) ([]sync.StoredRecord, error) {
	query := `
		SELECT server_id::text, local_id, data, is_deleted, updated_at
		FROM sync_records
		WHERE seller_id = $1 AND collection = $2 AND updated_at > $3
		ORDER BY updated_at, server_id
		LIMIT $4
	`

	rows, err := r.db.Pool().Query(ctx, query, sellerID, string(collection), since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query changes: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (sync.StoredRecord, error) {
		st := sync.StoredRecord{SellerID: sellerID, Collection: collection}
		var data []byte
		if err := row.Scan(&st.ServerID, &st.LocalID, &data, &st.IsDeleted, &st.UpdatedAt); err != nil {
			return st, err
		}
		if err := json.Unmarshal(data, &st.Data); err != nil {
			return st, fmt.Errorf("record %s: %w", st.ServerID, err)
		}
		return st, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan changes: %w", err)
	}
	return out, nil
}

// FindServerID ищет _id записи по localId терминала
func (r *SyncRepository) FindServerID(ctx context.Context, sellerID string, collection record.Collection, localID string) (string, error) {
	var id string
	err := r.db.Pool().QueryRow(ctx,
		`SELECT server_id::text FROM sync_records
         WHERE seller_id = $1 AND collection = $2 AND local_id = $3`,
		sellerID, string(collection), localID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", sync.ErrRecordNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to find record: %w", err)
	}
	return id, nil
}

// UpsertBatch сохраняет пакет одной транзакцией. localId, однажды
// записанный, не перезаписывается.
func (r *SyncRepository) UpsertBatch(ctx context.Context, recs []sync.StoredRecord) (err error) {
	if len(recs) == 0 {
		return nil
	}

	query := `
		INSERT INTO sync_records
			(seller_id, collection, server_id, local_id, data, is_deleted, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (seller_id, collection, server_id) DO UPDATE SET
			local_id = CASE WHEN sync_records.local_id = '' THEN EXCLUDED.local_id ELSE sync_records.local_id END,
			data = EXCLUDED.data,
			is_deleted = EXCLUDED.is_deleted,
			updated_at = EXCLUDED.updated_at
	`

	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				r.log.Error("failed to rollback", "error", rbErr)
			}
		}
	}()

	batch := &pgx.Batch{}
	for _, st := range recs {
		data, mErr := json.Marshal(st.Data)
		if mErr != nil {
			return fmt.Errorf("record %s: %w", st.ServerID, mErr)
		}
		if st.Data == nil {
			data = []byte("{}")
		}
		batch.Queue(query, st.SellerID, string(st.Collection), st.ServerID, st.LocalID, data, st.IsDeleted, st.UpdatedAt)
	}

	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert batch: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	r.log.Debug("batch upserted", "records", len(recs))
	return nil
}
