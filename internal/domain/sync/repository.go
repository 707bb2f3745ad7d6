package sync

import (
	"context"
	"time"

	"possync/internal/domain/record"
)

// Repository интерфейс для работы с записями коллекций
type Repository interface {
	// Changes - записи, измененные строго после since; нулевой since - вся коллекция
	Changes(ctx context.Context, sellerID string, collection record.Collection, since time.Time, limit int) ([]StoredRecord, error)
	// FindServerID ищет запись, ранее присланную терминалом под localID
	FindServerID(ctx context.Context, sellerID string, collection record.Collection, localID string) (string, error)
	// UpsertBatch сохраняет записи одной транзакцией
	UpsertBatch(ctx context.Context, recs []StoredRecord) error
}
