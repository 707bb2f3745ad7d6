package client

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"possync/internal/domain/record"
	"possync/internal/infrastructure/migration"
)

// SQLiteStorage - локальное хранилище клиента. Кроме записей коллекций
// хранит метки синхронизации и служит первым уровнем metadata.Store.
type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	if err := migration.NewSQLite(path).Up(); err != nil {
		return nil, fmt.Errorf("ошибка миграции локальной базы: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

const selectRecords = `
	SELECT id, id_kind, server_id, local_id, is_synced, is_deleted, updated_at, data
	FROM records
	WHERE collection = ?`

func (s *SQLiteStorage) GetAll(ctx context.Context, collection record.Collection) ([]*record.Record, error) {
	rows, err := s.db.QueryContext(ctx, selectRecords+" ORDER BY updated_at", string(collection))
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer rows.Close()

	var records []*record.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения записей: %w", err)
	}
	return records, nil
}

func (s *SQLiteStorage) Get(ctx context.Context, collection record.Collection, id string) (*record.Record, error) {
	row := s.db.QueryRowContext(ctx, selectRecords+" AND id = ?", string(collection), id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", record.ErrNotFound, collection, id)
	}
	return rec, err
}

func (s *SQLiteStorage) Add(ctx context.Context, collection record.Collection, rec *record.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("ошибка сериализации полей: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (collection, id, id_kind, server_id, local_id, is_synced, is_deleted, updated_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(collection), rec.ID, string(rec.IDKind), rec.ServerID, rec.LocalID,
		rec.IsSynced, rec.IsDeleted, record.FormatTime(rec.UpdatedAt), string(data))
	if err != nil {
		return fmt.Errorf("ошибка сохранения записи: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Update(ctx context.Context, collection record.Collection, rec *record.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("ошибка сериализации полей: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE records
		SET id_kind = ?, server_id = ?, local_id = ?, is_synced = ?, is_deleted = ?, updated_at = ?, data = ?
		WHERE collection = ? AND id = ?
	`, string(rec.IDKind), rec.ServerID, rec.LocalID, rec.IsSynced, rec.IsDeleted,
		record.FormatTime(rec.UpdatedAt), string(data), string(collection), rec.ID)
	if err != nil {
		return fmt.Errorf("ошибка обновления записи: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s/%s", record.ErrNotFound, collection, rec.ID)
	}
	return nil
}

// UpdateMany вставляет или обновляет записи одной транзакцией.
func (s *SQLiteStorage) UpdateMany(ctx context.Context, collection record.Collection, recs []*record.Record, skipValidation bool) (err error) {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (collection, id, id_kind, server_id, local_id, is_synced, is_deleted, updated_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			id_kind = excluded.id_kind,
			server_id = excluded.server_id,
			local_id = excluded.local_id,
			is_synced = excluded.is_synced,
			is_deleted = excluded.is_deleted,
			updated_at = excluded.updated_at,
			data = excluded.data
	`)
	if err != nil {
		return fmt.Errorf("ошибка подготовки запроса: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		if !skipValidation {
			if err = rec.Validate(); err != nil {
				return err
			}
		}
		var data []byte
		data, err = json.Marshal(rec.Fields)
		if err != nil {
			return fmt.Errorf("ошибка сериализации полей %s: %w", rec.ID, err)
		}
		if _, err = stmt.ExecContext(ctx, string(collection), rec.ID, string(rec.IDKind), rec.ServerID, rec.LocalID,
			rec.IsSynced, rec.IsDeleted, record.FormatTime(rec.UpdatedAt), string(data)); err != nil {
			return fmt.Errorf("ошибка сохранения записи %s: %w", rec.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Delete(ctx context.Context, collection record.Collection, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE collection = ? AND id = ?", string(collection), id)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) CountRecords(ctx context.Context, collection record.Collection) (total, dirty int, err error) {
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_synced = 0 THEN 1 ELSE 0 END), 0) FROM records WHERE collection = ?",
		string(collection)).Scan(&total, &dirty)
	if err != nil {
		return 0, 0, fmt.Errorf("ошибка подсчета записей: %w", err)
	}
	return total, dirty, nil
}

// Name, LastSync и SetLastSync реализуют metadata.Tier.
func (s *SQLiteStorage) Name() string { return "sqlite" }

func (s *SQLiteStorage) LastSync(ctx context.Context, collection record.Collection) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT last_sync FROM sync_metadata WHERE collection = ?", string(collection)).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("ошибка чтения метки синхронизации: %w", err)
	}
	return v, true, nil
}

func (s *SQLiteStorage) SetLastSync(ctx context.Context, collection record.Collection, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_metadata (collection, last_sync) VALUES (?, ?)
		ON CONFLICT(collection) DO UPDATE SET last_sync = excluded.last_sync
	`, string(collection), value)
	if err != nil {
		return fmt.Errorf("ошибка записи метки синхронизации: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*record.Record, error) {
	var (
		rec       record.Record
		kind      string
		updatedAt string
		data      string
	)
	if err := row.Scan(&rec.ID, &kind, &rec.ServerID, &rec.LocalID, &rec.IsSynced, &rec.IsDeleted, &updatedAt, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
	}
	rec.IDKind = record.IDKind(kind)

	ts, err := record.ParseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга updated_at %s: %w", rec.ID, err)
	}
	rec.UpdatedAt = ts

	if err := json.Unmarshal([]byte(data), &rec.Fields); err != nil {
		return nil, fmt.Errorf("ошибка парсинга полей %s: %w", rec.ID, err)
	}
	if rec.Fields == nil {
		rec.Fields = make(map[string]json.RawMessage)
	}
	return &rec, nil
}
