package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/exp/slog"
)

type SessionRepository struct {
	db  *Storage
	log *slog.Logger
}

func NewSessionRepository(db *Storage, log *slog.Logger) *SessionRepository {
	return &SessionRepository{
		db:  db,
		log: log,
	}
}

func (r *SessionRepository) Create(ctx context.Context, sellerID, secretHash string, expiresAt time.Time) error {
	_, err := r.db.Pool().Exec(ctx,
		`INSERT INTO sessions (seller_id, secret_hash, expires_at) VALUES ($1, $2, $3)`,
		sellerID, secretHash, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *SessionRepository) ActiveHashes(ctx context.Context, sellerID string) ([]string, error) {
	rows, err := r.db.Pool().Query(ctx,
		`SELECT secret_hash FROM sessions
         WHERE seller_id::text = $1 AND expires_at > NOW()
         ORDER BY created_at DESC`,
		sellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	hashes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}
	return hashes, nil
}
