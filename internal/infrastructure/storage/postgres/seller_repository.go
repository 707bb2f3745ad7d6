package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/exp/slog"

	"possync/internal/domain/seller"
)

// код ошибки postgres unique_violation
const uniqueViolation = "23505"

type SellerRepository struct {
	db  *Storage
	log *slog.Logger
}

func NewSellerRepository(db *Storage, log *slog.Logger) *SellerRepository {
	return &SellerRepository{
		db:  db,
		log: log,
	}
}

func (r *SellerRepository) Create(ctx context.Context, s seller.Seller) error {
	_, err := r.db.Pool().Exec(ctx,
		`INSERT INTO sellers (id, login, password, created_at) VALUES ($1, $2, $3, $4)`,
		s.ID, s.Login, s.Password, s.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return seller.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create seller: %w", err)
	}
	return nil
}

func (r *SellerRepository) FindByLogin(ctx context.Context, login string) (seller.Seller, error) {
	var s seller.Seller
	err := r.db.Pool().QueryRow(ctx,
		`SELECT id::text, login, password, created_at FROM sellers WHERE login = $1`, login).
		Scan(&s.ID, &s.Login, &s.Password, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return s, seller.ErrNotFound
	}
	if err != nil {
		return s, fmt.Errorf("failed to find seller: %w", err)
	}
	return s, nil
}
