package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"possync/internal/infrastructure/migration"
)

type Storage struct {
	pool *pgxpool.Pool
}

// New применяет миграции и открывает пул соединений.
func New(ctx context.Context, databaseURI, migrationsPath string) (*Storage, error) {
	if err := migration.NewPostgres(migrationsPath, databaseURI).Up(); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	pool, err := pgxpool.New(ctx, databaseURI)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Storage{pool: pool}, nil
}

func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

func (s *Storage) Pool() *pgxpool.Pool {
	return s.pool
}

// Ping используется health endpoint'ом.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
