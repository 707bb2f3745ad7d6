package session

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, sellerID, secretHash string, expiresAt time.Time) error
	// ActiveHashes - хэши неистекших сессий продавца
	ActiveHashes(ctx context.Context, sellerID string) ([]string, error)
}
