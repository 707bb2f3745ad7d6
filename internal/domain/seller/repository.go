package seller

import (
	"context"
)

type Repository interface {
	Create(ctx context.Context, s Seller) error
	FindByLogin(ctx context.Context, login string) (Seller, error)
}
