package seller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

type Servicer interface {
	Register(ctx context.Context, login, password string) (string, error)
	Authenticate(ctx context.Context, login, password string) (Seller, error)
}

type Service struct {
	repo      Repository
	validator Validator
	log       *slog.Logger
}

func NewService(repo Repository, validator Validator, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		validator: validator,
		log:       log.With("component", "seller"),
	}
}

func (s *Service) Register(ctx context.Context, login, password string) (string, error) {
	if err := s.validator.ValidateRegister(login, password); err != nil {
		s.log.Debug("validation failed", "login", login, "error", err)
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("Хэш пароля: %w", err)
	}

	seller := Seller{
		ID:        uuid.NewString(),
		Login:     login,
		Password:  string(hash),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, seller); err != nil {
		return "", err
	}

	s.log.Info("seller registered", "seller_id", seller.ID)
	return seller.ID, nil
}

func (s *Service) Authenticate(ctx context.Context, login, password string) (Seller, error) {
	if err := s.validator.ValidateLogin(login); err != nil {
		return Seller{}, ErrInvalidAuth
	}

	seller, err := s.repo.FindByLogin(ctx, login)
	if errors.Is(err, ErrNotFound) {
		return Seller{}, ErrInvalidAuth
	}
	if err != nil {
		return Seller{}, fmt.Errorf("find seller: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(seller.Password), []byte(password)); err != nil {
		return Seller{}, ErrInvalidAuth
	}
	return seller, nil
}
