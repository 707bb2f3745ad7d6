package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

var ErrInvalidToken = errors.New("invalid session")

const (
	DefaultTTL = 30 * 24 * time.Hour
	// проверенные токены не гоняем через bcrypt на каждый запрос синхронизации
	validatedTTL = 5 * time.Minute
)

type Servicer interface {
	Create(ctx context.Context, sellerID string) (string, error)
	Validate(ctx context.Context, token string) (string, error)
}

type Service struct {
	repo      Repository
	ttl       time.Duration
	validated *cache.Cache
	log       *slog.Logger
}

func NewService(repo Repository, ttl time.Duration, log *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		repo:      repo,
		ttl:       ttl,
		validated: cache.New(validatedTTL, 2*validatedTTL),
		log:       log.With("component", "session"),
	}
}

// Create выдает токен вида <sellerID>.<secret>; в базе хранится только bcrypt хэш секрета.
func (s *Service) Create(ctx context.Context, sellerID string) (string, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}

	if err := s.repo.Create(ctx, sellerID, string(hash), time.Now().Add(s.ttl)); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}

	return sellerID + "." + secret, nil
}

// Validate возвращает ID продавца, которому выдан токен.
func (s *Service) Validate(ctx context.Context, token string) (string, error) {
	if v, ok := s.validated.Get(token); ok {
		return v.(string), nil
	}

	sellerID, secret, ok := strings.Cut(token, ".")
	if !ok || sellerID == "" || secret == "" {
		return "", ErrInvalidToken
	}

	hashes, err := s.repo.ActiveHashes(ctx, sellerID)
	if err != nil {
		return "", fmt.Errorf("load sessions: %w", err)
	}

	for _, h := range hashes {
		if bcrypt.CompareHashAndPassword([]byte(h), []byte(secret)) == nil {
			s.validated.SetDefault(token, sellerID)
			return sellerID, nil
		}
	}

	s.log.Debug("token rejected", "seller_id", sellerID, "sessions", len(hashes))
	return "", ErrInvalidToken
}
