// Публичная часть:
//   POST /api/v1/sellers/register
//   POST /api/v1/sellers/login
//   GET  /api/v1/health
// Под bearer токеном:
//   GET  /sync/{resource}?since=...
//   POST /sync/{resource}

package api

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"

	healthAPI "possync/internal/app/server/api/http/health"
	"possync/internal/app/server/api/http/middleware"
	"possync/internal/app/server/api/http/middleware/auth"
	"possync/internal/app/server/api/http/middleware/logger"
	sellerAPI "possync/internal/app/server/api/http/seller"
	syncAPI "possync/internal/app/server/api/http/sync"
	"possync/internal/app/server/config"
	"possync/internal/domain/seller"
	"possync/internal/domain/session"
	"possync/internal/domain/sync"
	"possync/internal/infrastructure/storage/postgres"
)

type Handlers struct {
	Health *healthAPI.Handler
	Seller *sellerAPI.Handler
	Sync   *syncAPI.Handler
}

// New создает *chi.Mux со всеми операциями через huma.Register
func New(storage *postgres.Storage, cfg *config.Config, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	humaConfig := huma.DefaultConfig("POS Sync API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}

	API := humachi.New(mux, humaConfig)

	h := handlers(storage, cfg, log)
	h.Health.SetupRoutes(API)
	h.Seller.SetupRoutes(API)
	h.Sync.SetupRoutes(API)

	return mux
}

func handlers(storage *postgres.Storage, cfg *config.Config, log *slog.Logger) *Handlers {
	sessionRepo := postgres.NewSessionRepository(storage, log)
	sessionService := session.NewService(sessionRepo, cfg.Server.SessionTTL, log)
	authMW := auth.New(sessionService, log)
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthHandler := healthAPI.NewHandler(storage, log, middlewares.GetAllAndClear())

	sellerRepo := postgres.NewSellerRepository(storage, log)
	sellerService := seller.NewService(sellerRepo, seller.NewValidator(), log)
	middlewares.Add(loggerMW.Middleware())
	sellerHandler := sellerAPI.NewHandler(sellerService, sessionService, log, middlewares.GetAllAndClear())

	syncRepo := postgres.NewSyncRepository(storage, log)
	syncService := sync.NewService(syncRepo, log, &sync.ServiceConfig{
		MaxBatch:     cfg.Server.MaxBatch,
		MaxChanges:   cfg.Server.MaxChanges,
		CommitWindow: cfg.Server.CommitWindow,
	})
	middlewares.Add(authMW.Middleware())
	middlewares.Add(loggerMW.Middleware())
	syncHandler := syncAPI.NewHandler(syncService, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health: healthHandler,
		Seller: sellerHandler,
		Sync:   syncHandler,
	}
}
