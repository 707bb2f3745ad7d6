package health

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"possync/internal/domain/record"
)

// Pinger - проверка доступности базы
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	db         Pinger
	log        *slog.Logger
	middleware huma.Middlewares
	now        func() time.Time
}

func NewHandler(db Pinger, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		db:         db,
		log:        log,
		middleware: middleware,
		now:        time.Now,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.healthCheckOp(), h.healthCheck)
}

// healthCheck опрашивают терминалы, чтобы понять, что связь вернулась.
// Без базы синхронизация невозможна, поэтому ответ 503.
func (h *Handler) healthCheck(ctx context.Context, _ *Input) (*Output, error) {
	out := &Output{
		Body: Response{
			Status:     "Ok",
			ServerTime: record.FormatTime(h.now()),
		},
	}
	if h.db == nil {
		return out, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.db.Ping(pingCtx); err != nil {
		h.log.Warn("database ping failed", "error", err)
		return nil, huma.Error503ServiceUnavailable("database unavailable")
	}
	out.Body.Database = "Ok"
	return out, nil
}
