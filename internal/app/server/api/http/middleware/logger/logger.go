package logger

import (
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"possync/internal/app/server/api/http/middleware/auth"
)

// Logger middleware для логирования входящих HTTP запросов
type Logger struct {
	log *slog.Logger
	now func() time.Time
}

func New(log *slog.Logger) *Logger {
	return &Logger{
		log: log.With(slog.String("component", "http_logger")),
		now: time.Now,
	}
}

func (l *Logger) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		start := l.now()

		next(ctx)

		attrs := []any{
			slog.String("method", ctx.Method()),
			slog.String("path", ctx.URL().Path),
			slog.Int("status", ctx.Status()),
			slog.Duration("duration", l.now().Sub(start)),
			slog.String("remote_addr", ctx.RemoteAddr()),
		}
		if sellerID, ok := auth.GetSellerID(ctx.Context()); ok {
			attrs = append(attrs, slog.String("seller_id", sellerID))
		}

		switch status := ctx.Status(); {
		case status >= 500:
			l.log.Error("HTTP request", attrs...)
		case status >= 400:
			l.log.Warn("HTTP request", attrs...)
		default:
			l.log.Info("HTTP request", attrs...)
		}
	}
}
