package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"possync/internal/domain/session"
)

type Auth struct {
	session session.Servicer
	log     *slog.Logger
}

func New(session session.Servicer, log *slog.Logger) *Auth {
	return &Auth{
		session: session,
		log:     log.With("component", "auth_middleware"),
	}
}

type contextKey string

const SellerIDKey contextKey = "sellerID"

// Middleware возвращает middleware для Huma с сигнатурой func(ctx Context, next func(Context))
func (a *Auth) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		token, ok := strings.CutPrefix(ctx.Header("Authorization"), "Bearer ")
		if !ok || token == "" {
			a.log.Debug("missing bearer token", "path", ctx.URL().Path)
			a.unauthorized(ctx)
			return
		}

		// Валидируем токен
		sellerID, err := a.session.Validate(ctx.Context(), token)
		if err != nil {
			a.log.Warn("token validation failed", "path", ctx.URL().Path, "error", err)
			a.unauthorized(ctx)
			return
		}

		next(huma.WithContext(ctx, WithSellerID(ctx.Context(), sellerID)))
	}
}

func (a *Auth) unauthorized(ctx huma.Context) {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.SetStatus(http.StatusUnauthorized)

	err := json.NewEncoder(ctx.BodyWriter()).Encode(map[string]any{
		"success": false,
		"error":   "Unauthorized",
	})
	if err != nil {
		a.log.Error("failed to encode response", "error", err)
	}
}

// WithSellerID кладет ID продавца в контекст запроса.
func WithSellerID(ctx context.Context, sellerID string) context.Context {
	return context.WithValue(ctx, SellerIDKey, sellerID)
}

func GetSellerID(ctx context.Context) (string, bool) {
	sellerID, ok := ctx.Value(SellerIDKey).(string)
	return sellerID, ok && sellerID != ""
}
