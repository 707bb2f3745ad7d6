package seller

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"possync/internal/domain/seller"
	"possync/internal/domain/session"
)

type Handler struct {
	service    seller.Servicer
	session    session.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service seller.Servicer, session session.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		session:    session,
		log:        log,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.registerOp(), h.register)
	huma.Register(api, h.loginOp(), h.login)
}

func (h *Handler) register(ctx context.Context, input *registerInput) (*registerOutput, error) {
	sellerID, err := h.service.Register(ctx, input.Body.Login, input.Body.Password)
	if err != nil {
		if !errors.Is(err, seller.ErrAlreadyExists) && !errors.Is(err, seller.ErrInvalidInput) {
			h.log.Error("failed to register seller", "error", err)
		}
		return &registerOutput{
			Body: RegisterResponse{Status: "Error", Error: err.Error()},
		}, nil
	}

	return &registerOutput{
		Body: RegisterResponse{ID: sellerID, Status: "Ok"},
	}, nil
}

func (h *Handler) login(ctx context.Context, input *loginInput) (*loginOutput, error) {
	s, err := h.service.Authenticate(ctx, input.Body.Login, input.Body.Password)
	if err != nil {
		return &loginOutput{
			Body: LoginResponse{
				Status: "Error",
				Error:  "Invalid credentials",
			},
		}, nil
	}

	token, err := h.session.Create(ctx, s.ID)
	if err != nil {
		h.log.Error("failed to create session", "seller_id", s.ID, "error", err)
		return &loginOutput{
			Body: LoginResponse{
				Status: "Error",
				Error:  fmt.Errorf("create session: %w", err).Error(),
			},
		}, nil
	}

	return &loginOutput{
		Body: LoginResponse{
			Token:  token,
			Status: "Ok",
		},
	}, nil
}
