package seller

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) registerOp() huma.Operation {
	return huma.Operation{
		OperationID: "seller-register",
		Method:      http.MethodPost,
		Path:        "/api/v1/sellers/register",
		Summary:     "Регистрация продавца",
		Tags:        []string{"sellers"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) loginOp() huma.Operation {
	return huma.Operation{
		OperationID: "seller-login",
		Method:      http.MethodPost,
		Path:        "/api/v1/sellers/login",
		Summary:     "Авторизация продавца",
		Tags:        []string{"sellers"},
		Middlewares: h.middleware,
	}
}
