package health

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) healthCheckOp() huma.Operation {
	return huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/v1/health",
		Summary:     "Состояние сервера",
		Description: "Проверяет базу и возвращает serverTime; терминалы опрашивают его, чтобы понять, что сеть вернулась",
		Errors:      []int{http.StatusServiceUnavailable},
		Tags:        []string{"health"},
		Middlewares: h.middleware,
	}
}
