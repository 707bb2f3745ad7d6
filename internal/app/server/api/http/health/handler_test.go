package health

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/slog"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHandler_healthCheck(t *testing.T) {
	tests := []struct {
		name           string
		db             Pinger
		expectedCode   int
		expectedStatus string
	}{
		{
			name:           "no database configured",
			expectedCode:   http.StatusOK,
			expectedStatus: "Ok",
		},
		{
			name:           "database reachable",
			db:             pingerFunc(func(context.Context) error { return nil }),
			expectedCode:   http.StatusOK,
			expectedStatus: "Ok",
		},
		{
			name:         "database down",
			db:           pingerFunc(func(context.Context) error { return errors.New("connection refused") }),
			expectedCode: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, api := humatest.New(t)
			handler := NewHandler(tt.db, slog.Default(), huma.Middlewares{})
			handler.SetupRoutes(api)

			resp := api.Get("/api/v1/health")

			assert.Equal(t, tt.expectedCode, resp.Code)
			if tt.expectedStatus != "" {
				assert.Contains(t, resp.Body.String(), `"status":"`+tt.expectedStatus+`"`)
				assert.Contains(t, resp.Body.String(), `"serverTime"`)
			}
		})
	}
}
