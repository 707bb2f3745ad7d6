package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"possync/internal/domain/record"
	"possync/internal/domain/sync"
)

type Handler struct {
	service    sync.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service sync.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.getChangesOp(), h.getChanges)
	huma.Register(api, h.pushOp(), h.push)
}

func (h *Handler) getChanges(ctx context.Context, input *getChangesInput) (*getChangesOutput, error) {
	collection, err := record.FromResource(input.Resource)
	if err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}

	var since *time.Time
	if input.Since != "" {
		ts, err := record.ParseTime(input.Since)
		if err != nil {
			return nil, huma.Error400BadRequest(fmt.Sprintf("invalid since: %v", err))
		}
		since = &ts
	}

	changes, err := h.service.Changes(ctx, collection, since)
	if err != nil {
		h.log.Error("failed to get changes", "collection", collection, "error", err)
		return &getChangesOutput{
			Body: DeltaResponse{Success: false, Message: err.Error()},
		}, nil
	}

	data := &DeltaData{ServerTime: record.FormatTime(changes.ServerTime)}
	if data.Updated, err = toMaps(changes.Updated); err != nil {
		return nil, huma.Error500InternalServerError("encode records", err)
	}
	if data.Deleted, err = toMaps(changes.Deleted); err != nil {
		return nil, huma.Error500InternalServerError("encode records", err)
	}

	return &getChangesOutput{
		Body: DeltaResponse{Success: true, Data: data},
	}, nil
}

func (h *Handler) push(ctx context.Context, input *pushInput) (*pushOutput, error) {
	collection, err := record.FromResource(input.Resource)
	if err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}

	recs := make([]*record.Record, 0, len(input.Body.Records))
	for i, m := range input.Body.Records {
		r, err := record.FromMap(m)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity(fmt.Sprintf("records[%d]: %v", i, err))
		}
		recs = append(recs, r)
	}

	saved, err := h.service.ProcessBatch(ctx, collection, recs)
	if err != nil {
		if errors.Is(err, record.ErrInvalidRecord) || errors.Is(err, sync.ErrBatchTooLarge) {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		h.log.Error("failed to process batch", "collection", collection, "error", err)
		return &pushOutput{
			Body: PushResponse{Success: false, Message: err.Error()},
		}, nil
	}

	out, err := toMaps(saved)
	if err != nil {
		return nil, huma.Error500InternalServerError("encode records", err)
	}
	return &pushOutput{
		Body: PushResponse{Success: true, Records: out},
	}, nil
}

func toMaps(recs []*record.Record) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(recs))
	for _, r := range recs {
		m, err := r.Map()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
