// Package handler exposes the cancellation saga over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"brokerhub/internal/cancellation/service"
	dErrors "brokerhub/pkg/domain-errors"
	"brokerhub/pkg/platform/httputil"
	"brokerhub/pkg/requestcontext"
)

// Service defines the cancellation operations the handler depends on.
type Service interface {
	Cancel(ctx context.Context, input service.Input) error
}

type Handler struct {
	logger       *slog.Logger
	cancellation Service
}

func New(cancellation Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, cancellation: cancellation}
}

// Register mounts the cancellation routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/subscriptions/cancel", h.handleCancel)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input service.Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.WarnContext(ctx, "invalid cancellation request body",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.cancellation.Cancel(ctx, input); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeInvalidInput) && !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "cancellation failed",
				"request_id", requestcontext.RequestID(ctx),
				"subscription_id", input.SubscriptionID,
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
