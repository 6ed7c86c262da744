// Package handler exposes the signup saga over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"brokerhub/internal/signup/service"
	dErrors "brokerhub/pkg/domain-errors"
	"brokerhub/pkg/platform/httputil"
	"brokerhub/pkg/requestcontext"
)

// Service defines the signup operations the handler depends on.
type Service interface {
	Signup(ctx context.Context, input service.Input) (*service.Result, error)
}

type Handler struct {
	logger *slog.Logger
	signup Service
}

func New(signup Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, signup: signup}
}

// Register mounts the signup routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/signup", h.handleSignup)
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input service.Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.WarnContext(ctx, "invalid signup request body",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.signup.Signup(ctx, input)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeValidation) && !dErrors.HasCode(err, dErrors.CodeConflict) {
			h.logger.ErrorContext(ctx, "signup failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, result)
}
