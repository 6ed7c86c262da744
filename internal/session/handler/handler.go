// Package handler exposes session lifecycle events over HTTP. The identity
// provider posts an event here whenever a principal signs in or out.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"brokerhub/internal/session/models"
	id "brokerhub/pkg/domain"
	dErrors "brokerhub/pkg/domain-errors"
	"brokerhub/pkg/platform/httputil"
	"brokerhub/pkg/requestcontext"
)

const (
	eventTypeEstablished = "principal_established"
	eventTypeSignedOut   = "principal_signed_out"
)

// Service defines the session operations the handler depends on.
type Service interface {
	HandleSessionEvent(ctx context.Context, event models.Event) (*models.Session, error)
}

type Handler struct {
	logger   *slog.Logger
	sessions Service
}

func New(sessions Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, sessions: sessions}
}

// Register mounts the session routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/sessions/events", h.handleEvent)
}

type eventRequest struct {
	Type          string         `json:"type"`
	PrincipalID   id.PrincipalID `json:"principal_id"`
	Email         string         `json:"email"`
	EmailVerified bool           `json:"email_verified"`
}

func (r eventRequest) toEvent() (models.Event, error) {
	switch r.Type {
	case eventTypeEstablished:
		return models.PrincipalEstablished{
			PrincipalID:   r.PrincipalID,
			Email:         r.Email,
			EmailVerified: r.EmailVerified,
		}, nil
	case eventTypeSignedOut:
		return models.PrincipalSignedOut{PrincipalID: r.PrincipalID}, nil
	}
	return nil, dErrors.Newf(dErrors.CodeBadRequest, "unknown event type %q", r.Type)
}

func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid session event body",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	event, err := req.toEvent()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	sess, err := h.sessions.HandleSessionEvent(ctx, event)
	if err != nil {
		// Denials are expected traffic, keep them out of the error log.
		if !dErrors.HasCode(err, dErrors.CodeUnauthorized) &&
			!dErrors.HasCode(err, dErrors.CodeUnrecoverableSession) &&
			!dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			h.logger.ErrorContext(ctx, "session event failed",
				"request_id", requestcontext.RequestID(ctx),
				"event_type", req.Type,
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, sess)
}
