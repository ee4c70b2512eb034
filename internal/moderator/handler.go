// AngelaMos | 2026
// handler.go

package moderator

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/someoneelse131/purfacted-sub003/internal/core"
	"github.com/someoneelse131/purfacted-sub003/internal/middleware"
)

type AppointRequest struct {
	UserID string `json:"user_id" validate:"required,uuid4"`
}

type PhaseResponse struct {
	Phase string `json:"phase"`
}

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/moderators/phase", h.GetPhase)
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, moderatorOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/moderators", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(moderatorOnly)

		r.Get("/", h.ListModerators)
		r.Post("/", h.Appoint)
		r.Post("/reconcile", h.Reconcile)
		r.Delete("/{userID}", h.Demote)
		r.Post("/{userID}/return", h.HandleReturning)
	})
}

func (h *Handler) GetPhase(w http.ResponseWriter, r *http.Request) {
	phase, err := h.service.Phase(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, PhaseResponse{Phase: phase})
}

func (h *Handler) ListModerators(w http.ResponseWriter, r *http.Request) {
	mods, err := h.service.ActiveModerators(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, mods)
}

func (h *Handler) Appoint(w http.ResponseWriter, r *http.Request) {
	appointerID := middleware.GetUserID(r.Context())
	if appointerID == "" {
		core.Unauthorized(w, "")
		return
	}

	var req AppointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	slot, err := h.service.Appoint(r.Context(), req.UserID, appointerID)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "user")
		case errors.Is(err, core.ErrConflict):
			core.Conflict(w, "user is already a moderator")
		case errors.Is(err, core.ErrPermissionDenied):
			core.Forbidden(w, "organizations cannot moderate")
		case errors.Is(err, core.ErrCapacityExceeded):
			core.JSONError(
				w,
				core.CapacityExceededError("moderator slots are full"),
			)
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.Created(w, slot)
}

func (h *Handler) Demote(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if err := h.service.Demote(r.Context(), userID); err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "user")
		case errors.Is(err, core.ErrConflict):
			core.Conflict(w, "user is not a moderator")
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.NoContent(w)
}

func (h *Handler) HandleReturning(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if err := h.service.HandleReturning(r.Context(), userID); err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "moderator slot")
		case errors.Is(err, core.ErrConflict):
			core.Conflict(w, "slot is not inactive")
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.NoContent(w)
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Reconcile(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, report)
}
