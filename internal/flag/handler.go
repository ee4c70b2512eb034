// AngelaMos | 2026
// handler.go

package flag

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/someoneelse131/purfacted-sub003/internal/core"
	"github.com/someoneelse131/purfacted-sub003/internal/middleware"
)

type FlagAccountRequest struct {
	UserID  string `json:"user_id" validate:"required,uuid4"`
	Reason  string `json:"reason"  validate:"omitempty,max=100"`
	Details string `json:"details" validate:"omitempty,max=2000"`
}

type ReviewFlagRequest struct {
	Resolution string `json:"resolution" validate:"required,oneof=dismiss warn ban"`
	Comment    string `json:"comment"    validate:"omitempty,max=2000"`
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

// RegisterAdminRoutes mounts the flag review surface; every route is
// moderator-only.
func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, moderatorOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/flags", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(moderatorOnly)

		r.Get("/", h.ListFlags)
		r.Post("/", h.FlagAccount)
		r.Post("/sweep", h.Sweep)
		r.Get("/{flagID}", h.GetFlag)
		r.Post("/{flagID}/review", h.ReviewFlag)
	})
}

func (h *Handler) ListFlags(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	flags, err := h.service.List(r.Context(), r.URL.Query().Get("status"), limit)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, flags)
}

func (h *Handler) FlagAccount(w http.ResponseWriter, r *http.Request) {
	var req FlagAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	f, err := h.service.FlagAccount(r.Context(), req.UserID, req.Reason, req.Details)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrConflict):
			core.Conflict(w, "account is already flagged")
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "user")
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.Created(w, f)
}

// Sweep triggers the threshold scan on demand; cmd/sweep drives the same
// path on a schedule.
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	flagged, err := h.service.AutoFlagNegativeVetoUsers(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, map[string]int{"flagged": flagged})
}

func (h *Handler) GetFlag(w http.ResponseWriter, r *http.Request) {
	f, err := h.service.Get(r.Context(), chi.URLParam(r, "flagID"))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "flag")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, f)
}

func (h *Handler) ReviewFlag(w http.ResponseWriter, r *http.Request) {
	reviewerID := middleware.GetUserID(r.Context())
	if reviewerID == "" {
		core.Unauthorized(w, "")
		return
	}

	var req ReviewFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	f, err := h.service.Review(
		r.Context(),
		chi.URLParam(r, "flagID"),
		reviewerID,
		req.Resolution,
		req.Comment,
	)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "flag")
		case errors.Is(err, core.ErrConflict):
			core.Conflict(w, "flag is already resolved")
		case errors.Is(err, core.ErrPermissionDenied):
			core.Forbidden(w, "cannot review your own flag")
		case errors.Is(err, core.ErrValidation):
			core.BadRequest(w, err.Error())
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.OK(w, f)
}
