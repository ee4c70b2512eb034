// AngelaMos | 2026
// handler.go

package ban

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/someoneelse131/purfacted-sub003/internal/core"
	"github.com/someoneelse131/purfacted-sub003/internal/middleware"
)

type BanUserRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
	// IP feeds the permanent blocklist on a level 3 ban; optional because
	// the last known address is not always on record.
	IP string `json:"ip" validate:"omitempty,ip"`
}

type BanStatusResponse struct {
	UserID string `json:"user_id"`
	Banned bool   `json:"banned"`
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

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, moderatorOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/users/{userID}/ban", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(moderatorOnly)

		r.Post("/", h.BanUser)
		r.Delete("/", h.UnbanUser)
		r.Get("/", h.GetStatus)
		r.Get("/history", h.GetHistory)
	})
}

func (h *Handler) BanUser(w http.ResponseWriter, r *http.Request) {
	moderatorID := middleware.GetUserID(r.Context())
	if moderatorID == "" {
		core.Unauthorized(w, "")
		return
	}

	userID := chi.URLParam(r, "userID")

	var req BanUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	b, err := h.service.BanUser(r.Context(), userID, req.Reason, moderatorID, req.IP)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "user")
		case errors.Is(err, core.ErrConflict):
			core.Conflict(w, "user is already permanently banned")
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.Created(w, b)
}

func (h *Handler) UnbanUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if err := h.service.UnbanUser(r.Context(), userID); err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "user")
		case errors.Is(err, core.ErrConflict):
			core.Conflict(w, "permanent bans cannot be lifted")
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.NoContent(w)
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	banned, err := h.service.IsUserBanned(r.Context(), userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "user")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, BanStatusResponse{UserID: userID, Banned: banned})
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	bans, err := h.service.History(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, bans)
}
