// AngelaMos | 2026
// handler.go

package trust

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

type ApplyEventRequest struct {
	Action string `json:"action" validate:"required"`
}

type ScoreResponse struct {
	UserID string  `json:"user_id"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

type Handler struct {
	ledger    *Ledger
	calc      *Calculator
	validator *validator.Validate
}

func NewHandler(ledger *Ledger, calc *Calculator) *Handler {
	return &Handler{
		ledger:    ledger,
		calc:      calc,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/trust", func(r chi.Router) {
		r.Use(authenticator)
		r.Get("/me", h.GetMyScore)
		r.Get("/me/events", h.GetMyEvents)
	})
}

// RegisterAdminRoutes exposes the ledger controls moderation tooling and
// the verification pipeline call into.
func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, moderatorOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/trust/{userID}", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(moderatorOnly)

		r.Get("/", h.GetScore)
		r.Get("/events", h.GetEvents)
		r.Post("/events", h.ApplyEvent)
		r.Post("/reconcile", h.Reconcile)
	})
}

func (h *Handler) GetMyScore(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	h.writeScore(w, r, userID, middleware.GetUserType(r.Context()))
}

func (h *Handler) GetMyEvents(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	h.writeEvents(w, r, userID)
}

func (h *Handler) GetScore(w http.ResponseWriter, r *http.Request) {
	h.writeScore(w, r, chi.URLParam(r, "userID"), "")
}

func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	h.writeEvents(w, r, chi.URLParam(r, "userID"))
}

func (h *Handler) ApplyEvent(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req ApplyEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	newScore, err := h.ledger.ApplyEvent(r.Context(), userID, req.Action)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "user")
		case errors.Is(err, core.ErrValidation):
			core.BadRequest(w, err.Error())
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.OK(w, ScoreResponse{UserID: userID, Score: newScore})
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	result, err := h.ledger.Reconcile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "user")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, result)
}

func (h *Handler) writeScore(
	w http.ResponseWriter,
	r *http.Request,
	userID, userType string,
) {
	score, err := h.ledger.Score(r.Context(), userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "user")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	resp := ScoreResponse{UserID: userID, Score: score}
	if userType != "" {
		resp.Weight = h.calc.Weight(userType, score)
	}

	core.OK(w, resp)
}

func (h *Handler) writeEvents(
	w http.ResponseWriter,
	r *http.Request,
	userID string,
) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	events, err := h.ledger.Events(r.Context(), userID, limit)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, events)
}
