// AngelaMos | 2026
// handler.go

package veto

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/someoneelse131/purfacted-sub003/internal/core"
	"github.com/someoneelse131/purfacted-sub003/internal/middleware"
)

type SubmitVetoRequest struct {
	FactID  string   `json:"fact_id" validate:"required,uuid4"`
	Reason  string   `json:"reason"  validate:"required,min=10,max=2000"`
	Sources []string `json:"sources" validate:"required,min=1,max=10,dive,required,url"`
}

type VetoVoteRequest struct {
	Value int `json:"value" validate:"required,oneof=1 -1"`
}

type VetoResponse struct {
	ID          string     `json:"id"`
	FactID      string     `json:"fact_id"`
	SubmitterID string     `json:"submitter_id"`
	Reason      string     `json:"reason"`
	Sources     []string   `json:"sources"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

func toVetoResponse(v *Veto) VetoResponse {
	return VetoResponse{
		ID:          v.ID,
		FactID:      v.FactID,
		SubmitterID: v.SubmitterID,
		Reason:      v.Reason,
		Sources:     v.Sources,
		Status:      v.Status,
		CreatedAt:   v.CreatedAt,
		ResolvedAt:  v.ResolvedAt,
	}
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

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/vetoes", func(r chi.Router) {
		r.Get("/{vetoID}", h.GetVeto)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Post("/", h.SubmitVeto)
			r.Post("/{vetoID}/votes", h.VoteOnVeto)
		})
	})

	r.Get("/facts/{factID}/vetoes", h.ListByFact)
}

func (h *Handler) SubmitVeto(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	var req SubmitVetoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	v, err := h.service.Submit(
		r.Context(),
		req.FactID,
		userID,
		req.Reason,
		req.Sources,
	)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "fact")
		case errors.Is(err, core.ErrValidation):
			core.BadRequest(w, err.Error())
		case errors.Is(err, core.ErrPermissionDenied):
			core.Forbidden(w, "account is under review")
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.Created(w, toVetoResponse(v))
}

func (h *Handler) VoteOnVeto(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	vetoID := chi.URLParam(r, "vetoID")

	var req VetoVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	v, err := h.service.Vote(r.Context(), userID, vetoID, req.Value)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "veto")
		case errors.Is(err, core.ErrConflict):
			core.Conflict(w, "veto is already resolved")
		case errors.Is(err, core.ErrValidation):
			core.BadRequest(w, err.Error())
		case errors.Is(err, core.ErrPermissionDenied):
			core.Forbidden(w, "account is under review")
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.OK(w, toVetoResponse(v))
}

func (h *Handler) GetVeto(w http.ResponseWriter, r *http.Request) {
	vetoID := chi.URLParam(r, "vetoID")

	v, err := h.service.Get(r.Context(), vetoID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "veto")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, toVetoResponse(v))
}

func (h *Handler) ListByFact(w http.ResponseWriter, r *http.Request) {
	factID := chi.URLParam(r, "factID")

	vetoes, err := h.service.ListByFact(r.Context(), factID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	responses := make([]VetoResponse, 0, len(vetoes))
	for i := range vetoes {
		responses = append(responses, toVetoResponse(&vetoes[i]))
	}

	core.OK(w, responses)
}
