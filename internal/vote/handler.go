// AngelaMos | 2026
// handler.go

package vote

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/someoneelse131/purfacted-sub003/internal/core"
	"github.com/someoneelse131/purfacted-sub003/internal/middleware"
)

type CastVoteRequest struct {
	TargetType string `json:"target_type" validate:"required,oneof=fact discussion comment veto"`
	TargetID   string `json:"target_id"   validate:"required,uuid4"`
	Value      int    `json:"value"       validate:"required,oneof=1 -1"`
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
	r.Route("/votes", func(r chi.Router) {
		r.Post("/anonymous", h.CastAnonymous)
		r.Get("/{targetType}/{targetID}", h.ListByTarget)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Post("/", h.Cast)
			r.Get("/{targetType}/{targetID}/mine", h.GetMine)
		})
	})
}

func (h *Handler) Cast(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	req, target, ok := h.decodeTarget(w, r)
	if !ok {
		return
	}

	res, err := h.service.Cast(r.Context(), userID, target, req.Value)
	if err != nil {
		h.writeCastError(w, err)
		return
	}

	core.OK(w, res)
}

func (h *Handler) CastAnonymous(w http.ResponseWriter, r *http.Request) {
	req, target, ok := h.decodeTarget(w, r)
	if !ok {
		return
	}

	res, err := h.service.CastAnonymous(
		r.Context(),
		clientIP(r),
		target,
		req.Value,
	)
	if err != nil {
		h.writeCastError(w, err)
		return
	}

	core.OK(w, res)
}

func (h *Handler) GetMine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	target, ok := ParseTarget(
		chi.URLParam(r, "targetType"),
		chi.URLParam(r, "targetID"),
	)
	if !ok {
		core.BadRequest(w, "unknown target type")
		return
	}

	v, err := h.service.Get(r.Context(), userID, target)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "vote")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, v)
}

func (h *Handler) ListByTarget(w http.ResponseWriter, r *http.Request) {
	target, ok := ParseTarget(
		chi.URLParam(r, "targetType"),
		chi.URLParam(r, "targetID"),
	)
	if !ok {
		core.BadRequest(w, "unknown target type")
		return
	}

	votes, err := h.service.ListByTarget(r.Context(), target)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, votes)
}

func (h *Handler) decodeTarget(
	w http.ResponseWriter,
	r *http.Request,
) (CastVoteRequest, Target, bool) {
	var req CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return req, nil, false
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return req, nil, false
	}

	target, ok := ParseTarget(req.TargetType, req.TargetID)
	if !ok {
		core.BadRequest(w, "unknown target type")
		return req, nil, false
	}

	return req, target, true
}

func (h *Handler) writeCastError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "target")
	case errors.Is(err, core.ErrConflict):
		core.Conflict(w, "already voted on this content")
	case errors.Is(err, core.ErrValidation):
		core.BadRequest(w, err.Error())
	case errors.Is(err, core.ErrPermissionDenied):
		core.Forbidden(w, "voting is not permitted for this account")
	case errors.Is(err, core.ErrFeatureDisabled):
		core.JSONError(w, core.FeatureDisabledError("anonymous voting"))
	case errors.Is(err, core.ErrRateLimited):
		core.JSONError(w, core.RateLimitedError("daily vote quota reached"))
	default:
		core.InternalServerError(w, err)
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[len(ips)-1])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return ip
}
