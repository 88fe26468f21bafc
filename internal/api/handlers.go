// Package api exposes HTTP handlers for the step-count API.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"example.com/stepcount/internal/auth"
	"example.com/stepcount/internal/domain"
	"example.com/stepcount/internal/logging"
	"example.com/stepcount/internal/persistence"
)

// NextCursorHeader carries the opaque cursor for the following page of GET /stepcounts.
const NextCursorHeader = "Next-Cursor"

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service  *domain.Service
	validate *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// RegisterRoutes wires endpoints to the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", healthz)
	r.Post("/stepcounts", h.createStepCount)
	r.Get("/stepcounts", h.listStepCounts)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) createStepCount(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeStepCountsWrite) {
		return
	}

	var req CreateStepCountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", validationDetail(err))
		return
	}

	rec, err := h.service.RecordStepCount(r.Context(), *req.Count)
	if err != nil {
		if errors.Is(err, domain.ErrNegativeCount) {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		logging.Ctx(r.Context(), logging.Component("api")).Error().Err(err).Msg("record step count")
		writeError(w, http.StatusInternalServerError, "server_error", "unable to record step count")
		return
	}

	writeJSON(w, http.StatusCreated, toStepCountView(*rec))
}

func (h *Handler) listStepCounts(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ScopeStepCountsRead, auth.ScopeStepCountsWrite) {
		return
	}

	limit := domain.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	records, next, err := h.service.ListStepCounts(r.Context(), cursor, limit)
	if err != nil {
		logging.Ctx(r.Context(), logging.Component("api")).Error().Err(err).Msg("list step counts")
		writeError(w, http.StatusInternalServerError, "server_error", "unable to list step counts")
		return
	}

	items := make([]StepCountView, 0, len(records))
	for _, rec := range records {
		items = append(items, toStepCountView(rec))
	}
	if token := persistence.EncodeCursor(next); token != "" {
		w.Header().Set(NextCursorHeader, token)
	}
	writeJSON(w, http.StatusOK, items)
}

// authorize enforces scopes when the request carries claims. Without claims the auth
// middleware is disabled and every request is accepted.
func authorize(w http.ResponseWriter, r *http.Request, anyOf ...string) bool {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		return true
	}
	for _, scope := range anyOf {
		if claims.HasScope(scope) {
			return true
		}
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+anyOf[0]+" required")
	return false
}

// CreateStepCountRequest is the payload for POST /stepcounts. The id is accepted for
// compatibility with clients that send 0 and is otherwise ignored.
type CreateStepCountRequest struct {
	ID    int64 `json:"id"`
	Count *int  `json:"count" validate:"required,gte=0"`
}

// StepCountView is the wire form of a stored step count.
type StepCountView struct {
	ID    int64 `json:"id"`
	Count int   `json:"count"`
}

func toStepCountView(rec domain.StepCountRecord) StepCountView {
	return StepCountView{ID: rec.ID, Count: rec.Count}
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "validation failed"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return "count is required"
	case "gte":
		return "count must be >= " + fe.Param()
	default:
		return fe.Error()
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
