package tracker

// HTTP binding of the tracker operations.
//
// All routes expect x-user-id and x-user-role headers forwarded by the Gateway.
//
// Routes:
//
//	GET  /health                            → liveness
//	POST /applications                      → submit an application
//	GET  /applications/{id}                 → viewer's projection
//	POST /applications/{id}/transitions     → request a status change
//	GET  /statuses/{status}/transitions     → targets the viewer may pick

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"inakat/lifecycle-service/internal/lifecycle"
)

// Handler holds shared dependencies.
type Handler struct {
	svc     *Service
	version string
}

// NewHandler returns a configured Handler.
func NewHandler(svc *Service, version string) *Handler {
	return &Handler{svc: svc, version: version}
}

// Routes returns the router for the service.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Group(func(r chi.Router) {
		r.Use(requireViewer)
		r.Post("/applications", h.submit)
		r.Get("/applications/{id}", h.getApplication)
		r.Post("/applications/{id}/transitions", h.requestTransition)
		r.Get("/statuses/{status}/transitions", h.allowedTargets)
	})
	return r
}

// ─── Individual handlers ──────────────────────────────────────────────────────

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	jsonOK(w, map[string]string{
		"status":  "ok",
		"service": "lifecycle-service",
		"version": h.version,
	})
}

func (h *Handler) getApplication(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetApplicationView(r.Context(), chi.URLParam(r, "id"), viewerFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, view)
}

type transitionBody struct {
	Status string `json:"status"`
	lifecycle.FieldUpdates
}

func (h *Handler) requestTransition(w http.ResponseWriter, r *http.Request) {
	var body transitionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
		jsonError(w, "body must contain status", http.StatusBadRequest)
		return
	}

	res, err := h.svc.RequestTransition(r.Context(), chi.URLParam(r, "id"), viewerFrom(r), body.Status, body.FieldUpdates)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonOK(w, res)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var sub Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	view, err := h.svc.Submit(r.Context(), viewerFrom(r), sub)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonStatus(w, http.StatusCreated, view)
}

func (h *Handler) allowedTargets(w http.ResponseWriter, r *http.Request) {
	from, err := lifecycle.ParseStatus(chi.URLParam(r, "status"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	jsonOK(w, map[string]any{
		"from":    from,
		"targets": h.svc.AllowedTargets(viewerFrom(r).Role, from),
	})
}

// ─── Viewer extraction ───────────────────────────────────────────────────────

type viewerKey struct{}

func requireViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("x-user-id")
		if userID == "" {
			jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
			return
		}
		role, err := lifecycle.ParseRole(r.Header.Get("x-user-role"))
		if err != nil {
			jsonError(w, "missing or invalid x-user-role header", http.StatusUnauthorized)
			return
		}
		ctx := contextWithViewer(r.Context(), lifecycle.Viewer{Role: role, UserID: userID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func contextWithViewer(ctx context.Context, v lifecycle.Viewer) context.Context {
	return context.WithValue(ctx, viewerKey{}, v)
}

func viewerFrom(r *http.Request) lifecycle.Viewer {
	v, _ := r.Context().Value(viewerKey{}).(lifecycle.Viewer)
	return v
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// writeError maps domain errors to HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		denied *lifecycle.TransitionDeniedError
		ve     *lifecycle.ValidationError
	)
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		jsonError(w, lifecycle.ErrNotFound.Error(), http.StatusNotFound)
	case errors.As(err, &denied):
		jsonStatus(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  denied.Error(),
			"reason": string(denied.Reason),
		})
	case errors.As(err, &ve):
		jsonError(w, ve.Msg, http.StatusBadRequest)
	case errors.Is(err, lifecycle.ErrConcurrentModification),
		errors.Is(err, lifecycle.ErrDuplicateApplication):
		jsonError(w, err.Error(), http.StatusConflict)
	default:
		slog.Error("request failed",
			"method", r.Method, "path", r.URL.Path,
			"requestId", middleware.GetReqID(r.Context()), "err", err)
		jsonError(w, "internal server error", http.StatusInternalServerError)
	}
}

func jsonOK(w http.ResponseWriter, v any) {
	jsonStatus(w, http.StatusOK, v)
}

func jsonStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	jsonStatus(w, code, map[string]string{"error": msg})
}
