package trackhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/albal/rmtrack/internal/models"
	"github.com/albal/rmtrack/internal/services/tracker"
	"github.com/albal/rmtrack/internal/validator"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type TrackingEngine interface {
	Add(ctx context.Context, rawIdentifier string, notificationsEnabled bool) (tracker.AddResult, error)
	Get(ctx context.Context, identifier string) (*models.TrackingRecord, []*models.StatusEvent, error)
	Check(ctx context.Context, identifier string) (tracker.CheckResult, error)
	Delete(ctx context.Context, identifier string) error
	Stats() tracker.Stats
}

type Handler struct {
	engine      TrackingEngine
	swaggerPath string
}

func New(engine TrackingEngine, swaggerPath string) *Handler {
	return &Handler{engine: engine, swaggerPath: swaggerPath}
}

func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/stats", h.stats)

	r.Route("/trackings", func(r chi.Router) {
		r.Post("/", h.addTracking)
		r.Get("/{identifier}", h.getTracking)
		r.Post("/{identifier}/check", h.checkTracking)
		r.Delete("/{identifier}", h.deleteTracking)
	})

	if h.swaggerPath != "" {
		r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			http.ServeFile(w, r, h.swaggerPath)
		})
		swaggerURL := "/swagger.json"
		if fi, err := os.Stat(h.swaggerPath); err == nil {
			swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
		}
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
	}

	return r
}

type addRequest struct {
	Identifier           string `json:"identifier"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
}

type addResponse struct {
	Identifier string `json:"identifier"`
	Status     string `json:"status"`
	Delivered  bool   `json:"delivered"`
}

func (h *Handler) addTracking(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.engine.Add(r.Context(), req.Identifier, req.NotificationsEnabled)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, addResponse{
		Identifier: res.Identifier,
		Status:     res.Status,
		Delivered:  res.Delivered,
	})
}

type historyEntry struct {
	Status     string    `json:"status"`
	RecordedAt time.Time `json:"recorded_at"`
}

type recordResponse struct {
	Identifier           string         `json:"identifier"`
	NotificationsEnabled bool           `json:"notifications_enabled"`
	StartedAt            time.Time      `json:"started_at"`
	LastCheckedAt        *time.Time     `json:"last_checked_at,omitempty"`
	LastStatus           string         `json:"last_status,omitempty"`
	Delivered            bool           `json:"delivered"`
	History              []historyEntry `json:"history"`
}

func (h *Handler) getTracking(w http.ResponseWriter, r *http.Request) {
	identifier, ok := h.pathIdentifier(w, r)
	if !ok {
		return
	}

	rec, evs, err := h.engine.Get(r.Context(), identifier)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := recordResponse{
		Identifier:           rec.Identifier,
		NotificationsEnabled: rec.NotificationsEnabled,
		StartedAt:            rec.StartedAt,
		LastCheckedAt:        rec.LastCheckedAt,
		Delivered:            rec.Delivered,
		History:              make([]historyEntry, 0, len(evs)),
	}
	if rec.LastStatus != nil {
		resp.LastStatus = *rec.LastStatus
	}
	for _, e := range evs {
		resp.History = append(resp.History, historyEntry{Status: e.Status, RecordedAt: e.RecordedAt})
	}
	writeJSON(w, http.StatusOK, resp)
}

type checkResponse struct {
	Identifier string `json:"identifier"`
	Status     string `json:"status"`
	Delivered  bool   `json:"delivered"`
	Changed    bool   `json:"changed"`
}

func (h *Handler) checkTracking(w http.ResponseWriter, r *http.Request) {
	identifier, ok := h.pathIdentifier(w, r)
	if !ok {
		return
	}

	res, err := h.engine.Check(r.Context(), identifier)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checkResponse{
		Identifier: res.Identifier,
		Status:     res.Status,
		Delivered:  res.Delivered,
		Changed:    res.Changed,
	})
}

func (h *Handler) deleteTracking(w http.ResponseWriter, r *http.Request) {
	identifier, ok := h.pathIdentifier(w, r)
	if !ok {
		return
	}

	if err := h.engine.Delete(r.Context(), identifier); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Stats())
}

// pathIdentifier отсеивает кривые идентификаторы до похода в стор.
func (h *Handler) pathIdentifier(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "identifier")
	if !validator.Valid(raw) {
		writeError(w, http.StatusBadRequest, "invalid identifier")
		return "", false
	}
	return validator.Normalize(raw), true
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidIdentifier):
		writeError(w, http.StatusBadRequest, "invalid identifier")
	case errors.Is(err, models.ErrConflict):
		writeError(w, http.StatusConflict, "identifier already tracked")
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, "tracking not found")
	case errors.Is(err, models.ErrProviderUnavailable):
		writeError(w, http.StatusBadGateway, "status provider unavailable")
	default:
		slog.Error("handle request", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
