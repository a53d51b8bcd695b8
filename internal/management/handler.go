package management

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pgexporter/pgexporter/internal/config"
)

// Handler is the HTTP handler for all /api/v1/* management endpoints.
type Handler struct {
	svc *Service
	mux *http.ServeMux
}

// New creates a Handler wired to the given state and registers all routes.
func New(state *config.State) http.Handler {
	h := &Handler{svc: NewService(state), mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/conf/get", h.confGet)
	h.mux.HandleFunc("/api/v1/conf/set", h.confSet)
	h.mux.HandleFunc("/api/v1/conf/reload", h.reload)
	h.mux.HandleFunc("/api/v1/status", h.status)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// confGet returns GET /api/v1/conf/get?key=... — one key, or the full tree
// when key is omitted.
func (h *Handler) confGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeResult(w, h.svc.ConfGet(r.URL.Query().Get("key")))
}

// confSet handles POST /api/v1/conf/set?key=...&value=...
func (h *Handler) confSet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		jsonErr(w, http.StatusBadRequest, "missing key")
		return
	}
	writeResult(w, h.svc.ConfSet(key, r.URL.Query().Get("value")))
}

// reload handles POST /api/v1/conf/reload.
func (h *Handler) reload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeResult(w, h.svc.Reload())
}

// status returns GET /api/v1/status — a small summary of the live record.
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	live := h.svc.state.Live()
	jsonResp(w, http.StatusOK, map[string]any{
		"servers":   len(live.Servers),
		"users":     len(live.Users),
		"admins":    len(live.Admins),
		"endpoints": len(live.Endpoints),
		"metrics":   live.Metrics,
		"bridge":    live.Bridge,
	})
}

// writeResult maps an envelope onto an HTTP response.
func writeResult(w http.ResponseWriter, res *Result) {
	code := http.StatusOK
	if res.Status != "OK" {
		code = httpStatus(res.Err())
	}
	jsonResp(w, code, res)
}

// httpStatus maps a service error onto an HTTP status code.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, config.ErrInvalidKey), errors.Is(err, config.ErrUnknownKey):
		return http.StatusBadRequest
	case errors.Is(err, config.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, config.ErrValidation):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, map[string]string{"error": msg})
}
