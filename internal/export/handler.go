package export

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pixedit/pixedit/internal/auth"
	"github.com/pixedit/pixedit/internal/db"
)

const listLimit = 50

// Lister reads recorded exports. It is optional.
type Lister interface {
	ListExportsBySession(ctx context.Context, sessionID string, limit int32) ([]db.Export, error)
}

type Handler struct {
	dir    string
	lister Lister
}

func NewHandler(dir string, lister Lister) *Handler {
	return &Handler{dir: dir, lister: lister}
}

// List handles GET /exports for the session in the request context.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	sessionID := auth.SessionIDFromContext(r.Context())
	if sessionID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing session"})
		return
	}
	if h.lister == nil {
		writeJSON(w, http.StatusOK, []db.Export{})
		return
	}

	items, err := h.lister.ListExportsBySession(r.Context(), sessionID, listLimit)
	if err != nil {
		slog.Error("list exports", "error", err, "session", sessionID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if items == nil {
		items = []db.Export{}
	}
	writeJSON(w, http.StatusOK, items)
}

// Serve returns an http.Handler for exported files.
func (h *Handler) Serve() http.Handler {
	fs := http.FileServer(http.Dir(h.dir))
	return http.StripPrefix("/exports/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	}))
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
