package asset

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

const maxUploadSize = 20 << 20 // 20MB

// UploadResponse is returned from the upload endpoint.
type UploadResponse struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Type   string `json:"type"`
	Name   string `json:"name"`
}

// Handler serves asset upload and retrieval endpoints.
type Handler struct {
	store     *Store
	maxPixels int64
}

// NewHandler creates a handler that refuses images larger than maxPixels.
func NewHandler(store *Store, maxPixels int64) *Handler {
	return &Handler{store: store, maxPixels: maxPixels}
}

// Upload handles POST /assets/upload (multipart form with "file" field).
// The payload is sniffed by decoding, so the declared content type is not
// trusted.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file too large (max 20MB)"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing file field"})
		return
	}
	defer file.Close()

	img, format, err := DecodeLimited(file, h.maxPixels)
	if errors.Is(err, ErrTooLarge) {
		slog.Warn("upload rejected", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("image too large (max %d pixels)", h.maxPixels)})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported or invalid image"})
		return
	}

	assetID, err := h.store.Save(img)
	if err != nil {
		slog.Error("save asset", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save file"})
		return
	}

	bounds := img.Bounds()
	slog.Info("asset uploaded", "asset", assetID, "format", format, "width", bounds.Dx(), "height", bounds.Dy())

	writeJSON(w, http.StatusOK, UploadResponse{
		ID:     assetID,
		URL:    fmt.Sprintf("/assets/%s.png", assetID),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Type:   format,
		Name:   header.Filename,
	})
}

// Serve returns an http.Handler that serves stored asset files with caching headers.
func (h *Handler) Serve() http.Handler {
	fs := http.FileServer(http.Dir(h.store.Dir()))
	return http.StripPrefix("/assets/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Asset IDs are unique, so files are immutable
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	}))
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
