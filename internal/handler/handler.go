// Package handler exposes the JSON API. The editor and student pages are
// static JavaScript; the server renders no HTML.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"scangrade/internal/directory"
	"scangrade/internal/library"
	"scangrade/internal/raster"
	"scangrade/internal/report"
	"scangrade/internal/store"
)

// Config holds runtime handler parameters.
type Config struct {
	SecureCookies bool
	// MaxUploadBytes bounds multipart uploads. Zero means 32 MiB.
	MaxUploadBytes int64
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	library *library.Library
	store   *store.Store
	dir     *directory.Directory // nil when no remote directory is configured
	sink    report.Sink          // nil when reporting is disabled
	raster  raster.Rasterizer
	config  Config
	now     func() time.Time
}

// New creates a new Handler.
func New(lib *library.Library, st *store.Store, dir *directory.Directory, sink report.Sink, ras raster.Rasterizer, cfg Config) *Handler {
	return &Handler{
		library: lib,
		store:   st,
		dir:     dir,
		sink:    sink,
		raster:  ras,
		config:  cfg,
		now:     time.Now,
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/uploads/{filename}", h.handleServeUpload)

	r.Route("/api", func(r chi.Router) {
		r.Get("/templates", h.handleListTemplates)
		r.Get("/templates/{templateID}", h.handleGetTemplate)
		// Students submit without logging in.
		r.Post("/submit/{templateID}", h.handleSubmit)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/templates", h.handleSaveTemplate)
			r.Post("/upload", h.handleUpload)
		})
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]any{"ok": false, "error": msg})
}
