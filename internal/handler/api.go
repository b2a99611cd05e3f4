package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"scangrade/internal/grade"
	appI18n "scangrade/internal/i18n"
	"scangrade/internal/library"
	"scangrade/internal/model"
	"scangrade/internal/raster"
	"scangrade/internal/report"
)

var allowedUploadExts = map[string]bool{
	".pdf": true, ".png": true, ".jpg": true, ".jpeg": true,
}

func (h *Handler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.library.ListTemplates()
	if err != nil {
		slog.Error("list templates", "error", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if templates == nil {
		templates = []model.Template{}
	}
	respondJSON(w, http.StatusOK, templates)
}

func (h *Handler) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tpl, ok := h.resolveTemplate(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, tpl)
}

func (h *Handler) handleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	var tpl model.Template
	if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if user := model.UserFromContext(r.Context()); user != nil && tpl.CreatedBy == "" {
		tpl.CreatedBy = user.Username
	}
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = h.now()
	}

	if err := h.library.SaveTemplate(tpl); err != nil {
		var merr *library.MalformedTemplateError
		if errors.As(err, &merr) {
			respondError(w, http.StatusBadRequest, merr.Error())
			return
		}
		slog.Error("save template", "id", tpl.ID, "error", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	slog.Info("saved template", "id", tpl.ID, "fields", len(tpl.Fields), "by", tpl.CreatedBy)
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "template_id": tpl.ID})
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.config.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, appI18n.T(r.Context(), "NoFileInRequest"))
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedUploadExts[ext] {
		respondError(w, http.StatusBadRequest, appI18n.T(r.Context(), "UnsupportedFileType"))
		return
	}

	stored, err := h.library.SaveUpload(header.Filename, file)
	if err != nil {
		slog.Error("save upload", "filename", header.Filename, "error", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var pages []raster.Page
	if ext == ".pdf" {
		path, err := h.library.UploadPath(stored)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		base := strings.TrimSuffix(stored, ext)
		pages, err = h.raster.RenderPDF(r.Context(), path, h.library.UploadsDir(), base)
		if err != nil {
			slog.Error("rasterize pdf", "filename", stored, "error", err)
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	} else {
		path, err := h.library.UploadPath(stored)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		page, err := raster.ImagePage(path, stored)
		if err != nil {
			respondError(w, http.StatusBadRequest, appI18n.T(r.Context(), "UnsupportedFileType"))
			return
		}
		pages = []raster.Page{page}
	}

	slog.Info("stored upload", "filename", stored, "pages", len(pages))
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "pages": pages})
}

func (h *Handler) handleServeUpload(w http.ResponseWriter, r *http.Request) {
	path, err := h.library.UploadPath(chi.URLParam(r, "filename"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

// submitRequest is the untrusted student submission body. Everything but
// the template ID (taken from the URL) is optional.
type submitRequest struct {
	Student model.StudentInfo `json:"student"`
	Answers map[string]string `json:"answers"`
}

// reportStatus tells the caller whether the side-channel report write
// worked. A failed write never fails the grading response. Warning is set
// when the row was appended under a stale sheet header.
type reportStatus struct {
	Saved   bool   `json:"saved"`
	Warning string `json:"warning,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	tpl, ok := h.resolveTemplate(w, r)
	if !ok {
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sub := model.Submission{
		TemplateID: tpl.ID,
		Student:    req.Student,
		Answers:    req.Answers,
	}
	result := grade.Grade(tpl, sub)

	status := h.writeReport(r, tpl, sub, result)

	slog.Info("graded submission",
		"template", tpl.ID,
		"student", sub.Student.Name,
		"correct", result.CorrectCount,
		"total", result.TotalCount,
		"report_saved", status.Saved,
	)
	respondJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"result": result,
		"report": status,
	})
}

func (h *Handler) writeReport(r *http.Request, tpl model.Template, sub model.Submission, result model.GradeResult) reportStatus {
	if h.sink == nil {
		return reportStatus{Saved: false}
	}
	ctx := r.Context()

	var warning string
	if err := h.sink.EnsureHeader(ctx, report.HeaderRow(tpl)); err != nil {
		if !errors.Is(err, report.ErrHeaderMismatch) {
			slog.Error("ensure report header", "template", tpl.ID, "error", err)
			return reportStatus{Error: appI18n.T(ctx, "ReportWriteFailed")}
		}
		// The row is still worth appending under the old header, but the
		// caller has to hear about the misalignment.
		slog.Warn("report header mismatch, appending anyway", "template", tpl.ID)
		warning = appI18n.T(ctx, "ReportHeaderMismatch")
	}

	row := report.Row(tpl, sub.Student, result, h.now())
	if err := h.sink.Append(ctx, row); err != nil {
		slog.Error("append report row", "template", tpl.ID, "error", err)
		return reportStatus{Error: appI18n.T(ctx, "ReportWriteFailed")}
	}
	return reportStatus{Saved: true, Warning: warning}
}

// resolveTemplate loads the template named in the URL, writing the error
// response itself when the template is missing or malformed.
func (h *Handler) resolveTemplate(w http.ResponseWriter, r *http.Request) (model.Template, bool) {
	id := chi.URLParam(r, "templateID")
	tpl, err := h.library.GetTemplate(id)
	if err == nil {
		return tpl, true
	}
	if errors.Is(err, library.ErrTemplateNotFound) {
		respondError(w, http.StatusNotFound, appI18n.T(r.Context(), "TemplateNotFound"))
		return tpl, false
	}
	var merr *library.MalformedTemplateError
	if errors.As(err, &merr) {
		slog.Error("malformed stored template", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, appI18n.T(r.Context(), "MalformedTemplate"))
		return tpl, false
	}
	slog.Error("load template", "id", id, "error", err)
	respondError(w, http.StatusInternalServerError, err.Error())
	return tpl, false
}
