// Package library persists templates as one JSON file per template and
// manages the uploaded page images they reference. JSON keeps the field
// array in authoring order, which is the ordering contract the grading and
// reporting paths rely on.
package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"scangrade/internal/model"
)

// ErrTemplateNotFound means no template with the requested ID is stored.
var ErrTemplateNotFound = errors.New("template not found")

// MalformedTemplateError means a stored template file failed structural
// validation and was rejected before reaching the grading engine.
type MalformedTemplateError struct {
	ID  string
	Err error
}

func (e *MalformedTemplateError) Error() string {
	return fmt.Sprintf("malformed template %s: %v", e.ID, e.Err)
}

func (e *MalformedTemplateError) Unwrap() error { return e.Err }

// templateIDRE limits IDs to path-safe characters.
var templateIDRE = regexp.MustCompile(`^[\w-]+$`)

// Library is the flat-file store for templates and uploads.
type Library struct {
	templatesDir string
	uploadsDir   string
}

// New creates both directories if needed.
func New(templatesDir, uploadsDir string) (*Library, error) {
	for _, dir := range []string{templatesDir, uploadsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return &Library{templatesDir: templatesDir, uploadsDir: uploadsDir}, nil
}

// SaveTemplate validates and stores a template, fully overwriting any
// previous version with the same ID.
func (l *Library) SaveTemplate(tpl model.Template) error {
	if !templateIDRE.MatchString(tpl.ID) {
		return &MalformedTemplateError{ID: tpl.ID, Err: fmt.Errorf("id must match %s", templateIDRE)}
	}
	if err := tpl.Validate(); err != nil {
		return &MalformedTemplateError{ID: tpl.ID, Err: err}
	}

	data, err := json.MarshalIndent(tpl, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal template %s: %w", tpl.ID, err)
	}

	// Write through a temp file so a crash never leaves a half-written
	// template behind.
	path := l.templatePath(tpl.ID)
	tmp, err := os.CreateTemp(l.templatesDir, tpl.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write template %s: %w", tpl.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store template %s: %w", tpl.ID, err)
	}
	return nil
}

// GetTemplate loads one template by ID. The loader is the boundary that
// enforces the template invariants: anything structurally invalid is
// rejected here, so the grading engine can assume a well-formed value.
func (l *Library) GetTemplate(id string) (model.Template, error) {
	var tpl model.Template
	if !templateIDRE.MatchString(id) {
		return tpl, ErrTemplateNotFound
	}
	data, err := os.ReadFile(l.templatePath(id))
	if errors.Is(err, os.ErrNotExist) {
		return tpl, ErrTemplateNotFound
	}
	if err != nil {
		return tpl, fmt.Errorf("read template %s: %w", id, err)
	}
	if err := json.Unmarshal(data, &tpl); err != nil {
		return tpl, &MalformedTemplateError{ID: id, Err: err}
	}
	if tpl.ID != id {
		return tpl, &MalformedTemplateError{ID: id, Err: fmt.Errorf("file stores template_id %q", tpl.ID)}
	}
	if err := tpl.Validate(); err != nil {
		return tpl, &MalformedTemplateError{ID: id, Err: err}
	}
	return tpl, nil
}

// ListTemplates returns all stored templates, sorted by ID. Malformed
// files are skipped with a warning so one broken file does not hide the
// rest of the library.
func (l *Library) ListTemplates() ([]model.Template, error) {
	entries, err := os.ReadDir(l.templatesDir)
	if err != nil {
		return nil, fmt.Errorf("read templates dir: %w", err)
	}

	var templates []model.Template
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		tpl, err := l.GetTemplate(id)
		if err != nil {
			slog.Warn("skipping unreadable template", "id", id, "error", err)
			continue
		}
		templates = append(templates, tpl)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].ID < templates[j].ID })
	return templates, nil
}

func (l *Library) templatePath(id string) string {
	return filepath.Join(l.templatesDir, id+".json")
}
