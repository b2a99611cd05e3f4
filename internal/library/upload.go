package library

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrUploadNotFound means no stored upload matches the requested name.
var ErrUploadNotFound = errors.New("upload not found")

var unsafeFilenameRE = regexp.MustCompile(`[^\w.-]+`)

// SanitizeFilename reduces an untrusted upload name to a flat, path-safe
// one: the base name with anything outside letters, digits, dot, dash and
// underscore replaced.
func SanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	safe := unsafeFilenameRE.ReplaceAllString(base, "_")
	safe = strings.Trim(safe, "._")
	return safe
}

// SaveUpload stores an uploaded file under its sanitized name and returns
// that name. Re-uploading the same name overwrites the previous file.
func (l *Library) SaveUpload(name string, r io.Reader) (string, error) {
	safe := SanitizeFilename(name)
	if safe == "" {
		return "", fmt.Errorf("unusable filename %q", name)
	}
	f, err := os.Create(filepath.Join(l.uploadsDir, safe))
	if err != nil {
		return "", fmt.Errorf("create upload %s: %w", safe, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("write upload %s: %w", safe, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close upload %s: %w", safe, err)
	}
	return safe, nil
}

// UploadPath resolves a stored upload to its path on disk.
func (l *Library) UploadPath(name string) (string, error) {
	safe := SanitizeFilename(name)
	if safe == "" || safe != name {
		return "", ErrUploadNotFound
	}
	path := filepath.Join(l.uploadsDir, safe)
	if _, err := os.Stat(path); err != nil {
		return "", ErrUploadNotFound
	}
	return path, nil
}

// UploadsDir returns the directory uploads are stored in.
func (l *Library) UploadsDir() string {
	return l.uploadsDir
}
