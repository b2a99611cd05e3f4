package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	appI18n "scangrade/internal/i18n"
	"scangrade/internal/library"
	"scangrade/internal/model"
	"scangrade/internal/report"
	"scangrade/internal/store"
)

// recordSink records report writes and can simulate sink failures.
type recordSink struct {
	headers   [][]string
	rows      [][]string
	headerErr error
	appendErr error
}

func (s *recordSink) EnsureHeader(ctx context.Context, header []string) error {
	if s.headerErr != nil {
		return s.headerErr
	}
	s.headers = append(s.headers, header)
	return nil
}

func (s *recordSink) Append(ctx context.Context, row []string) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.rows = append(s.rows, row)
	return nil
}

func newTestHandler(t *testing.T, sink report.Sink) (*Handler, *library.Library, *store.Store, http.Handler) {
	t.Helper()

	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n init: %v", err)
	}

	dir := t.TempDir()
	lib, err := library.New(filepath.Join(dir, "templates"), filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatalf("create library: %v", err)
	}
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	h := New(lib, st, nil, sink, nil, Config{})
	r := chi.NewRouter()
	h.Routes(r)
	return h, lib, st, r
}

func testTemplate() model.Template {
	return model.Template{
		ID:   "lesson-7",
		Name: "Урок 7",
		Fields: []model.Field{
			{ID: "q1", Variants: []string{"Париж", "париж"}},
			{ID: "q2", Variants: []string{"Берлин"}},
		},
	}
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSubmitGradesAndReports(t *testing.T) {
	sink := &recordSink{}
	_, lib, _, router := newTestHandler(t, sink)
	if err := lib.SaveTemplate(testTemplate()); err != nil {
		t.Fatalf("save template: %v", err)
	}

	w := postJSON(t, router, "/api/submit/lesson-7", map[string]any{
		"student": map[string]string{"name": "Анна", "class": "7Б"},
		"answers": map[string]string{"q1": "париж", "q2": "мюнхен"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		OK     bool `json:"ok"`
		Result struct {
			Correct    int     `json:"correct"`
			Total      int     `json:"total"`
			Percentage float64 `json:"percentage"`
		} `json:"result"`
		Report struct {
			Saved bool   `json:"saved"`
			Error string `json:"error"`
		} `json:"report"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.OK {
		t.Error("expected ok response")
	}
	if resp.Result.Correct != 1 || resp.Result.Total != 2 {
		t.Errorf("score = %d/%d, want 1/2", resp.Result.Correct, resp.Result.Total)
	}
	if resp.Result.Percentage != 50.0 {
		t.Errorf("percentage = %v, want 50", resp.Result.Percentage)
	}
	if !resp.Report.Saved {
		t.Errorf("report not saved: %s", resp.Report.Error)
	}

	if len(sink.headers) != 1 || len(sink.rows) != 1 {
		t.Fatalf("sink calls: %d headers, %d rows", len(sink.headers), len(sink.rows))
	}
	row := sink.rows[0]
	if row[0] != "Урок 7" || row[1] != "Анна" || row[2] != "7Б" {
		t.Errorf("row prefix = %v", row[:3])
	}
	if row[len(row)-2] != "париж" || row[len(row)-1] != "мюнхен" {
		t.Errorf("row answers = %v", row[len(row)-2:])
	}
}

func TestSubmitSinkFailureStillGrades(t *testing.T) {
	sink := &recordSink{appendErr: errors.New("quota exceeded")}
	_, lib, _, router := newTestHandler(t, sink)
	if err := lib.SaveTemplate(testTemplate()); err != nil {
		t.Fatalf("save template: %v", err)
	}

	w := postJSON(t, router, "/api/submit/lesson-7", map[string]any{
		"answers": map[string]string{"q1": "париж"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite sink failure", w.Code)
	}

	var resp struct {
		OK     bool `json:"ok"`
		Report struct {
			Saved bool   `json:"saved"`
			Error string `json:"error"`
		} `json:"report"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.OK {
		t.Error("grading should survive a sink failure")
	}
	if resp.Report.Saved {
		t.Error("report should not be marked saved")
	}
	if resp.Report.Error == "" {
		t.Error("expected a report error message")
	}
}

func TestSubmitHeaderMismatchStillAppends(t *testing.T) {
	sink := &recordSink{headerErr: report.ErrHeaderMismatch}
	_, lib, _, router := newTestHandler(t, sink)
	if err := lib.SaveTemplate(testTemplate()); err != nil {
		t.Fatalf("save template: %v", err)
	}

	w := postJSON(t, router, "/api/submit/lesson-7", map[string]any{
		"answers": map[string]string{"q2": "берлин"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(sink.rows) != 1 {
		t.Errorf("row not appended after header mismatch: %d rows", len(sink.rows))
	}

	var resp struct {
		Report struct {
			Saved   bool   `json:"saved"`
			Warning string `json:"warning"`
			Error   string `json:"error"`
		} `json:"report"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Report.Saved {
		t.Errorf("report not saved: %s", resp.Report.Error)
	}
	if resp.Report.Warning == "" {
		t.Error("header mismatch must surface as a warning")
	}
	if resp.Report.Error != "" {
		t.Errorf("unexpected report error %q", resp.Report.Error)
	}
}

func TestSubmitTemplateNotFound(t *testing.T) {
	sink := &recordSink{}
	_, _, _, router := newTestHandler(t, sink)

	w := postJSON(t, router, "/api/submit/missing", map[string]any{
		"answers": map[string]string{},
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if len(sink.rows) != 0 {
		t.Error("no row should be written for an unknown template")
	}
}

func TestSubmitWithNoSink(t *testing.T) {
	_, lib, _, router := newTestHandler(t, nil)
	if err := lib.SaveTemplate(testTemplate()); err != nil {
		t.Fatalf("save template: %v", err)
	}

	w := postJSON(t, router, "/api/submit/lesson-7", map[string]any{
		"answers": map[string]string{"q1": "Париж"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Report struct {
			Saved bool   `json:"saved"`
			Error string `json:"error"`
		} `json:"report"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Report.Saved || resp.Report.Error != "" {
		t.Errorf("report status = %+v, want not saved and no error", resp.Report)
	}
}

func TestSaveTemplateRequiresAuth(t *testing.T) {
	_, _, _, router := newTestHandler(t, nil)

	w := postJSON(t, router, "/api/templates", testTemplate())
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestLoginAndSaveTemplate(t *testing.T) {
	_, lib, st, router := newTestHandler(t, nil)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if _, err := st.CreateUser(model.User{
		Username:     "teacher",
		PasswordHash: string(hash),
		Role:         model.UserRoleAuthor,
		Active:       true,
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	form := url.Values{"username": {"teacher"}, "password": {"secret"}}
	req := httptest.NewRequest("POST", "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", w.Code, w.Body.String())
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("no session cookie set")
	}

	tpl := testTemplate()
	data, _ := json.Marshal(tpl)
	req = httptest.NewRequest("POST", "/api/templates", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("save status = %d, body = %s", w.Code, w.Body.String())
	}

	saved, err := lib.GetTemplate(tpl.ID)
	if err != nil {
		t.Fatalf("load saved template: %v", err)
	}
	if saved.CreatedBy != "teacher" {
		t.Errorf("created_by = %q, want teacher", saved.CreatedBy)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	_, _, st, router := newTestHandler(t, nil)

	hash, _ := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.DefaultCost)
	if _, err := st.CreateUser(model.User{
		Username:     "teacher",
		PasswordHash: string(hash),
		Role:         model.UserRoleAuthor,
		Active:       true,
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	form := url.Values{"username": {"teacher"}, "password": {"wrong"}}
	req := httptest.NewRequest("POST", "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
