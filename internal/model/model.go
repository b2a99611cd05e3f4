package model

import (
	"context"
	"fmt"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleAuthor can create and edit templates.
	UserRoleAuthor UserRole = "author"
	// UserRoleAdmin can additionally manage users.
	UserRoleAdmin UserRole = "admin"
)

// User represents a locally stored account.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session. Sessions are keyed by
// username rather than a local user ID because directory-authenticated
// users have no local row.
type AuthSession struct {
	ID        string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// PageImage references the rasterized page a template is drawn over.
type PageImage struct {
	Filename    string `json:"file"`
	PixelWidth  int    `json:"width"`
	PixelHeight int    `json:"height"`
}

// PageGeometry holds the document-space page size and the zoom factor the
// rasterizer used, so pixel coordinates can be mapped back to document units.
type PageGeometry struct {
	DocumentWidth  float64 `json:"page_width"`
	DocumentHeight float64 `json:"page_height"`
	Zoom           float64 `json:"zoom"`
}

// Box is an axis-aligned rectangle. Field boxes are stored in pixel
// coordinates of the template's page image.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"w"`
	Height float64 `json:"h"`
}

// Field is one gradable region bound to its accepted answer variants.
// Variants keep authoring order; the first one is the preferred spelling.
type Field struct {
	ID       string   `json:"id"`
	Box      Box      `json:"box"`
	Variants []string `json:"variants"`
}

// Template is the author-defined specification of a gradable page.
// Field order is significant: it is both grading order and report column
// order, and must survive save/load unchanged.
type Template struct {
	ID        string       `json:"template_id"`
	Name      string       `json:"name,omitempty"`
	PageImage PageImage    `json:"page"`
	Geometry  PageGeometry `json:"geometry"`
	Fields    []Field      `json:"fields"`
	CreatedBy string       `json:"created_by,omitempty"`
	CreatedAt time.Time    `json:"created_at,omitzero"`
}

// DisplayName returns the human label, falling back to the template ID.
func (t Template) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

// Validate checks the structural invariants a template must satisfy before
// it may reach the grading engine: non-empty ID, fields present, unique
// field IDs. Called at the save and load boundaries, never during grading.
func (t Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("template_id is required")
	}
	if t.Fields == nil {
		return fmt.Errorf("template %s: fields are required", t.ID)
	}
	seen := make(map[string]struct{}, len(t.Fields))
	for i, f := range t.Fields {
		if f.ID == "" {
			return fmt.Errorf("template %s: field %d has empty id", t.ID, i)
		}
		if _, dup := seen[f.ID]; dup {
			return fmt.Errorf("template %s: duplicate field id %q", t.ID, f.ID)
		}
		seen[f.ID] = struct{}{}
	}
	return nil
}

// StudentInfo is pass-through metadata about the submitting student.
type StudentInfo struct {
	Name  string `json:"name"`
	Class string `json:"class"`
}

// Submission is a student's answer set against one template. Answers are
// keyed by field ID; a missing key means an empty answer.
type Submission struct {
	TemplateID string            `json:"template_id"`
	Student    StudentInfo       `json:"student"`
	Answers    map[string]string `json:"answers"`
}

// FieldResult is the grading outcome for a single field.
type FieldResult struct {
	FieldID            string   `json:"field_id"`
	RawAnswer          string   `json:"raw_answer"`
	NormalizedVariants []string `json:"normalized_variants"`
	Correct            bool     `json:"correct"`
}

// GradeResult is the outcome of grading one submission. PerField is aligned
// with the template's field order.
type GradeResult struct {
	PerField     []FieldResult `json:"per_field"`
	CorrectCount int           `json:"correct"`
	TotalCount   int           `json:"total"`
	Percentage   float64       `json:"percentage"`
}
