package geometry

import (
	"errors"
	"math"
	"testing"

	"scangrade/internal/model"
)

func TestNewMapperUniformScale(t *testing.T) {
	// A4 at 150 DPI: 595.28 x 841.89 pt -> 1240 x 1754 px, zoom ~ 2.083.
	m, err := NewMapper(595.28, 841.89, 1240, 1754)
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}
	if math.Abs(m.Zoom()-1240.0/595.28) > 1e-9 {
		t.Errorf("unexpected zoom %f", m.Zoom())
	}
}

func TestNewMapperNonUniformScale(t *testing.T) {
	// Height stretched by 10%: must be rejected, not averaged.
	_, err := NewMapper(600, 800, 1200, 1760)
	if err == nil {
		t.Fatal("expected error for non-uniform scale")
	}
	var gerr *Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *geometry.Error, got %T: %v", err, err)
	}
	if gerr.ZoomX == gerr.ZoomY {
		t.Error("error should carry the disagreeing zoom factors")
	}
}

func TestNewMapperInvalidDimensions(t *testing.T) {
	tests := []struct {
		name         string
		docW, docH   float64
		pixW, pixH   int
	}{
		{"zero doc width", 0, 800, 1200, 1600},
		{"negative doc height", 600, -1, 1200, 1600},
		{"zero pixel width", 600, 800, 0, 1600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMapper(tt.docW, tt.docH, tt.pixW, tt.pixH); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	m, err := NewMapper(600, 800, 1200, 1600)
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}
	if m.Zoom() != 2.0 {
		t.Fatalf("expected zoom 2.0, got %f", m.Zoom())
	}

	doc := model.Box{X: 10, Y: 20, Width: 100, Height: 50}
	px := m.ToPixels(doc)
	if px.X != 20 || px.Y != 40 || px.Width != 200 || px.Height != 100 {
		t.Errorf("unexpected pixel box %+v", px)
	}

	back := m.ToDocument(px)
	if back != doc {
		t.Errorf("round trip mismatch: %+v != %+v", back, doc)
	}
}
