// Package geometry converts between document-space coordinates (e.g. PDF
// points) and the pixel coordinates of a rasterized page. Grading never
// touches geometry; the mapper exists for author tooling, so conversion
// errors are surfaced at page-load time.
package geometry

import (
	"fmt"
	"math"

	"scangrade/internal/model"
)

// zoomTolerance is the maximum relative disagreement allowed between the
// width-derived and height-derived zoom factors.
const zoomTolerance = 1e-3

// Error reports a non-uniform-scale rasterization: the page's width and
// height imply different zoom factors.
type Error struct {
	ZoomX float64
	ZoomY float64
}

func (e *Error) Error() string {
	return fmt.Sprintf("non-uniform page scale: width zoom %.6f, height zoom %.6f", e.ZoomX, e.ZoomY)
}

// Mapper converts boxes between document space and pixel space for one page.
type Mapper struct {
	zoom float64
}

// NewMapper derives the zoom factor from a page's document-space and pixel
// dimensions. The width- and height-derived factors must agree within
// tolerance; a mismatch is returned as *Error and the page should be
// rejected rather than averaged over.
func NewMapper(docWidth, docHeight float64, pixelWidth, pixelHeight int) (*Mapper, error) {
	if docWidth <= 0 || docHeight <= 0 {
		return nil, fmt.Errorf("document dimensions must be positive, got %gx%g", docWidth, docHeight)
	}
	if pixelWidth <= 0 || pixelHeight <= 0 {
		return nil, fmt.Errorf("pixel dimensions must be positive, got %dx%d", pixelWidth, pixelHeight)
	}
	zoomX := float64(pixelWidth) / docWidth
	zoomY := float64(pixelHeight) / docHeight
	if math.Abs(zoomX-zoomY)/zoomX > zoomTolerance {
		return nil, &Error{ZoomX: zoomX, ZoomY: zoomY}
	}
	return &Mapper{zoom: zoomX}, nil
}

// Zoom returns the document-to-pixel scale factor.
func (m *Mapper) Zoom() float64 {
	return m.zoom
}

// ToPixels converts a box from document units to pixel units.
func (m *Mapper) ToPixels(b model.Box) model.Box {
	return model.Box{
		X:      b.X * m.zoom,
		Y:      b.Y * m.zoom,
		Width:  b.Width * m.zoom,
		Height: b.Height * m.zoom,
	}
}

// ToDocument converts a box from pixel units back to document units.
func (m *Mapper) ToDocument(b model.Box) model.Box {
	return model.Box{
		X:      b.X / m.zoom,
		Y:      b.Y / m.zoom,
		Width:  b.Width / m.zoom,
		Height: b.Height / m.zoom,
	}
}
