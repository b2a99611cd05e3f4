// Package raster is the boundary to the external page rasterizer. The
// core only consumes the Page contract; it never inspects image content.
package raster

import "context"

// Page describes one rendered page: where the image ended up, its pixel
// size, the document-space page size, and the zoom factor relating the two
// (pixel = document * zoom).
type Page struct {
	ImageFilename  string  `json:"file"`
	PixelWidth     int     `json:"width"`
	PixelHeight    int     `json:"height"`
	DocumentWidth  float64 `json:"page_width"`
	DocumentHeight float64 `json:"page_height"`
	Zoom           float64 `json:"zoom"`
}

// Rasterizer converts a PDF into per-page images in outDir. Implementations
// shell out to an external tool; errors include pages whose width- and
// height-derived zoom disagree, which are rejected here so grading never
// sees inconsistent geometry.
type Rasterizer interface {
	RenderPDF(ctx context.Context, pdfPath, outDir, baseName string) ([]Page, error)
}
