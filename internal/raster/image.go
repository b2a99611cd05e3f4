package raster

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// ImageSize returns the pixel dimensions of a PNG or JPEG file without
// decoding the full image.
func ImageSize(path string) (width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open image %s: %w", path, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode image %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}

// ImagePage builds a Page contract for a directly uploaded image (no PDF
// involved): pixel space and document space coincide, so zoom is 1.
func ImagePage(path, filename string) (Page, error) {
	w, h, err := ImageSize(path)
	if err != nil {
		return Page{}, err
	}
	return Page{
		ImageFilename:  filename,
		PixelWidth:     w,
		PixelHeight:    h,
		DocumentWidth:  float64(w),
		DocumentHeight: float64(h),
		Zoom:           1,
	}, nil
}
