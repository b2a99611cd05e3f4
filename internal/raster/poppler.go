package raster

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"scangrade/internal/geometry"
)

// Poppler rasterizes PDFs by shelling out to the poppler utilities
// (pdfinfo for page metadata, pdftoppm for rendering).
type Poppler struct {
	// BinDir optionally points at the poppler binaries; empty means $PATH.
	BinDir string
	// DPI is the render resolution. Zero means 150.
	DPI int
}

var _ Rasterizer = (*Poppler)(nil)

const defaultDPI = 150

var (
	pagesRE    = regexp.MustCompile(`(?m)^Pages:\s+(\d+)`)
	pageSizeRE = regexp.MustCompile(`(?m)^Page\s+\d+\s+size:\s+([\d.]+) x ([\d.]+) pts`)
)

// RenderPDF renders every page of the PDF to a PNG named
// "<baseName>_page<N>.png" in outDir and returns the page contracts.
func (p *Poppler) RenderPDF(ctx context.Context, pdfPath, outDir, baseName string) ([]Page, error) {
	pageCount, err := p.pageCount(ctx, pdfPath)
	if err != nil {
		return nil, err
	}

	pages := make([]Page, 0, pageCount)
	for n := 1; n <= pageCount; n++ {
		docW, docH, err := p.pageSize(ctx, pdfPath, n)
		if err != nil {
			return nil, err
		}

		name := fmt.Sprintf("%s_page%d", baseName, n)
		cmd := exec.CommandContext(ctx, p.bin("pdftoppm"),
			"-png", "-r", strconv.Itoa(p.dpi()),
			"-f", strconv.Itoa(n), "-l", strconv.Itoa(n),
			"-singlefile",
			pdfPath, filepath.Join(outDir, name),
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			return nil, fmt.Errorf("pdftoppm page %d: %w: %s", n, err, strings.TrimSpace(string(out)))
		}

		filename := name + ".png"
		pxW, pxH, err := ImageSize(filepath.Join(outDir, filename))
		if err != nil {
			return nil, fmt.Errorf("inspect rendered page %d: %w", n, err)
		}

		// Reject non-uniform scaling now, at load time.
		m, err := geometry.NewMapper(docW, docH, pxW, pxH)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", n, err)
		}

		pages = append(pages, Page{
			ImageFilename:  filename,
			PixelWidth:     pxW,
			PixelHeight:    pxH,
			DocumentWidth:  docW,
			DocumentHeight: docH,
			Zoom:           m.Zoom(),
		})
	}
	return pages, nil
}

func (p *Poppler) pageCount(ctx context.Context, pdfPath string) (int, error) {
	out, err := exec.CommandContext(ctx, p.bin("pdfinfo"), pdfPath).Output()
	if err != nil {
		return 0, fmt.Errorf("pdfinfo %s: %w", pdfPath, err)
	}
	m := pagesRE.FindSubmatch(out)
	if m == nil {
		return 0, fmt.Errorf("pdfinfo %s: no page count in output", pdfPath)
	}
	return strconv.Atoi(string(m[1]))
}

func (p *Poppler) pageSize(ctx context.Context, pdfPath string, page int) (w, h float64, err error) {
	out, err := exec.CommandContext(ctx, p.bin("pdfinfo"),
		"-f", strconv.Itoa(page), "-l", strconv.Itoa(page), pdfPath).Output()
	if err != nil {
		return 0, 0, fmt.Errorf("pdfinfo page %d: %w", page, err)
	}
	m := pageSizeRE.FindSubmatch(out)
	if m == nil {
		return 0, 0, fmt.Errorf("pdfinfo page %d: no page size in output", page)
	}
	if w, err = strconv.ParseFloat(string(m[1]), 64); err != nil {
		return 0, 0, fmt.Errorf("parse page width: %w", err)
	}
	if h, err = strconv.ParseFloat(string(m[2]), 64); err != nil {
		return 0, 0, fmt.Errorf("parse page height: %w", err)
	}
	return w, h, nil
}

func (p *Poppler) bin(name string) string {
	if p.BinDir == "" {
		return name
	}
	return filepath.Join(p.BinDir, name)
}

func (p *Poppler) dpi() int {
	if p.DPI <= 0 {
		return defaultDPI
	}
	return p.DPI
}
