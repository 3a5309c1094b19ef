package convert

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PDFConverter renders each page of a PDF document at the configured DPI.
// Page count equals the document page count; page numbers follow document
// order exactly.
type PDFConverter struct {
	DPI float64
}

var _ Converter = (*PDFConverter)(nil)

// Convert rasterizes every page of the PDF at srcPath into PNG files under
// outDir. The source is first run through a pdfcpu optimization pass, which
// repairs enough malformed documents to be worth the extra write; when that
// pass fails the original file is rendered as-is.
func (c *PDFConverter) Convert(ctx context.Context, srcPath, outDir string) ([]Page, error) {
	optimized := filepath.Join(outDir, "optimized.pdf")
	if err := api.OptimizeFile(srcPath, optimized, nil); err != nil {
		optimized = srcPath
	}

	doc, err := fitz.New(optimized)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, fmt.Errorf("pdf %s: %w", filepath.Base(srcPath), ErrNoPages)
	}

	pages := make([]Page, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := doc.ImageDPI(i, c.DPI)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i+1, err)
		}

		out := pagePath(outDir, i+1)
		f, err := os.Create(out)
		if err != nil {
			return nil, fmt.Errorf("create page image %d: %w", i+1, err)
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			return nil, fmt.Errorf("encode page image %d: %w", i+1, err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("close page image %d: %w", i+1, err)
		}

		pages = append(pages, Page{Number: i + 1, Path: out})
	}

	return pages, nil
}
