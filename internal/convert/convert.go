package convert

import (
	"context"
	"errors"
	"fmt"

	"flipbook/internal/config"
)

// Supported source MIME types. Dispatch is exact-match only; there is no
// content sniffing and no fallback converter.
const (
	MIMEPDF  = "application/pdf"
	MIMEPPT  = "application/vnd.ms-powerpoint"
	MIMEPPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MIMEDOC  = "application/msword"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
)

var (
	// ErrUnsupportedType is returned for a MIME type with no registered converter.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrNoPages is returned when a converter produced an empty page list.
	ErrNoPages = errors.New("conversion produced no pages")
)

// Page is one rendered page image on local disk. Numbers are 1-based and
// contiguous within a single conversion.
type Page struct {
	Number int
	Path   string
}

// Converter turns a source file into an ordered sequence of page images
// written under outDir. Implementations are independent and swappable.
type Converter interface {
	// Convert renders srcPath into page images inside outDir and returns
	// them in page order. An empty result or an error means the source
	// could not be processed.
	Convert(ctx context.Context, srcPath, outDir string) ([]Page, error)
}

// Registry maps MIME types to converter strategies. New formats are added by
// registration, never by modifying the callers.
type Registry struct {
	converters map[string]Converter
}

// NewRegistry builds the default registry covering the four supported format
// families.
func NewRegistry(cfg config.ConvertConfig) *Registry {
	r := &Registry{converters: make(map[string]Converter)}

	pdf := &PDFConverter{DPI: cfg.PDFDPI}
	slides := &SlideConverter{Width: cfg.SlideWidth, Height: cfg.SlideHeight}
	word := &WordConverter{PDF: pdf}

	r.Register(MIMEPDF, pdf)
	r.Register(MIMEPPT, slides)
	r.Register(MIMEPPTX, slides)
	r.Register(MIMEDOC, word)
	r.Register(MIMEDOCX, word)
	r.Register(MIMEJPEG, &ImageConverter{})
	r.Register(MIMEPNG, &ImageConverter{})

	return r
}

// Register binds a converter to a MIME type, replacing any previous binding.
func (r *Registry) Register(mimeType string, c Converter) {
	r.converters[mimeType] = c
}

// Lookup returns the converter for an exact MIME type match.
func (r *Registry) Lookup(mimeType string) (Converter, error) {
	c, ok := r.converters[mimeType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}
	return c, nil
}

// Supported reports whether a converter is registered for the MIME type.
func (r *Registry) Supported(mimeType string) bool {
	_, ok := r.converters[mimeType]
	return ok
}

func pagePath(outDir string, n int) string {
	return fmt.Sprintf("%s/page_%d.png", outDir, n)
}
