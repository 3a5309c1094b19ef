package convert

import (
	"archive/zip"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"regexp"
)

var slideEntry = regexp.MustCompile(`^ppt/slides/slide[0-9]+\.xml$`)

// SlideConverter produces one page per slide, in slide order. Slides are not
// rasterized: each page is a fixed-size blank placeholder, a documented
// reduced-fidelity fallback until a headless renderer is wired in. Slide
// count is read from the PPTX archive, so numbering still matches the deck.
//
// Legacy binary .ppt files are not zip archives and fail to open, surfacing
// as a converter error.
type SlideConverter struct {
	Width  int
	Height int
}

var _ Converter = (*SlideConverter)(nil)

// Convert counts the slides in the deck at srcPath and writes one
// placeholder PNG per slide into outDir.
func (c *SlideConverter) Convert(ctx context.Context, srcPath, outDir string) ([]Page, error) {
	count, err := c.slideCount(srcPath)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("presentation %s: %w", srcPath, ErrNoPages)
	}

	placeholder, err := c.renderPlaceholder()
	if err != nil {
		return nil, err
	}

	pages := make([]Page, 0, count)
	for n := 1; n <= count; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out := pagePath(outDir, n)
		f, err := os.Create(out)
		if err != nil {
			return nil, fmt.Errorf("create slide image %d: %w", n, err)
		}
		if err := png.Encode(f, placeholder); err != nil {
			f.Close()
			return nil, fmt.Errorf("encode slide image %d: %w", n, err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("close slide image %d: %w", n, err)
		}
		pages = append(pages, Page{Number: n, Path: out})
	}

	return pages, nil
}

func (c *SlideConverter) slideCount(srcPath string) (int, error) {
	zr, err := zip.OpenReader(srcPath)
	if err != nil {
		return 0, fmt.Errorf("open presentation archive: %w", err)
	}
	defer zr.Close()

	count := 0
	for _, f := range zr.File {
		if slideEntry.MatchString(f.Name) {
			count++
		}
	}
	return count, nil
}

func (c *SlideConverter) renderPlaceholder() (image.Image, error) {
	w, h := c.Width, c.Height
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid placeholder dimensions %dx%d", w, h)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	return img, nil
}
