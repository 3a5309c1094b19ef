package convert

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
)

// ImageConverter treats a single raster image as a one-page flipbook.
// It always produces exactly page number 1.
type ImageConverter struct{}

var _ Converter = (*ImageConverter)(nil)

// Convert decodes the image at srcPath and re-encodes it as the single PNG
// page. Resizing is left to the page optimizer.
func (c *ImageConverter) Convert(ctx context.Context, srcPath, outDir string) ([]Page, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	out := pagePath(outDir, 1)
	dst, err := os.Create(out)
	if err != nil {
		return nil, fmt.Errorf("create page image: %w", err)
	}
	if err := png.Encode(dst, img); err != nil {
		dst.Close()
		return nil, fmt.Errorf("encode page image: %w", err)
	}
	if err := dst.Close(); err != nil {
		return nil, fmt.Errorf("close page image: %w", err)
	}

	return []Page{{Number: 1, Path: out}}, nil
}
