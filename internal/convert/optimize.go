package convert

import (
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"
)

// OptimizedPage describes the outcome of an optimization pass.
type OptimizedPage struct {
	Path   string
	Width  int
	Height int
}

// Optimizer resizes a rendered page image so neither dimension exceeds the
// configured maximums, preserving aspect ratio, and re-encodes it as PNG.
// PNG is lossless, so Quality only selects the compression effort: values
// below 80 switch the encoder to best compression.
type Optimizer struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}

// NewOptimizer builds an Optimizer from the conversion settings.
func NewOptimizer(maxWidth, maxHeight, quality int) *Optimizer {
	return &Optimizer{MaxWidth: maxWidth, MaxHeight: maxHeight, Quality: quality}
}

// Optimize is a best-effort pass: it never fails the pipeline. Inputs that
// are already within bounds are returned as-is, and on any internal error
// the original path is returned unmodified.
func (o *Optimizer) Optimize(localImagePath string) OptimizedPage {
	src, err := os.Open(localImagePath)
	if err != nil {
		return OptimizedPage{Path: localImagePath}
	}
	img, _, err := image.Decode(src)
	src.Close()
	if err != nil {
		return OptimizedPage{Path: localImagePath}
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= o.MaxWidth && h <= o.MaxHeight {
		return OptimizedPage{Path: localImagePath, Width: w, Height: h}
	}

	scale := float64(o.MaxWidth) / float64(w)
	if s := float64(o.MaxHeight) / float64(h); s < scale {
		scale = s
	}
	dw := int(float64(w) * scale)
	dh := int(float64(h) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)

	dir, base := filepath.Split(localImagePath)
	outPath := filepath.Join(dir, "optimized_"+base)
	out, err := os.Create(outPath)
	if err != nil {
		return OptimizedPage{Path: localImagePath, Width: w, Height: h}
	}

	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if o.Quality < 80 {
		enc.CompressionLevel = png.BestCompression
	}
	if err := enc.Encode(out, dst); err != nil {
		out.Close()
		os.Remove(outPath)
		return OptimizedPage{Path: localImagePath, Width: w, Height: h}
	}
	if err := out.Close(); err != nil {
		os.Remove(outPath)
		return OptimizedPage{Path: localImagePath, Width: w, Height: h}
	}

	return OptimizedPage{Path: outPath, Width: dw, Height: dh}
}
