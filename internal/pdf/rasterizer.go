package pdf

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"
	"github.com/spherical/pdf-describer/internal/domain"
	"golang.org/x/image/draw"
)

// RenderOptions configures the rasterizer once per run.
type RenderOptions struct {
	Density      int
	OutputDir    string
	SaveFilename string
	Format       string
	Width        int
	Height       int
}

// DefaultRenderOptions returns 150 dpi PNGs fitted into 1600x1600.
func DefaultRenderOptions(outputDir string) RenderOptions {
	return RenderOptions{
		Density:      150,
		OutputDir:    outputDir,
		SaveFilename: "page",
		Format:       "png",
		Width:        1600,
		Height:       1600,
	}
}

// Rasterizer renders PDF pages to image files using go-fitz
type Rasterizer struct {
	doc  *fitz.Document
	opts RenderOptions
}

// NewRasterizer opens pdfPath for rendering.
func NewRasterizer(pdfPath string, opts RenderOptions) (*Rasterizer, error) {
	if err := NewValidator(nil).ValidateRenderOptions(opts); err != nil {
		return nil, err
	}

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, domain.ConversionError("Failed to open PDF", err)
	}
	return &Rasterizer{doc: doc, opts: opts}, nil
}

// PagePath returns where the image for a page is written.
func (r *Rasterizer) PagePath(pageNumber int) string {
	name := fmt.Sprintf("%s.%d.%s", r.opts.SaveFilename, pageNumber, r.opts.Format)
	return filepath.Join(r.opts.OutputDir, name)
}

// Render rasterizes a 1-based page and returns the written file path.
func (r *Rasterizer) Render(ctx context.Context, pageNumber int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if pageNumber < 1 || pageNumber > r.doc.NumPage() {
		return "", domain.ValidationError(fmt.Sprintf("page %d out of range 1-%d", pageNumber, r.doc.NumPage()), nil)
	}

	img, err := r.doc.ImageDPI(pageNumber-1, float64(r.opts.Density))
	if err != nil {
		return "", domain.ConversionError(fmt.Sprintf("Failed to render page %d", pageNumber), err)
	}

	scaled := fitWithin(img, r.opts.Width, r.opts.Height)

	outputPath := r.PagePath(pageNumber)
	outputFile, err := os.Create(outputPath)
	if err != nil {
		return "", domain.IOError(fmt.Sprintf("Failed to create output file for page %d", pageNumber), err)
	}

	err = png.Encode(outputFile, scaled)
	closeErr := outputFile.Close()
	if err != nil {
		return "", domain.ConversionError(fmt.Sprintf("Failed to encode page %d as PNG", pageNumber), err)
	}
	if closeErr != nil {
		return "", domain.IOError(fmt.Sprintf("Failed to write image for page %d", pageNumber), closeErr)
	}

	return outputPath, nil
}

// Close closes the PDF document
func (r *Rasterizer) Close() error {
	if r.doc == nil {
		return nil
	}
	err := r.doc.Close()
	r.doc = nil
	return err
}

// fitWithin scales img, keeping its aspect ratio, so that it exactly fits
// the width x height box on its limiting side.
func fitWithin(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return img
	}

	scale := math.Min(float64(width)/float64(b.Dx()), float64(height)/float64(b.Dy()))
	w := max(1, int(math.Round(float64(b.Dx())*scale)))
	h := max(1, int(math.Round(float64(b.Dy())*scale)))
	if w == b.Dx() && h == b.Dy() {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
