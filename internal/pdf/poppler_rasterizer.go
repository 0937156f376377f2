package pdf

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"pdf-editor/internal/coords"
	"pdf-editor/internal/logger"
	"pdf-editor/internal/render"
)

// pdftoppmBinary is the poppler renderer.
const pdftoppmBinary = "pdftoppm"

// PopplerRasterizer renders pages by running poppler's pdftoppm on a
// temporary copy of the document. Page sizes come from the document's page
// tree so layout never waits for a render.
type PopplerRasterizer struct {
	binary string
	parser *PDFParser
	log    logger.Logger
}

// popplerDoc is the Handle of a PopplerRasterizer.
type popplerDoc struct {
	mu       sync.Mutex
	dir      string
	path     string
	sizes    []coords.Size
	disposed bool
}

func (d *popplerDoc) PageCount() int { return len(d.sizes) }

// CheckPopplerAvailable reports whether pdftoppm can be run.
func CheckPopplerAvailable() bool {
	cmd := exec.Command(pdftoppmBinary, "-v")
	hideWindowOnWindows(cmd)
	return cmd.Run() == nil
}

// NewPopplerRasterizer returns a rasterizer, or ErrBackendMissing when
// pdftoppm is not installed.
func NewPopplerRasterizer() (*PopplerRasterizer, error) {
	if !CheckPopplerAvailable() {
		return nil, NewPDFErrorWithDetails(ErrBackendMissing, "poppler-utils not found",
			"Ubuntu/Debian: apt-get install poppler-utils, macOS: brew install poppler", nil)
	}
	return &PopplerRasterizer{
		binary: pdftoppmBinary,
		parser: NewPDFParser(),
		log:    logger.Named("poppler"),
	}, nil
}

// Load parses the page tree and writes data to a private temp file.
func (r *PopplerRasterizer) Load(ctx context.Context, data []byte) (render.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sizes, err := r.parser.PageSizes(data)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "pdf-editor-poppler-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	path := filepath.Join(dir, "document.pdf")
	if err := os.WriteFile(path, data, 0600); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to write temp document: %w", err)
	}

	r.log.Debug("document loaded", logger.Int("pages", len(sizes)), logger.String("dir", dir))
	return &popplerDoc{dir: dir, path: path, sizes: sizes}, nil
}

// PageSize returns the intrinsic size of page.
func (r *PopplerRasterizer) PageSize(ctx context.Context, h render.Handle, page int) (coords.Size, error) {
	d, err := r.doc(h)
	if err != nil {
		return coords.Size{}, err
	}
	if page < 1 || page > len(d.sizes) {
		return coords.Size{}, NewPDFErrorWithPage(ErrInvalidRange, "page out of range", page, nil)
	}
	return d.sizes[page-1], nil
}

// RenderPage runs pdftoppm for one page at exactly the pixel size implied by
// scale. Cancelling ctx kills the process.
func (r *PopplerRasterizer) RenderPage(ctx context.Context, h render.Handle, page int, scale float64) (*image.RGBA, error) {
	size, err := r.PageSize(ctx, h, page)
	if err != nil {
		return nil, err
	}
	d, _ := r.doc(h)
	w, hh := coords.PixelSize(size, scale)

	prefix := filepath.Join(d.dir, fmt.Sprintf("page_%d_%d", page, w))
	args := []string{
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-png",
		"-scale-to-x", strconv.Itoa(w),
		"-scale-to-y", strconv.Itoa(hh),
		"-singlefile",
		d.path,
		prefix,
	}
	cmd := exec.CommandContext(ctx, r.binary, args...)
	hideWindowOnWindows(cmd)

	output, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, NewPDFErrorWithDetails(ErrRenderFailed, "pdftoppm failed", string(output), err)
	}

	imgPath := prefix + ".png"
	defer os.Remove(imgPath)
	img, err := loadImage(imgPath)
	if err != nil {
		return nil, NewPDFErrorWithPage(ErrRenderFailed, "failed to load rendered page", page, err)
	}
	return toRGBA(img), nil
}

// Dispose removes the temp copy. Disposing twice is an error.
func (r *PopplerRasterizer) Dispose(h render.Handle) error {
	d, ok := h.(*popplerDoc)
	if !ok {
		return fmt.Errorf("foreign handle %T", h)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.disposed {
		return NewPDFError(ErrHandleDisposed, "document already disposed", nil)
	}
	d.disposed = true
	return os.RemoveAll(d.dir)
}

func (r *PopplerRasterizer) doc(h render.Handle) (*popplerDoc, error) {
	d, ok := h.(*popplerDoc)
	if !ok {
		return nil, fmt.Errorf("foreign handle %T", h)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.disposed {
		return nil, NewPDFError(ErrHandleDisposed, "document already disposed", nil)
	}
	return d, nil
}

// loadImage loads an image from file
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
