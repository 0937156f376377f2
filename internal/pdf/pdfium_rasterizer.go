package pdf

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"
	"github.com/pkg/errors"

	"pdf-editor/internal/coords"
	"pdf-editor/internal/logger"
	"pdf-editor/internal/render"
)

// instanceTimeout bounds the wait for a pdfium instance from the pool.
const instanceTimeout = 30 * time.Second

// PdfiumRasterizer renders pages with pdfium compiled to WebAssembly. A
// single instance is used and every call is serialized on it.
type PdfiumRasterizer struct {
	mu       sync.Mutex
	pool     pdfium.Pool
	instance pdfium.Pdfium
	log      logger.Logger
}

// pdfiumDoc is the Handle of a PdfiumRasterizer.
type pdfiumDoc struct {
	ref      references.FPDF_DOCUMENT
	pages    int
	disposed bool
}

func (d *pdfiumDoc) PageCount() int { return d.pages }

// NewPdfiumRasterizer starts the WebAssembly runtime.
func NewPdfiumRasterizer() (*PdfiumRasterizer, error) {
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  1,
		MaxTotal: 1,
	})
	if err != nil {
		return nil, NewPDFError(ErrBackendMissing, "failed to initialise pdfium", err)
	}

	instance, err := pool.GetInstance(instanceTimeout)
	if err != nil {
		pool.Close()
		return nil, NewPDFError(ErrBackendMissing, "failed to get pdfium instance", err)
	}

	return &PdfiumRasterizer{
		pool:     pool,
		instance: instance,
		log:      logger.Named("pdfium"),
	}, nil
}

// Close shuts the runtime down. Handles must be disposed first.
func (r *PdfiumRasterizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.instance == nil {
		return nil
	}
	err := r.instance.Close()
	r.instance = nil
	if perr := r.pool.Close(); err == nil {
		err = perr
	}
	return err
}

// Load opens data as a pdfium document.
func (r *PdfiumRasterizer) Load(ctx context.Context, data []byte) (render.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.instance == nil {
		return nil, NewPDFError(ErrBackendMissing, "pdfium is closed", nil)
	}

	doc, err := r.instance.OpenDocument(&requests.OpenDocument{
		File: &data,
	})
	if err != nil {
		code := ErrPDFInvalid
		if strings.Contains(strings.ToLower(err.Error()), "password") {
			code = ErrPDFEncrypted
		}
		return nil, NewPDFError(code, "failed to open PDF document", errors.Wrap(err, "pdfium"))
	}

	count, err := r.instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: doc.Document,
	})
	if err != nil {
		r.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document})
		return nil, NewPDFError(ErrPDFCorrupted, "failed to get page count", errors.Wrap(err, "pdfium"))
	}
	if count.PageCount == 0 {
		r.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document})
		return nil, NewPDFError(ErrPDFInvalid, "document has no pages", nil)
	}

	r.log.Debug("document opened", logger.Int("pages", count.PageCount), logger.Int("bytes", len(data)))
	return &pdfiumDoc{ref: doc.Document, pages: count.PageCount}, nil
}

// PageSize returns the page size in points, rotation applied.
func (r *PdfiumRasterizer) PageSize(ctx context.Context, h render.Handle, page int) (coords.Size, error) {
	if err := ctx.Err(); err != nil {
		return coords.Size{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, err := r.docLocked(h, page)
	if err != nil {
		return coords.Size{}, err
	}
	return r.pageSizeLocked(d, page)
}

func (r *PdfiumRasterizer) pageSizeLocked(d *pdfiumDoc, page int) (coords.Size, error) {
	size, err := r.instance.GetPageSize(&requests.GetPageSize{
		Page: pageByIndex(d, page),
	})
	if err != nil {
		return coords.Size{}, NewPDFErrorWithPage(ErrRenderFailed, "failed to get page size", page,
			errors.Wrapf(err, "pdfium page %d", page))
	}
	return coords.Size{Width: size.Width, Height: size.Height}, nil
}

// RenderPage draws page at scale pixels per point. The bitmap is copied out
// of the runtime before its memory is released.
func (r *PdfiumRasterizer) RenderPage(ctx context.Context, h render.Handle, page int, scale float64) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, err := r.docLocked(h, page)
	if err != nil {
		return nil, err
	}
	size, err := r.pageSizeLocked(d, page)
	if err != nil {
		return nil, err
	}
	// the scheduler may have moved on while we waited for the lock
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w, hh := coords.PixelSize(size, scale)
	rendered, err := r.instance.RenderPageInPixels(&requests.RenderPageInPixels{
		Page:   pageByIndex(d, page),
		Width:  w,
		Height: hh,
	})
	if err != nil {
		return nil, NewPDFErrorWithPage(ErrRenderFailed, "failed to render page", page,
			errors.Wrapf(err, "pdfium page %d", page))
	}
	defer rendered.Cleanup()

	src := rendered.Result.Image
	img := image.NewRGBA(src.Rect)
	copy(img.Pix, src.Pix)
	return img, nil
}

// Dispose closes the pdfium document. Disposing twice is an error.
func (r *PdfiumRasterizer) Dispose(h render.Handle) error {
	d, ok := h.(*pdfiumDoc)
	if !ok {
		return fmt.Errorf("foreign handle %T", h)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.disposed {
		return NewPDFError(ErrHandleDisposed, "document already disposed", nil)
	}
	d.disposed = true
	if r.instance == nil {
		return nil
	}
	if _, err := r.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: d.ref}); err != nil {
		return errors.Wrap(err, "failed to close PDF document")
	}
	return nil
}

func (r *PdfiumRasterizer) docLocked(h render.Handle, page int) (*pdfiumDoc, error) {
	d, ok := h.(*pdfiumDoc)
	if !ok {
		return nil, fmt.Errorf("foreign handle %T", h)
	}
	if d.disposed || r.instance == nil {
		return nil, NewPDFError(ErrHandleDisposed, "document already disposed", nil)
	}
	if page < 1 || page > d.pages {
		return nil, NewPDFErrorWithPage(ErrInvalidRange, "page out of range", page, nil)
	}
	return d, nil
}

func pageByIndex(d *pdfiumDoc, page int) requests.Page {
	return requests.Page{
		ByIndex: &requests.PageByIndex{
			Document: d.ref,
			Index:    page - 1,
		},
	}
}
