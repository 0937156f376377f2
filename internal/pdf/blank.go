package pdf

import (
	gopdf "github.com/VantageDataChat/GoPDF2"

	"pdf-editor/internal/coords"
)

// A4 is the page size used when no reference page is available.
var A4 = coords.Size{Width: 595.28, Height: 841.89}

// BlankPage builds a one-page document with an empty page of the given size.
func BlankPage(size coords.Size) ([]byte, error) {
	if size.Empty() {
		size = A4
	}
	doc := gopdf.GoPdf{}
	doc.Start(gopdf.Config{PageSize: gopdf.Rect{W: size.Width, H: size.Height}})
	doc.AddPage()
	data, err := doc.GetBytesPdfReturnErr()
	if err != nil {
		return nil, NewPDFError(ErrMutateFailed, "failed to build blank page", err)
	}
	return data, nil
}
