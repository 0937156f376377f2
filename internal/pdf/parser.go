package pdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ledongthuc/pdf"

	"pdf-editor/internal/coords"
)

// maxInheritDepth bounds the walk up the page tree for inherited attributes.
const maxInheritDepth = 32

// PDFParser 读取 PDF 页面元数据（页数、页面尺寸）
type PDFParser struct{}

// NewPDFParser creates a new PDFParser
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

// GetPDFInfo 获取 PDF 基本信息（页数、文件大小、页面尺寸）
func (p *PDFParser) GetPDFInfo(pdfPath string) (*PDFInfo, error) {
	fileInfo, err := os.Stat(pdfPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewPDFError(ErrPDFNotFound, "文件不存在，请检查路径", err)
		}
		return nil, NewPDFError(ErrPDFInvalid, "无法访问文件", err)
	}
	if fileInfo.IsDir() {
		return nil, NewPDFError(ErrPDFInvalid, "路径指向目录而非文件", nil)
	}

	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, NewPDFError(ErrPDFInvalid, "无法读取文件", err)
	}
	sizes, err := p.PageSizes(data)
	if err != nil {
		return nil, err
	}

	info := &PDFInfo{
		FilePath:  pdfPath,
		FileName:  filepath.Base(pdfPath),
		PageCount: len(sizes),
		FileSize:  fileInfo.Size(),
		Pages:     make([]PageSize, len(sizes)),
	}
	for i, s := range sizes {
		info.Pages[i] = PageSize{Page: i + 1, Width: s.Width, Height: s.Height}
	}
	return info, nil
}

// PageSizes 返回每一页的显示尺寸（考虑 /Rotate）
func (p *PDFParser) PageSizes(data []byte) (sizes []coords.Size, err error) {
	// ledongthuc/pdf panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			sizes = nil
			err = NewPDFErrorWithDetails(ErrPDFCorrupted, "无法解析 PDF 文件", fmt.Sprint(r), nil)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, NewPDFError(ErrPDFInvalid, "无法打开 PDF 文件", err)
	}

	n := r.NumPage()
	if n == 0 {
		return nil, NewPDFError(ErrPDFInvalid, "PDF 文件不包含页面", nil)
	}
	sizes = make([]coords.Size, n)
	for i := 1; i <= n; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			return nil, NewPDFErrorWithPage(ErrPDFCorrupted, "页面对象缺失", i, nil)
		}
		size, ok := mediaBox(page.V)
		if !ok {
			size = A4
		}
		if rot := inherited(page.V, "Rotate"); !rot.IsNull() {
			if deg := ((int(rot.Int64()) % 360) + 360) % 360; deg == 90 || deg == 270 {
				size.Width, size.Height = size.Height, size.Width
			}
		}
		sizes[i-1] = size
	}
	return sizes, nil
}

// mediaBox reads the possibly inherited /MediaBox of a page dictionary.
func mediaBox(page pdf.Value) (coords.Size, bool) {
	box := inherited(page, "MediaBox")
	if box.Kind() != pdf.Array || box.Len() != 4 {
		return coords.Size{}, false
	}
	llx, lly := box.Index(0).Float64(), box.Index(1).Float64()
	urx, ury := box.Index(2).Float64(), box.Index(3).Float64()
	size := coords.Size{Width: abs(urx - llx), Height: abs(ury - lly)}
	return size, !size.Empty()
}

// inherited looks key up on the page and then its ancestors.
func inherited(page pdf.Value, key string) pdf.Value {
	v := page
	for i := 0; i < maxInheritDepth && !v.IsNull(); i++ {
		if val := v.Key(key); !val.IsNull() {
			return val
		}
		v = v.Key("Parent")
	}
	return pdf.Value{}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
