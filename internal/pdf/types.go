// Package pdf implements the document backends: page rasterizers (pdfium,
// poppler) and the structural mutator built on pdfcpu.
package pdf

import (
	"fmt"

	"pdf-editor/internal/types"
)

// PDFInfo PDF 文件信息
type PDFInfo struct {
	FilePath  string      `json:"file_path"`
	FileName  string      `json:"file_name"`
	PageCount int         `json:"page_count"`
	FileSize  int64       `json:"file_size"`
	Pages     []PageSize  `json:"pages"`
	Backend   BackendName `json:"backend"`
}

// PageSize 页面尺寸（单位：点）
type PageSize struct {
	Page   int     `json:"page"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// BackendName 光栅化后端名称
type BackendName string

const (
	BackendPdfium  BackendName = "pdfium"
	BackendPoppler BackendName = "poppler"
)

// PDFErrorCode 错误代码枚举
type PDFErrorCode string

const (
	ErrPDFNotFound     PDFErrorCode = "PDF_NOT_FOUND"
	ErrPDFInvalid      PDFErrorCode = "PDF_INVALID"
	ErrPDFEncrypted    PDFErrorCode = "PDF_ENCRYPTED"
	ErrPDFCorrupted    PDFErrorCode = "PDF_CORRUPTED"
	ErrInvalidRange    PDFErrorCode = "INVALID_RANGE"
	ErrRenderFailed    PDFErrorCode = "RENDER_FAILED"
	ErrMutateFailed    PDFErrorCode = "MUTATE_FAILED"
	ErrBackendMissing  PDFErrorCode = "BACKEND_MISSING"
	ErrHandleDisposed  PDFErrorCode = "HANDLE_DISPOSED"
	ErrUnsupportedText PDFErrorCode = "UNSUPPORTED_TEXT"
)

// PDFError PDF 处理错误
type PDFError struct {
	Code    PDFErrorCode `json:"code"`
	Message string       `json:"message"`
	Details string       `json:"details,omitempty"`
	Page    int          `json:"page,omitempty"`
	Cause   error        `json:"-"`
}

// Error implements the error interface for PDFError
func (e *PDFError) Error() string {
	msg := e.Message
	if e.Page > 0 {
		msg = fmt.Sprintf("%s (page %d)", msg, e.Page)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause of the error
func (e *PDFError) Unwrap() error {
	return e.Cause
}

// NewPDFError creates a new PDFError with the given code, message, and optional cause
func NewPDFError(code PDFErrorCode, message string, cause error) *PDFError {
	return &PDFError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewPDFErrorWithDetails creates a new PDFError with details
func NewPDFErrorWithDetails(code PDFErrorCode, message, details string, cause error) *PDFError {
	return &PDFError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// NewPDFErrorWithPage creates a new PDFError with page information
func NewPDFErrorWithPage(code PDFErrorCode, message string, page int, cause error) *PDFError {
	return &PDFError{
		Code:    code,
		Message: message,
		Page:    page,
		Cause:   cause,
	}
}

// AppCode maps the backend code onto the application error taxonomy.
func (e *PDFError) AppCode() types.ErrorCode {
	switch e.Code {
	case ErrInvalidRange, ErrUnsupportedText:
		return types.ErrValidation
	case ErrPDFNotFound:
		return types.ErrFileNotFound
	case ErrPDFInvalid, ErrPDFEncrypted, ErrPDFCorrupted:
		return types.ErrLoad
	case ErrRenderFailed:
		return types.ErrRender
	case ErrMutateFailed:
		return types.ErrMutation
	default:
		return types.ErrInternal
	}
}
