// Package types defines core data types and enums shared by the PDF editor packages.
package types

import "errors"

// Config 编辑器配置
type Config struct {
	DefaultZoom     float64      `json:"default_zoom"`      // 打开文档时的缩放比例，默认 1.0
	ViewMode        string       `json:"view_mode"`         // single, continuous, paired, grid
	HistoryLimit    int          `json:"history_limit"`     // 撤销历史上限，默认 50
	Rasterizer      string       `json:"rasterizer"`        // "pdfium" 或 "poppler"
	RenderDPI       int          `json:"render_dpi"`        // 命令行导出图片的 DPI
	FontName        string       `json:"font_name"`         // 写入文本时使用的标准字体
	FontSize        float64      `json:"font_size"`         // 默认字号（pt）
	Color           string       `json:"color"`             // 默认颜色，#RRGGBB
	StrokeWidth     float64      `json:"stroke_width"`      // 默认线宽（pt）
	BackupKeepCount int          `json:"backup_keep_count"` // 保存时保留的备份数量
	WorkDirectory   string       `json:"work_directory"`
	LastFile        string       `json:"last_file"`
	RecentFiles     []RecentFile `json:"recent_files"`
}

// RecentFile 最近打开的文件
type RecentFile struct {
	Path      string `json:"path"`
	Pages     int    `json:"pages"`
	Timestamp int64  `json:"timestamp"` // Unix 毫秒
}

// SessionPhase 文档会话阶段
type SessionPhase string

const (
	PhaseEmpty    SessionPhase = "empty"
	PhaseLoading  SessionPhase = "loading"
	PhaseReady    SessionPhase = "ready"
	PhaseMutating SessionPhase = "mutating"
	PhaseError    SessionPhase = "error"
)

// Status 会话状态，推送给前端
type Status struct {
	Phase       SessionPhase `json:"phase"`
	PageCount   int          `json:"page_count"`
	CurrentPage int          `json:"current_page"`
	Zoom        float64      `json:"zoom"`
	ViewMode    string       `json:"view_mode"`
	Tool        string       `json:"tool"`
	CanUndo     bool         `json:"can_undo"`
	CanRedo     bool         `json:"can_redo"`
	Selected    string       `json:"selected,omitempty"`
	Message     string       `json:"message,omitempty"`
}

// ErrorCode 错误代码枚举
type ErrorCode string

const (
	ErrLoad         ErrorCode = "LOAD_ERROR"
	ErrRender       ErrorCode = "RENDER_ERROR"
	ErrValidation   ErrorCode = "VALIDATION_ERROR"
	ErrMutation     ErrorCode = "MUTATION_ERROR"
	ErrBusy         ErrorCode = "BUSY"
	ErrFileNotFound ErrorCode = "FILE_NOT_FOUND"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrConfig       ErrorCode = "CONFIG_ERROR"
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
)

// AppError 应用错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface for AppError
func (e *AppError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// Unwrap returns the underlying cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code, message, and optional cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates a new AppError with details
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// IsCode reports whether any AppError in err's chain carries code.
// ErrBusy counts as a validation failure.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code || (code == ErrValidation && appErr.Code == ErrBusy) {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// CodeOf returns the code of the outermost AppError in err's chain, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Coder is implemented by backend errors that map onto an ErrorCode.
type Coder interface {
	AppCode() ErrorCode
}

// Classify returns the code of the first AppError or Coder in err's chain,
// or fallback when there is none.
func Classify(err error, fallback ErrorCode) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	var coder Coder
	if errors.As(err, &coder) {
		return coder.AppCode()
	}
	return fallback
}
