package pdf

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func codeOf(t *testing.T, err error) PDFErrorCode {
	t.Helper()
	var pdfErr *PDFError
	if !errors.As(err, &pdfErr) {
		t.Fatalf("Expected PDFError, got %T (%v)", err, err)
	}
	return pdfErr.Code
}

// TestGetPDFInfo_NonExistentFile tests that GetPDFInfo returns an error for non-existent files
func TestGetPDFInfo_NonExistentFile(t *testing.T) {
	parser := NewPDFParser()
	_, err := parser.GetPDFInfo("/non/existent/file.pdf")
	if err == nil {
		t.Fatal("Expected error for non-existent file, got nil")
	}
	if code := codeOf(t, err); code != ErrPDFNotFound {
		t.Errorf("Expected error code %s, got %s", ErrPDFNotFound, code)
	}
}

// TestGetPDFInfo_Directory tests that GetPDFInfo returns an error when path is a directory
func TestGetPDFInfo_Directory(t *testing.T) {
	parser := NewPDFParser()
	_, err := parser.GetPDFInfo(t.TempDir())
	if err == nil {
		t.Fatal("Expected error for directory path, got nil")
	}
	if code := codeOf(t, err); code != ErrPDFInvalid {
		t.Errorf("Expected error code %s, got %s", ErrPDFInvalid, code)
	}
}

// TestGetPDFInfo_InvalidFile tests that GetPDFInfo returns an error for invalid PDF files
func TestGetPDFInfo_InvalidFile(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "invalid.pdf")
	if err := os.WriteFile(tmpFile, []byte("This is not a PDF file"), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	parser := NewPDFParser()
	_, err := parser.GetPDFInfo(tmpFile)
	if err == nil {
		t.Fatal("Expected error for invalid PDF file, got nil")
	}
	if code := codeOf(t, err); code != ErrPDFInvalid && code != ErrPDFCorrupted {
		t.Errorf("Expected invalid or corrupted, got %s", code)
	}
}

func TestPDFErrorMessage(t *testing.T) {
	cause := errors.New("boom")
	err := NewPDFErrorWithPage(ErrRenderFailed, "render failed", 3, cause)
	if got, want := err.Error(), "render failed (page 3): boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Error("PDFError should unwrap to its cause")
	}

	err = NewPDFErrorWithDetails(ErrInvalidRange, "bad range", "9 of 9", nil)
	if got, want := err.Error(), "bad range: 9 of 9"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
