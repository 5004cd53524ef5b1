// Package validator checks document uploads before they enter the ingestion
// pipeline.
package validator

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidationError reports which field of an upload was rejected and why.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// Validator enforces filename, extension, and size limits on uploads.
type Validator struct {
	maxBytes   int
	extensions map[string]bool
}

// New creates a Validator. Extensions are matched case-insensitively and must
// include the leading dot.
func New(maxBytes int, allowedExtensions []string) *Validator {
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}
	exts := make(map[string]bool, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		exts[strings.ToLower(ext)] = true
	}
	if len(exts) == 0 {
		exts = map[string]bool{".pdf": true, ".docx": true, ".txt": true}
	}
	return &Validator{maxBytes: maxBytes, extensions: exts}
}

// Validate checks one upload. The first failing field is reported.
func (v *Validator) Validate(filename string, sizeBytes int) error {
	if strings.TrimSpace(filename) == "" {
		return &ValidationError{Field: "filename", Message: "filename is required"}
	}
	if filename != filepath.Base(filename) {
		return &ValidationError{Field: "filename", Message: "filename must not contain path separators"}
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return &ValidationError{Field: "filename", Message: "filename has no extension"}
	}
	if !v.extensions[ext] {
		return &ValidationError{Field: "filename", Message: fmt.Sprintf("unsupported file type %s", ext)}
	}
	if sizeBytes <= 0 {
		return &ValidationError{Field: "content", Message: "document is empty"}
	}
	if sizeBytes > v.maxBytes {
		return &ValidationError{Field: "content", Message: fmt.Sprintf("document exceeds %d bytes", v.maxBytes)}
	}
	return nil
}

// FileType returns the normalised extension without the dot.
func FileType(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}
