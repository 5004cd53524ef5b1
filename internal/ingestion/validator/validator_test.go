package validator

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	v := New(1024, []string{".txt", ".pdf"})

	tests := []struct {
		name      string
		filename  string
		size      int
		wantField string // empty means valid
	}{
		{"valid txt", "notes.txt", 100, ""},
		{"valid pdf uppercase ext", "REPORT.PDF", 100, ""},
		{"missing filename", "", 100, "filename"},
		{"whitespace filename", "   ", 100, "filename"},
		{"path traversal", "../etc/passwd.txt", 100, "filename"},
		{"no extension", "README", 100, "filename"},
		{"unsupported extension", "image.png", 100, "filename"},
		{"empty content", "notes.txt", 0, "content"},
		{"oversized", "notes.txt", 2048, "content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.filename, tt.size)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestValidate_Defaults(t *testing.T) {
	v := New(0, nil)
	if err := v.Validate("doc.txt", 100); err != nil {
		t.Errorf("default extensions should allow .txt: %v", err)
	}
	if err := v.Validate("doc.md", 100); err == nil {
		t.Error("default extensions should reject .md")
	}
}

func TestFileType(t *testing.T) {
	if got := FileType("Report.PDF"); got != "pdf" {
		t.Errorf("FileType = %q, want pdf", got)
	}
	if got := FileType("noext"); got != "" {
		t.Errorf("FileType = %q, want empty", got)
	}
}
