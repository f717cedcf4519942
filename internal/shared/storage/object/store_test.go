package object

import (
	"errors"
	"testing"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "2026/10/resume_ab12cd34.docx", want: "2026/10/resume_ab12cd34.docx"},
		{key: "a/./b//c.pdf", want: "a/b/c.pdf"},
		{key: `a\b.pdf`, want: "a/b.pdf"},
		{key: "../etc/passwd", wantErr: true},
		{key: "/abs.pdf", wantErr: true},
		{key: "a/../../b", wantErr: true},
		{key: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := CleanKey(tt.key)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("CleanKey(%q) expected ErrInvalidKey, got %v", tt.key, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("CleanKey(%q) = %q, %v; want %q", tt.key, got, err, tt.want)
		}
	}
}
