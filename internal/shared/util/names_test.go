package util

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestHashKey(t *testing.T) {
	id := "3f1c2d4e-client"
	got := HashKey(id)
	if got != HashKey(id) {
		t.Fatalf("expected stable hash, got %s", got)
	}
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("hash contains non-hex character: %c", ch)
		}
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(got))
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "sales.xlsx", want: "sales.xlsx"},
		{in: "  q1 report.csv ", want: "q1 report.csv"},
		{in: "dir/sub\\file.csv", want: "dir_sub_file.csv"},
		{in: "bell\a.csv", want: "bell.csv"},
		{in: "../etc/passwd", want: ".._etc_passwd"},
		{in: "Q1..Q2.csv", want: "Q1..Q2.csv"},
		{in: "..", wantErr: true},
		{in: "   ", wantErr: true},
		{in: ".", wantErr: true},
	}
	for _, tt := range tests {
		got, err := SanitizeFileName(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidFileName) {
				t.Fatalf("SanitizeFileName(%q): expected ErrInvalidFileName, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("SanitizeFileName(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFileNameTruncatesOnRuneBoundary(t *testing.T) {
	name := "a" + strings.Repeat("é", maxFileNameLen) + ".csv"
	got, err := SanitizeFileName(name)
	if err != nil {
		t.Fatalf("SanitizeFileName: %v", err)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("truncated name is not valid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != maxFileNameLen {
		t.Fatalf("expected %d runes, got %d", maxFileNameLen, n)
	}
	if !strings.HasSuffix(got, ".csv") {
		t.Fatalf("extension lost: %q", got)
	}
}
