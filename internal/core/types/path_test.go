package types

import (
	"errors"
	"slices"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "root", input: "", want: ""},
		{name: "slash root", input: "/", want: ""},
		{name: "simple", input: "docs/a.txt", want: "docs/a.txt"},
		{name: "leading slash", input: "/docs/a.txt", want: "docs/a.txt"},
		{name: "trailing slash", input: "docs/", want: "docs"},
		{name: "duplicate slashes", input: "docs//x///a.txt", want: "docs/x/a.txt"},
		{name: "dot segments", input: "./docs/./a.txt", want: "docs/a.txt"},
		{name: "backslashes", input: `docs\sub\a.txt`, want: "docs/sub/a.txt"},
		{name: "parent segment", input: "docs/../a.txt", wantErr: true},
		{name: "escape", input: "../etc/passwd", wantErr: true},
		{name: "nul", input: "a\x00b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalid) {
					t.Errorf("NormalizePath(%q) error kind = %v, want ErrInvalid", tt.input, err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPathHelpers(t *testing.T) {
	if got := ParentPath("a/b/c"); got != "a/b" {
		t.Errorf("ParentPath = %q", got)
	}
	if got := ParentPath("a"); got != "" {
		t.Errorf("ParentPath top-level = %q", got)
	}
	if got := BaseName("a/b/c.txt"); got != "c.txt" {
		t.Errorf("BaseName = %q", got)
	}
	if !IsWithin("a/b/c", "a/b") || IsWithin("a/bc", "a/b") || !IsWithin("x", "") {
		t.Error("IsWithin returned an unexpected result")
	}
	if got := Rebase("a/b/c", "a/b", "z"); got != "z/c" {
		t.Errorf("Rebase = %q", got)
	}
	if got := Rebase("a/b", "a/b", "z/y"); got != "z/y" {
		t.Errorf("Rebase self = %q", got)
	}
	if got := RelPath("a/b/c", "a"); got != "b/c" {
		t.Errorf("RelPath = %q", got)
	}
}

func TestSegments(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"docs/2024/report.pdf", []string{"docs", "2024", "report.pdf"}},
	}
	for _, tt := range tests {
		got := Segments(tt.path)
		if !slices.Equal(got, tt.want) {
			t.Errorf("Segments(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"", " ", ".", "..", "a/b", `a\b`} {
		if err := ValidateName(name); !errors.Is(err, ErrInvalid) {
			t.Errorf("ValidateName(%q) = %v, want ErrInvalid", name, err)
		}
	}
	if err := ValidateName("report (1).pdf"); err != nil {
		t.Errorf("ValidateName rejected a valid name: %v", err)
	}
}

func TestErrorKinds(t *testing.T) {
	err := NewError("trash", ErrNotFound, "abc", nil)
	if !IsNotFound(err) || IsConflict(err) {
		t.Fatalf("unexpected classification for %v", err)
	}
	if got := err.Error(); got != "trash abc: not found" {
		t.Errorf("Error() = %q", got)
	}
	wrapped := IOError("quarantine", "x", errors.New("disk full"))
	if KindOf(wrapped) != ErrIO {
		t.Errorf("KindOf = %v, want ErrIO", KindOf(wrapped))
	}
	if IOError("restore", "x", err) != err {
		t.Error("IOError must keep an existing kind")
	}
	if _, err := ParseID("not-a-uuid"); !errors.Is(err, ErrInvalid) {
		t.Errorf("ParseID error = %v", err)
	}
}

func TestCandidateName(t *testing.T) {
	tests := []struct {
		name string
		kind ItemType
		n    int
		want string
	}{
		{"report.pdf", ItemFile, 0, "report.pdf"},
		{"report.pdf", ItemFile, 1, "report (1).pdf"},
		{"archive.tar.gz", ItemFile, 2, "archive.tar (2).gz"},
		{".bashrc", ItemFile, 1, ".bashrc (1)"},
		{"noext", ItemFile, 3, "noext (3)"},
		{"v1.2", ItemFolder, 1, "v1.2 (1)"},
	}
	for _, tt := range tests {
		if got := CandidateName(tt.name, tt.kind, tt.n); got != tt.want {
			t.Errorf("CandidateName(%q, %s, %d) = %q, want %q", tt.name, tt.kind, tt.n, got, tt.want)
		}
	}
}
