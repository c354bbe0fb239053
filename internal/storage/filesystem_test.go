package storage

import (
	"bytes"
	"testing"
)

func TestFileSystem_WriteAndRead(t *testing.T) {
	fs, err := NewFileSystem(t.TempDir())
	if err != nil {
		t.Fatalf("creating filesystem: %v", err)
	}

	report := []byte("# Quick Stats\n\nRevenue grew.")
	if err := fs.Write("report.md", report); err != nil {
		t.Fatalf("writing export: %v", err)
	}

	if !fs.Exists("report.md") {
		t.Error("expected export to exist after write")
	}

	data, err := fs.Read("report.md")
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	if !bytes.Equal(data, report) {
		t.Errorf("expected %q, got %q", report, data)
	}
}

func TestFileSystem_Read_NotFound(t *testing.T) {
	fs, err := NewFileSystem(t.TempDir())
	if err != nil {
		t.Fatalf("creating filesystem: %v", err)
	}

	if fs.Exists("nope.svg") {
		t.Error("expected non-existent export to return false")
	}
	if _, err := fs.Read("nope.svg"); err == nil {
		t.Error("expected error reading non-existent export")
	}
}

func TestFileSystem_Write_EmptyName(t *testing.T) {
	fs, err := NewFileSystem(t.TempDir())
	if err != nil {
		t.Fatalf("creating filesystem: %v", err)
	}
	if err := fs.Write("  ", []byte("x")); err == nil {
		t.Error("expected error for empty export name")
	}
}

func TestFileSystem_Path(t *testing.T) {
	fs := &FileSystem{baseDir: "/data/exports"}

	tests := []struct {
		name string
		want string
	}{
		{"report.html", "/data/exports/report.html"},
		{"../../etc/passwd", "/data/exports/passwd"},
		{"nested/business_model.svg", "/data/exports/business_model.svg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fs.Path(tt.name); got != tt.want {
				t.Errorf("Path(%q) = %s, want %s", tt.name, got, tt.want)
			}
		})
	}
}

func TestFileSystem_List(t *testing.T) {
	fs, err := NewFileSystem(t.TempDir())
	if err != nil {
		t.Fatalf("creating filesystem: %v", err)
	}
	for _, name := range []string{"report.md", "report.html"} {
		if err := fs.Write(name, []byte("x")); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}

	names, err := fs.List()
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(names) != 2 {
		t.Errorf("expected 2 exports, got %v", names)
	}
}
