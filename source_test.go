package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenVideoFileErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.mp4")
	if err := os.WriteFile(garbage, []byte("not a video"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{name: "missing file", path: filepath.Join(dir, "missing.mp4")},
		{name: "unreadable container", path: garbage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := OpenVideoFile(tt.path)
			if err == nil {
				src.Close()
				t.Fatal("OpenVideoFile() succeeded, want error")
			}
			if !errors.Is(err, ErrInputNotFound) {
				t.Errorf("OpenVideoFile() error = %v, want ErrInputNotFound", err)
			}
		})
	}
}

func TestVideoFileSourceCloseTwice(t *testing.T) {
	s := &VideoFileSource{}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
