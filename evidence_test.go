package main

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func TestComposeEvidence(t *testing.T) {
	tests := []struct {
		name      string
		crop      image.Rectangle
		caption   string
		wantWidth int
	}{
		{name: "wide crop keeps scaled width", crop: image.Rect(0, 0, 400, 96), caption: "AB1 @ 0:00:01", wantWidth: 400},
		{name: "narrow crop widened for caption", crop: image.Rect(0, 0, 20, 96), caption: "ABC123 @ 0:00:05", wantWidth: 16*7 + 2*captionPadding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crop := imaging.New(tt.crop.Dx(), tt.crop.Dy(), color.Black)

			got := composeEvidence(crop, tt.caption)
			bounds := got.Bounds()
			if bounds.Dy() != evidenceHeight+captionBandHeight {
				t.Errorf("height = %d, want %d", bounds.Dy(), evidenceHeight+captionBandHeight)
			}
			if bounds.Dx() != tt.wantWidth {
				t.Errorf("width = %d, want %d", bounds.Dx(), tt.wantWidth)
			}

			// The band below the crop starts out white and the caption draws black pixels into it.
			dark := 0
			for y := evidenceHeight; y < bounds.Dy(); y++ {
				for x := 0; x < bounds.Dx(); x++ {
					if r, _, _, _ := got.At(x, y).RGBA(); r < 0x8000 {
						dark++
					}
				}
			}
			if dark == 0 {
				t.Error("caption band has no text pixels")
			}
		})
	}
}

func TestEvidenceWriterWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "evidence")
	w, err := NewEvidenceWriter(dir)
	if err != nil {
		t.Fatalf("NewEvidenceWriter() error = %v", err)
	}

	event := DetectionEvent{Frame: 125, TimeSeconds: 5.0, Text: "ABC123"}
	crop := imaging.New(120, 30, color.White)

	path, err := w.Write(event, crop)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if want := filepath.Join(dir, "000125_ABC123.png"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	saved, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}
	if saved.Bounds().Dy() != evidenceHeight+captionBandHeight {
		t.Errorf("snapshot height = %d, want %d", saved.Bounds().Dy(), evidenceHeight+captionBandHeight)
	}
}

func TestEvidenceWriterRejectsMissingCrop(t *testing.T) {
	dir := t.TempDir()
	w, err := NewEvidenceWriter(dir)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := w.Write(DetectionEvent{Frame: 1, Text: "AB1"}, nil); err == nil {
		t.Error("Write(nil crop) succeeded, want error")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("directory has %d entries, want 0", len(entries))
	}
}
