package main

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	evidenceHeight    = 96
	captionBandHeight = 20
	captionPadding    = 4
)

// EvidenceWriter saves a captioned snapshot of the plate crop for every confirmed
// detection, so a reviewer can check what the OCR actually saw.
type EvidenceWriter struct {
	dir string
}

// NewEvidenceWriter creates dir if needed.
func NewEvidenceWriter(dir string) (*EvidenceWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create evidence directory: %w", err)
	}
	return &EvidenceWriter{dir: dir}, nil
}

// Write stores the snapshot for event and returns its path.
func (w *EvidenceWriter) Write(event DetectionEvent, crop image.Image) (string, error) {
	if crop == nil || crop.Bounds().Empty() {
		return "", fmt.Errorf("no plate crop for frame %d", event.Frame)
	}

	caption := fmt.Sprintf("%s @ %s", event.Text, formatClock(event.TimeSeconds))
	snapshot := composeEvidence(crop, caption)

	path := filepath.Join(w.dir, fmt.Sprintf("%06d_%s.png", event.Frame, event.Text))
	if err := imaging.Save(snapshot, path); err != nil {
		return "", fmt.Errorf("failed to save evidence snapshot: %w", err)
	}
	return path, nil
}

// composeEvidence scales crop to a fixed height and appends a caption band below it.
func composeEvidence(crop image.Image, caption string) *image.NRGBA {
	scaled := imaging.Resize(crop, 0, evidenceHeight, imaging.Lanczos)

	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, caption).Ceil() + 2*captionPadding
	width := scaled.Bounds().Dx()
	if textWidth > width {
		width = textWidth
	}

	canvas := imaging.New(width, evidenceHeight+captionBandHeight, color.White)
	canvas = imaging.Paste(canvas, scaled, image.Pt(0, 0))

	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot:  fixed.P(captionPadding, evidenceHeight+captionBandHeight-captionPadding-2),
	}
	d.DrawString(caption)
	return canvas
}
