package main

import (
	"image"
	"log/slog"

	"gocv.io/x/gocv"
)

// PlateReader reads plate text from a cropped plate image.
// *TextRecognizer is the production implementation.
type PlateReader interface {
	Recognize(plate gocv.Mat) string
	Close() error
}

// FrameAnalysis is the outcome of locating and reading the plate in one sampled frame.
type FrameAnalysis struct {
	// Index is the 1-based frame index.
	Index int64
	// Text is the cleaned OCR output, empty when nothing was read.
	Text string
	// Region is the plate candidate in resized frame coordinates.
	Region PlateRegion
	// Crop is the plate image, kept only for frames with text when evidence is enabled.
	Crop image.Image
	// Display is the resized frame, kept only when the debug overlay is enabled.
	// It is owned by the analysis and released by Close.
	Display *gocv.Mat
}

// Close releases the display frame, if any.
func (a *FrameAnalysis) Close() {
	if a.Display != nil {
		a.Display.Close()
		a.Display = nil
	}
}

// FrameAnalyzer runs preprocessing, localization and OCR for a single frame.
// One analyzer per goroutine: its PlateReader is not shared.
type FrameAnalyzer struct {
	preprocessor Preprocessor
	locator      *PlateLocator
	reader       PlateReader
	metrics      *ScanMetrics
	logger       *slog.Logger

	keepCrop    bool
	keepDisplay bool
}

// Analyze processes frame without taking ownership of frame.Image.
func (a *FrameAnalyzer) Analyze(frame Frame) FrameAnalysis {
	result := FrameAnalysis{Index: frame.Index}

	resized := a.preprocessor.Resize(frame.Image)
	keepResized := false
	defer func() {
		if !keepResized {
			resized.Close()
		}
	}()

	gray, edges := a.preprocessor.Preprocess(resized)
	gray.Close()
	result.Region = a.locator.Locate(edges)
	edges.Close()

	if result.Region.Found {
		a.metrics.RecordRegion(result.Region)
		result.Text = a.readRegion(resized, result.Region, &result)
	}

	if result.Text != "" {
		a.metrics.textReads.Add(1)
		a.logger.Debug("Plate text read",
			"frame_index", frame.Index,
			"strategy", result.Region.Strategy,
			"region", result.Region.Rect,
			"text", result.Text)
	}

	if a.keepDisplay {
		keepResized = true
		result.Display = &resized
	}
	return result
}

// readRegion crops region out of frame and reads it. A region that does not overlap
// the frame yields no text and never reaches the OCR engine.
func (a *FrameAnalyzer) readRegion(frame gocv.Mat, region PlateRegion, result *FrameAnalysis) string {
	rect := clampRegion(region.Rect, frame.Cols(), frame.Rows())
	if rect.Empty() {
		return ""
	}

	crop := frame.Region(rect)
	defer crop.Close()

	text := a.reader.Recognize(crop)
	if text != "" && a.keepCrop {
		// Region views are not continuous in memory; ToImage needs a compact copy.
		compact := crop.Clone()
		img, err := compact.ToImage()
		compact.Close()
		if err != nil {
			a.logger.Warn("Failed to convert plate crop", "frame_index", result.Index, "error", err)
		} else {
			result.Crop = img
		}
	}
	return text
}
