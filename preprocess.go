package main

import (
	"image"

	"gocv.io/x/gocv"
)

// Edge detection parameters tuned for outdoor plate footage.
const (
	bilateralDiameter = 11
	bilateralSigma    = 17
	cannyLow          = 30
	cannyHigh         = 200
)

// Preprocessor turns a color frame into the grayscale and edge images the
// plate locator works on.
type Preprocessor struct {
	// ResizeWidth scales frames to this width before analysis, 0 disables scaling.
	ResizeWidth int
}

// Resize returns a new Mat scaled to ResizeWidth, preserving aspect ratio.
// The caller must close the returned Mat.
func (p Preprocessor) Resize(frame gocv.Mat) gocv.Mat {
	if frame.Empty() || p.ResizeWidth <= 0 || frame.Cols() == p.ResizeWidth {
		return frame.Clone()
	}

	height := int(float64(frame.Rows()) * float64(p.ResizeWidth) / float64(frame.Cols()))
	if height < 1 {
		height = 1
	}

	resized := gocv.NewMat()
	gocv.Resize(frame, &resized, image.Pt(p.ResizeWidth, height), 0, 0, gocv.InterpolationArea)
	return resized
}

// Preprocess converts frame to a noise-reduced grayscale image and a binary edge map.
//
// Processing pipeline:
//  1. Convert to grayscale - contour detection and OCR are intensity based
//  2. Bilateral filter - smooths plate background texture while keeping borders sharp
//  3. Canny with fixed hysteresis thresholds (30, 200)
//
// gray is the smoothed image that edges were computed from. A single-channel frame
// is filtered directly. An empty frame yields empty outputs. The caller must close
// both returned Mats.
func (p Preprocessor) Preprocess(frame gocv.Mat) (gray, edges gocv.Mat) {
	gray = gocv.NewMat()
	edges = gocv.NewMat()
	if frame.Empty() {
		return gray, edges
	}

	plain := frame
	if frame.Channels() != 1 {
		plain = gocv.NewMat()
		defer plain.Close()
		gocv.CvtColor(frame, &plain, gocv.ColorBGRToGray)
	}

	gocv.BilateralFilter(plain, &gray, bilateralDiameter, bilateralSigma, bilateralSigma)
	gocv.Canny(gray, &edges, cannyLow, cannyHigh)
	return gray, edges
}
