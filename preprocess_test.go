package main

import (
	"image"
	"testing"

	"gocv.io/x/gocv"
)

// syntheticFrame returns a light BGR frame with a dark filled rectangle at plate.
func syntheticFrame(rows, cols int, plate image.Rectangle) gocv.Mat {
	frame := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC3)
	frame.SetTo(gocv.NewScalar(220, 220, 220, 0))
	if !plate.Empty() {
		region := frame.Region(plate)
		region.SetTo(gocv.NewScalar(20, 20, 20, 0))
		region.Close()
	}
	return frame
}

func TestPreprocessorResize(t *testing.T) {
	tests := []struct {
		name     string
		rows     int
		cols     int
		width    int
		wantCols int
		wantRows int
	}{
		{name: "downscale keeps aspect", rows: 480, cols: 1280, width: 640, wantCols: 640, wantRows: 240},
		{name: "upscale", rows: 100, cols: 200, width: 400, wantCols: 400, wantRows: 200},
		{name: "disabled", rows: 120, cols: 160, width: 0, wantCols: 160, wantRows: 120},
		{name: "already sized", rows: 120, cols: 160, width: 160, wantCols: 160, wantRows: 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := syntheticFrame(tt.rows, tt.cols, image.Rectangle{})
			defer frame.Close()

			out := Preprocessor{ResizeWidth: tt.width}.Resize(frame)
			defer out.Close()

			if out.Cols() != tt.wantCols || out.Rows() != tt.wantRows {
				t.Errorf("Resize() = %dx%d, want %dx%d", out.Cols(), out.Rows(), tt.wantCols, tt.wantRows)
			}
		})
	}
}

func TestPreprocessEmptyFrame(t *testing.T) {
	frame := gocv.NewMat()
	defer frame.Close()

	gray, edges := Preprocessor{}.Preprocess(frame)
	defer gray.Close()
	defer edges.Close()

	if !gray.Empty() || !edges.Empty() {
		t.Error("Preprocess(empty) returned non-empty output")
	}
}

func TestPreprocessFindsPlateOutline(t *testing.T) {
	plate := image.Rect(80, 100, 240, 140)
	frame := syntheticFrame(240, 320, plate)
	defer frame.Close()

	gray, edges := Preprocessor{}.Preprocess(frame)
	defer gray.Close()
	defer edges.Close()

	if gray.Channels() != 1 || edges.Channels() != 1 {
		t.Fatalf("channels gray=%d edges=%d, want 1 and 1", gray.Channels(), edges.Channels())
	}
	if gray.Rows() != frame.Rows() || gray.Cols() != frame.Cols() {
		t.Errorf("gray size = %dx%d, want %dx%d", gray.Cols(), gray.Rows(), frame.Cols(), frame.Rows())
	}
	if gocv.CountNonZero(edges) == 0 {
		t.Fatal("edge map is blank")
	}

	region := DefaultPlateLocator().Locate(edges)
	if !region.Found {
		t.Fatal("plate not located")
	}
	if !nearRect(region.Rect, plate, 3) {
		t.Errorf("located %v, want about %v", region.Rect, plate)
	}
}

func TestPreprocessGrayInput(t *testing.T) {
	plate := image.Rect(80, 100, 240, 140)
	color := syntheticFrame(240, 320, plate)
	defer color.Close()

	single := gocv.NewMat()
	defer single.Close()
	gocv.CvtColor(color, &single, gocv.ColorBGRToGray)

	tests := []struct {
		name  string
		frame gocv.Mat
	}{
		{name: "bgr", frame: color},
		{name: "single channel", frame: single},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gray, edges := Preprocessor{}.Preprocess(tt.frame)
			defer gray.Close()
			defer edges.Close()

			if gray.Channels() != 1 || gray.Rows() != 240 || gray.Cols() != 320 {
				t.Fatalf("gray = %dx%d with %d channels, want 320x240 with 1", gray.Cols(), gray.Rows(), gray.Channels())
			}

			// Edges come from the returned gray image and nothing else.
			want := gocv.NewMat()
			defer want.Close()
			gocv.Canny(gray, &want, cannyLow, cannyHigh)

			diff := gocv.NewMat()
			defer diff.Close()
			gocv.AbsDiff(edges, want, &diff)
			if n := gocv.CountNonZero(diff); n != 0 {
				t.Errorf("edges differ from Canny(gray) in %d pixels", n)
			}
			if gocv.CountNonZero(edges) == 0 {
				t.Error("edge map is blank")
			}
		})
	}
}
