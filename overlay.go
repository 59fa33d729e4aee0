package main

import (
	"fmt"
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"gocv.io/x/gocv"
)

// quitKey closes the debug window and ends the scan.
const quitKey = 'q'

// FrameDisplay shows analysed frames while a scan runs. Show returns true when the
// user asked to stop.
type FrameDisplay interface {
	Show(frame gocv.Mat, region PlateRegion, text string) bool
	Close() error
}

// DebugOverlay shows each analysed frame with the plate candidate and its text.
// gocv windows must be driven from a single goroutine.
type DebugOverlay struct {
	window *gocv.Window
	color  color.RGBA
}

// NewDebugOverlay opens the debug window. hexColor is parsed with parseOverlayColor.
func NewDebugOverlay(hexColor string) (*DebugOverlay, error) {
	c, err := parseOverlayColor(hexColor)
	if err != nil {
		return nil, err
	}
	return &DebugOverlay{
		window: gocv.NewWindow("Debug"),
		color:  c,
	}, nil
}

// Show draws the region and text onto a copy of frame and displays it. It returns
// true when the quit key was pressed.
func (o *DebugOverlay) Show(frame gocv.Mat, region PlateRegion, text string) bool {
	if frame.Empty() {
		return false
	}

	display := frame.Clone()
	defer display.Close()
	drawDetection(&display, region, text, o.color)

	o.window.IMShow(display)
	return o.window.WaitKey(1)&0xFF == quitKey
}

// Close destroys the window.
func (o *DebugOverlay) Close() error {
	if o.window == nil {
		return nil
	}
	err := o.window.Close()
	o.window = nil
	return err
}

// drawDetection outlines region and writes text above it. Nothing is drawn unless
// both a region and a text are present.
func drawDetection(img *gocv.Mat, region PlateRegion, text string, c color.RGBA) {
	if !region.Found || text == "" {
		return
	}
	gocv.Rectangle(img, region.Rect, c, 2)

	origin := image.Pt(region.Rect.Min.X, region.Rect.Min.Y-10)
	if origin.Y < 20 {
		origin.Y = region.Rect.Max.Y + 25
	}
	gocv.PutText(img, text, origin, gocv.FontHersheySimplex, 1.0, c, 2)
}

// parseOverlayColor parses a "#rrggbb" string into an opaque colour.
func parseOverlayColor(hex string) (color.RGBA, error) {
	parsed, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid overlay colour %q: %w", hex, err)
	}
	r, g, b := parsed.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}
