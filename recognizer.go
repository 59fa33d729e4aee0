package main

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// plateWhitelist restricts Tesseract to characters that appear on plates.
const plateWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-"

// OCREngine recognizes a single line of text in an encoded image.
type OCREngine interface {
	Recognize(png []byte) (string, error)
	Close() error
}

// TesseractEngine is an OCREngine backed by a gosseract client.
// Each instance owns its client and must only be used from one goroutine.
type TesseractEngine struct {
	client *gosseract.Client
}

// NewTesseractEngine creates a Tesseract client configured for single-line plate text.
func NewTesseractEngine(language, tessdataPrefix string) (*TesseractEngine, error) {
	client := gosseract.NewClient()

	if tessdataPrefix != "" {
		if err := client.SetTessdataPrefix(tessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}

	if err := client.SetLanguage(strings.Split(language, ",")...); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}

	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	if err := client.SetWhitelist(plateWhitelist); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set character whitelist: %w", err)
	}

	return &TesseractEngine{client: client}, nil
}

// Recognize implements OCREngine.
func (e *TesseractEngine) Recognize(png []byte) (string, error) {
	if err := e.client.SetImageFromBytes(png); err != nil {
		return "", fmt.Errorf("failed to set OCR image: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}
	return text, nil
}

// Close releases the OCR client resources.
func (e *TesseractEngine) Close() error {
	if e.client != nil {
		err := e.client.Close()
		e.client = nil
		return err
	}
	return nil
}

// TextRecognizer normalizes a plate crop and reads it with an OCREngine.
type TextRecognizer struct {
	engine  OCREngine
	breaker *CircuitBreaker
	metrics *ScanMetrics
	logger  *slog.Logger
}

// NewTextRecognizer wraps engine with a circuit breaker. metrics may be nil.
func NewTextRecognizer(engine OCREngine, metrics *ScanMetrics, logger *slog.Logger) *TextRecognizer {
	return &TextRecognizer{
		engine:  engine,
		breaker: NewCircuitBreaker(5, 25, 1, logger),
		metrics: metrics,
		logger:  logger,
	}
}

// Recognize returns the cleaned plate text found in plate, or "" when nothing usable
// was read. An empty crop returns "" without invoking the engine.
func (r *TextRecognizer) Recognize(plate gocv.Mat) string {
	if plate.Empty() || plate.Rows() == 0 || plate.Cols() == 0 {
		return ""
	}

	normalized := normalizePlate(plate)
	defer normalized.Close()

	buf, err := gocv.IMEncode(".png", normalized)
	if err != nil {
		r.recordError(err)
		return ""
	}
	defer buf.Close()

	var raw string
	err = r.breaker.Call(func() error {
		var callErr error
		raw, callErr = r.engine.Recognize(buf.GetBytes())
		return callErr
	})
	if errors.Is(err, ErrCircuitOpen) {
		if r.metrics != nil {
			r.metrics.ocrRejected.Add(1)
		}
		return ""
	}
	if err != nil {
		r.recordError(err)
		return ""
	}

	return cleanPlateText(raw)
}

func (r *TextRecognizer) recordError(err error) {
	if r.metrics != nil {
		r.metrics.ocrErrors.Add(1)
	}
	r.logger.Debug("OCR failed, treating frame as unread", "error", err)
}

// Close releases the underlying engine.
func (r *TextRecognizer) Close() error {
	return r.engine.Close()
}

// normalizePlate prepares a plate crop for OCR: grayscale, 2x cubic upscale,
// Otsu binarization and one 3x3 morphological opening to remove speckle.
// The caller must close the returned Mat.
func normalizePlate(plate gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	if plate.Channels() == 1 {
		plate.CopyTo(&gray)
	} else {
		gocv.CvtColor(plate, &gray, gocv.ColorBGRToGray)
	}

	upscaled := gocv.NewMat()
	defer upscaled.Close()
	gocv.Resize(gray, &upscaled, image.Point{}, 2, 2, gocv.InterpolationCubic)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(upscaled, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()

	opened := gocv.NewMat()
	gocv.MorphologyEx(binary, &opened, gocv.MorphOpen, kernel)
	return opened
}

// cleanPlateText trims the raw OCR output and drops every character outside
// A-Z, 0-9 and '-'. Applying it twice gives the same result as applying it once.
func cleanPlateText(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	b.Grow(len(raw))
	for _, ch := range raw {
		if isPlateRune(ch) {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

func isPlateRune(ch rune) bool {
	return (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '-'
}
