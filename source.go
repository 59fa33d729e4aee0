package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gocv.io/x/gocv"
)

// ErrInputNotFound is returned when the video path does not exist or cannot be opened.
var ErrInputNotFound = errors.New("input video not found")

// defaultFrameRate is used when the container does not report a usable FPS.
const defaultFrameRate = 25.0

// Frame represents a decoded video frame with its position in the stream.
type Frame struct {
	// Image holds the OpenCV Mat containing the raw BGR frame pixels.
	// Whoever owns the Frame must close it.
	Image gocv.Mat

	// Index is the 1-based position of the frame in the decoded stream.
	Index int64
}

// FrameSource yields frames in decode order.
type FrameSource interface {
	// Next decodes the next frame into dst and returns its 1-based index.
	// It returns io.EOF once the stream is exhausted.
	Next(dst *gocv.Mat) (int64, error)
	// FrameRate returns frames per second, never zero.
	FrameRate() float64
	// FrameCount returns the total number of frames, or 0 when unknown.
	FrameCount() int64
	Close() error
}

// VideoFileSource reads a recorded video through OpenCV.
type VideoFileSource struct {
	capture    *gocv.VideoCapture
	fps        float64
	frameCount int64
	index      int64
}

// OpenVideoFile opens path for sequential decoding.
func OpenVideoFile(path string) (*VideoFileSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInputNotFound, path, err)
	}

	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInputNotFound, path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: %s: container could not be opened", ErrInputNotFound, path)
	}

	fps := capture.Get(gocv.VideoCaptureFPS)
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		fps = defaultFrameRate
	}

	count := capture.Get(gocv.VideoCaptureFrameCount)
	var frameCount int64
	if count > 0 && !math.IsNaN(count) && !math.IsInf(count, 0) {
		frameCount = int64(count)
	}

	return &VideoFileSource{
		capture:    capture,
		fps:        fps,
		frameCount: frameCount,
	}, nil
}

// Next implements FrameSource.
func (s *VideoFileSource) Next(dst *gocv.Mat) (int64, error) {
	if s.capture == nil {
		return 0, io.EOF
	}
	if ok := s.capture.Read(dst); !ok || dst.Empty() {
		return 0, io.EOF
	}
	s.index++
	return s.index, nil
}

// FrameRate implements FrameSource.
func (s *VideoFileSource) FrameRate() float64 { return s.fps }

// FrameCount implements FrameSource.
func (s *VideoFileSource) FrameCount() int64 { return s.frameCount }

// Close releases the capture handle. It is safe to call more than once.
func (s *VideoFileSource) Close() error {
	if s.capture == nil {
		return nil
	}
	err := s.capture.Close()
	s.capture = nil
	return err
}
