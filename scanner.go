package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"
)

// Scanner drives one pass over a recorded video: it decodes frames, samples every
// SkipFrames-th one, locates and reads the plate, and feeds the reads through the
// stabilizer in frame order.
//
// With a single worker everything runs on the calling goroutine. With more workers
// a reader goroutine dispatches sampled frames to an AnalyzerPool and the results are
// put back in frame order before they reach the stabilizer, so the detections are the
// same for any worker count.
type Scanner struct {
	// config holds the validated run configuration.
	config *Config

	// logger receives operational logs; detections are printed to the DetectionLog writer.
	logger *slog.Logger

	// source yields decoded frames and owns the video handle.
	source FrameSource

	// readers are closed with the scanner, one per analyzer.
	readers   []PlateReader
	analyzers []*FrameAnalyzer

	stabilizer *StabilizerState
	log        *DetectionLog

	// overlay and evidence are optional and nil when disabled.
	overlay  FrameDisplay
	evidence *EvidenceWriter

	metrics *ScanMetrics

	closeOnce sync.Once
	closed    atomic.Bool
}

// scannerParts are the collaborators a Scanner is assembled from.
type scannerParts struct {
	source   FrameSource
	readers  []PlateReader
	locator  *PlateLocator
	metrics  *ScanMetrics
	overlay  FrameDisplay
	evidence *EvidenceWriter
}

// NewScanner opens the input video and creates one Tesseract engine per worker.
// Detection lines and the final summary are written to out.
//
// The caller must call Close() on the returned Scanner to release resources.
func NewScanner(config *Config, logger *slog.Logger, out io.Writer) (*Scanner, error) {
	source, err := OpenVideoFile(config.VideoPath)
	if err != nil {
		return nil, err
	}

	parts := scannerParts{
		source:  source,
		locator: DefaultPlateLocator(),
		metrics: &ScanMetrics{},
	}

	cleanup := func() {
		for _, r := range parts.readers {
			r.Close()
		}
		if parts.overlay != nil {
			parts.overlay.Close()
		}
		source.Close()
	}

	for i := 0; i < config.Workers; i++ {
		engine, err := NewTesseractEngine(config.Language, config.TessdataPrefix)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to create OCR engine %d: %w", i, err)
		}
		parts.readers = append(parts.readers, NewTextRecognizer(engine, parts.metrics, logger))
	}

	if config.Debug {
		overlay, err := NewDebugOverlay(config.OverlayColor)
		if err != nil {
			cleanup()
			return nil, err
		}
		parts.overlay = overlay
	}

	if config.EvidenceDir != "" {
		parts.evidence, err = NewEvidenceWriter(config.EvidenceDir)
		if err != nil {
			cleanup()
			return nil, err
		}
	}

	s := newScanner(config, logger, out, parts)

	logger.Debug("Scanner initialized",
		"fps", source.FrameRate(),
		"frame_count", source.FrameCount(),
		"workers", len(s.analyzers),
		"debug_overlay", s.overlay != nil,
		"evidence_dir", config.EvidenceDir)

	return s, nil
}

// newScanner assembles a Scanner with one analyzer per reader.
func newScanner(config *Config, logger *slog.Logger, out io.Writer, parts scannerParts) *Scanner {
	if parts.metrics == nil {
		parts.metrics = &ScanMetrics{}
	}
	if parts.locator == nil {
		parts.locator = DefaultPlateLocator()
	}

	s := &Scanner{
		config:     config,
		logger:     logger,
		source:     parts.source,
		readers:    parts.readers,
		stabilizer: NewStabilizer(config.MinConfidence),
		log:        NewDetectionLog(out, parts.source.FrameRate()),
		overlay:    parts.overlay,
		evidence:   parts.evidence,
		metrics:    parts.metrics,
	}

	for _, reader := range parts.readers {
		s.analyzers = append(s.analyzers, &FrameAnalyzer{
			preprocessor: Preprocessor{ResizeWidth: config.ResizeWidth},
			locator:      parts.locator,
			reader:       reader,
			metrics:      parts.metrics,
			logger:       logger,
			keepCrop:     parts.evidence != nil,
			keepDisplay:  parts.overlay != nil,
		})
	}
	return s
}

// Close releases the OCR engines, the debug window and the video handle.
// It's safe to call multiple times. Run must have returned before Close is called.
func (s *Scanner) Close() error {
	var finalErr error

	s.closeOnce.Do(func() {
		s.closed.Store(true)

		var errs []error
		for i, r := range s.readers {
			if err := r.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close OCR engine %d: %w", i, err))
			}
		}
		s.readers = nil

		if s.overlay != nil {
			if err := s.overlay.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close debug window: %w", err))
			}
		}

		if s.source != nil {
			if err := s.source.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close video: %w", err))
			}
		}

		if len(errs) > 0 {
			finalErr = fmt.Errorf("errors during cleanup: %v", errs)
		}

		s.logger.Debug("Scanner cleanup completed")
	})

	return finalErr
}

// Run scans the whole video and returns the confirmed detections in emission order.
//
// Cancelling ctx or pressing the quit key in the debug window stops decoding early;
// detections confirmed up to that point are still written out. The CSV log is
// written only when at least one detection was confirmed.
func (s *Scanner) Run(ctx context.Context) ([]DetectionEvent, error) {
	if s.closed.Load() {
		return nil, errors.New("scanner is closed")
	}
	if len(s.analyzers) == 0 {
		return nil, errors.New("scanner has no OCR workers")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.metrics.reportProgress(runCtx, s.logger, s.config.ProgressInterval, s.source.FrameCount())
	}()

	start := time.Now()
	var scanErr error
	if len(s.analyzers) == 1 {
		scanErr = s.scanSequential(runCtx)
	} else {
		scanErr = s.scanPooled(runCtx, cancel)
	}
	cancel()
	wg.Wait()

	if ctx.Err() != nil {
		s.logger.Info("Scan interrupted, writing detections confirmed so far")
	}
	if scanErr != nil {
		s.logger.Error("Scan stopped on decode error", "error", scanErr)
	}

	if err := s.log.Flush(s.config.OutPath); err != nil {
		return s.log.Events(), errors.Join(scanErr, fmt.Errorf("failed to write detections: %w", err))
	}

	attrs := append(s.metrics.logAttrs(), "elapsed", time.Since(start))
	s.logger.Info("Scan complete", attrs...)

	return s.log.Events(), scanErr
}

// sampled reports whether the frame with the given 1-based index is analysed.
func (s *Scanner) sampled(index int64) bool {
	return index%int64(s.config.SkipFrames) == 0
}

// scanSequential decodes, analyses and consumes frames on the calling goroutine.
func (s *Scanner) scanSequential(ctx context.Context) error {
	frame := gocv.NewMat()
	defer frame.Close()

	analyzer := s.analyzers[0]
	for {
		if ctx.Err() != nil {
			return nil
		}

		index, err := s.source.Next(&frame)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to decode frame: %w", err)
		}
		s.metrics.framesDecoded.Add(1)

		if !s.sampled(index) {
			continue
		}
		s.metrics.framesSampled.Add(1)

		start := time.Now()
		analysis := analyzer.Analyze(Frame{Image: frame, Index: index})
		s.metrics.UpdateAnalysisTime(time.Since(start))

		if s.consume(analysis) {
			return nil
		}
	}
}

// scanPooled runs a reader goroutine and the analyzer pool, and consumes results on
// the calling goroutine in frame order. cancel stops the reader when the quit key is
// pressed.
//
// At most bufferSize sampled frames are dispatched but not yet consumed, so a slow
// frame holds back the reader instead of letting finished analyses pile up in the
// reorder buffer.
func (s *Scanner) scanPooled(ctx context.Context, cancel context.CancelFunc) error {
	bufferSize := len(s.analyzers) * 2
	jobs := make(chan analysisJob, bufferSize)
	results := make(chan analysisResult, bufferSize)
	slots := make(chan struct{}, bufferSize)

	pool := NewAnalyzerPool(s.analyzers, s.metrics, s.logger)

	var readErr error
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(jobs)
		readErr = s.dispatch(ctx, jobs, slots)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(results)
		pool.Process(jobs, results)
	}()

	reorder := newReorderBuffer()
	quit := false
	for res := range results {
		if quit {
			res.analysis.Close()
			<-slots
			continue
		}
		ready := reorder.Push(res.seq, res.analysis)
		s.metrics.UpdateReorderPeak(int64(reorder.Len() + len(ready)))
		for _, analysis := range ready {
			if quit {
				analysis.Close()
			} else if s.consume(analysis) {
				quit = true
				cancel()
			}
			<-slots
		}
	}
	if n := reorder.Len(); n > 0 {
		s.logger.Warn("Discarding out-of-order analyses", "count", n)
	}
	reorder.Discard()

	wg.Wait()
	return readErr
}

// dispatch decodes frames and queues the sampled ones. Every queued frame is a clone
// owned by the job. A slot is taken from slots for each queued frame and given back by
// the consumer.
func (s *Scanner) dispatch(ctx context.Context, jobs chan<- analysisJob, slots chan<- struct{}) error {
	buf := gocv.NewMat()
	defer buf.Close()

	var seq int64
	for {
		if ctx.Err() != nil {
			return nil
		}

		index, err := s.source.Next(&buf)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to decode frame: %w", err)
		}
		s.metrics.framesDecoded.Add(1)

		if !s.sampled(index) {
			continue
		}

		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			return nil
		}
		s.metrics.framesSampled.Add(1)

		// jobs has room for every slot, so this send never blocks.
		jobs <- analysisJob{seq: seq, frame: Frame{Image: buf.Clone(), Index: index}}
		seq++
	}
}

// consume feeds one analysis to the stabilizer and handles a confirmed detection.
// It returns true when the quit key was pressed in the debug window.
func (s *Scanner) consume(analysis FrameAnalysis) bool {
	defer analysis.Close()

	event, ok := s.stabilizer.Update(analysis.Index, s.source.FrameRate(), analysis.Text)
	if ok {
		s.metrics.detections.Add(1)
		s.log.Add(event)
		s.logger.Info("Plate detected",
			"frame_index", event.Frame,
			"time_seconds", event.TimeSeconds,
			"text", event.Text,
			"strategy", analysis.Region.Strategy)

		if s.evidence != nil {
			path, err := s.evidence.Write(event, analysis.Crop)
			if err != nil {
				s.logger.Warn("Failed to write evidence snapshot", "frame_index", event.Frame, "error", err)
			} else {
				s.logger.Debug("Evidence snapshot written", "path", path)
			}
		}
	}

	if s.overlay != nil && analysis.Display != nil {
		if s.overlay.Show(*analysis.Display, analysis.Region, analysis.Text) {
			s.logger.Info("Quit key pressed, stopping scan", "frame_index", analysis.Index)
			return true
		}
	}
	return false
}
