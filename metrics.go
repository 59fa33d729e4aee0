package main

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// ScanMetrics tracks progress and quality counters for one scan.
// All fields are safe for concurrent use by the reader, workers and consumer.
type ScanMetrics struct {
	// framesDecoded counts every frame read from the source.
	framesDecoded atomic.Int64
	// framesSampled counts frames selected for analysis.
	framesSampled atomic.Int64
	// quadRegions counts frames located by the quadrilateral strategy.
	quadRegions atomic.Int64
	// fallbackRegions counts frames located by a later strategy.
	fallbackRegions atomic.Int64
	// textReads counts sampled frames that produced non-empty text.
	textReads atomic.Int64
	// ocrErrors counts normalization and OCR engine failures.
	ocrErrors atomic.Int64
	// ocrRejected counts OCR calls skipped by an open circuit breaker.
	ocrRejected atomic.Int64
	// detections counts confirmed detection events.
	detections atomic.Int64
	// reorderPeak is the largest number of analyses held for frame ordering at once.
	reorderPeak atomic.Int64
	// avgAnalysisTimeNs tracks the average per-frame analysis time in nanoseconds.
	avgAnalysisTimeNs atomic.Int64
}

// GetFramesDecoded returns the number of frames decoded so far.
func (m *ScanMetrics) GetFramesDecoded() int64 { return m.framesDecoded.Load() }

// GetFramesSampled returns the number of frames selected for analysis.
func (m *ScanMetrics) GetFramesSampled() int64 { return m.framesSampled.Load() }

// GetTextReads returns the number of sampled frames that produced text.
func (m *ScanMetrics) GetTextReads() int64 { return m.textReads.Load() }

// GetOCRErrors returns the number of OCR failures.
func (m *ScanMetrics) GetOCRErrors() int64 { return m.ocrErrors.Load() }

// GetDetections returns the number of confirmed detections.
func (m *ScanMetrics) GetDetections() int64 { return m.detections.Load() }

// GetAvgAnalysisTimeMs returns the average frame analysis time in milliseconds.
func (m *ScanMetrics) GetAvgAnalysisTimeMs() float64 {
	return float64(m.avgAnalysisTimeNs.Load()) / 1e6
}

// RecordRegion counts a located region by the strategy that produced it.
func (m *ScanMetrics) RecordRegion(region PlateRegion) {
	if !region.Found {
		return
	}
	if region.Strategy == (QuadContourStrategy{}).Name() {
		m.quadRegions.Add(1)
	} else {
		m.fallbackRegions.Add(1)
	}
}

// UpdateAnalysisTime updates the average analysis time with a new measurement.
func (m *ScanMetrics) UpdateAnalysisTime(d time.Duration) {
	// Exponential moving average, alpha = 0.1
	for {
		current := m.avgAnalysisTimeNs.Load()
		updated := d.Nanoseconds()
		if current != 0 {
			updated = int64(float64(current)*0.9 + float64(updated)*0.1)
		}
		if m.avgAnalysisTimeNs.CompareAndSwap(current, updated) {
			return
		}
	}
}

// GetReorderPeak returns the largest number of analyses held for frame ordering.
func (m *ScanMetrics) GetReorderPeak() int64 { return m.reorderPeak.Load() }

// UpdateReorderPeak records n if it is higher than the current peak.
func (m *ScanMetrics) UpdateReorderPeak(n int64) {
	for {
		current := m.reorderPeak.Load()
		if n <= current || m.reorderPeak.CompareAndSwap(current, n) {
			return
		}
	}
}

// logAttrs returns the counters as slog key/value pairs.
func (m *ScanMetrics) logAttrs() []any {
	return []any{
		"frames_decoded", m.framesDecoded.Load(),
		"frames_sampled", m.framesSampled.Load(),
		"quad_regions", m.quadRegions.Load(),
		"fallback_regions", m.fallbackRegions.Load(),
		"text_reads", m.textReads.Load(),
		"ocr_errors", m.ocrErrors.Load(),
		"ocr_rejected", m.ocrRejected.Load(),
		"detections", m.detections.Load(),
		"reorder_peak", m.reorderPeak.Load(),
		"avg_analysis_time_ms", m.GetAvgAnalysisTimeMs(),
	}
}

// reportProgress periodically logs scan progress until ctx is done.
// totalFrames may be 0 when the container does not report a frame count.
func (m *ScanMetrics) reportProgress(ctx context.Context, logger *slog.Logger, interval time.Duration, totalFrames int64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			attrs := m.logAttrs()
			if totalFrames > 0 {
				progress := float64(m.framesDecoded.Load()) / float64(totalFrames) * 100
				attrs = append(attrs, "progress_pct", progress, "total_frames", totalFrames)
			}
			logger.Info("Scan progress", attrs...)

			if avg := m.GetAvgAnalysisTimeMs(); avg > 500 {
				logger.Warn("Slow frame analysis detected",
					"avg_analysis_time_ms", avg,
					"consider_more_workers", true)
			}
		}
	}
}
