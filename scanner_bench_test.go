package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"
)

// BenchmarkScannerWorkers compares the sequential path against the worker pool on a
// synthetic source. The scripted reader keeps OCR cost out of the measurement, so this
// shows pipeline overhead rather than Tesseract throughput.
func BenchmarkScannerWorkers(b *testing.B) {
	if testing.Short() {
		b.Skip("Skipping benchmark in short mode")
	}

	texts := make(map[int64]string)
	for i := int64(1); i <= 200; i++ {
		texts[i%256] = fmt.Sprintf("PL%03d", i/20)
	}

	for _, workers := range []int{1, 2, 4, 8} {
		b.Run(fmt.Sprintf("Workers_%d", workers), func(b *testing.B) {
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				var readers []PlateReader
				for w := 0; w < workers; w++ {
					readers = append(readers, &scriptedReader{texts: texts})
				}
				config := &Config{
					OutPath:          filepath.Join(b.TempDir(), "detections.csv"),
					SkipFrames:       1,
					MinConfidence:    2,
					Workers:          workers,
					ProgressInterval: time.Hour,
				}
				s := newScanner(config, discardLogger(), io.Discard, scannerParts{
					source:  &scriptedSource{frames: 200, fps: 25.0},
					readers: readers,
					locator: NewPlateLocator(wholeFrame{}),
				})

				if _, err := s.Run(context.Background()); err != nil {
					b.Fatalf("Run() error = %v", err)
				}
				s.Close()
			}
		})
	}
}

// BenchmarkStabilizerUpdate measures the per-frame cost of the stabilizer with a
// realistic mix of reads, misreads and empty frames.
func BenchmarkStabilizerUpdate(b *testing.B) {
	reads := []string{"ABC123", "ABC123", "A8C123", "", "ABC123", "XYZ999", "", "XYZ999", "XYZ999", ""}
	s := NewStabilizer(2)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Update(int64(i+1), 25, reads[i%len(reads)])
	}
}

// BenchmarkMetricsUpdate benchmarks the performance impact of metrics tracking.
func BenchmarkMetricsUpdate(b *testing.B) {
	metrics := &ScanMetrics{}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		metrics.framesDecoded.Add(1)
		metrics.UpdateAnalysisTime(time.Millisecond * 100)
		metrics.RecordRegion(PlateRegion{Found: true, Strategy: "quad"})
	}
}
