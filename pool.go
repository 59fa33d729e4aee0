package main

import (
	"log/slog"
	"sync"
	"time"
)

// analysisJob is a sampled frame queued for a worker. seq numbers sampled frames
// from 0 in decode order.
type analysisJob struct {
	seq   int64
	frame Frame
}

// analysisResult carries a finished analysis back to the consumer.
type analysisResult struct {
	seq      int64
	analysis FrameAnalysis
}

// AnalyzerPool runs one goroutine per FrameAnalyzer. Jobs are dispatched in frame
// order by a single reader, results come back in completion order and must be
// reassembled with a reorderBuffer before they reach the stabilizer.
type AnalyzerPool struct {
	workers []*FrameAnalyzer
	metrics *ScanMetrics
	logger  *slog.Logger
}

// NewAnalyzerPool creates a pool over the given analyzers.
func NewAnalyzerPool(workers []*FrameAnalyzer, metrics *ScanMetrics, logger *slog.Logger) *AnalyzerPool {
	return &AnalyzerPool{workers: workers, metrics: metrics, logger: logger}
}

// Process consumes jobs until the channel is closed and sends one result per job.
// Each job frame is closed once analysed. The caller must keep draining results
// until Process returns.
func (p *AnalyzerPool) Process(jobs <-chan analysisJob, results chan<- analysisResult) {
	var wg sync.WaitGroup
	for id, worker := range p.workers {
		wg.Add(1)
		go func(id int, w *FrameAnalyzer) {
			defer wg.Done()
			processed := 0
			for job := range jobs {
				start := time.Now()
				analysis := w.Analyze(job.frame)
				job.frame.Image.Close()
				p.metrics.UpdateAnalysisTime(time.Since(start))
				processed++
				results <- analysisResult{seq: job.seq, analysis: analysis}
			}
			p.logger.Debug("Analysis worker stopped", "worker_id", id, "frames_processed", processed)
		}(id, worker)
	}
	wg.Wait()
}

// reorderBuffer releases analyses strictly in sequence order.
type reorderBuffer struct {
	next    int64
	pending map[int64]FrameAnalysis
}

func newReorderBuffer() *reorderBuffer {
	return &reorderBuffer{pending: make(map[int64]FrameAnalysis)}
}

// Push stores an analysis and returns every analysis that is now ready, in order.
func (b *reorderBuffer) Push(seq int64, analysis FrameAnalysis) []FrameAnalysis {
	b.pending[seq] = analysis

	var ready []FrameAnalysis
	for {
		a, ok := b.pending[b.next]
		if !ok {
			return ready
		}
		delete(b.pending, b.next)
		ready = append(ready, a)
		b.next++
	}
}

// Len returns the number of analyses waiting for an earlier sequence number.
func (b *reorderBuffer) Len() int { return len(b.pending) }

// Discard releases everything still buffered.
func (b *reorderBuffer) Discard() {
	for seq, a := range b.pending {
		a.Close()
		delete(b.pending, seq)
	}
}
