package main

import "math"

// DetectionEvent is one confirmed, time-stamped plate reading.
type DetectionEvent struct {
	// Frame is the 1-based index of the frame that confirmed the text.
	Frame int64
	// TimeSeconds is Frame divided by the stream frame rate, rounded to milliseconds.
	TimeSeconds float64
	// Text is the confirmed plate text, never empty.
	Text string
}

// StabilizerState turns noisy per-frame OCR reads into confirmed detections.
//
// Each tracked text has a confidence counter. A read increments its own counter and
// decays every other counter by one; a frame without text decays them all. A text whose
// counter reaches the threshold is confirmed unless it was also the last confirmed text,
// and its counter is reset either way so a plate that stays in view does not re-trigger.
//
// Counters that decay to zero are kept, so memory grows with the number of distinct
// strings read, not with the number of frames.
type StabilizerState struct {
	minConfidence int
	counts        map[string]int
	// order is the insertion order of counts, so threshold scans are deterministic.
	order []string
	last  string
}

// NewStabilizer creates a stabilizer that confirms a text after minConfidence reads.
// Values below 1 are treated as 1.
func NewStabilizer(minConfidence int) *StabilizerState {
	if minConfidence < 1 {
		minConfidence = 1
	}
	return &StabilizerState{
		minConfidence: minConfidence,
		counts:        make(map[string]int),
	}
}

// Update feeds the text read from one sampled frame (empty when nothing was read) and
// returns the detection confirmed by this frame, if any. Frames must be fed in
// increasing index order.
func (s *StabilizerState) Update(frame int64, fps float64, text string) (DetectionEvent, bool) {
	if text != "" {
		if _, ok := s.counts[text]; !ok {
			s.order = append(s.order, text)
		}
		s.counts[text]++
	}
	for _, k := range s.order {
		if k != text && s.counts[k] > 0 {
			s.counts[k]--
		}
	}

	var event DetectionEvent
	emitted := false
	for _, k := range s.order {
		if s.counts[k] < s.minConfidence {
			continue
		}
		if k != s.last && !emitted {
			event = DetectionEvent{
				Frame:       frame,
				TimeSeconds: frameTime(frame, fps),
				Text:        k,
			}
			emitted = true
			s.last = k
		}
		s.counts[k] = 0
	}
	return event, emitted
}

// Last returns the most recently confirmed text.
func (s *StabilizerState) Last() string { return s.last }

// Counts returns a copy of the current confidence counters.
func (s *StabilizerState) Counts() map[string]int {
	out := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// frameTime converts a frame index to seconds rounded to three decimals.
func frameTime(frame int64, fps float64) float64 {
	if fps <= 0 {
		fps = defaultFrameRate
	}
	return math.Round(float64(frame)/fps*1000) / 1000
}
