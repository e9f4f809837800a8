package serving

import (
	"sync"
	"time"
)

// Stats holds the process-lifetime request counters for a serving
// pipeline. Every mutation happens under one mutex so concurrent
// requests never lose an increment or observe a torn snapshot;
// derived rates are computed at read time, never stored.
type Stats struct {
	mu sync.Mutex

	totalRequests    int64
	ocrRequests      int64
	generateRequests int64
	successes        int64
	failures         int64
	totalProcessing  time.Duration
}

// NewStats creates a zeroed Stats.
func NewStats() *Stats {
	return &Stats{}
}

// RecordOCR records one completed OCR request.
func (s *Stats) RecordOCR(processing time.Duration, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRequests++
	s.ocrRequests++
	s.totalProcessing += processing
	if success {
		s.successes++
	} else {
		s.failures++
	}
}

// RecordGenerate records one completed captcha-generation request.
func (s *Stats) RecordGenerate(processing time.Duration, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRequests++
	s.generateRequests++
	s.totalProcessing += processing
	if success {
		s.successes++
	} else {
		s.failures++
	}
}

// Reset zeroes all counters.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRequests = 0
	s.ocrRequests = 0
	s.generateRequests = 0
	s.successes = 0
	s.failures = 0
	s.totalProcessing = 0
}

// StatsSnapshot is a point-in-time view of the counters plus the
// derived rates.
type StatsSnapshot struct {
	TotalRequests         int64   `json:"total_requests"`
	OCRRequests           int64   `json:"ocr_requests"`
	GenerateRequests      int64   `json:"generate_requests"`
	SuccessfulRequests    int64   `json:"successful_requests"`
	FailedRequests        int64   `json:"failed_requests"`
	SuccessRate           float64 `json:"success_rate"`
	AverageProcessingTime float64 `json:"average_processing_time"`
	Uptime                float64 `json:"uptime"`
	RequestsPerMinute     float64 `json:"requests_per_minute"`
}

// Snapshot derives the read-time fields against the given uptime.
// All divisions are guarded; a fresh or reset Stats reads as zeros.
func (s *Stats) Snapshot(uptime time.Duration) StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		TotalRequests:      s.totalRequests,
		OCRRequests:        s.ocrRequests,
		GenerateRequests:   s.generateRequests,
		SuccessfulRequests: s.successes,
		FailedRequests:     s.failures,
		Uptime:             uptime.Seconds(),
	}

	if s.totalRequests > 0 {
		snap.SuccessRate = float64(s.successes) / float64(s.totalRequests)
		snap.AverageProcessingTime = s.totalProcessing.Seconds() / float64(s.totalRequests)
	}
	if uptime >= time.Second {
		snap.RequestsPerMinute = float64(s.totalRequests) / uptime.Minutes()
	}

	return snap
}
