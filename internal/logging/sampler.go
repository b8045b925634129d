package logging

import "strings"

// ProgressSampler thins engine progress callbacks down to loggable events.
// Engines can report many times per second; an update passes only when the
// status changes or the percentage crosses into a new bucket.
type ProgressSampler struct {
	bucketSize float64
	lastStatus string
	lastBucket int
}

// NewProgressSampler returns a sampler with the given bucket width in percent
// points. Widths at or below zero fall back to 5.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether this update is worth a log line. A negative
// percent means unknown and never advances the bucket.
func (s *ProgressSampler) ShouldLog(percent float64, status string) bool {
	if s == nil {
		return true
	}
	emit := false
	if status = strings.TrimSpace(status); status != "" && status != s.lastStatus {
		s.lastStatus = status
		s.lastBucket = -1
		emit = true
	}
	if bucket := s.bucket(percent); bucket > s.lastBucket {
		s.lastBucket = bucket
		emit = true
	}
	return emit
}

func (s *ProgressSampler) bucket(percent float64) int {
	switch {
	case percent < 0:
		return -1
	case percent >= 100:
		return int(100 / s.bucketSize)
	default:
		return int(percent / s.bucketSize)
	}
}

// Reset clears the sampler state, typically between jobs.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastStatus = ""
	s.lastBucket = -1
}
