package runtime

import (
	"slices"
	"time"
)

// durationSamples bounds how many recent durations each operation keeps.
const durationSamples = 256

// LatencyMetrics summarizes the most recent request durations of an operation.
type LatencyMetrics struct {
	AverageNs  int64 `json:"average_ns"`
	P50Ns      int64 `json:"p50_ns"`
	P95Ns      int64 `json:"p95_ns"`
	P99Ns      int64 `json:"p99_ns"`
	LastNs     int64 `json:"last_ns"`
	SampleSize int   `json:"sample_size"`
}

// durationRing keeps the last cap(buf) durations. Once full, each observation
// overwrites the oldest one.
type durationRing struct {
	buf   []time.Duration
	total uint64
}

func newDurationRing(capacity int) *durationRing {
	if capacity <= 0 {
		capacity = durationSamples
	}
	return &durationRing{buf: make([]time.Duration, 0, capacity)}
}

func (r *durationRing) Observe(d time.Duration) {
	if r == nil || cap(r.buf) == 0 {
		return
	}
	if len(r.buf) < cap(r.buf) {
		r.buf = append(r.buf, d)
	} else {
		r.buf[r.total%uint64(cap(r.buf))] = d
	}
	r.total++
}

func (r *durationRing) latest() time.Duration {
	return r.buf[(r.total-1)%uint64(cap(r.buf))]
}

func (r *durationRing) Summary() LatencyMetrics {
	if r == nil || len(r.buf) == 0 {
		return LatencyMetrics{}
	}
	sorted := slices.Clone(r.buf)
	slices.Sort(sorted)

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	return LatencyMetrics{
		AverageNs:  int64(sum) / int64(len(sorted)),
		P50Ns:      int64(percentile(sorted, 0.50)),
		P95Ns:      int64(percentile(sorted, 0.95)),
		P99Ns:      int64(percentile(sorted, 0.99)),
		LastNs:     int64(r.latest()),
		SampleSize: len(sorted),
	}
}

// percentile interpolates between the two closest ranks of an ascending
// slice.
func percentile(sorted []time.Duration, q float64) time.Duration {
	n := len(sorted)
	switch {
	case n == 0:
		return 0
	case q <= 0:
		return sorted[0]
	case q >= 1:
		return sorted[n-1]
	}
	rank := q * float64(n-1)
	i := int(rank)
	if i+1 >= n {
		return sorted[i]
	}
	return sorted[i] + time.Duration(float64(sorted[i+1]-sorted[i])*(rank-float64(i)))
}
