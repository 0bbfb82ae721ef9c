package monitor

import (
	"math"
	"sort"
	"sync"
	"time"

	"fraud-graph-engine/internal/domain/fraud"
)

const (
	// Samples aggregate into fixed 5-second buckets
	bucketSeconds = 5
	// The slot array spans the largest queryable window (10 minutes)
	windowSlots = 10 * 60 / bucketSeconds
)

// Stats is the aggregate view of one stream. The latency aggregates (Min,
// Max, Avg, P95), Count and QPS cover the lookback window; Success, Failure
// and SuccessRate are totals since the last reset. Latencies are in
// milliseconds.
type Stats struct {
	Min         float64
	Max         float64
	Avg         float64
	P95         float64
	Count       int64
	QPS         float64
	Success     int64
	Failure     int64
	SuccessRate float64
}

// Metric tracks latency and outcome for one sample stream. Memory is
// bounded: a fixed ring of recent samples plus a fixed slot array of
// 5-second buckets. Old buckets are overwritten in place when their slot
// comes around again.
type Metric struct {
	mu         sync.Mutex
	maxHistory int
	history    []histEntry
	next       int
	success    int64
	failure    int64
	buckets    [windowSlots]*bucket
}

type histEntry struct {
	durationMs float64
	start      time.Time
	storedAt   time.Time
}

type bucket struct {
	index int64 // epochSeconds / bucketSeconds
	calls int64
	min   float64
	max   float64
	sum   float64
	count int64
}

// NewMetric builds a stream metric with a bounded sample history
func NewMetric(maxHistory int) *Metric {
	return &Metric{
		maxHistory: maxHistory,
		history:    make([]histEntry, maxHistory),
	}
}

// Insert records one sample. Failed or untimed samples count toward totals
// but contribute no latency.
func (m *Metric) Insert(perf fraud.PerformanceInfo, storedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if perf.Successful {
		m.success++
	} else {
		m.failure++
	}

	timed := !perf.Start.IsZero() && perf.Duration > 0
	durationMs := float64(perf.Duration) / float64(time.Millisecond)

	if timed && perf.Successful {
		m.history[m.next%m.maxHistory] = histEntry{
			durationMs: durationMs,
			start:      perf.Start,
			storedAt:   storedAt,
		}
		m.next++
	}

	at := perf.Start
	if at.IsZero() {
		at = storedAt
	}
	idx := at.Unix() / bucketSeconds
	slot := int(idx % windowSlots)

	b := m.buckets[slot]
	if b == nil || b.index != idx {
		b = &bucket{index: idx, min: math.MaxFloat64, max: -1}
		m.buckets[slot] = b
	}

	b.calls++
	if timed && perf.Successful {
		b.count++
		b.sum += durationMs
		if durationMs < b.min {
			b.min = durationMs
		}
		if durationMs > b.max {
			b.max = durationMs
		}
	}
}

// Stats aggregates the buckets that fall inside the lookback window.
// Success/Failure totals are not windowed; see the Stats type.
func (m *Metric) Stats(minutes int, now time.Time) Stats {
	nowIdx := now.Unix() / bucketSeconds
	lookback := int64(minutes*60) / bucketSeconds
	if lookback < 1 {
		lookback = 1
	}
	earliest := nowIdx - lookback + 1

	m.mu.Lock()
	defer m.mu.Unlock()

	out := Stats{Min: math.MaxFloat64, Success: m.success, Failure: m.failure}
	total := out.Success + out.Failure
	if total > 0 {
		out.SuccessRate = float64(out.Success) / float64(total)
	}

	for _, b := range m.buckets {
		if b == nil || b.index < earliest || b.index > nowIdx {
			continue
		}
		if b.count == 0 {
			continue
		}
		out.Count += b.count
		out.Avg += b.sum
		if b.min < out.Min {
			out.Min = b.min
		}
		if b.max > out.Max {
			out.Max = b.max
		}
	}

	if out.Count == 0 {
		out.Min, out.Max, out.Avg = 0, 0, 0
	} else {
		out.Avg /= float64(out.Count)
	}

	// QPS comes from the most recent completed bucket
	prevSlot := int((nowIdx - 1) % windowSlots)
	if prevSlot < 0 {
		prevSlot += windowSlots
	}
	if b := m.buckets[prevSlot]; b != nil && b.index == nowIdx-1 {
		out.QPS = float64(b.calls) / bucketSeconds
	}

	out.P95 = m.percentile(0.95, now.Add(-time.Duration(minutes)*time.Minute))
	return out
}

// percentile reads the sample ring for entries stored after cutoff. The
// ring holds timed successful samples only; callers hold the lock.
func (m *Metric) percentile(p float64, cutoff time.Time) float64 {
	limit := m.next
	if limit > m.maxHistory {
		limit = m.maxHistory
	}

	durations := make([]float64, 0, limit)
	for i := 0; i < limit; i++ {
		if e := m.history[i]; !e.storedAt.Before(cutoff) {
			durations = append(durations, e.durationMs)
		}
	}
	if len(durations) == 0 {
		return 0
	}

	sort.Float64s(durations)
	idx := int(math.Ceil(p*float64(len(durations)))) - 1
	if idx < 0 {
		idx = 0
	}
	return durations[idx]
}

// Reset drops all history, totals and buckets
func (m *Metric) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = make([]histEntry, m.maxHistory)
	m.next = 0
	m.success = 0
	m.failure = 0
	for i := range m.buckets {
		m.buckets[i] = nil
	}
}

// Totals returns the lifetime success and failure counts
func (m *Metric) Totals() (success, failure int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.success, m.failure
}
