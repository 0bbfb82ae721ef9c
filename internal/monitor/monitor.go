package monitor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"fraud-graph-engine/internal/domain/fraud"
)

// StreamTransaction is the stream recording end-to-end transaction
// creation latency; rule streams are named after their rules.
const StreamTransaction = "transaction"

// DefaultMaxHistory bounds the per-stream sample ring
const DefaultMaxHistory = 10000

// Sample is one unit of recorded work on its way to the consumer
type Sample struct {
	Stream string
	Perf   fraud.PerformanceInfo
}

// Monitor collects latency samples from many producers through one bounded
// channel drained by a single consumer goroutine. Producers never block:
// when the channel is full the sample is dropped and counted.
type Monitor struct {
	ch      chan Sample
	dropped atomic.Int64

	mu      sync.RWMutex
	streams map[string]*Metric

	maxHistory int
	log        *logrus.Entry
	done       chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

// New builds a monitor with one metric stream per name plus the
// transaction stream, and starts the consumer
func New(maxHistory int, ruleNames []string, logger *logrus.Logger) *Monitor {
	m := &Monitor{
		ch:         make(chan Sample, 4096),
		streams:    make(map[string]*Metric, len(ruleNames)+1),
		maxHistory: maxHistory,
		log:        logger.WithField("component", "monitor"),
		done:       make(chan struct{}),
	}

	m.streams[StreamTransaction] = NewMetric(maxHistory)
	for _, name := range ruleNames {
		m.streams[name] = NewMetric(maxHistory)
	}

	m.wg.Add(1)
	go m.consume()
	return m
}

func (m *Monitor) consume() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			// Drain whatever producers managed to enqueue
			for {
				select {
				case s := <-m.ch:
					m.insert(s)
				default:
					return
				}
			}
		case s := <-m.ch:
			m.insert(s)
		}
	}
}

func (m *Monitor) insert(s Sample) {
	m.mu.RLock()
	metric, ok := m.streams[s.Stream]
	m.mu.RUnlock()
	if !ok {
		m.mu.Lock()
		metric, ok = m.streams[s.Stream]
		if !ok {
			metric = NewMetric(m.maxHistory)
			m.streams[s.Stream] = metric
		}
		m.mu.Unlock()
	}
	metric.Insert(s.Perf, time.Now())
}

// Record enqueues one sample without blocking
func (m *Monitor) Record(stream string, perf fraud.PerformanceInfo) {
	select {
	case m.ch <- Sample{Stream: stream, Perf: perf}:
	default:
		m.dropped.Add(1)
	}
}

// RecordSummary records the transaction sample and one sample per rule
// verdict
func (m *Monitor) RecordSummary(summary fraud.TransactionSummary) {
	m.Record(StreamTransaction, summary.Transaction.Perf)
	for _, v := range summary.Verdicts {
		m.Record(v.RuleName, v.Perf)
	}
}

// NormalizeWindow coerces a requested lookback to a supported one.
// Anything other than 1, 5 or 10 minutes falls back to 1 with a warning.
func (m *Monitor) NormalizeWindow(minutes int) int {
	switch minutes {
	case 1, 5, 10:
		return minutes
	default:
		m.log.WithField("minutes", minutes).Warn("unsupported stats window, using 1 minute")
		return 1
	}
}

// Stats returns the aggregate view of one stream
func (m *Monitor) Stats(stream string, minutes int) (Stats, bool) {
	minutes = m.NormalizeWindow(minutes)

	m.mu.RLock()
	metric, ok := m.streams[stream]
	m.mu.RUnlock()
	if !ok {
		return Stats{}, false
	}
	return metric.Stats(minutes, time.Now()), true
}

// AllStats returns the aggregate view of every stream
func (m *Monitor) AllStats(minutes int) map[string]Stats {
	minutes = m.NormalizeWindow(minutes)
	now := time.Now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Stats, len(m.streams))
	for name, metric := range m.streams {
		out[name] = metric.Stats(minutes, now)
	}
	return out
}

// RuleTotals sums success/failure across every rule stream
func (m *Monitor) RuleTotals() (success, failure int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, metric := range m.streams {
		if name == StreamTransaction {
			continue
		}
		s, f := metric.Totals()
		success += s
		failure += f
	}
	return success, failure
}

// Dropped reports how many samples were discarded because the channel was
// full
func (m *Monitor) Dropped() int64 {
	return m.dropped.Load()
}

// Reset clears every stream, typically on generator start
func (m *Monitor) Reset() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, metric := range m.streams {
		metric.Reset()
	}
	m.dropped.Store(0)
}

// Close stops the consumer after draining pending samples. Safe to call
// more than once.
func (m *Monitor) Close() {
	m.closeOnce.Do(func() { close(m.done) })
	m.wg.Wait()
}
