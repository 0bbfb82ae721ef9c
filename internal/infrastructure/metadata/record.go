package metadata

import (
	"sync"
	"sync/atomic"
)

// Record and bin names. One KV record exists per counter kind.
const (
	RecordFraud    = "fraud"
	RecordUsers    = "user"
	RecordAccounts = "account"

	BinTotal   = "total"
	BinBlocked = "blocked"
	BinReview  = "review"
	BinAmount  = "amount"

	BinLow    = "low"
	BinMedium = "medium"
	BinHigh   = "high"

	BinFlagged = "flagged"
)

// Record accumulates per-bin counter deltas in memory. Increments are
// lock-free on the hot path; DrainSnapshot atomically swaps each bin to
// zero so a delta is either in memory or in the snapshot, never both.
type Record struct {
	name     string
	defaults map[string]int64

	mu   sync.RWMutex
	bins map[string]*atomic.Int64
}

// NewRecord builds a record with its seeded default bins
func NewRecord(name string, defaults map[string]int64) *Record {
	r := &Record{
		name:     name,
		defaults: defaults,
		bins:     make(map[string]*atomic.Int64, len(defaults)),
	}
	for bin := range defaults {
		r.bins[bin] = &atomic.Int64{}
	}
	return r
}

// Name returns the record name, used as the KV record key
func (r *Record) Name() string {
	return r.name
}

// Defaults returns the seed values written on first creation
func (r *Record) Defaults() map[string]int64 {
	return r.defaults
}

// Increment adds delta to a bin, creating the bin on first use
func (r *Record) Increment(bin string, delta int64) {
	r.mu.RLock()
	counter, ok := r.bins[bin]
	r.mu.RUnlock()

	if !ok {
		r.mu.Lock()
		counter, ok = r.bins[bin]
		if !ok {
			counter = &atomic.Int64{}
			r.bins[bin] = counter
		}
		r.mu.Unlock()
	}
	counter.Add(delta)
}

// DrainSnapshot returns the accumulated deltas and resets them to zero.
// Zero-valued bins are omitted.
func (r *Record) DrainSnapshot() map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int64)
	for bin, counter := range r.bins {
		if v := counter.Swap(0); v != 0 {
			out[bin] = v
		}
	}
	return out
}

// Restore adds a drained snapshot back, used when a flush fails so the
// deltas retry on the next cycle
func (r *Record) Restore(snapshot map[string]int64) {
	for bin, v := range snapshot {
		r.Increment(bin, v)
	}
}

// defaultRecords builds the three counter records with the seed values the
// sample dataset implies: 20k users split across risk tiers, 0.1 of 40k
// accounts pre-flagged, fraud counters starting at zero.
func defaultRecords() map[string]*Record {
	const (
		seedUsers    = 20000
		seedAccounts = 40000
	)
	return map[string]*Record{
		RecordFraud: NewRecord(RecordFraud, map[string]int64{
			BinTotal: 0, BinBlocked: 0, BinReview: 0, BinAmount: 0,
		}),
		RecordUsers: NewRecord(RecordUsers, map[string]int64{
			BinLow:    int64(seedUsers * 0.2495),
			BinMedium: int64(seedUsers * 0.25),
			BinHigh:   int64(seedUsers * 0.5005),
		}),
		RecordAccounts: NewRecord(RecordAccounts, map[string]int64{
			BinFlagged: int64(seedAccounts * 0.1),
		}),
	}
}
