package metadata

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"fraud-graph-engine/internal/domain/fraud"
	"fraud-graph-engine/internal/pkg/config"
)

// KV is the additive key-value store the counters flush into
type KV interface {
	AddBins(ctx context.Context, key string, deltas map[string]int64) error
	SetBinsIfAbsent(ctx context.Context, key string, defaults map[string]int64) error
	ReadBins(ctx context.Context, key string) (map[string]int64, error)
	Delete(ctx context.Context, keys ...string) error
}

// Store is a write-behind counter aggregator. Hot-path increments land in
// per-bin atomic adders; a single background loop flushes them as additive
// KV operations every flush interval, or eagerly once the number of
// unflushed increments passes the threshold. Exactly one flush is ever in
// flight.
type Store struct {
	cfg     config.MetadataConfig
	kv      KV
	records map[string]*Record

	pending atomic.Int64
	writing atomic.Bool
	kick    chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	log     *logrus.Entry
}

// NewStore seeds missing records with their defaults and starts the flush
// loop. Seeding is create-only; existing records are never overwritten.
func NewStore(cfg config.MetadataConfig, kv KV, logger *logrus.Logger) (*Store, error) {
	s := &Store{
		cfg:     cfg,
		kv:      kv,
		records: defaultRecords(),
		kick:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		log:     logger.WithField("component", "metadata"),
	}

	if err := s.WriteDefaultsIfNone(context.Background()); err != nil {
		return nil, fmt.Errorf("seed metadata defaults: %w", err)
	}

	s.wg.Add(1)
	go s.flushLoop()

	return s, nil
}

// WriteDefaultsIfNone creates each record with its seed values if it does
// not exist yet
func (s *Store) WriteDefaultsIfNone(ctx context.Context) error {
	for name, record := range s.records {
		if err := s.kv.SetBinsIfAbsent(ctx, s.key(name), record.Defaults()); err != nil {
			return err
		}
	}
	return nil
}

// Add accumulates a counter delta in memory. Negative deltas violate the
// monotonic counter contract and are dropped with a warning.
func (s *Store) Add(record, bin string, delta int64) {
	if delta < 0 {
		s.log.WithFields(logrus.Fields{"record": record, "bin": bin, "delta": delta}).
			Warn("dropping negative counter delta")
		return
	}
	r, ok := s.records[record]
	if !ok {
		s.log.WithField("record", record).Warn("dropping increment for unknown record")
		return
	}

	r.Increment(bin, delta)

	if s.pending.Add(1) >= s.cfg.FlushThreshold {
		select {
		case s.kick <- struct{}{}:
		default:
		}
	}
}

// ReadRecord returns the latest persisted bins for a record. Readers
// tolerate staleness up to one flush interval.
func (s *Store) ReadRecord(ctx context.Context, record string) (map[string]int64, error) {
	if _, ok := s.records[record]; !ok {
		return nil, fmt.Errorf("read record %q: %w", record, fraud.ErrUnknownRecord)
	}
	return s.kv.ReadBins(ctx, s.key(record))
}

// Flush synchronously drains all records into the KV store. Only one flush
// runs at a time; a concurrent call returns immediately.
func (s *Store) Flush(ctx context.Context) error {
	if !s.writing.CompareAndSwap(false, true) {
		return nil
	}
	defer s.writing.Store(false)

	s.pending.Store(0)

	var firstErr error
	for name, record := range s.records {
		snapshot := record.DrainSnapshot()
		if len(snapshot) == 0 {
			continue
		}
		if err := s.kv.AddBins(ctx, s.key(name), snapshot); err != nil {
			// Put the deltas back so the next cycle retries them
			record.Restore(snapshot)
			s.pending.Add(sum(snapshot))
			s.log.WithError(err).WithField("record", name).Warn("flush failed, deltas retained")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Clear truncates all records in the store and re-seeds the defaults.
// Unflushed in-memory deltas are discarded; they belong to the data being
// cleared.
func (s *Store) Clear(ctx context.Context) error {
	keys := make([]string, 0, len(s.records))
	for name, record := range s.records {
		record.DrainSnapshot()
		keys = append(keys, s.key(name))
	}
	s.pending.Store(0)
	if err := s.kv.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("clear metadata: %w", err)
	}
	s.log.Info("metadata records truncated")
	return s.WriteDefaultsIfNone(ctx)
}

// Close stops the flush loop and performs a final flush so no accumulated
// deltas are lost on shutdown
func (s *Store) Close(ctx context.Context) error {
	close(s.done)
	s.wg.Wait()
	return s.Flush(ctx)
}

func (s *Store) flushLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		case <-s.kick:
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
		if err := s.Flush(ctx); err != nil {
			s.log.WithError(err).Warn("periodic flush failed")
		}
		cancel()
	}
}

func (s *Store) key(record string) string {
	return fmt.Sprintf("%s:%s:%s", s.cfg.Namespace, s.cfg.SetName, record)
}

func sum(m map[string]int64) int64 {
	var total int64
	for _, v := range m {
		total += v
	}
	return total
}
