package engine

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"fraud-graph-engine/internal/domain/fraud"
	"fraud-graph-engine/internal/infrastructure/metadata"
	"fraud-graph-engine/internal/monitor"
	"fraud-graph-engine/internal/pkg/config"
	"fraud-graph-engine/internal/rules"
)

// GraphWriter is the slice of the graph client the engine needs for
// persistence
type GraphWriter interface {
	AnnotateTransaction(ctx context.Context, edgeID any, ann fraud.Annotation) error
	FlagAccount(ctx context.Context, accountID any, reason string) error
}

// Counters is the metadata increment surface
type Counters interface {
	Add(record, bin string, delta int64)
}

// Engine evaluates every enabled rule against each submitted transaction,
// consolidates the verdicts into a single annotation and persists it. A
// shared semaphore bounds concurrent rule evaluations across all callers;
// callers block for a slot, which is the system's back-pressure.
type Engine struct {
	cfg      config.FraudConfig
	graph    GraphWriter
	registry *rules.Registry
	counters Counters
	mon      *monitor.Monitor
	sem      chan struct{}
	log      *logrus.Entry
}

// New builds the engine with a worker pool of cfg.WorkerPoolSize slots
func New(cfg config.FraudConfig, graph GraphWriter, registry *rules.Registry,
	counters Counters, mon *monitor.Monitor, logger *logrus.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		graph:    graph,
		registry: registry,
		counters: counters,
		mon:      mon,
		sem:      make(chan struct{}, cfg.WorkerPoolSize),
		log:      logger.WithField("component", "engine"),
	}
}

// ruleResult pairs a verdict with its slot in the enabled snapshot
type ruleResult struct {
	idx     int
	verdict fraud.Verdict
}

// Evaluate runs the enabled rules against one transaction and persists the
// consolidated result. The enabled set is snapshotted on entry; toggles
// made while rules run do not affect this transaction. Every rule yields
// exactly one verdict, success or failure, and every verdict is recorded.
// Rules still running when the transaction deadline expires yield exception
// verdicts; their goroutines finish in the background and keep their worker
// slot until they do.
func (e *Engine) Evaluate(ctx context.Context, tx fraud.TransactionInfo) (fraud.TransactionSummary, error) {
	enabled := e.registry.EnabledSnapshot()
	summary := fraud.TransactionSummary{Transaction: tx}

	if len(enabled) == 0 {
		e.mon.RecordSummary(summary)
		return summary, nil
	}

	ruleCtx, cancel := context.WithTimeout(ctx, e.cfg.RuleTimeout)
	defer cancel()

	// Buffered so late finishers never block after Evaluate gives up on them
	results := make(chan ruleResult, len(enabled))
	for i, rule := range enabled {
		go func(i int, rule rules.Rule) {
			select {
			case e.sem <- struct{}{}:
				defer func() { <-e.sem }()
				results <- ruleResult{i, rule.Evaluate(ruleCtx, tx)}
			case <-ruleCtx.Done():
				// Never reached a worker slot before the deadline
				results <- ruleResult{i, fraud.ExceptionVerdict(rule.Name(), fraud.NewPerformanceInfo(), ruleCtx.Err())}
			}
		}(i, rule)
	}

	verdicts := e.collect(ruleCtx, enabled, results)
	summary.Verdicts = verdicts

	ann, fired := fraud.Consolidate(verdicts, time.Now())
	var persistErr error
	if fired {
		persistErr = e.persist(tx, ann)
	}

	if persistErr != nil {
		summary.Transaction.Perf.Successful = false
	}
	e.mon.RecordSummary(summary)
	return summary, persistErr
}

// collect gathers one verdict per enabled rule, synthesizing exception
// verdicts for rules that have not reported by the deadline
func (e *Engine) collect(ruleCtx context.Context, enabled []rules.Rule,
	results <-chan ruleResult) []fraud.Verdict {

	verdicts := make([]fraud.Verdict, len(enabled))
	filled := make([]bool, len(enabled))
	remaining := len(enabled)

	for remaining > 0 {
		select {
		case r := <-results:
			verdicts[r.idx] = r.verdict
			filled[r.idx] = true
			remaining--
		case <-ruleCtx.Done():
			// Take verdicts that raced the deadline, then cut off the rest
			for remaining > 0 {
				select {
				case r := <-results:
					verdicts[r.idx] = r.verdict
					filled[r.idx] = true
					remaining--
					continue
				default:
				}
				break
			}
			for i, rule := range enabled {
				if !filled[i] {
					verdicts[i] = fraud.ExceptionVerdict(rule.Name(), fraud.NewPerformanceInfo(), ruleCtx.Err())
				}
			}
			return verdicts
		}
	}
	return verdicts
}

// persist writes the annotation, bumps the disposition counters and runs
// auto-flag. Annotation uses a fresh deadline; the rule deadline may
// already be spent.
func (e *Engine) persist(tx fraud.TransactionInfo, ann fraud.Annotation) error {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.RuleTimeout)
	defer cancel()

	if err := e.graph.AnnotateTransaction(ctx, tx.EdgeID, ann); err != nil {
		e.log.WithError(err).WithField("txn_id", tx.TxnID).Error("annotation failed")
		return err
	}

	switch ann.Status {
	case fraud.StatusBlocked:
		e.counters.Add(metadata.RecordFraud, metadata.BinBlocked, 1)
	case fraud.StatusReview:
		e.counters.Add(metadata.RecordFraud, metadata.BinReview, 1)
	}

	e.log.WithFields(logrus.Fields{
		"txn_id": tx.TxnID,
		"score":  ann.Score,
		"status": ann.Status,
		"rules":  len(ann.Details),
	}).Info("transaction flagged")

	e.autoFlag(ctx, tx, ann)
	return nil
}

// autoFlag marks the configured side(s) of a high-scoring transaction.
// Flag failures are logged, not propagated; the annotation already stands.
func (e *Engine) autoFlag(ctx context.Context, tx fraud.TransactionInfo, ann fraud.Annotation) {
	if !e.cfg.AutoFlag.Enabled || ann.Score < e.cfg.AutoFlag.ScoreThreshold {
		return
	}

	targets := make([]any, 0, 2)
	switch e.cfg.AutoFlag.Mode {
	case config.AutoFlagSender:
		targets = append(targets, tx.SenderID)
	case config.AutoFlagReceiver:
		targets = append(targets, tx.ReceiverID)
	case config.AutoFlagBoth:
		targets = append(targets, tx.SenderID, tx.ReceiverID)
	}

	for _, id := range targets {
		if err := e.graph.FlagAccount(ctx, id, "auto-flagged by fraud engine"); err != nil {
			e.log.WithError(err).WithField("account", id).Warn("auto-flag failed")
		}
	}
}
