package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-graph-engine/internal/domain/fraud"
	"fraud-graph-engine/internal/infrastructure/metadata"
	"fraud-graph-engine/internal/monitor"
	"fraud-graph-engine/internal/pkg/config"
	"fraud-graph-engine/internal/rules"
)

// fakeWriter records annotations and account flags
type fakeWriter struct {
	mu          sync.Mutex
	annotations map[string]fraud.Annotation
	flagged     []any
	annotateErr error
	flagErr     error
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{annotations: make(map[string]fraud.Annotation)}
}

func (f *fakeWriter) AnnotateTransaction(_ context.Context, edgeID any, ann fraud.Annotation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.annotateErr != nil {
		return f.annotateErr
	}
	f.annotations[edgeID.(string)] = ann
	return nil
}

func (f *fakeWriter) FlagAccount(_ context.Context, accountID any, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.flagErr != nil {
		return f.flagErr
	}
	f.flagged = append(f.flagged, accountID)
	return nil
}

func (f *fakeWriter) flaggedAccounts() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]any(nil), f.flagged...)
}

// fakeCounters accumulates metadata increments
type fakeCounters struct {
	mu   sync.Mutex
	bins map[string]int64
}

func newFakeCounters() *fakeCounters {
	return &fakeCounters{bins: make(map[string]int64)}
}

func (f *fakeCounters) Add(record, bin string, delta int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bins[record+"."+bin] += delta
}

func (f *fakeCounters) get(record, bin string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bins[record+"."+bin]
}

// stubRule returns a canned verdict, optionally after a delay
type stubRule struct {
	name    string
	verdict fraud.Verdict
	delay   time.Duration
}

func (s *stubRule) Name() string             { return s.name }
func (s *stubRule) Metadata() rules.Metadata { return rules.Metadata{} }

func (s *stubRule) Evaluate(ctx context.Context, _ fraud.TransactionInfo) fraud.Verdict {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return fraud.ExceptionVerdict(s.name, fraud.NewPerformanceInfo(), ctx.Err())
		}
	}
	v := s.verdict
	v.RuleName = s.name
	v.Perf = fraud.NewPerformanceInfo().Complete(!v.Exception)
	return v
}

func firing(name string, score int, status fraud.Status) *stubRule {
	return &stubRule{name: name, verdict: fraud.Verdict{
		IsFraud: true, Score: score, Status: status,
		Evidence: map[string]any{"k": name},
	}}
}

func cleared(name string) *stubRule {
	return &stubRule{name: name, verdict: fraud.Verdict{Status: fraud.StatusCleared}}
}

func testEngine(t *testing.T, cfg config.FraudConfig, writer GraphWriter,
	counters Counters, rs ...rules.Rule) *Engine {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = r.Name()
	}
	mon := monitor.New(100, names, logger)
	t.Cleanup(mon.Close)

	return New(cfg, writer, rules.NewRegistry(rs...), counters, mon, logger)
}

func defaultFraudConfig() config.FraudConfig {
	cfg := config.DefaultConfig().Fraud
	cfg.WorkerPoolSize = 4
	return cfg
}

func testTx() fraud.TransactionInfo {
	return fraud.TransactionInfo{
		EdgeID:     "edge-1",
		TxnID:      "txn-1",
		SenderID:   "acct-s",
		ReceiverID: "acct-r",
	}
}

func TestEvaluateNoRulesFired(t *testing.T) {
	writer := newFakeWriter()
	counters := newFakeCounters()
	eng := testEngine(t, defaultFraudConfig(), writer, counters,
		cleared("r1"), cleared("r2"))

	summary, err := eng.Evaluate(context.Background(), testTx())
	require.NoError(t, err)
	require.Len(t, summary.Verdicts, 2)
	assert.Empty(t, writer.annotations, "clean transactions are not annotated")
	assert.Zero(t, counters.get(metadata.RecordFraud, metadata.BinBlocked))
	assert.Zero(t, counters.get(metadata.RecordFraud, metadata.BinReview))
}

func TestEvaluateConsolidatesAcrossRules(t *testing.T) {
	writer := newFakeWriter()
	counters := newFakeCounters()
	eng := testEngine(t, defaultFraudConfig(), writer, counters,
		firing("r1", 80, fraud.StatusReview),
		cleared("r2"),
		firing("r3", 100, fraud.StatusBlocked))

	summary, err := eng.Evaluate(context.Background(), testTx())
	require.NoError(t, err)
	require.Len(t, summary.Verdicts, 3)

	ann, ok := writer.annotations["edge-1"]
	require.True(t, ok, "a firing rule produces exactly one annotation")
	assert.True(t, ann.IsFraud)
	assert.Equal(t, 100, ann.Score)
	assert.Equal(t, fraud.StatusBlocked, ann.Status)
	assert.Len(t, ann.Details, 2, "one detail per firing rule")

	assert.Equal(t, int64(1), counters.get(metadata.RecordFraud, metadata.BinBlocked))
	assert.Zero(t, counters.get(metadata.RecordFraud, metadata.BinReview))
}

func TestEvaluateReviewCounter(t *testing.T) {
	writer := newFakeWriter()
	counters := newFakeCounters()
	eng := testEngine(t, defaultFraudConfig(), writer, counters,
		firing("r1", 85, fraud.StatusReview))

	_, err := eng.Evaluate(context.Background(), testTx())
	require.NoError(t, err)
	assert.Equal(t, int64(1), counters.get(metadata.RecordFraud, metadata.BinReview))
	assert.Zero(t, counters.get(metadata.RecordFraud, metadata.BinBlocked))
}

func TestEvaluateAnnotationFailureSurfaces(t *testing.T) {
	writer := newFakeWriter()
	writer.annotateErr = errors.New("graph unavailable")
	eng := testEngine(t, defaultFraudConfig(), writer, newFakeCounters(),
		firing("r1", 100, fraud.StatusBlocked))

	_, err := eng.Evaluate(context.Background(), testTx())
	assert.Error(t, err)
}

func TestEvaluateRuleTimeoutYieldsException(t *testing.T) {
	cfg := defaultFraudConfig()
	cfg.RuleTimeout = 20 * time.Millisecond

	writer := newFakeWriter()
	eng := testEngine(t, cfg, writer, newFakeCounters(),
		&stubRule{name: "slow", delay: time.Second,
			verdict: fraud.Verdict{IsFraud: true, Score: 100, Status: fraud.StatusBlocked}},
		firing("fast", 85, fraud.StatusReview))

	summary, err := eng.Evaluate(context.Background(), testTx())
	require.NoError(t, err)
	require.Len(t, summary.Verdicts, 2)

	var slow, fast fraud.Verdict
	for _, v := range summary.Verdicts {
		switch v.RuleName {
		case "slow":
			slow = v
		case "fast":
			fast = v
		}
	}
	assert.True(t, slow.Exception, "timed-out rule yields an exception verdict")
	assert.False(t, slow.IsFraud)
	assert.True(t, fast.IsFraud)

	// The fast rule still drives the annotation
	ann := writer.annotations["edge-1"]
	assert.Equal(t, 85, ann.Score)
	assert.Equal(t, fraud.StatusReview, ann.Status)
}

// stuckRule sleeps through its deadline without ever checking the context
type stuckRule struct {
	name  string
	delay time.Duration
}

func (s *stuckRule) Name() string             { return s.name }
func (s *stuckRule) Metadata() rules.Metadata { return rules.Metadata{} }

func (s *stuckRule) Evaluate(context.Context, fraud.TransactionInfo) fraud.Verdict {
	time.Sleep(s.delay)
	return fraud.Verdict{RuleName: s.name, Status: fraud.StatusCleared,
		Perf: fraud.NewPerformanceInfo().Complete(true)}
}

func TestEvaluateCutsOffRuleIgnoringDeadline(t *testing.T) {
	cfg := defaultFraudConfig()
	cfg.RuleTimeout = 50 * time.Millisecond

	eng := testEngine(t, cfg, newFakeWriter(), newFakeCounters(),
		&stuckRule{name: "stuck", delay: 2 * time.Second})

	start := time.Now()
	summary, err := eng.Evaluate(context.Background(), testTx())
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, time.Second, "a stalled rule must not stall the transaction")
	require.Len(t, summary.Verdicts, 1)
	assert.True(t, summary.Verdicts[0].Exception)
	assert.Equal(t, "stuck", summary.Verdicts[0].RuleName)
	assert.False(t, summary.Verdicts[0].Perf.Successful)
}

func TestAnnotationFailureRecordsFailedTransaction(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	writer := newFakeWriter()
	writer.annotateErr = errors.New("graph unavailable")

	mon := monitor.New(100, []string{"r1"}, logger)
	eng := New(defaultFraudConfig(), writer,
		rules.NewRegistry(firing("r1", 100, fraud.StatusBlocked)),
		newFakeCounters(), mon, logger)

	tx := testTx()
	tx.Perf = fraud.NewPerformanceInfo().Complete(true)

	_, err := eng.Evaluate(context.Background(), tx)
	require.Error(t, err)

	mon.Close()
	stats, ok := mon.Stats(monitor.StreamTransaction, 1)
	require.True(t, ok)
	assert.Zero(t, stats.Success, "an unannotated transaction is not a success")
	assert.Equal(t, int64(1), stats.Failure)
}

func TestEvaluateSnapshotHonorsToggles(t *testing.T) {
	writer := newFakeWriter()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	reg := rules.NewRegistry(firing("r1", 100, fraud.StatusBlocked), cleared("r2"))
	require.NoError(t, reg.Toggle("r1", false))

	mon := monitor.New(100, []string{"r1", "r2"}, logger)
	t.Cleanup(mon.Close)
	eng := New(defaultFraudConfig(), writer, reg, newFakeCounters(), mon, logger)

	summary, err := eng.Evaluate(context.Background(), testTx())
	require.NoError(t, err)
	require.Len(t, summary.Verdicts, 1, "disabled rules are not evaluated")
	assert.Equal(t, "r2", summary.Verdicts[0].RuleName)
	assert.Empty(t, writer.annotations)
}

func TestAutoFlagModes(t *testing.T) {
	cases := []struct {
		mode string
		want []any
	}{
		{config.AutoFlagSender, []any{"acct-s"}},
		{config.AutoFlagReceiver, []any{"acct-r"}},
		{config.AutoFlagBoth, []any{"acct-s", "acct-r"}},
	}

	for _, tc := range cases {
		t.Run(tc.mode, func(t *testing.T) {
			cfg := defaultFraudConfig()
			cfg.AutoFlag.Enabled = true
			cfg.AutoFlag.ScoreThreshold = 100
			cfg.AutoFlag.Mode = tc.mode

			writer := newFakeWriter()
			eng := testEngine(t, cfg, writer, newFakeCounters(),
				firing("r1", 100, fraud.StatusBlocked))

			_, err := eng.Evaluate(context.Background(), testTx())
			require.NoError(t, err)
			assert.Equal(t, tc.want, writer.flaggedAccounts())
		})
	}
}

func TestAutoFlagBelowThreshold(t *testing.T) {
	cfg := defaultFraudConfig()
	cfg.AutoFlag.Enabled = true
	cfg.AutoFlag.ScoreThreshold = 100
	cfg.AutoFlag.Mode = config.AutoFlagBoth

	writer := newFakeWriter()
	eng := testEngine(t, cfg, writer, newFakeCounters(),
		firing("r1", 95, fraud.StatusBlocked))

	_, err := eng.Evaluate(context.Background(), testTx())
	require.NoError(t, err)
	assert.Empty(t, writer.flaggedAccounts())
}

func TestAutoFlagDisabledByDefault(t *testing.T) {
	writer := newFakeWriter()
	eng := testEngine(t, defaultFraudConfig(), writer, newFakeCounters(),
		firing("r1", 100, fraud.StatusBlocked))

	_, err := eng.Evaluate(context.Background(), testTx())
	require.NoError(t, err)
	assert.Empty(t, writer.flaggedAccounts())
}

func TestAutoFlagFailureDoesNotFailEvaluation(t *testing.T) {
	cfg := defaultFraudConfig()
	cfg.AutoFlag.Enabled = true
	cfg.AutoFlag.Mode = config.AutoFlagBoth

	writer := newFakeWriter()
	writer.flagErr = errors.New("account vanished")
	eng := testEngine(t, cfg, writer, newFakeCounters(),
		firing("r1", 100, fraud.StatusBlocked))

	_, err := eng.Evaluate(context.Background(), testTx())
	assert.NoError(t, err)
}
