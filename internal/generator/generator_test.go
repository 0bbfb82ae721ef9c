package generator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud-graph-engine/internal/domain/fraud"
	"fraud-graph-engine/internal/monitor"
	"fraud-graph-engine/internal/pkg/config"
)

type fakeCreator struct {
	accounts  []any
	createErr error
	created   atomic.Int64
}

func (f *fakeCreator) CreateTransaction(_ context.Context, senderID, receiverID any,
	amount decimal.Decimal, txType fraud.TransactionType, location string,
	genType fraud.GenType) (fraud.TransactionInfo, error) {

	perf := fraud.NewPerformanceInfo()
	tx := fraud.TransactionInfo{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Amount:     amount.Round(2),
		Type:       txType,
		Location:   location,
		GenType:    genType,
	}
	if f.createErr != nil {
		tx.Perf = perf.Complete(false)
		return tx, f.createErr
	}
	n := f.created.Add(1)
	tx.EdgeID = fmt.Sprintf("edge-%d", n)
	tx.TxnID = fmt.Sprintf("txn-%d", n)
	tx.Perf = perf.Complete(true)
	return tx, nil
}

func (f *fakeCreator) AccountIDs(context.Context, int) ([]any, error) {
	if len(f.accounts) == 0 {
		return nil, fraud.ErrNoAccounts
	}
	return f.accounts, nil
}

type fakeEvaluator struct {
	mu        sync.Mutex
	evaluated []fraud.TransactionInfo
}

func (f *fakeEvaluator) Evaluate(_ context.Context, tx fraud.TransactionInfo) (fraud.TransactionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evaluated = append(f.evaluated, tx)
	return fraud.TransactionSummary{Transaction: tx}, nil
}

func (f *fakeEvaluator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.evaluated)
}

func testConfig() config.GenerationConfig {
	return config.GenerationConfig{
		TransactionWorkerPoolSize: 4,
		SchedulerTPSCapacity:      10,
		MaxTransactionRate:        4000,
		ConsecutiveFailureLimit:   3,
		QueueCapacity:             16,
	}
}

func testGenerator(t *testing.T, cfg config.GenerationConfig, creator Creator,
	evaluator Evaluator) *Generator {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	mon := monitor.New(100, nil, logger)
	t.Cleanup(mon.Close)

	return New(cfg, creator, evaluator, mon, logger)
}

func manyAccounts(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = fmt.Sprintf("acct-%d", i)
	}
	return out
}

func TestStartRejectsBadRates(t *testing.T) {
	g := testGenerator(t, testConfig(), &fakeCreator{accounts: manyAccounts(5)}, &fakeEvaluator{})

	assert.ErrorIs(t, g.Start(context.Background(), 0), fraud.ErrRateOutOfRange)
	assert.ErrorIs(t, g.Start(context.Background(), -10), fraud.ErrRateOutOfRange)
	assert.ErrorIs(t, g.Start(context.Background(), 4001), fraud.ErrRateOutOfRange)
}

func TestStartRequiresTwoAccounts(t *testing.T) {
	g := testGenerator(t, testConfig(), &fakeCreator{accounts: manyAccounts(1)}, &fakeEvaluator{})

	assert.ErrorIs(t, g.Start(context.Background(), 100), fraud.ErrNoAccounts)
	assert.False(t, g.Status().Running, "a failed start leaves the generator stopped")
}

func TestStartStopLifecycle(t *testing.T) {
	creator := &fakeCreator{accounts: manyAccounts(10)}
	evaluator := &fakeEvaluator{}
	g := testGenerator(t, testConfig(), creator, evaluator)

	require.NoError(t, g.Start(context.Background(), 500))
	assert.ErrorIs(t, g.Start(context.Background(), 500), fraud.ErrGeneratorRunning)
	assert.True(t, g.Status().Running)
	assert.Equal(t, 500, g.Status().TargetTPS)

	require.Eventually(t, func() bool { return evaluator.count() > 0 },
		5*time.Second, 10*time.Millisecond, "generated transactions reach the evaluator")

	require.NoError(t, g.Stop())
	assert.False(t, g.Status().Running)
	assert.ErrorIs(t, g.Stop(), fraud.ErrGeneratorNotRunning)

	st := g.Status()
	assert.Positive(t, st.Created)
	assert.Zero(t, st.Failed)
}

func TestGeneratedTransactionsAreWellFormed(t *testing.T) {
	creator := &fakeCreator{accounts: manyAccounts(10)}
	evaluator := &fakeEvaluator{}
	g := testGenerator(t, testConfig(), creator, evaluator)

	require.NoError(t, g.Start(context.Background(), 500))
	require.Eventually(t, func() bool { return evaluator.count() >= 5 },
		5*time.Second, 10*time.Millisecond)
	require.NoError(t, g.Stop())

	for _, tx := range g.Recent(0) {
		assert.NotEqual(t, tx.SenderID, tx.ReceiverID)
		assert.Equal(t, fraud.GenAuto, tx.GenType)
		assert.True(t, tx.Amount.GreaterThanOrEqual(decimal.NewFromInt(100)))
		assert.True(t, tx.Amount.LessThanOrEqual(decimal.NewFromInt(15000)))
		assert.Contains(t, fraud.TransactionTypes, tx.Type)
		assert.NotEmpty(t, tx.Location)
	}
}

func TestBreakerTripsAndStopsRun(t *testing.T) {
	creator := &fakeCreator{
		accounts:  manyAccounts(10),
		createErr: errors.New("graph down"),
	}
	g := testGenerator(t, testConfig(), creator, &fakeEvaluator{})

	require.NoError(t, g.Start(context.Background(), 1000))

	select {
	case <-g.Fatal():
	case <-time.After(10 * time.Second):
		t.Fatal("breaker never tripped")
	}

	require.Eventually(t, func() bool { return !g.Status().Running },
		5*time.Second, 10*time.Millisecond, "a tripped breaker stops the run")
	assert.GreaterOrEqual(t, g.Status().Failed, int64(3))
}

// recordingEvaluator mirrors the fraud engine: the summary, creation sample
// included, is recorded on the monitor
type recordingEvaluator struct {
	mon *monitor.Monitor
}

func (e *recordingEvaluator) Evaluate(_ context.Context, tx fraud.TransactionInfo) (fraud.TransactionSummary, error) {
	summary := fraud.TransactionSummary{Transaction: tx}
	e.mon.RecordSummary(summary)
	return summary, nil
}

func testRun(accounts []any) *runState {
	run := &runState{accounts: accounts}
	run.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "test"})
	return run
}

func TestCreateSampleRecordedOncePerTransaction(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	mon := monitor.New(100, nil, logger)

	creator := &fakeCreator{accounts: manyAccounts(10)}
	g := New(testConfig(), creator, &recordingEvaluator{mon: mon}, mon, logger)

	run := testRun(manyAccounts(10))
	for i := 0; i < 25; i++ {
		g.generateOne(run)
	}

	mon.Close()
	stats, ok := mon.Stats(monitor.StreamTransaction, 1)
	require.True(t, ok)
	assert.Equal(t, int64(25), stats.Success, "exactly one sample per created transaction")
	assert.Zero(t, stats.Failure)
}

func TestFailedCreateRecordsFailureSample(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	mon := monitor.New(100, nil, logger)

	creator := &fakeCreator{accounts: manyAccounts(10), createErr: errors.New("graph down")}
	g := New(testConfig(), creator, &fakeEvaluator{}, mon, logger)

	run := testRun(manyAccounts(10))
	g.generateOne(run)

	mon.Close()
	stats, ok := mon.Stats(monitor.StreamTransaction, 1)
	require.True(t, ok)
	assert.Zero(t, stats.Success)
	assert.Equal(t, int64(1), stats.Failure)
	assert.Equal(t, int64(1), run.failed.Load())
}

func TestRecentRingIsBoundedAndNewestFirst(t *testing.T) {
	g := testGenerator(t, testConfig(), &fakeCreator{accounts: manyAccounts(5)}, &fakeEvaluator{})

	for i := 0; i < recentCapacity+50; i++ {
		g.remember(fraud.TransactionInfo{TxnID: fmt.Sprintf("txn-%d", i)})
	}

	all := g.Recent(0)
	require.Len(t, all, recentCapacity)
	assert.Equal(t, fmt.Sprintf("txn-%d", recentCapacity+49), all[0].TxnID)

	top := g.Recent(3)
	require.Len(t, top, 3)
	assert.Equal(t, fmt.Sprintf("txn-%d", recentCapacity+48), top[1].TxnID)
	assert.Equal(t, fmt.Sprintf("txn-%d", recentCapacity+47), top[2].TxnID)
}

func TestRecentEmpty(t *testing.T) {
	g := testGenerator(t, testConfig(), &fakeCreator{}, &fakeEvaluator{})
	assert.Empty(t, g.Recent(10))
}

func TestPickPairDistinct(t *testing.T) {
	accounts := manyAccounts(3)
	for i := 0; i < 200; i++ {
		a, b := pickPair(accounts)
		assert.NotEqual(t, a, b)
	}
}
