package generator

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"fraud-graph-engine/internal/domain/fraud"
	"fraud-graph-engine/internal/monitor"
	"fraud-graph-engine/internal/pkg/config"
)

// createTimeout bounds a single create-and-evaluate round trip
const createTimeout = 10 * time.Second

// recentCapacity is how many generated transactions the ring keeps
const recentCapacity = 300

// Creator is the slice of the graph client the generator needs
type Creator interface {
	CreateTransaction(ctx context.Context, senderID, receiverID any,
		amount decimal.Decimal, txType fraud.TransactionType, location string,
		genType fraud.GenType) (fraud.TransactionInfo, error)
	AccountIDs(ctx context.Context, limit int) ([]any, error)
}

// Evaluator submits created transactions for fraud evaluation
type Evaluator interface {
	Evaluate(ctx context.Context, tx fraud.TransactionInfo) (fraud.TransactionSummary, error)
}

type state int32

const (
	stateStopped state = iota
	stateRunning
	stateStopping
)

// Status is a snapshot of the generator for control surfaces
type Status struct {
	Running   bool      `json:"running"`
	TargetTPS int       `json:"target_tps"`
	ActualTPS float64   `json:"actual_tps"`
	QueueSize int       `json:"queue_size"`
	Created   int64     `json:"created"`
	Failed    int64     `json:"failed"`
	StartedAt time.Time `json:"started_at"`
}

// runState holds everything belonging to one start/stop cycle
type runState struct {
	targetTps int
	startedAt time.Time
	accounts  []any
	queue     chan struct{}
	stop      chan struct{}
	wg        sync.WaitGroup
	created   atomic.Int64
	failed    atomic.Int64
	breaker   *gobreaker.CircuitBreaker
}

// Generator drives synthetic transaction load at a target rate. A token
// scheduler feeds a fixed worker pool through a bounded queue; each worker
// creates one edge and hands it to the fraud engine. A circuit breaker
// trips the whole run after too many consecutive failures.
type Generator struct {
	cfg       config.GenerationConfig
	creator   Creator
	evaluator Evaluator
	mon       *monitor.Monitor
	log       *logrus.Entry

	state atomic.Int32
	mu    sync.Mutex
	run   *runState

	recentMu sync.Mutex
	recent   []fraud.TransactionInfo
	next     int

	fatal     chan struct{}
	fatalOnce sync.Once
}

// New builds a stopped generator
func New(cfg config.GenerationConfig, creator Creator, evaluator Evaluator,
	mon *monitor.Monitor, logger *logrus.Logger) *Generator {
	return &Generator{
		cfg:       cfg,
		creator:   creator,
		evaluator: evaluator,
		mon:       mon,
		log:       logger.WithField("component", "generator"),
		fatal:     make(chan struct{}),
	}
}

// Start begins generating load at targetTps transactions per second.
// Returns ErrGeneratorRunning when already running, ErrRateOutOfRange when
// the rate is outside (0, max_transaction_rate], and ErrNoAccounts when the
// graph holds fewer than two accounts to transact between.
func (g *Generator) Start(ctx context.Context, targetTps int) error {
	if targetTps <= 0 || targetTps > g.cfg.MaxTransactionRate {
		return fraud.ErrRateOutOfRange
	}
	if !g.state.CompareAndSwap(int32(stateStopped), int32(stateRunning)) {
		return fraud.ErrGeneratorRunning
	}

	accounts, err := g.creator.AccountIDs(ctx, 0)
	if err != nil {
		g.state.Store(int32(stateStopped))
		return err
	}
	if len(accounts) < 2 {
		g.state.Store(int32(stateStopped))
		return fraud.ErrNoAccounts
	}

	run := &runState{
		targetTps: targetTps,
		startedAt: time.Now(),
		accounts:  accounts,
		queue:     make(chan struct{}, g.cfg.QueueCapacity),
		stop:      make(chan struct{}),
	}
	run.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "transaction-generation",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(g.cfg.ConsecutiveFailureLimit)
		},
		OnStateChange: func(_ string, _, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				g.log.WithField("consecutive_failure_limit", g.cfg.ConsecutiveFailureLimit).
					Error("generation circuit open, stopping")
				g.fatalOnce.Do(func() { close(g.fatal) })
				// Stop waits on the worker pool; never call it from a worker
				go func() { _ = g.Stop() }()
			}
		},
	})

	g.mu.Lock()
	g.run = run
	g.mu.Unlock()

	g.mon.Reset()

	limiter := rate.NewLimiter(rate.Limit(targetTps), g.cfg.SchedulerTPSCapacity)
	run.wg.Add(1)
	go g.schedule(run, limiter)
	for i := 0; i < g.cfg.TransactionWorkerPoolSize; i++ {
		run.wg.Add(1)
		go g.worker(run)
	}

	g.log.WithFields(logrus.Fields{
		"target_tps": targetTps,
		"workers":    g.cfg.TransactionWorkerPoolSize,
		"accounts":   len(accounts),
	}).Info("generator started")
	return nil
}

// Stop halts generation and waits for in-flight work to drain
func (g *Generator) Stop() error {
	if !g.state.CompareAndSwap(int32(stateRunning), int32(stateStopping)) {
		return fraud.ErrGeneratorNotRunning
	}
	g.mu.Lock()
	run := g.run
	g.mu.Unlock()

	close(run.stop)
	run.wg.Wait()
	g.state.Store(int32(stateStopped))

	g.log.WithFields(logrus.Fields{
		"created": run.created.Load(),
		"failed":  run.failed.Load(),
	}).Info("generator stopped")
	return nil
}

// Fatal is closed once when the circuit breaker trips. The process owner
// decides what a tripped run means; the generator only stops itself.
func (g *Generator) Fatal() <-chan struct{} {
	return g.fatal
}

// Status reports the current (or most recent) run
func (g *Generator) Status() Status {
	g.mu.Lock()
	run := g.run
	g.mu.Unlock()

	st := Status{Running: state(g.state.Load()) == stateRunning}
	if run == nil {
		return st
	}

	st.TargetTPS = run.targetTps
	st.QueueSize = len(run.queue)
	st.Created = run.created.Load()
	st.Failed = run.failed.Load()
	st.StartedAt = run.startedAt
	if elapsed := time.Since(run.startedAt).Seconds(); elapsed > 0 {
		st.ActualTPS = float64(st.Created) / elapsed
	}
	return st
}

// Recent returns the latest generated transactions, newest first
func (g *Generator) Recent(limit int) []fraud.TransactionInfo {
	g.recentMu.Lock()
	defer g.recentMu.Unlock()

	n := len(g.recent)
	if n == 0 {
		return nil
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]fraud.TransactionInfo, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (g.next - 1 - i + n) % n
		out = append(out, g.recent[idx])
	}
	return out
}

// schedule converts the rate limit into queue tokens
func (g *Generator) schedule(run *runState, limiter *rate.Limiter) {
	defer run.wg.Done()
	defer close(run.queue)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-run.stop
		cancel()
	}()

	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		select {
		case run.queue <- struct{}{}:
		case <-run.stop:
			return
		}
	}
}

func (g *Generator) worker(run *runState) {
	defer run.wg.Done()
	for range run.queue {
		g.generateOne(run)
	}
}

// generateOne creates a single random transaction and evaluates it. The
// evaluator records the creation sample with the rest of the summary; only
// a failed create, which never reaches evaluation, is recorded here.
func (g *Generator) generateOne(run *runState) {
	ctx, cancel := context.WithTimeout(context.Background(), createTimeout)
	defer cancel()

	_, err := run.breaker.Execute(func() (any, error) {
		sender, receiver := pickPair(run.accounts)
		amount := decimal.NewFromFloat(100 + rand.Float64()*14900)
		txType := fraud.TransactionTypes[rand.Intn(len(fraud.TransactionTypes))]

		tx, err := g.creator.CreateTransaction(ctx, sender, receiver, amount,
			txType, RandomLocation(), fraud.GenAuto)
		if err != nil {
			g.mon.Record(monitor.StreamTransaction, tx.Perf)
			return nil, err
		}

		run.created.Add(1)
		g.remember(tx)

		if _, err := g.evaluator.Evaluate(ctx, tx); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		run.failed.Add(1)
		if !errors.Is(err, gobreaker.ErrOpenState) {
			g.log.WithError(err).Debug("transaction generation failed")
		}
	}
}

func (g *Generator) remember(tx fraud.TransactionInfo) {
	g.recentMu.Lock()
	defer g.recentMu.Unlock()

	if len(g.recent) < recentCapacity {
		g.recent = append(g.recent, tx)
		g.next = len(g.recent) % recentCapacity
		return
	}
	g.recent[g.next] = tx
	g.next = (g.next + 1) % recentCapacity
}

// pickPair draws two distinct account ids
func pickPair(accounts []any) (any, any) {
	i := rand.Intn(len(accounts))
	j := rand.Intn(len(accounts) - 1)
	if j >= i {
		j++
	}
	return accounts[i], accounts[j]
}
