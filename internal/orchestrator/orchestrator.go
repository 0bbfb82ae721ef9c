package orchestrator

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"fraud-graph-engine/internal/domain/fraud"
	"fraud-graph-engine/internal/generator"
	"fraud-graph-engine/internal/infrastructure/graph"
	"fraud-graph-engine/internal/monitor"
	"fraud-graph-engine/internal/pkg/config"
	"fraud-graph-engine/internal/rules"
)

// shutdownGrace bounds how long Shutdown waits for the pieces to drain
const shutdownGrace = 10 * time.Second

// GraphOps is everything the orchestrator asks of the graph client
type GraphOps interface {
	CreateTransaction(ctx context.Context, senderID, receiverID any,
		amount decimal.Decimal, txType fraud.TransactionType, location string,
		genType fraud.GenType) (fraud.TransactionInfo, error)
	AccountIDs(ctx context.Context, limit int) ([]any, error)
	DropTransactionsByGenType(ctx context.Context, genType fraud.GenType) error
	FlagAccount(ctx context.Context, accountID any, reason string) error
	UnflagAccount(ctx context.Context, accountID any) error
	DashboardStats(ctx context.Context) (graph.DashboardStats, error)
	TransactionStats(ctx context.Context) (graph.TransactionStats, error)
	UserStats(ctx context.Context) (graph.UserStats, error)
	InspectIndexes(ctx context.Context) (graph.IndexInfo, error)
	CreateFraudIndexes(ctx context.Context) map[string]error
	SeedSampleData(ctx context.Context, verticesPath, edgesPath string) error
	HealthCheck(ctx context.Context) error
	Close()
}

// Evaluator submits transactions for fraud evaluation
type Evaluator interface {
	Evaluate(ctx context.Context, tx fraud.TransactionInfo) (fraud.TransactionSummary, error)
}

// Flusher is the metadata store lifecycle the orchestrator drives
type Flusher interface {
	Flush(ctx context.Context) error
	Clear(ctx context.Context) error
	Close(ctx context.Context) error
}

// Service wires the graph client, rule registry, fraud engine, load
// generator, metadata store and monitor behind one control surface. The
// CLI talks only to the Service.
type Service struct {
	cfg      *config.Config
	graph    GraphOps
	engine   Evaluator
	gen      *generator.Generator
	registry *rules.Registry
	store    Flusher
	mon      *monitor.Monitor
	log      *logrus.Entry
}

// New assembles the service from already-constructed parts
func New(cfg *config.Config, graphOps GraphOps, engine Evaluator,
	gen *generator.Generator, registry *rules.Registry, store Flusher,
	mon *monitor.Monitor, logger *logrus.Logger) *Service {
	return &Service{
		cfg:      cfg,
		graph:    graphOps,
		engine:   engine,
		gen:      gen,
		registry: registry,
		store:    store,
		mon:      mon,
		log:      logger.WithField("component", "orchestrator"),
	}
}

// StartGenerator begins synthetic load at the requested rate
func (s *Service) StartGenerator(ctx context.Context, targetTps int) error {
	return s.gen.Start(ctx, targetTps)
}

// StopGenerator halts synthetic load and waits for it to drain
func (s *Service) StopGenerator() error {
	return s.gen.Stop()
}

// GeneratorStatus reports the load generator
func (s *Service) GeneratorStatus() generator.Status {
	return s.gen.Status()
}

// GeneratorFatal is closed when the generator's circuit breaker trips
func (s *Service) GeneratorFatal() <-chan struct{} {
	return s.gen.Fatal()
}

// RecentTransactions returns the latest generated transactions, newest first
func (s *Service) RecentTransactions(limit int) []fraud.TransactionInfo {
	return s.gen.Recent(limit)
}

// CreateTransaction records one externally requested transaction and runs
// it through the fraud engine
func (s *Service) CreateTransaction(ctx context.Context, senderID, receiverID any,
	amount decimal.Decimal, txType fraud.TransactionType, location string) (fraud.TransactionSummary, error) {

	tx, err := s.graph.CreateTransaction(ctx, senderID, receiverID, amount,
		txType, location, fraud.GenManual)
	if err != nil {
		return fraud.TransactionSummary{}, err
	}
	return s.engine.Evaluate(ctx, tx)
}

// ListRules describes every registered rule and its enabled state
func (s *Service) ListRules() []rules.Info {
	return s.registry.List()
}

// ToggleRule enables or disables a rule for future transactions
func (s *Service) ToggleRule(name string, enabled bool) error {
	if err := s.registry.Toggle(name, enabled); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"rule": name, "enabled": enabled}).Info("rule toggled")
	return nil
}

// FlagAccount marks an account as known-fraudulent
func (s *Service) FlagAccount(ctx context.Context, accountID any, reason string) error {
	return s.graph.FlagAccount(ctx, accountID, reason)
}

// UnflagAccount clears the fraud flag from an account
func (s *Service) UnflagAccount(ctx context.Context, accountID any) error {
	return s.graph.UnflagAccount(ctx, accountID)
}

// Dashboard returns the aggregate graph and fraud counters
func (s *Service) Dashboard(ctx context.Context) (graph.DashboardStats, error) {
	return s.graph.DashboardStats(ctx)
}

// TransactionStats breaks transactions down by disposition
func (s *Service) TransactionStats(ctx context.Context) (graph.TransactionStats, error) {
	return s.graph.TransactionStats(ctx)
}

// UserStats breaks the user population down by risk tier
func (s *Service) UserStats(ctx context.Context) (graph.UserStats, error) {
	return s.graph.UserStats(ctx)
}

// Performance returns per-stream latency stats over the given window. The
// window is coerced to a supported value, and the coerced value is returned
// so callers report the window the stats actually cover.
func (s *Service) Performance(windowMinutes int) (map[string]monitor.Stats, int) {
	windowMinutes = s.mon.NormalizeWindow(windowMinutes)
	return s.mon.AllStats(windowMinutes), windowMinutes
}

// TransactionPerformance returns create-latency stats over the given window
func (s *Service) TransactionPerformance(windowMinutes int) (monitor.Stats, bool) {
	return s.mon.Stats(monitor.StreamTransaction, s.mon.NormalizeWindow(windowMinutes))
}

// InspectIndexes reports graph index cardinality and definitions
func (s *Service) InspectIndexes(ctx context.Context) (graph.IndexInfo, error) {
	return s.graph.InspectIndexes(ctx)
}

// CreateFraudIndexes creates the property indexes the rules traverse
func (s *Service) CreateFraudIndexes(ctx context.Context) map[string]error {
	return s.graph.CreateFraudIndexes(ctx)
}

// Seed wipes the graph, bulk-loads the sample dataset and resets the
// metadata counters
func (s *Service) Seed(ctx context.Context) error {
	if err := s.graph.SeedSampleData(ctx, s.cfg.Graph.SeedVerticesPath, s.cfg.Graph.SeedEdgesPath); err != nil {
		return err
	}
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.mon.Reset()
	s.log.Info("sample data seeded")
	return nil
}

// HealthCheck verifies both graph connection pools
func (s *Service) HealthCheck(ctx context.Context) error {
	return s.graph.HealthCheck(ctx)
}

// Warmup exercises the create-and-evaluate path for the configured time so
// connection pools and server caches are hot before real load. Warmup
// transactions are dropped afterwards and do not count toward stats.
func (s *Service) Warmup(ctx context.Context) error {
	if !s.cfg.Warmup.Enabled {
		return nil
	}

	accounts, err := s.graph.AccountIDs(ctx, 0)
	if err != nil {
		return err
	}
	if len(accounts) < 2 {
		return fraud.ErrNoAccounts
	}

	s.log.WithFields(logrus.Fields{
		"duration":    s.cfg.Warmup.Time,
		"parallelism": s.cfg.Warmup.Parallelism,
	}).Info("warmup started")

	warmCtx, cancel := context.WithTimeout(ctx, s.cfg.Warmup.Time)
	defer cancel()

	g, gctx := errgroup.WithContext(warmCtx)
	for i := 0; i < s.cfg.Warmup.Parallelism; i++ {
		g.Go(func() error {
			for gctx.Err() == nil {
				s.warmupOne(gctx, accounts)
			}
			return nil
		})
	}
	_ = g.Wait()

	// Cleanup gets its own deadline; the warmup one is spent
	cleanCtx, cancelClean := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancelClean()
	if err := s.graph.DropTransactionsByGenType(cleanCtx, fraud.GenWarmup); err != nil {
		s.log.WithError(err).Warn("warmup transactions not dropped")
	}
	s.mon.Reset()

	s.log.Info("warmup finished")
	return nil
}

func (s *Service) warmupOne(ctx context.Context, accounts []any) {
	i := rand.Intn(len(accounts))
	j := rand.Intn(len(accounts) - 1)
	if j >= i {
		j++
	}

	tx, err := s.graph.CreateTransaction(ctx, accounts[i], accounts[j],
		decimal.NewFromInt(500), fraud.TypeTransfer, "Warmup, US", fraud.GenWarmup)
	if err != nil {
		return
	}
	_, _ = s.engine.Evaluate(ctx, tx)
}

// Shutdown stops load, drains in-flight evaluations, flushes metadata and
// closes the connection pools. Bounded by a grace period.
func (s *Service) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()

	if err := s.gen.Stop(); err != nil && !errors.Is(err, fraud.ErrGeneratorNotRunning) {
		s.log.WithError(err).Warn("generator stop failed")
	}

	var firstErr error
	if err := s.store.Close(ctx); err != nil {
		s.log.WithError(err).Error("metadata close failed")
		firstErr = err
	}

	s.mon.Close()
	s.graph.Close()

	s.log.Info("shutdown complete")
	return firstErr
}
