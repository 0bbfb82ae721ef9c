package rules

import (
	"context"
	"sort"
	"sync"

	"fraud-graph-engine/internal/domain/fraud"
)

// GraphReader is the slice of the graph client the rules need. All three
// queries run against the fraud connection pool.
type GraphReader interface {
	// EndpointFraudFlags reads the fraud_flag of both endpoint vertices;
	// a nil flag means the vertex does not exist
	EndpointFraudFlags(ctx context.Context, senderID, receiverID any) (sender, receiver *bool, err error)
	// FlaggedCounterparties lists, per endpoint, the distinct flagged
	// accounts the endpoint has transacted with
	FlaggedCounterparties(ctx context.Context, edgeID any) (senderIDs, receiverIDs []any, err error)
	// FlaggedDeviceNetwork walks the ownership network around the edge
	// and returns reachable accounts plus flagged devices
	FlaggedDeviceNetwork(ctx context.Context, edgeID any) (accountIDs, deviceIDs []any, err error)
}

// Complexity grades how expensive a rule's traversal is
type Complexity string

const (
	ComplexityLow    Complexity = "LOW"
	ComplexityMedium Complexity = "MEDIUM"
	ComplexityHigh   Complexity = "HIGH"
)

// Metadata is the static description of a rule
type Metadata struct {
	Description   string
	KeyIndicators []string
	CommonUseCase string
	Complexity    Complexity
}

// Rule evaluates one transaction. Implementations never return Go errors;
// failures come back as exception verdicts so the engine always receives
// exactly one verdict per (transaction, rule) pair.
type Rule interface {
	Name() string
	Metadata() Metadata
	Evaluate(ctx context.Context, tx fraud.TransactionInfo) fraud.Verdict
}

// Info is one row of the registry listing
type Info struct {
	Name     string
	Metadata Metadata
	Enabled  bool
}

type entry struct {
	rule    Rule
	enabled bool
}

// Registry holds the registered rules and their enabled state. The engine
// snapshots the enabled set when a transaction is submitted, so toggling a
// rule never affects transactions already in flight.
type Registry struct {
	mu    sync.RWMutex
	order []string
	rules map[string]*entry
}

// NewRegistry registers rules in order; all start enabled
func NewRegistry(rules ...Rule) *Registry {
	r := &Registry{rules: make(map[string]*entry, len(rules))}
	for _, rule := range rules {
		r.order = append(r.order, rule.Name())
		r.rules[rule.Name()] = &entry{rule: rule, enabled: true}
	}
	return r
}

// EnabledSnapshot returns the currently enabled rules in registration
// order
func (r *Registry) EnabledSnapshot() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Rule, 0, len(r.order))
	for _, name := range r.order {
		if e := r.rules[name]; e.enabled {
			out = append(out, e.rule)
		}
	}
	return out
}

// Toggle enables or disables a rule
func (r *Registry) Toggle(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.rules[name]
	if !ok {
		return fraud.ErrRuleNotFound
	}
	e.enabled = enabled
	return nil
}

// List describes every registered rule in registration order
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.order))
	for _, name := range r.order {
		e := r.rules[name]
		out = append(out, Info{Name: name, Metadata: e.rule.Metadata(), Enabled: e.enabled})
	}
	return out
}

// Names returns all registered rule names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.order))
	copy(out, r.order)
	sort.Strings(out)
	return out
}
