package rules

import (
	"context"
	"fmt"

	"fraud-graph-engine/internal/domain/fraud"
)

// FlaggedCounterparty fires when either endpoint of a transaction is
// itself a flagged account. Direct fraud: maximum score, blocked.
type FlaggedCounterparty struct {
	graph GraphReader
}

// NewFlaggedCounterparty builds the direct-counterparty rule
func NewFlaggedCounterparty(graph GraphReader) *FlaggedCounterparty {
	return &FlaggedCounterparty{graph: graph}
}

func (r *FlaggedCounterparty) Name() string { return "flagged_counterparty" }

func (r *FlaggedCounterparty) Metadata() Metadata {
	return Metadata{
		Description:   "Detects transactions where a party is a flagged account",
		KeyIndicators: []string{"direct flagged counterparty", "known fraudulent account"},
		CommonUseCase: "Immediate threat detection, known fraudster connections",
		Complexity:    ComplexityLow,
	}
}

func (r *FlaggedCounterparty) Evaluate(ctx context.Context, tx fraud.TransactionInfo) fraud.Verdict {
	perf := fraud.NewPerformanceInfo()

	sender, receiver, err := r.graph.EndpointFraudFlags(ctx, tx.SenderID, tx.ReceiverID)
	if err != nil {
		return fraud.ExceptionVerdict(r.Name(), perf, err)
	}
	if sender == nil || receiver == nil {
		return fraud.ExceptionVerdict(r.Name(), perf,
			fmt.Errorf("%w: sender present=%t receiver present=%t",
				fraud.ErrMissingVertex, sender != nil, receiver != nil))
	}

	if !*sender && !*receiver {
		return fraud.Verdict{
			RuleName: r.Name(),
			Status:   fraud.StatusCleared,
			Perf:     perf.Complete(true),
		}
	}

	var flagged []any
	if *sender {
		flagged = append(flagged, tx.SenderID)
	}
	if *receiver {
		flagged = append(flagged, tx.ReceiverID)
	}

	return fraud.Verdict{
		RuleName: r.Name(),
		IsFraud:  true,
		Score:    100,
		Status:   fraud.StatusBlocked,
		Evidence: map[string]any{
			"flagged_endpoints": flagged,
			"sender_flagged":    *sender,
			"receiver_flagged":  *receiver,
		},
		Perf: perf.Complete(true),
	}
}
