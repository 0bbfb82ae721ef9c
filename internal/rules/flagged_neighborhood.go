package rules

import (
	"context"

	"fraud-graph-engine/internal/domain/fraud"
)

// FlaggedNeighborhood fires when either endpoint has transacted with
// flagged accounts. The score grows with the number of distinct flagged
// counterparties; enough of them escalates review to blocked.
type FlaggedNeighborhood struct {
	graph GraphReader
}

// NewFlaggedNeighborhood builds the 2-hop transactional-neighbor rule
func NewFlaggedNeighborhood(graph GraphReader) *FlaggedNeighborhood {
	return &FlaggedNeighborhood{graph: graph}
}

func (r *FlaggedNeighborhood) Name() string { return "flagged_neighborhood" }

func (r *FlaggedNeighborhood) Metadata() Metadata {
	return Metadata{
		Description:   "Detects transactions whose parties transact with flagged accounts",
		KeyIndicators: []string{"multi-hop neighborhood analysis", "flagged transaction partners"},
		CommonUseCase: "Risk scoring through known fraudster proximity",
		Complexity:    ComplexityMedium,
	}
}

func (r *FlaggedNeighborhood) Evaluate(ctx context.Context, tx fraud.TransactionInfo) fraud.Verdict {
	perf := fraud.NewPerformanceInfo()

	senderSide, receiverSide, err := r.graph.FlaggedCounterparties(ctx, tx.EdgeID)
	if err != nil {
		return fraud.ExceptionVerdict(r.Name(), perf, err)
	}

	total := len(senderSide) + len(receiverSide)
	if total == 0 {
		return fraud.Verdict{
			RuleName: r.Name(),
			Status:   fraud.StatusCleared,
			Perf:     perf.Complete(true),
		}
	}

	score := 75 + total*5
	if score > 95 {
		score = 95
	}
	status := fraud.StatusReview
	if score >= 90 {
		status = fraud.StatusBlocked
	}

	flagged := make([]any, 0, total)
	flagged = append(flagged, senderSide...)
	flagged = append(flagged, receiverSide...)

	return fraud.Verdict{
		RuleName: r.Name(),
		IsFraud:  true,
		Score:    score,
		Status:   status,
		Evidence: map[string]any{
			"flagged_counterparties": flagged,
			"count":                  total,
		},
		Perf: perf.Complete(true),
	}
}
