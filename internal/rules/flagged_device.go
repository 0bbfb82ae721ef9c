package rules

import (
	"context"

	"fraud-graph-engine/internal/domain/fraud"
)

// FlaggedDevice fires when the ownership network around a transaction
// reaches a flagged device: endpoint accounts, their owners, the owners'
// other accounts, those accounts' transaction partners, and finally the
// devices those partners' owners use.
type FlaggedDevice struct {
	graph GraphReader
}

// NewFlaggedDevice builds the device-network rule
func NewFlaggedDevice(graph GraphReader) *FlaggedDevice {
	return &FlaggedDevice{graph: graph}
}

func (r *FlaggedDevice) Name() string { return "flagged_device_network" }

func (r *FlaggedDevice) Metadata() Metadata {
	return Metadata{
		Description:   "Detects threats through flagged device usage in the ownership network",
		KeyIndicators: []string{"flagged device usage", "ownership network traversal"},
		CommonUseCase: "Device-ring detection across shared ownership",
		Complexity:    ComplexityHigh,
	}
}

func (r *FlaggedDevice) Evaluate(ctx context.Context, tx fraud.TransactionInfo) fraud.Verdict {
	perf := fraud.NewPerformanceInfo()

	accounts, devices, err := r.graph.FlaggedDeviceNetwork(ctx, tx.EdgeID)
	if err != nil {
		return fraud.ExceptionVerdict(r.Name(), perf, err)
	}

	if len(devices) == 0 {
		return fraud.Verdict{
			RuleName: r.Name(),
			Status:   fraud.StatusCleared,
			Perf:     perf.Complete(true),
		}
	}

	return fraud.Verdict{
		RuleName: r.Name(),
		IsFraud:  true,
		Score:    85,
		Status:   fraud.StatusReview,
		Evidence: map[string]any{
			"flagged_devices":  devices,
			"network_accounts": len(accounts),
		},
		Perf: perf.Complete(true),
	}
}
