package graph

import (
	"context"
	"fmt"
	"time"

	"fraud-graph-engine/internal/domain/fraud"
	"fraud-graph-engine/internal/infrastructure/metadata"
)

// GraphSummary holds vertex/edge counts reported by the graph admin API
type GraphSummary struct {
	TotalVertices int64
	TotalEdges    int64
	VertexCounts  map[string]int64
	EdgeCounts    map[string]int64
}

// DashboardStats is the aggregate view behind the CLI stats command
type DashboardStats struct {
	Users        int64   `json:"users"`
	Transactions int64   `json:"transactions"`
	Accounts     int64   `json:"accounts"`
	Devices      int64   `json:"devices"`
	Flagged      int64   `json:"flagged"`
	Amount       float64 `json:"amount"`
	FraudRate    float64 `json:"fraud_rate"`
	Health       string  `json:"health"`
}

// TransactionStats breaks transaction totals down by disposition
type TransactionStats struct {
	Total   int64 `json:"total"`
	Blocked int64 `json:"blocked"`
	Review  int64 `json:"review"`
	Clean   int64 `json:"clean"`
}

// UserStats breaks the user population down by risk tier
type UserStats struct {
	Total    int64 `json:"total"`
	LowRisk  int64 `json:"low_risk"`
	MedRisk  int64 `json:"medium_risk"`
	HighRisk int64 `json:"high_risk"`
}

// IndexInfo reports what the index admin endpoints returned
type IndexInfo struct {
	Cardinality any `json:"cardinality"`
	IndexList   any `json:"index_list"`
}

// Summary queries the graph admin metadata endpoint for label counts
func (c *Client) Summary(ctx context.Context) (GraphSummary, error) {
	if err := ctx.Err(); err != nil {
		return GraphSummary{}, err
	}

	res, err := c.main.Call("aerospike.graph.admin.metadata.summary").Next()
	if err != nil {
		return GraphSummary{}, fmt.Errorf("graph summary: %w", err)
	}

	raw, err := resultMap(res)
	if err != nil {
		return GraphSummary{}, err
	}

	summary := GraphSummary{
		TotalVertices: asInt64(raw["Total vertex count"]),
		TotalEdges:    asInt64(raw["Total edge count"]),
		VertexCounts:  countMap(raw["Vertex count by label"]),
		EdgeCounts:    countMap(raw["Edge count by label"]),
	}
	return summary, nil
}

func countMap(v any) map[string]int64 {
	out := make(map[string]int64)
	switch m := v.(type) {
	case map[string]any:
		for k, n := range m {
			out[k] = asInt64(n)
		}
	case map[any]any:
		for k, n := range m {
			out[fmt.Sprint(k)] = asInt64(n)
		}
	}
	return out
}

// DashboardStats combines graph label counts with the flushed fraud
// counters. Counter reads lag live traffic by at most one flush interval.
func (c *Client) DashboardStats(ctx context.Context) (DashboardStats, error) {
	summary, err := c.Summary(ctx)
	if err != nil {
		return DashboardStats{Health: "error"}, err
	}

	stats := DashboardStats{
		Users:        summary.VertexCounts["user"],
		Transactions: summary.EdgeCounts["TRANSACTS"],
		Accounts:     summary.VertexCounts["account"],
		Devices:      summary.VertexCounts["device"],
		Health:       "connected",
	}

	if stats.Transactions > 0 {
		bins, err := c.counters.ReadRecord(ctx, metadata.RecordFraud)
		if err != nil {
			c.log.WithError(err).Warn("fraud counters unavailable for dashboard stats")
			return stats, nil
		}
		stats.Flagged = bins[metadata.BinBlocked] + bins[metadata.BinReview]
		stats.Amount = float64(bins[metadata.BinAmount])
		stats.FraudRate = float64(stats.Flagged) / float64(stats.Transactions) * 100.0
	}
	return stats, nil
}

// TransactionStats reads the flushed transaction disposition counters
func (c *Client) TransactionStats(ctx context.Context) (TransactionStats, error) {
	bins, err := c.counters.ReadRecord(ctx, metadata.RecordFraud)
	if err != nil {
		return TransactionStats{}, err
	}

	stats := TransactionStats{
		Total:   bins[metadata.BinTotal],
		Blocked: bins[metadata.BinBlocked],
		Review:  bins[metadata.BinReview],
	}
	stats.Clean = stats.Total - stats.Blocked - stats.Review
	return stats, nil
}

// UserStats reads the flushed user risk-tier counters
func (c *Client) UserStats(ctx context.Context) (UserStats, error) {
	bins, err := c.counters.ReadRecord(ctx, metadata.RecordUsers)
	if err != nil {
		return UserStats{}, err
	}

	summary, err := c.Summary(ctx)
	if err != nil {
		return UserStats{}, err
	}

	return UserStats{
		Total:    summary.VertexCounts["user"],
		LowRisk:  bins[metadata.BinLow],
		MedRisk:  bins[metadata.BinMedium],
		HighRisk: bins[metadata.BinHigh],
	}, nil
}

// InspectIndexes reports index cardinality and the index list from the
// graph admin API
func (c *Client) InspectIndexes(ctx context.Context) (IndexInfo, error) {
	if err := ctx.Err(); err != nil {
		return IndexInfo{}, err
	}

	card, err := c.main.Call("aerospike.graph.admin.index.cardinality").Next()
	if err != nil {
		return IndexInfo{}, fmt.Errorf("index cardinality: %w", err)
	}

	info := IndexInfo{Cardinality: card.GetInterface()}

	list, err := c.main.Call("aerospike.graph.admin.index.list").Next()
	if err != nil {
		// Cardinality alone is still useful when listing is unsupported
		info.IndexList = fmt.Sprintf("index list unavailable: %v", err)
		return info, nil
	}
	info.IndexList = list.GetInterface()
	return info, nil
}

// CreateFraudIndexes creates the edge indexes the rule traversals lean on.
// Each index is attempted independently; one failure does not stop the
// rest.
func (c *Client) CreateFraudIndexes(ctx context.Context) map[string]error {
	results := make(map[string]error, 2)

	if err := ctx.Err(); err != nil {
		results["transacts_timestamp_desc"] = err
		results["transacts_fraud_status"] = err
		return results
	}

	_, err := c.main.
		Call("aerospike.graph.admin.index.create").
		With("name", "transacts_timestamp_desc").
		With("elementType", "edge").
		With("label", "TRANSACTS").
		With("properties", []string{"timestamp"}).
		With("order", "desc").
		Next()
	results["transacts_timestamp_desc"] = err

	_, err = c.main.
		Call("aerospike.graph.admin.index.create").
		With("name", "transacts_fraud_status").
		With("elementType", "edge").
		With("label", "TRANSACTS").
		With("properties", []string{"fraud_status"}).
		Next()
	results["transacts_fraud_status"] = err

	return results
}

// SeedSampleData drops the graph, resets counters and bulk-loads the
// sample dataset, polling the loader until it reports completion
func (c *Client) SeedSampleData(ctx context.Context, verticesPath, edgesPath string) error {
	if err := c.DropAll(ctx); err != nil {
		return err
	}

	c.log.Info("bulk load starting")
	_, err := c.main.
		Call("aerospike.graphloader.admin.bulk-load.load").
		With("aerospike.graphloader.vertices", verticesPath).
		With("aerospike.graphloader.edges", edgesPath).
		With("incremental_load", false).
		Next()
	if err != nil {
		return fmt.Errorf("bulk load: %w", err)
	}

	for {
		status, err := c.BulkLoadStatus(ctx)
		if err != nil {
			return err
		}
		c.log.WithField("status", status).Info("bulk load status")

		if done, _ := asBool(status["complete"]); done {
			c.log.Info("bulk load completed")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

// BulkLoadStatus polls the graph loader admin endpoint
func (c *Client) BulkLoadStatus(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := c.main.Call("aerospike.graphloader.admin.bulk-load.status").Next()
	if err != nil {
		return nil, fmt.Errorf("bulk load status: %w", err)
	}
	return resultMap(res)
}

// DropAll removes every vertex; edges go with them
func (c *Client) DropAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	promise := c.main.V().Drop().Iterate()
	if err := <-promise; err != nil {
		return fmt.Errorf("%w: drop all: %v", fraud.ErrGraphUnavailable, err)
	}
	return nil
}
