package dto

import (
	"time"

	"fraud-graph-engine/internal/generator"
	"fraud-graph-engine/internal/monitor"
	"fraud-graph-engine/internal/rules"
)

// ToggleRuleRequest enables or disables a detection rule
type ToggleRuleRequest struct {
	Enabled bool `json:"enabled"`
}

// RuleResponse describes one detection rule
type RuleResponse struct {
	Name          string   `json:"name"`
	Enabled       bool     `json:"enabled"`
	Description   string   `json:"description"`
	KeyIndicators []string `json:"key_indicators"`
	CommonUseCase string   `json:"common_use_case"`
	Complexity    string   `json:"complexity"`
}

// NewRuleResponses maps registry infos to their wire shape
func NewRuleResponses(infos []rules.Info) []RuleResponse {
	out := make([]RuleResponse, 0, len(infos))
	for _, info := range infos {
		out = append(out, RuleResponse{
			Name:          info.Name,
			Enabled:       info.Enabled,
			Description:   info.Metadata.Description,
			KeyIndicators: info.Metadata.KeyIndicators,
			CommonUseCase: info.Metadata.CommonUseCase,
			Complexity:    string(info.Metadata.Complexity),
		})
	}
	return out
}

// FlagAccountRequest marks an account as known-fraudulent
type FlagAccountRequest struct {
	Reason string `json:"reason"`
}

// StartGeneratorRequest starts synthetic load at the given rate
type StartGeneratorRequest struct {
	TargetTPS int `json:"target_tps"`
}

// GeneratorStatusResponse reports the load generator
type GeneratorStatusResponse struct {
	Running   bool      `json:"running"`
	TargetTPS int       `json:"target_tps"`
	ActualTPS float64   `json:"actual_tps"`
	QueueSize int       `json:"queue_size"`
	Created   int64     `json:"created"`
	Failed    int64     `json:"failed"`
	StartedAt time.Time `json:"started_at,omitzero"`
}

// NewGeneratorStatusResponse maps a generator snapshot to its wire shape
func NewGeneratorStatusResponse(st generator.Status) GeneratorStatusResponse {
	return GeneratorStatusResponse{
		Running:   st.Running,
		TargetTPS: st.TargetTPS,
		ActualTPS: st.ActualTPS,
		QueueSize: st.QueueSize,
		Created:   st.Created,
		Failed:    st.Failed,
		StartedAt: st.StartedAt,
	}
}

// StreamStatsResponse is one stream's latency aggregate over a window
type StreamStatsResponse struct {
	Stream      string  `json:"stream"`
	Count       int64   `json:"count"`
	MinMs       float64 `json:"min_ms"`
	AvgMs       float64 `json:"avg_ms"`
	MaxMs       float64 `json:"max_ms"`
	P95Ms       float64 `json:"p95_ms"`
	QPS         float64 `json:"qps"`
	Success     int64   `json:"success"`
	Failure     int64   `json:"failure"`
	SuccessRate float64 `json:"success_rate"`
}

// PerformanceResponse is the latency view over one lookback window
type PerformanceResponse struct {
	WindowMinutes int                   `json:"window_minutes"`
	Streams       []StreamStatsResponse `json:"streams"`
}

// NewStreamStats maps monitor stats to their wire shape
func NewStreamStats(name string, s monitor.Stats) StreamStatsResponse {
	return StreamStatsResponse{
		Stream:      name,
		Count:       s.Count,
		MinMs:       s.Min,
		AvgMs:       s.Avg,
		MaxMs:       s.Max,
		P95Ms:       s.P95,
		QPS:         s.QPS,
		Success:     s.Success,
		Failure:     s.Failure,
		SuccessRate: s.SuccessRate,
	}
}
