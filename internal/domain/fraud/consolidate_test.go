package fraud

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOrdering(t *testing.T) {
	assert.Equal(t, StatusBlocked, StatusReview.Max(StatusBlocked))
	assert.Equal(t, StatusBlocked, StatusBlocked.Max(StatusCleared))
	assert.Equal(t, StatusReview, StatusCleared.Max(StatusReview))
	assert.Equal(t, StatusCleared, StatusCleared.Max(StatusCleared))
}

func TestConsolidateNoFiringRules(t *testing.T) {
	verdicts := []Verdict{
		{RuleName: "rt1", Status: StatusCleared},
		{RuleName: "rt2", Status: StatusCleared, Exception: true},
	}

	_, fired := Consolidate(verdicts, time.Now())
	assert.False(t, fired)
}

func TestConsolidateMaxScoreAndStatus(t *testing.T) {
	now := time.Now()
	verdicts := []Verdict{
		{RuleName: "rt2", IsFraud: true, Score: 80, Status: StatusReview,
			Evidence: map[string]any{"flagged_counterparties": 1}},
		{RuleName: "rt1", IsFraud: true, Score: 100, Status: StatusBlocked},
		{RuleName: "rt3", Status: StatusCleared},
	}

	ann, fired := Consolidate(verdicts, now)
	require.True(t, fired)
	assert.True(t, ann.IsFraud)
	assert.Equal(t, 100, ann.Score)
	assert.Equal(t, StatusBlocked, ann.Status)
	assert.Equal(t, now, ann.EvalTimestamp)

	// One detail per firing rule, in verdict order
	require.Len(t, ann.Details, 2)

	var first evidenceRecord
	require.NoError(t, json.Unmarshal([]byte(ann.Details[0]), &first))
	assert.Equal(t, "rt2", first.RuleName)
	assert.Equal(t, 80, first.Score)
	assert.Equal(t, StatusReview, first.Status)

	var second evidenceRecord
	require.NoError(t, json.Unmarshal([]byte(ann.Details[1]), &second))
	assert.Equal(t, "rt1", second.RuleName)
}

func TestConsolidateReviewOnly(t *testing.T) {
	verdicts := []Verdict{
		{RuleName: "rt3", IsFraud: true, Score: 85, Status: StatusReview},
	}

	ann, fired := Consolidate(verdicts, time.Now())
	require.True(t, fired)
	assert.Equal(t, StatusReview, ann.Status)
	assert.Equal(t, 85, ann.Score)
	require.Len(t, ann.Details, 1)
}

func TestExceptionVerdictClears(t *testing.T) {
	perf := NewPerformanceInfo()
	v := ExceptionVerdict("rt1", perf, ErrMissingVertex)

	assert.True(t, v.Exception)
	assert.False(t, v.IsFraud)
	assert.Equal(t, StatusCleared, v.Status)
	assert.False(t, v.Perf.Successful)
	assert.Equal(t, ErrMissingVertex.Error(), v.Err)
}

func TestPerformanceInfoComplete(t *testing.T) {
	perf := NewPerformanceInfo()
	done := perf.Complete(true)

	assert.True(t, done.Successful)
	assert.False(t, done.Start.IsZero())
	assert.GreaterOrEqual(t, done.Duration, time.Duration(0))
}
