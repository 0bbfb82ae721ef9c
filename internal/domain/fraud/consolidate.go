package fraud

import (
	"encoding/json"
	"time"
)

// Annotation is the consolidated fraud result written back onto a
// TRANSACTS edge. It is produced once per evaluated transaction, after
// every rule verdict is in.
type Annotation struct {
	IsFraud       bool
	Score         int
	Status        Status
	EvalTimestamp time.Time
	Details       []string
}

// evidenceRecord is the JSON shape of one Details entry
type evidenceRecord struct {
	RuleName string         `json:"rule_name"`
	Score    int            `json:"fraud_score"`
	Status   Status         `json:"fraud_status"`
	Evidence map[string]any `json:"evidence,omitempty"`
}

// Consolidate folds the verdicts of one transaction into a single
// annotation. The score is the maximum across firing rules, the status the
// most severe, and Details holds one JSON-encoded evidence record per
// firing rule in verdict order. The second return is false when no rule
// fired, in which case the edge must not be annotated.
func Consolidate(verdicts []Verdict, evalTime time.Time) (Annotation, bool) {
	ann := Annotation{
		Status:        StatusCleared,
		EvalTimestamp: evalTime,
	}

	for _, v := range verdicts {
		if !v.IsFraud {
			continue
		}
		ann.IsFraud = true
		if v.Score > ann.Score {
			ann.Score = v.Score
		}
		ann.Status = ann.Status.Max(v.Status)

		rec := evidenceRecord{
			RuleName: v.RuleName,
			Score:    v.Score,
			Status:   v.Status,
			Evidence: v.Evidence,
		}
		encoded, err := json.Marshal(rec)
		if err != nil {
			// Evidence maps hold scalars and id lists only; a marshal
			// failure means a rule produced something unserializable.
			encoded = []byte(`{"rule_name":"` + v.RuleName + `"}`)
		}
		ann.Details = append(ann.Details, string(encoded))
	}

	return ann, ann.IsFraud
}
