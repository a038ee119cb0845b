package model

import "time"

// Experiment is one end-to-end prediction run with its aggregate metrics.
// Counters are overwritten wholesale on each metrics update (last-write-wins),
// and CompletedAt stays NULL forever if the run aborts — that is the
// "run did not finish" signal for post-mortems.
type Experiment struct {
	Key                  string         `json:"key"`
	Description          string         `json:"description,omitempty"`
	Metadata             map[string]any `json:"metadata,omitempty"`
	TotalPredictions     int            `json:"total_predictions"`
	TotalProducts        int            `json:"total_products"`
	ValidatedPredictions int            `json:"validated_predictions"`
	CorrectPredictions   int            `json:"correct_predictions"`
	Accuracy             float64        `json:"accuracy"`
	AvgPredictionMs      *float64       `json:"avg_prediction_ms,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	StartedAt            time.Time      `json:"started_at"`
	CompletedAt          *time.Time     `json:"completed_at,omitempty"`
}

// Completed reports whether the experiment finished a full run.
func (e *Experiment) Completed() bool {
	return e.CompletedAt != nil
}

// ExperimentMetrics is the counter snapshot written by UpdateMetrics.
type ExperimentMetrics struct {
	TotalPredictions     int
	TotalProducts        int
	ValidatedPredictions int
	CorrectPredictions   int
	Accuracy             float64
	AvgPredictionMs      *float64
}
