package model

import "time"

// FacetPrediction is one LLM output for one gap. An empty Value means
// "no allowed value applies"; SuggestedValue is populated only when the
// model believes the correct value lies outside the allowed set.
type FacetPrediction struct {
	AttributeName  string  `json:"attribute_name"`
	Value          string  `json:"value"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning,omitempty"`
	SuggestedValue string  `json:"suggested_value,omitempty"`
}

// PredictionResult is the persisted record of one prediction. Created once
// by the recorder; mutated exactly once by the validator to set Correct and
// ActualValue; never deleted within a run. RecommendationKey links the row
// to the ground-truth recommendation it can be validated against — when
// NULL the row stays "not yet validated" forever.
type PredictionResult struct {
	Key               string    `json:"key"`
	ExperimentKey     string    `json:"experiment_key"`
	ProductKey        string    `json:"product_key"`
	AttributeKey      string    `json:"attribute_key"`
	Value             string    `json:"value"`
	Confidence        float64   `json:"confidence"`
	Reasoning         string    `json:"reasoning,omitempty"`
	RecommendationKey *string   `json:"recommendation_key,omitempty"`
	Correct           *bool     `json:"correct,omitempty"` // nil = not yet validated
	ActualValue       *string   `json:"actual_value,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Validated reports whether the validator has judged this prediction.
func (p *PredictionResult) Validated() bool {
	return p.Correct != nil
}
