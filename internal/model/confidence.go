package model

// ConfidenceLevel labels one of the five bands partitioning [0, 1].
type ConfidenceLevel string

const (
	ConfidenceVeryHigh ConfidenceLevel = "very_high"
	ConfidenceHigh     ConfidenceLevel = "high"
	ConfidenceModerate ConfidenceLevel = "moderate"
	ConfidenceLow      ConfidenceLevel = "low"
	ConfidenceVeryLow  ConfidenceLevel = "very_low"
)

// ConfidenceBand maps a closed numeric interval to a label and the
// guidance text injected into prediction prompts.
type ConfidenceBand struct {
	Level    ConfidenceLevel
	Min, Max float64
	Guidance string
}

// ConfidenceBands is the static band table, ordered highest first.
// Checked in descending order; the first inclusive match wins.
var ConfidenceBands = []ConfidenceBand{
	{ConfidenceVeryHigh, 0.9, 1.0, "0.9-1.0: the value is stated directly in the product data or follows unambiguously from it"},
	{ConfidenceHigh, 0.7, 0.89, "0.7-0.89: strong evidence supports the value with minor ambiguity"},
	{ConfidenceModerate, 0.5, 0.69, "0.5-0.69: the value is a reasonable inference from partial evidence"},
	{ConfidenceLow, 0.3, 0.49, "0.3-0.49: the value is plausible but weakly supported"},
	{ConfidenceVeryLow, 0.0, 0.29, "0.0-0.29: the value is a guess or no allowed value applies"},
}

// ClassifyConfidence maps a score to its band. Scores falling outside
// every band (negative, or fractionally above 1.0) classify as the lowest
// band; that is policy, not an error.
func ClassifyConfidence(score float64) ConfidenceLevel {
	for _, band := range ConfidenceBands {
		if score >= band.Min && score <= band.Max {
			return band.Level
		}
	}
	return ConfidenceVeryLow
}
