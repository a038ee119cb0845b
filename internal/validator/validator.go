// Package validator scores stored predictions against ground truth.
package validator

import (
	"context"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/facet-cli/internal/groundtruth"
	"github.com/sells-group/facet-cli/internal/model"
	"github.com/sells-group/facet-cli/internal/store"
)

// DefaultThreshold is the edit-similarity ratio at or above which two
// non-identical strings still count as a match. Stricter call sites
// may configure down to 0.9.
const DefaultThreshold = 0.95

// Validator computes correctness for predictions linked to a human
// recommendation.
type Validator struct {
	store     store.Store
	threshold float64
}

func New(st store.Store, threshold float64) *Validator {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Validator{store: st, threshold: threshold}
}

// Matches reports whether a predicted value agrees with the ground
// truth value. Exact match after trimming and lower-casing
// short-circuits; otherwise a normalized edit-similarity ratio decides.
func (v *Validator) Matches(predicted, actual string) bool {
	p := strings.ToLower(strings.TrimSpace(predicted))
	a := strings.ToLower(strings.TrimSpace(actual))
	if p == a {
		return true
	}
	return levenshtein.Similarity(p, a, levenshtein.NewParams()) >= v.threshold
}

// Validate mutates predictions in place, setting correctness-status
// and actual value for every prediction with a recommendation link,
// and persists each verdict. Predictions whose recommendation no
// longer resolves (data drift) are logged and skipped, not failed.
func (v *Validator) Validate(ctx context.Context, predictions []model.PredictionResult, truth *groundtruth.Set) error {
	for i := range predictions {
		pred := &predictions[i]
		if pred.RecommendationKey == nil {
			continue
		}

		entry, ok := truth.ByRecommendation(*pred.RecommendationKey)
		if !ok {
			zap.L().Warn("prediction links to missing ground truth",
				zap.String("prediction", pred.Key),
				zap.String("recommendation", *pred.RecommendationKey))
			continue
		}

		correct := v.Matches(pred.Value, entry.Value)
		actual := entry.Value
		pred.Correct = &correct
		pred.ActualValue = &actual

		if err := v.store.MarkValidated(ctx, pred.Key, correct, actual); err != nil {
			return eris.Wrapf(err, "validator: persist verdict for %s", pred.Key)
		}
	}
	return nil
}

// Accuracy returns how many predictions were validated and the share
// of those that were correct. Predictions never linked to a
// recommendation are excluded entirely; zero validated yields 0.0.
func Accuracy(predictions []model.PredictionResult) (validated int, accuracy float64) {
	correct := 0
	for _, p := range predictions {
		if p.Correct == nil {
			continue
		}
		validated++
		if *p.Correct {
			correct++
		}
	}
	if validated == 0 {
		return 0, 0
	}
	return validated, float64(correct) / float64(validated)
}
