package experiment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/facet-cli/internal/model"
	"github.com/sells-group/facet-cli/internal/store"
)

// Recorder persists one product's predictions as a single unit of
// work and links each prediction to its human recommendation when one
// exists.
type Recorder struct {
	store store.Store
}

func NewRecorder(st store.Store) *Recorder {
	return &Recorder{store: st}
}

// Store resolves each prediction's attribute by display name, attaches
// the matching recommendation key if any, and writes the whole batch
// in one transaction. An unresolvable attribute is logged loudly and
// skipped; it does not fail the batch. A prediction without a
// recommendation link is stored anyway but can never be validated.
func (r *Recorder) Store(ctx context.Context, experimentKey string, product *model.Product, predictions []model.FacetPrediction) ([]model.PredictionResult, error) {
	now := time.Now().UTC()
	results := make([]model.PredictionResult, 0, len(predictions))

	for _, pred := range predictions {
		attr, err := r.store.GetAttributeByName(ctx, pred.AttributeName)
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				zap.L().Error("prediction references unresolvable attribute",
					zap.String("experiment", experimentKey),
					zap.String("product", product.Code),
					zap.String("attribute", pred.AttributeName))
				continue
			}
			return nil, eris.Wrapf(err, "experiment: resolve attribute %q", pred.AttributeName)
		}

		var recKey *string
		rec, err := r.store.FindRecommendation(ctx, product.Key, attr.Key)
		switch {
		case err == nil:
			recKey = &rec.Key
		case eris.Is(err, store.ErrNotFound):
			// Stored unlinked; stays "not yet validated" forever.
		default:
			return nil, eris.Wrapf(err, "experiment: find recommendation for %s/%s", product.Key, attr.Key)
		}

		results = append(results, model.PredictionResult{
			Key:               uuid.New().String(),
			ExperimentKey:     experimentKey,
			ProductKey:        product.Key,
			AttributeKey:      attr.Key,
			Value:             pred.Value,
			Confidence:        pred.Confidence,
			Reasoning:         pred.Reasoning,
			RecommendationKey: recKey,
			CreatedAt:         now,
		})
	}

	if err := r.store.StorePredictions(ctx, results); err != nil {
		return nil, eris.Wrapf(err, "experiment: store predictions for %s", product.Code)
	}
	return results, nil
}
