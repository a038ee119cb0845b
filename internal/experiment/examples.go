package experiment

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/facet-cli/internal/groundtruth"
	"github.com/sells-group/facet-cli/internal/model"
	"github.com/sells-group/facet-cli/internal/predictor"
	"github.com/sells-group/facet-cli/internal/store"
)

const (
	defaultMaxSimilarExamples = 3
	maxExampleAllowedValues   = 8
)

// similarExamples builds worked examples from the curator-confirmed
// values of the product's nearest neighbors in embedding space. Any
// failure degrades to nil: the predictor then uses its built-in
// examples and the run continues.
func (o *Orchestrator) similarExamples(ctx context.Context, product *model.Product, truth *groundtruth.Set) []predictor.Example {
	if o.searcher == nil || truth == nil {
		return nil
	}

	resp, err := o.searcher.SimilarProducts(ctx, product.Key)
	if err != nil {
		if !eris.Is(err, store.ErrNotFound) {
			zap.L().Warn("similarity lookup for worked examples failed",
				zap.String("product", product.Code), zap.Error(err))
		}
		return nil
	}

	var examples []predictor.Example
	for _, match := range resp.Matches {
		if len(examples) >= o.maxExamples {
			break
		}
		entry, ok := firstConfirmedEntry(truth.ByProduct(match.ProductKey))
		if !ok {
			continue
		}

		neighbor, err := o.store.GetProduct(ctx, match.ProductKey)
		if err != nil {
			zap.L().Warn("neighbor product lookup failed",
				zap.String("product_key", match.ProductKey), zap.Error(err))
			continue
		}
		values, err := o.store.ListAllowableValues(ctx, entry.AttributeKey)
		if err != nil {
			zap.L().Warn("allowable values lookup failed",
				zap.String("attribute_key", entry.AttributeKey), zap.Error(err))
			continue
		}

		examples = append(examples, predictor.Example{
			ProductName:   neighbor.Name,
			AttributeName: entry.AttributeName,
			AllowedValues: exampleAllowedValues(values, entry.Value),
			Value:         entry.Value,
			Confidence:    0.95,
			Reasoning:     fmt.Sprintf("Catalog curators confirmed %q for this product.", entry.Value),
		})
	}
	return examples
}

// firstConfirmedEntry picks the first ground truth entry carrying a
// concrete value. No-change entries make poor worked examples.
func firstConfirmedEntry(entries []model.GroundTruthEntry) (model.GroundTruthEntry, bool) {
	for _, e := range entries {
		if e.Value != "" {
			return e, true
		}
	}
	return model.GroundTruthEntry{}, false
}

// exampleAllowedValues renders a deduplicated, capped value list for a
// worked example, always including the confirmed value.
func exampleAllowedValues(values []model.AllowableValue, confirmed string) []string {
	out := make([]string, 0, maxExampleAllowedValues)
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if v.Value == "" || seen[v.Value] {
			continue
		}
		seen[v.Value] = true
		out = append(out, v.Value)
		if len(out) == maxExampleAllowedValues {
			break
		}
	}
	if confirmed != "" && !seen[confirmed] {
		out = append(out, confirmed)
	}
	return out
}
