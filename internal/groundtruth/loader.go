// Package groundtruth loads human-curated recommendation outcomes and
// exposes them as the answer key predictions are scored against.
package groundtruth

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/facet-cli/internal/model"
	"github.com/sells-group/facet-cli/internal/store"
)

// Loader materializes ground truth entries from stored recommendations.
type Loader struct {
	store store.Store
}

func NewLoader(st store.Store) *Loader {
	return &Loader{store: st}
}

// Set is an in-memory ground truth snapshot with lookup indexes.
type Set struct {
	entries          []model.GroundTruthEntry
	byRecommendation map[string]int
}

// LoadAll resolves every actionable recommendation into a ground truth
// entry. Recommendations referencing unknown products or attributes are
// skipped with a warning rather than failing the whole load: catalog
// exports routinely contain rows for retired SKUs.
func (l *Loader) LoadAll(ctx context.Context) (*Set, error) {
	recs, err := l.store.ListActionableRecommendations(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "groundtruth: list recommendations")
	}

	set := &Set{byRecommendation: make(map[string]int, len(recs))}
	skipped := 0
	for _, rec := range recs {
		value, known := ResolveValue(rec)
		if !known {
			zap.L().Warn("ground truth has unknown action",
				zap.String("recommendation", rec.Key),
				zap.String("action", rec.Action))
			skipped++
			continue
		}

		product, err := l.store.GetProductByCode(ctx, rec.ProductCode)
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				zap.L().Warn("ground truth references unknown product",
					zap.String("recommendation", rec.Key),
					zap.String("product_code", rec.ProductCode))
				skipped++
				continue
			}
			return nil, eris.Wrapf(err, "groundtruth: resolve product %s", rec.ProductCode)
		}

		attr, err := l.store.GetAttributeByCode(ctx, rec.AttributeCode)
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				zap.L().Warn("ground truth references unknown attribute",
					zap.String("recommendation", rec.Key),
					zap.String("attribute_code", rec.AttributeCode))
				skipped++
				continue
			}
			return nil, eris.Wrapf(err, "groundtruth: resolve attribute %s", rec.AttributeCode)
		}

		set.byRecommendation[rec.Key] = len(set.entries)
		set.entries = append(set.entries, model.GroundTruthEntry{
			ProductKey:       product.Key,
			ProductCode:      product.Code,
			AttributeKey:     attr.Key,
			AttributeCode:    attr.Code,
			AttributeName:    attr.Name,
			Value:            value,
			RecommendationID: rec.Key,
			Action:           rec.Action,
		})
	}

	zap.L().Info("ground truth loaded",
		zap.Int("entries", len(set.entries)),
		zap.Int("skipped", skipped))
	return set, nil
}

// ResolveValue maps a recommendation's action to the value a correct
// prediction must match. "Make no change" means the attribute should
// stay empty, an override wins over the system recommendation, and an
// accepted recommendation takes the recommended value as-is. An action
// outside the known set returns ok=false and the record is skipped.
func ResolveValue(rec model.Recommendation) (string, bool) {
	switch rec.Action {
	case model.ActionNoChange:
		return "", true
	case model.ActionOverride:
		return rec.OverrideValue, true
	case model.ActionAccept:
		return rec.RecommendedValue, true
	default:
		return "", false
	}
}

// Entries returns all entries in load order.
func (s *Set) Entries() []model.GroundTruthEntry {
	return s.entries
}

func (s *Set) Len() int {
	return len(s.entries)
}

// ByProduct returns the entries for one product.
func (s *Set) ByProduct(productKey string) []model.GroundTruthEntry {
	var out []model.GroundTruthEntry
	for _, e := range s.entries {
		if e.ProductKey == productKey {
			out = append(out, e)
		}
	}
	return out
}

// ByAttribute returns the entries for one attribute across all products.
func (s *Set) ByAttribute(attributeKey string) []model.GroundTruthEntry {
	var out []model.GroundTruthEntry
	for _, e := range s.entries {
		if e.AttributeKey == attributeKey {
			out = append(out, e)
		}
	}
	return out
}

// ByRecommendation looks up the entry produced by a recommendation key.
func (s *Set) ByRecommendation(key string) (model.GroundTruthEntry, bool) {
	i, ok := s.byRecommendation[key]
	if !ok {
		return model.GroundTruthEntry{}, false
	}
	return s.entries[i], true
}
