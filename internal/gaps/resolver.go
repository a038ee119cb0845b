// Package gaps computes the missing attributes of a product together
// with the universe of values a prediction may choose from.
package gaps

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/facet-cli/internal/model"
	"github.com/sells-group/facet-cli/internal/store"
)

// Resolver resolves a product's attribute gaps against the allowable
// value rules.
type Resolver struct {
	store store.Store
}

func NewResolver(st store.Store) *Resolver {
	return &Resolver{store: st}
}

// Resolve returns one gap per missing attribute of the product. The
// allowed values for each gap are the union of three rule tiers:
// values scoped to a category the product belongs to, values applying
// to every category, and values applying to any category. Gap rows are
// processed in recommendation-id order and duplicates referencing the
// same attribute name are merged, so two runs over the same data
// always resolve identical gaps. A gap whose value union comes up
// empty is dropped: nothing can be predicted without a value universe.
func (r *Resolver) Resolve(ctx context.Context, productKey string) ([]model.ProductAttributeGap, error) {
	if _, err := r.store.GetProduct(ctx, productKey); err != nil {
		return nil, eris.Wrapf(err, "gaps: resolve %s", productKey)
	}

	categories, err := r.store.ListProductCategories(ctx, productKey)
	if err != nil {
		return nil, eris.Wrapf(err, "gaps: categories for %s", productKey)
	}
	memberOf := make(map[string]bool, len(categories))
	for _, c := range categories {
		memberOf[c.Key] = true
	}

	gapRows, err := r.store.ListGapRows(ctx, productKey)
	if err != nil {
		return nil, eris.Wrapf(err, "gaps: gap rows for %s", productKey)
	}

	// Dedup by attribute display name, merging value sets across
	// duplicate rows instead of keeping only the first-seen row.
	byName := make(map[string]int)
	seenAttr := make(map[string]bool)
	var gaps []model.ProductAttributeGap
	var valueSets []map[string]bool

	for _, row := range gapRows {
		idx, seen := byName[row.AttributeName]
		if !seen {
			byName[row.AttributeName] = len(gaps)
			idx = len(gaps)
			gaps = append(gaps, model.ProductAttributeGap{
				AttributeKey:  row.AttributeKey,
				AttributeName: row.AttributeName,
			})
			valueSets = append(valueSets, make(map[string]bool))
		}
		if seenAttr[row.AttributeKey] {
			continue
		}
		seenAttr[row.AttributeKey] = true

		values, err := r.allowedValues(ctx, row.AttributeKey, memberOf)
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			valueSets[idx][v] = true
		}
	}

	var out []model.ProductAttributeGap
	for i, g := range gaps {
		if len(valueSets[i]) == 0 {
			zap.L().Debug("dropping gap with no allowed values",
				zap.String("product", productKey),
				zap.String("attribute", g.AttributeName))
			continue
		}
		g.AllowedValues = make([]string, 0, len(valueSets[i]))
		for v := range valueSets[i] {
			g.AllowedValues = append(g.AllowedValues, v)
		}
		sort.Strings(g.AllowedValues)
		out = append(out, g)
	}
	return out, nil
}

// allowedValues computes the three-tier union for one attribute:
// category-scoped rows matching the product's memberships, plus
// every-category rows, plus any-category rows. The exact rule matters:
// accuracy numbers downstream are sensitive to the value universe.
func (r *Resolver) allowedValues(ctx context.Context, attributeKey string, memberOf map[string]bool) ([]string, error) {
	rows, err := r.store.ListAllowableValues(ctx, attributeKey)
	if err != nil {
		return nil, eris.Wrapf(err, "gaps: allowable values for %s", attributeKey)
	}

	var values []string
	for _, row := range rows {
		switch row.Scope {
		case model.ScopeCategory:
			if memberOf[row.CategoryKey] {
				values = append(values, row.Value)
			}
		case model.ScopeEvery, model.ScopeAny:
			values = append(values, row.Value)
		}
	}
	return values, nil
}
