// Package catalog imports curator-exported CSV files into the store.
package catalog

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/facet-cli/internal/db"
	"github.com/sells-group/facet-cli/internal/model"
	"github.com/sells-group/facet-cli/internal/store"
)

// Importer loads catalog CSV exports. When a pgx pool is supplied the
// large tables (products, gap rows) take the COPY-based bulk path;
// otherwise every row goes through the store's upsert methods.
type Importer struct {
	store store.Store
	pool  db.Pool // nil outside postgres
}

func NewImporter(st store.Store, pool db.Pool) *Importer {
	return &Importer{store: st, pool: pool}
}

// Products imports key,code,name,description rows.
func (im *Importer) Products(ctx context.Context, r io.Reader) (int, error) {
	t, err := readCSV(r, "key", "code", "name")
	if err != nil {
		return 0, eris.Wrap(err, "catalog: products")
	}

	if im.pool != nil {
		rows := make([][]any, len(t.rows))
		for i, row := range t.rows {
			rows[i] = []any{t.get(row, "key"), t.get(row, "code"), t.get(row, "name"), t.get(row, "description")}
		}
		n, err := db.BulkUpsert(ctx, im.pool, db.UpsertConfig{
			Table:        "products",
			Columns:      []string{"key", "code", "name", "description"},
			ConflictKeys: []string{"key"},
		}, rows)
		if err != nil {
			return 0, eris.Wrap(err, "catalog: products")
		}
		return int(n), nil
	}

	for _, row := range t.rows {
		p := model.Product{
			Key:         t.get(row, "key"),
			Code:        t.get(row, "code"),
			Name:        t.get(row, "name"),
			Description: t.get(row, "description"),
		}
		if err := im.store.UpsertProduct(ctx, p); err != nil {
			return 0, eris.Wrapf(err, "catalog: product %s", p.Key)
		}
	}
	return len(t.rows), nil
}

// Categories imports key,code,name rows.
func (im *Importer) Categories(ctx context.Context, r io.Reader) (int, error) {
	t, err := readCSV(r, "key", "code", "name")
	if err != nil {
		return 0, eris.Wrap(err, "catalog: categories")
	}
	for _, row := range t.rows {
		c := model.Category{Key: t.get(row, "key"), Code: t.get(row, "code"), Name: t.get(row, "name")}
		if err := im.store.UpsertCategory(ctx, c); err != nil {
			return 0, eris.Wrapf(err, "catalog: category %s", c.Key)
		}
	}
	return len(t.rows), nil
}

// Memberships imports product_key,category_key assignment rows.
func (im *Importer) Memberships(ctx context.Context, r io.Reader) (int, error) {
	t, err := readCSV(r, "product_key", "category_key")
	if err != nil {
		return 0, eris.Wrap(err, "catalog: memberships")
	}
	for _, row := range t.rows {
		if err := im.store.AssignProductCategory(ctx, t.get(row, "product_key"), t.get(row, "category_key")); err != nil {
			return 0, eris.Wrapf(err, "catalog: membership %s/%s", t.get(row, "product_key"), t.get(row, "category_key"))
		}
	}
	return len(t.rows), nil
}

// Attributes imports key,code,name rows.
func (im *Importer) Attributes(ctx context.Context, r io.Reader) (int, error) {
	t, err := readCSV(r, "key", "code", "name")
	if err != nil {
		return 0, eris.Wrap(err, "catalog: attributes")
	}
	for _, row := range t.rows {
		a := model.Attribute{Key: t.get(row, "key"), Code: t.get(row, "code"), Name: t.get(row, "name")}
		if err := im.store.UpsertAttribute(ctx, a); err != nil {
			return 0, eris.Wrapf(err, "catalog: attribute %s", a.Key)
		}
	}
	return len(t.rows), nil
}

// AllowableValues imports attribute_key,category_key,value,scope rows.
// Rows with unknown scopes are skipped with a warning so one bad export
// line does not abort a multi-thousand-row load.
func (im *Importer) AllowableValues(ctx context.Context, r io.Reader) (int, error) {
	t, err := readCSV(r, "attribute_key", "value", "scope")
	if err != nil {
		return 0, eris.Wrap(err, "catalog: allowable values")
	}
	imported := 0
	for _, row := range t.rows {
		scope, ok := parseScope(t.get(row, "scope"))
		if !ok {
			zap.L().Warn("unknown value scope, skipping row",
				zap.String("scope", t.get(row, "scope")),
				zap.String("attribute", t.get(row, "attribute_key")))
			continue
		}
		av := model.AllowableValue{
			AttributeKey: t.get(row, "attribute_key"),
			CategoryKey:  t.get(row, "category_key"),
			Value:        t.get(row, "value"),
			Scope:        scope,
		}
		if err := im.store.UpsertAllowableValue(ctx, av); err != nil {
			return imported, eris.Wrapf(err, "catalog: allowable value %s=%s", av.AttributeKey, av.Value)
		}
		imported++
	}
	return imported, nil
}

// Recommendations imports key,product_code,attribute_code,action,
// recommended_value,override_value rows.
func (im *Importer) Recommendations(ctx context.Context, r io.Reader) (int, error) {
	t, err := readCSV(r, "key", "product_code", "attribute_code", "action")
	if err != nil {
		return 0, eris.Wrap(err, "catalog: recommendations")
	}
	for _, row := range t.rows {
		rec := model.Recommendation{
			Key:              t.get(row, "key"),
			ProductCode:      t.get(row, "product_code"),
			AttributeCode:    t.get(row, "attribute_code"),
			Action:           t.get(row, "action"),
			RecommendedValue: t.get(row, "recommended_value"),
			OverrideValue:    t.get(row, "override_value"),
		}
		if err := im.store.UpsertRecommendation(ctx, rec); err != nil {
			return 0, eris.Wrapf(err, "catalog: recommendation %s", rec.Key)
		}
	}
	return len(t.rows), nil
}

// GapRows imports product_key,attribute_key,recommendation_id rows.
// With replace set on the postgres path the table is truncated and
// reloaded over the COPY protocol, the fast path for the large exports.
func (im *Importer) GapRows(ctx context.Context, r io.Reader, replace bool) (int, error) {
	t, err := readCSV(r, "product_key", "attribute_key", "recommendation_id")
	if err != nil {
		return 0, eris.Wrap(err, "catalog: gap rows")
	}

	if im.pool != nil && replace {
		if _, err := im.pool.Exec(ctx, "DELETE FROM product_gaps"); err != nil {
			return 0, eris.Wrap(err, "catalog: clear gap rows")
		}
		rows := make([][]any, len(t.rows))
		for i, row := range t.rows {
			rows[i] = []any{t.get(row, "product_key"), t.get(row, "attribute_key"), t.get(row, "recommendation_id")}
		}
		n, err := db.CopyFrom(ctx, im.pool, "product_gaps",
			[]string{"product_key", "attribute_key", "recommendation_id"}, rows)
		if err != nil {
			return 0, eris.Wrap(err, "catalog: gap rows")
		}
		return int(n), nil
	}

	for _, row := range t.rows {
		g := model.GapRow{
			ProductKey:       t.get(row, "product_key"),
			AttributeKey:     t.get(row, "attribute_key"),
			RecommendationID: t.get(row, "recommendation_id"),
		}
		if err := im.store.UpsertGapRow(ctx, g); err != nil {
			return 0, eris.Wrapf(err, "catalog: gap row %s/%s", g.ProductKey, g.AttributeKey)
		}
	}
	return len(t.rows), nil
}

func parseScope(s string) (model.ValueScope, bool) {
	switch model.ValueScope(strings.ToLower(strings.TrimSpace(s))) {
	case model.ScopeCategory:
		return model.ScopeCategory, true
	case model.ScopeEvery:
		return model.ScopeEvery, true
	case model.ScopeAny:
		return model.ScopeAny, true
	}
	return "", false
}

// csvTable is a parsed CSV with header-based column lookup.
type csvTable struct {
	cols map[string]int
	rows [][]string
}

func readCSV(r io.Reader, required ...string) (*csvTable, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, eris.Wrap(err, "read header")
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range required {
		if _, ok := cols[col]; !ok {
			return nil, eris.Errorf("missing required column %q", col)
		}
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "read rows")
	}
	return &csvTable{cols: cols, rows: rows}, nil
}

func (t *csvTable) get(row []string, col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
