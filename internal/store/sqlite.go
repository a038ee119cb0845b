package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/facet-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the
// driver for local experimentation without a Postgres instance.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS products (
	key         TEXT PRIMARY KEY,
	code        TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS categories (
	key  TEXT PRIMARY KEY,
	code TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS product_categories (
	product_key  TEXT NOT NULL REFERENCES products(key),
	category_key TEXT NOT NULL REFERENCES categories(key),
	PRIMARY KEY (product_key, category_key)
);

CREATE TABLE IF NOT EXISTS attributes (
	key  TEXT PRIMARY KEY,
	code TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS product_gaps (
	product_key       TEXT NOT NULL REFERENCES products(key),
	attribute_key     TEXT NOT NULL REFERENCES attributes(key),
	recommendation_id TEXT NOT NULL,
	PRIMARY KEY (product_key, attribute_key, recommendation_id)
);

CREATE TABLE IF NOT EXISTS allowable_values (
	attribute_key TEXT NOT NULL REFERENCES attributes(key),
	category_key  TEXT NOT NULL DEFAULT '',
	value         TEXT NOT NULL,
	scope         TEXT NOT NULL,
	PRIMARY KEY (attribute_key, category_key, value, scope)
);

CREATE TABLE IF NOT EXISTS recommendations (
	key               TEXT PRIMARY KEY,
	product_code      TEXT NOT NULL,
	attribute_code    TEXT NOT NULL,
	action            TEXT NOT NULL,
	recommended_value TEXT NOT NULL DEFAULT '',
	override_value    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS experiments (
	key                   TEXT PRIMARY KEY,
	description           TEXT NOT NULL DEFAULT '',
	metadata              TEXT,
	total_predictions     INTEGER NOT NULL DEFAULT 0,
	total_products        INTEGER NOT NULL DEFAULT 0,
	validated_predictions INTEGER NOT NULL DEFAULT 0,
	correct_predictions   INTEGER NOT NULL DEFAULT 0,
	accuracy              REAL NOT NULL DEFAULT 0,
	avg_prediction_ms     REAL,
	created_at            DATETIME NOT NULL,
	started_at            DATETIME NOT NULL,
	completed_at          DATETIME
);

CREATE TABLE IF NOT EXISTS prediction_results (
	key                TEXT PRIMARY KEY,
	experiment_key     TEXT NOT NULL REFERENCES experiments(key),
	product_key        TEXT NOT NULL REFERENCES products(key),
	attribute_key      TEXT NOT NULL REFERENCES attributes(key),
	value              TEXT NOT NULL DEFAULT '',
	confidence         REAL NOT NULL DEFAULT 0,
	reasoning          TEXT NOT NULL DEFAULT '',
	recommendation_key TEXT,
	correct            BOOLEAN,
	actual_value       TEXT,
	created_at         DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS product_embeddings (
	product_key TEXT PRIMARY KEY REFERENCES products(key),
	vector      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recommendations_codes ON recommendations(product_code, attribute_code);
CREATE INDEX IF NOT EXISTS idx_prediction_results_experiment ON prediction_results(experiment_key);
CREATE INDEX IF NOT EXISTS idx_product_gaps_product ON product_gaps(product_key);
CREATE INDEX IF NOT EXISTS idx_allowable_values_attribute ON allowable_values(attribute_key);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func checkRowsAffected(res sql.Result, entity, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", entity, key)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: %s %s", entity, key)
	}
	return nil
}

// --- Catalog reads ---

func (s *SQLiteStore) GetProduct(ctx context.Context, key string) (*model.Product, error) {
	var p model.Product
	err := s.db.QueryRowContext(ctx,
		`SELECT key, code, name, description FROM products WHERE key = ?`, key,
	).Scan(&p.Key, &p.Code, &p.Name, &p.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: product %s", key)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get product %s", key)
	}
	return &p, nil
}

func (s *SQLiteStore) GetProductByCode(ctx context.Context, code string) (*model.Product, error) {
	var p model.Product
	err := s.db.QueryRowContext(ctx,
		`SELECT key, code, name, description FROM products WHERE code = ?`, code,
	).Scan(&p.Key, &p.Code, &p.Name, &p.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: product code %s", code)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get product by code %s", code)
	}
	return &p, nil
}

func (s *SQLiteStore) ListProducts(ctx context.Context, limit int) ([]model.Product, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, code, name, description FROM products ORDER BY code LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list products")
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.Key, &p.Code, &p.Name, &p.Description); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan product")
		}
		products = append(products, p)
	}
	return products, eris.Wrap(rows.Err(), "sqlite: product rows")
}

func (s *SQLiteStore) ListProductCategories(ctx context.Context, productKey string) ([]model.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.key, c.code, c.name
		 FROM product_categories pc
		 JOIN categories c ON c.key = pc.category_key
		 WHERE pc.product_key = ?
		 ORDER BY c.code`,
		productKey,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list categories for %s", productKey)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.Key, &c.Code, &c.Name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan category")
		}
		categories = append(categories, c)
	}
	return categories, eris.Wrap(rows.Err(), "sqlite: category rows")
}

func (s *SQLiteStore) GetAttributeByCode(ctx context.Context, code string) (*model.Attribute, error) {
	var a model.Attribute
	err := s.db.QueryRowContext(ctx,
		`SELECT key, code, name FROM attributes WHERE code = ?`, code,
	).Scan(&a.Key, &a.Code, &a.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: attribute code %s", code)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get attribute by code %s", code)
	}
	return &a, nil
}

func (s *SQLiteStore) GetAttributeByName(ctx context.Context, name string) (*model.Attribute, error) {
	var a model.Attribute
	err := s.db.QueryRowContext(ctx,
		`SELECT key, code, name FROM attributes WHERE name = ?`, name,
	).Scan(&a.Key, &a.Code, &a.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: attribute name %s", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get attribute by name %s", name)
	}
	return &a, nil
}

func (s *SQLiteStore) ListGapRows(ctx context.Context, productKey string) ([]model.GapRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT g.product_key, g.attribute_key, a.name, g.recommendation_id
		 FROM product_gaps g
		 JOIN attributes a ON a.key = g.attribute_key
		 WHERE g.product_key = ?
		 ORDER BY g.recommendation_id`,
		productKey,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list gap rows for %s", productKey)
	}
	defer rows.Close()

	var gaps []model.GapRow
	for rows.Next() {
		var g model.GapRow
		if err := rows.Scan(&g.ProductKey, &g.AttributeKey, &g.AttributeName, &g.RecommendationID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan gap row")
		}
		gaps = append(gaps, g)
	}
	return gaps, eris.Wrap(rows.Err(), "sqlite: gap rows")
}

func (s *SQLiteStore) ListAllowableValues(ctx context.Context, attributeKey string) ([]model.AllowableValue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT attribute_key, category_key, value, scope FROM allowable_values WHERE attribute_key = ?`,
		attributeKey,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list allowable values for %s", attributeKey)
	}
	defer rows.Close()

	var values []model.AllowableValue
	for rows.Next() {
		var v model.AllowableValue
		if err := rows.Scan(&v.AttributeKey, &v.CategoryKey, &v.Value, &v.Scope); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan allowable value")
		}
		values = append(values, v)
	}
	return values, eris.Wrap(rows.Err(), "sqlite: allowable value rows")
}

// --- Catalog ingest ---

func (s *SQLiteStore) UpsertProduct(ctx context.Context, p model.Product) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (key, code, name, description) VALUES (?, ?, ?, ?)
		 ON CONFLICT (code) DO UPDATE SET name = excluded.name, description = excluded.description`,
		p.Key, p.Code, p.Name, p.Description,
	)
	return eris.Wrapf(err, "sqlite: upsert product %s", p.Code)
}

func (s *SQLiteStore) UpsertCategory(ctx context.Context, c model.Category) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (key, code, name) VALUES (?, ?, ?)
		 ON CONFLICT (code) DO UPDATE SET name = excluded.name`,
		c.Key, c.Code, c.Name,
	)
	return eris.Wrapf(err, "sqlite: upsert category %s", c.Code)
}

func (s *SQLiteStore) AssignProductCategory(ctx context.Context, productKey, categoryKey string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO product_categories (product_key, category_key) VALUES (?, ?)
		 ON CONFLICT DO NOTHING`,
		productKey, categoryKey,
	)
	return eris.Wrapf(err, "sqlite: assign category %s to %s", categoryKey, productKey)
}

func (s *SQLiteStore) UpsertAttribute(ctx context.Context, a model.Attribute) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attributes (key, code, name) VALUES (?, ?, ?)
		 ON CONFLICT (code) DO UPDATE SET name = excluded.name`,
		a.Key, a.Code, a.Name,
	)
	return eris.Wrapf(err, "sqlite: upsert attribute %s", a.Code)
}

func (s *SQLiteStore) UpsertAllowableValue(ctx context.Context, v model.AllowableValue) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO allowable_values (attribute_key, category_key, value, scope) VALUES (?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		v.AttributeKey, v.CategoryKey, v.Value, string(v.Scope),
	)
	return eris.Wrapf(err, "sqlite: upsert allowable value %q", v.Value)
}

func (s *SQLiteStore) UpsertRecommendation(ctx context.Context, r model.Recommendation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recommendations (key, product_code, attribute_code, action, recommended_value, override_value)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET action = excluded.action,
			recommended_value = excluded.recommended_value,
			override_value = excluded.override_value`,
		r.Key, r.ProductCode, r.AttributeCode, r.Action, r.RecommendedValue, r.OverrideValue,
	)
	return eris.Wrapf(err, "sqlite: upsert recommendation %s", r.Key)
}

func (s *SQLiteStore) UpsertGapRow(ctx context.Context, g model.GapRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO product_gaps (product_key, attribute_key, recommendation_id) VALUES (?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		g.ProductKey, g.AttributeKey, g.RecommendationID,
	)
	return eris.Wrapf(err, "sqlite: upsert gap row %s/%s", g.ProductKey, g.AttributeKey)
}

// --- Recommendations ---

func (s *SQLiteStore) ListActionableRecommendations(ctx context.Context) ([]model.Recommendation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, product_code, attribute_code, action, recommended_value, override_value
		 FROM recommendations WHERE action <> ? ORDER BY key`,
		model.ActionNone,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list recommendations")
	}
	defer rows.Close()

	var recs []model.Recommendation
	for rows.Next() {
		var r model.Recommendation
		if err := rows.Scan(&r.Key, &r.ProductCode, &r.AttributeCode, &r.Action, &r.RecommendedValue, &r.OverrideValue); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan recommendation")
		}
		recs = append(recs, r)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: recommendation rows")
}

func (s *SQLiteStore) FindRecommendation(ctx context.Context, productKey, attributeKey string) (*model.Recommendation, error) {
	var r model.Recommendation
	err := s.db.QueryRowContext(ctx,
		`SELECT r.key, r.product_code, r.attribute_code, r.action, r.recommended_value, r.override_value
		 FROM recommendations r
		 JOIN products p ON p.code = r.product_code
		 JOIN attributes a ON a.code = r.attribute_code
		 WHERE p.key = ? AND a.key = ? AND r.action <> ?
		 ORDER BY r.key LIMIT 1`,
		productKey, attributeKey, model.ActionNone,
	).Scan(&r.Key, &r.ProductCode, &r.AttributeCode, &r.Action, &r.RecommendedValue, &r.OverrideValue)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: recommendation for %s/%s", productKey, attributeKey)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find recommendation for %s/%s", productKey, attributeKey)
	}
	return &r, nil
}

// --- Experiments ---

func (s *SQLiteStore) CreateExperiment(ctx context.Context, exp *model.Experiment) error {
	metaJSON, err := json.Marshal(exp.Metadata)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal experiment metadata")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO experiments (key, description, metadata, created_at, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		exp.Key, exp.Description, string(metaJSON), exp.CreatedAt, exp.StartedAt,
	)
	return eris.Wrapf(err, "sqlite: insert experiment %s", exp.Key)
}

func (s *SQLiteStore) GetExperiment(ctx context.Context, key string) (*model.Experiment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, description, metadata, total_predictions, total_products,
			validated_predictions, correct_predictions, accuracy, avg_prediction_ms,
			created_at, started_at, completed_at
		 FROM experiments WHERE key = ?`, key,
	)
	e, err := scanExperiment(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: experiment %s", key)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get experiment %s", key)
	}
	return e, nil
}

func scanExperiment(scan func(...any) error) (*model.Experiment, error) {
	var e model.Experiment
	var metaJSON sql.NullString
	if err := scan(&e.Key, &e.Description, &metaJSON, &e.TotalPredictions, &e.TotalProducts,
		&e.ValidatedPredictions, &e.CorrectPredictions, &e.Accuracy, &e.AvgPredictionMs,
		&e.CreatedAt, &e.StartedAt, &e.CompletedAt); err != nil {
		return nil, err
	}
	if metaJSON.Valid && metaJSON.String != "" && metaJSON.String != "null" {
		if err := json.Unmarshal([]byte(metaJSON.String), &e.Metadata); err != nil {
			return nil, eris.Wrap(err, "unmarshal experiment metadata")
		}
	}
	return &e, nil
}

func (s *SQLiteStore) ListExperiments(ctx context.Context, limit int) ([]model.Experiment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, description, metadata, total_predictions, total_products,
			validated_predictions, correct_predictions, accuracy, avg_prediction_ms,
			created_at, started_at, completed_at
		 FROM experiments ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list experiments")
	}
	defer rows.Close()

	var exps []model.Experiment
	for rows.Next() {
		e, err := scanExperiment(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan experiment")
		}
		exps = append(exps, *e)
	}
	return exps, eris.Wrap(rows.Err(), "sqlite: experiment rows")
}

func (s *SQLiteStore) UpdateExperimentMetrics(ctx context.Context, key string, m model.ExperimentMetrics) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE experiments SET total_predictions = ?, total_products = ?,
			validated_predictions = ?, correct_predictions = ?, accuracy = ?,
			avg_prediction_ms = ?
		 WHERE key = ?`,
		m.TotalPredictions, m.TotalProducts, m.ValidatedPredictions, m.CorrectPredictions,
		m.Accuracy, m.AvgPredictionMs, key,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update experiment metrics %s", key)
	}
	return checkRowsAffected(res, "experiment", key)
}

func (s *SQLiteStore) CompleteExperiment(ctx context.Context, key string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE experiments SET completed_at = ? WHERE key = ? AND completed_at IS NULL`,
		at, key,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete experiment %s", key)
	}
	return checkRowsAffected(res, "experiment", key)
}

// --- Predictions ---

func (s *SQLiteStore) StorePredictions(ctx context.Context, results []model.PredictionResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin prediction batch")
	}
	defer tx.Rollback()

	for _, r := range results {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO prediction_results
				(key, experiment_key, product_key, attribute_key, value, confidence, reasoning, recommendation_key, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.Key, r.ExperimentKey, r.ProductKey, r.AttributeKey, r.Value, r.Confidence,
			r.Reasoning, r.RecommendationKey, r.CreatedAt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert prediction %s", r.Key)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit prediction batch")
}

func (s *SQLiteStore) ListPredictions(ctx context.Context, experimentKey string) ([]model.PredictionResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, experiment_key, product_key, attribute_key, value, confidence,
			reasoning, recommendation_key, correct, actual_value, created_at
		 FROM prediction_results WHERE experiment_key = ? ORDER BY created_at, key`,
		experimentKey,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list predictions for %s", experimentKey)
	}
	defer rows.Close()

	var results []model.PredictionResult
	for rows.Next() {
		var r model.PredictionResult
		if err := rows.Scan(&r.Key, &r.ExperimentKey, &r.ProductKey, &r.AttributeKey, &r.Value,
			&r.Confidence, &r.Reasoning, &r.RecommendationKey, &r.Correct, &r.ActualValue, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan prediction")
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: prediction rows")
}

func (s *SQLiteStore) MarkValidated(ctx context.Context, predictionKey string, correct bool, actualValue string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE prediction_results SET correct = ?, actual_value = ? WHERE key = ?`,
		correct, actualValue, predictionKey,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark validated %s", predictionKey)
	}
	return checkRowsAffected(res, "prediction", predictionKey)
}

// --- Embeddings ---

func (s *SQLiteStore) UpsertProductEmbedding(ctx context.Context, productKey string, vector []float32) error {
	vecJSON, err := json.Marshal(vector)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal embedding")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO product_embeddings (product_key, vector) VALUES (?, ?)
		 ON CONFLICT (product_key) DO UPDATE SET vector = excluded.vector`,
		productKey, string(vecJSON),
	)
	return eris.Wrapf(err, "sqlite: upsert embedding %s", productKey)
}

func (s *SQLiteStore) ListProductEmbeddings(ctx context.Context) ([]model.ProductEmbedding, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT product_key, vector FROM product_embeddings`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list embeddings")
	}
	defer rows.Close()

	var embeddings []model.ProductEmbedding
	for rows.Next() {
		var e model.ProductEmbedding
		var vecJSON string
		if err := rows.Scan(&e.ProductKey, &vecJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan embedding")
		}
		if err := json.Unmarshal([]byte(vecJSON), &e.Vector); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal embedding")
		}
		embeddings = append(embeddings, e)
	}
	return embeddings, eris.Wrap(rows.Err(), "sqlite: embedding rows")
}
