package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/facet-cli/internal/db"
	"github.com/sells-group/facet-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (bulk catalog import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS products (
	key         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	code        TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS categories (
	key  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	code TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS product_categories (
	product_key  TEXT NOT NULL REFERENCES products(key),
	category_key TEXT NOT NULL REFERENCES categories(key),
	PRIMARY KEY (product_key, category_key)
);

CREATE TABLE IF NOT EXISTS attributes (
	key  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
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
	metadata              JSONB,
	total_predictions     INTEGER NOT NULL DEFAULT 0,
	total_products        INTEGER NOT NULL DEFAULT 0,
	validated_predictions INTEGER NOT NULL DEFAULT 0,
	correct_predictions   INTEGER NOT NULL DEFAULT 0,
	accuracy              DOUBLE PRECISION NOT NULL DEFAULT 0,
	avg_prediction_ms     DOUBLE PRECISION,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at          TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS prediction_results (
	key                TEXT PRIMARY KEY,
	experiment_key     TEXT NOT NULL REFERENCES experiments(key),
	product_key        TEXT NOT NULL REFERENCES products(key),
	attribute_key      TEXT NOT NULL REFERENCES attributes(key),
	value              TEXT NOT NULL DEFAULT '',
	confidence         DOUBLE PRECISION NOT NULL DEFAULT 0,
	reasoning          TEXT NOT NULL DEFAULT '',
	recommendation_key TEXT,
	correct            BOOLEAN,
	actual_value       TEXT,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS product_embeddings (
	product_key TEXT PRIMARY KEY REFERENCES products(key),
	vector      JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recommendations_codes ON recommendations(product_code, attribute_code);
CREATE INDEX IF NOT EXISTS idx_prediction_results_experiment ON prediction_results(experiment_key);
CREATE INDEX IF NOT EXISTS idx_product_gaps_product ON product_gaps(product_key);
CREATE INDEX IF NOT EXISTS idx_allowable_values_attribute ON allowable_values(attribute_key);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Catalog reads ---

func (s *PostgresStore) GetProduct(ctx context.Context, key string) (*model.Product, error) {
	var p model.Product
	err := s.pool.QueryRow(ctx,
		`SELECT key, code, name, description FROM products WHERE key = $1`, key,
	).Scan(&p.Key, &p.Code, &p.Name, &p.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: product %s", key)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get product %s", key)
	}
	return &p, nil
}

func (s *PostgresStore) GetProductByCode(ctx context.Context, code string) (*model.Product, error) {
	var p model.Product
	err := s.pool.QueryRow(ctx,
		`SELECT key, code, name, description FROM products WHERE code = $1`, code,
	).Scan(&p.Key, &p.Code, &p.Name, &p.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: product code %s", code)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get product by code %s", code)
	}
	return &p, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context, limit int) ([]model.Product, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx,
		`SELECT key, code, name, description FROM products ORDER BY code LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list products")
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.Key, &p.Code, &p.Name, &p.Description); err != nil {
			return nil, eris.Wrap(err, "postgres: scan product")
		}
		products = append(products, p)
	}
	return products, eris.Wrap(rows.Err(), "postgres: list products rows")
}

func (s *PostgresStore) ListProductCategories(ctx context.Context, productKey string) ([]model.Category, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.key, c.code, c.name
		 FROM product_categories pc
		 JOIN categories c ON c.key = pc.category_key
		 WHERE pc.product_key = $1
		 ORDER BY c.code`,
		productKey,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list categories for %s", productKey)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.Key, &c.Code, &c.Name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan category")
		}
		categories = append(categories, c)
	}
	return categories, eris.Wrap(rows.Err(), "postgres: category rows")
}

func (s *PostgresStore) GetAttributeByCode(ctx context.Context, code string) (*model.Attribute, error) {
	var a model.Attribute
	err := s.pool.QueryRow(ctx,
		`SELECT key, code, name FROM attributes WHERE code = $1`, code,
	).Scan(&a.Key, &a.Code, &a.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: attribute code %s", code)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get attribute by code %s", code)
	}
	return &a, nil
}

func (s *PostgresStore) GetAttributeByName(ctx context.Context, name string) (*model.Attribute, error) {
	var a model.Attribute
	err := s.pool.QueryRow(ctx,
		`SELECT key, code, name FROM attributes WHERE name = $1`, name,
	).Scan(&a.Key, &a.Code, &a.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: attribute name %s", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get attribute by name %s", name)
	}
	return &a, nil
}

// ListGapRows returns the raw missing-attribute rows for a product,
// ordered by recommendation id so gap dedup is stable across runs.
func (s *PostgresStore) ListGapRows(ctx context.Context, productKey string) ([]model.GapRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT g.product_key, g.attribute_key, a.name, g.recommendation_id
		 FROM product_gaps g
		 JOIN attributes a ON a.key = g.attribute_key
		 WHERE g.product_key = $1
		 ORDER BY g.recommendation_id`,
		productKey,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list gap rows for %s", productKey)
	}
	defer rows.Close()

	var gaps []model.GapRow
	for rows.Next() {
		var g model.GapRow
		if err := rows.Scan(&g.ProductKey, &g.AttributeKey, &g.AttributeName, &g.RecommendationID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan gap row")
		}
		gaps = append(gaps, g)
	}
	return gaps, eris.Wrap(rows.Err(), "postgres: gap rows")
}

func (s *PostgresStore) ListAllowableValues(ctx context.Context, attributeKey string) ([]model.AllowableValue, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT attribute_key, category_key, value, scope FROM allowable_values WHERE attribute_key = $1`,
		attributeKey,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list allowable values for %s", attributeKey)
	}
	defer rows.Close()

	var values []model.AllowableValue
	for rows.Next() {
		var v model.AllowableValue
		if err := rows.Scan(&v.AttributeKey, &v.CategoryKey, &v.Value, &v.Scope); err != nil {
			return nil, eris.Wrap(err, "postgres: scan allowable value")
		}
		values = append(values, v)
	}
	return values, eris.Wrap(rows.Err(), "postgres: allowable value rows")
}

// --- Catalog ingest ---

func (s *PostgresStore) UpsertProduct(ctx context.Context, p model.Product) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO products (key, code, name, description) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description`,
		p.Key, p.Code, p.Name, p.Description,
	)
	return eris.Wrapf(err, "postgres: upsert product %s", p.Code)
}

func (s *PostgresStore) UpsertCategory(ctx context.Context, c model.Category) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO categories (key, code, name) VALUES ($1, $2, $3)
		 ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name`,
		c.Key, c.Code, c.Name,
	)
	return eris.Wrapf(err, "postgres: upsert category %s", c.Code)
}

func (s *PostgresStore) AssignProductCategory(ctx context.Context, productKey, categoryKey string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO product_categories (product_key, category_key) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		productKey, categoryKey,
	)
	return eris.Wrapf(err, "postgres: assign category %s to %s", categoryKey, productKey)
}

func (s *PostgresStore) UpsertAttribute(ctx context.Context, a model.Attribute) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO attributes (key, code, name) VALUES ($1, $2, $3)
		 ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name`,
		a.Key, a.Code, a.Name,
	)
	return eris.Wrapf(err, "postgres: upsert attribute %s", a.Code)
}

func (s *PostgresStore) UpsertAllowableValue(ctx context.Context, v model.AllowableValue) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO allowable_values (attribute_key, category_key, value, scope) VALUES ($1, $2, $3, $4)
		 ON CONFLICT DO NOTHING`,
		v.AttributeKey, v.CategoryKey, v.Value, string(v.Scope),
	)
	return eris.Wrapf(err, "postgres: upsert allowable value %q", v.Value)
}

func (s *PostgresStore) UpsertRecommendation(ctx context.Context, r model.Recommendation) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO recommendations (key, product_code, attribute_code, action, recommended_value, override_value)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (key) DO UPDATE SET action = EXCLUDED.action,
			recommended_value = EXCLUDED.recommended_value,
			override_value = EXCLUDED.override_value`,
		r.Key, r.ProductCode, r.AttributeCode, r.Action, r.RecommendedValue, r.OverrideValue,
	)
	return eris.Wrapf(err, "postgres: upsert recommendation %s", r.Key)
}

func (s *PostgresStore) UpsertGapRow(ctx context.Context, g model.GapRow) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO product_gaps (product_key, attribute_key, recommendation_id) VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`,
		g.ProductKey, g.AttributeKey, g.RecommendationID,
	)
	return eris.Wrapf(err, "postgres: upsert gap row %s/%s", g.ProductKey, g.AttributeKey)
}

// --- Recommendations ---

func (s *PostgresStore) ListActionableRecommendations(ctx context.Context) ([]model.Recommendation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, product_code, attribute_code, action, recommended_value, override_value
		 FROM recommendations WHERE action <> $1 ORDER BY key`,
		model.ActionNone,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list recommendations")
	}
	defer rows.Close()

	var recs []model.Recommendation
	for rows.Next() {
		var r model.Recommendation
		if err := rows.Scan(&r.Key, &r.ProductCode, &r.AttributeCode, &r.Action, &r.RecommendedValue, &r.OverrideValue); err != nil {
			return nil, eris.Wrap(err, "postgres: scan recommendation")
		}
		recs = append(recs, r)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: recommendation rows")
}

func (s *PostgresStore) FindRecommendation(ctx context.Context, productKey, attributeKey string) (*model.Recommendation, error) {
	var r model.Recommendation
	err := s.pool.QueryRow(ctx,
		`SELECT r.key, r.product_code, r.attribute_code, r.action, r.recommended_value, r.override_value
		 FROM recommendations r
		 JOIN products p ON p.code = r.product_code
		 JOIN attributes a ON a.code = r.attribute_code
		 WHERE p.key = $1 AND a.key = $2 AND r.action <> $3
		 ORDER BY r.key LIMIT 1`,
		productKey, attributeKey, model.ActionNone,
	).Scan(&r.Key, &r.ProductCode, &r.AttributeCode, &r.Action, &r.RecommendedValue, &r.OverrideValue)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: recommendation for %s/%s", productKey, attributeKey)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find recommendation for %s/%s", productKey, attributeKey)
	}
	return &r, nil
}

// --- Experiments ---

func (s *PostgresStore) CreateExperiment(ctx context.Context, exp *model.Experiment) error {
	metaJSON, err := json.Marshal(exp.Metadata)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal experiment metadata")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO experiments (key, description, metadata, created_at, started_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		exp.Key, exp.Description, metaJSON, exp.CreatedAt, exp.StartedAt,
	)
	return eris.Wrapf(err, "postgres: insert experiment %s", exp.Key)
}

func (s *PostgresStore) GetExperiment(ctx context.Context, key string) (*model.Experiment, error) {
	var e model.Experiment
	var metaJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT key, description, metadata, total_predictions, total_products,
			validated_predictions, correct_predictions, accuracy, avg_prediction_ms,
			created_at, started_at, completed_at
		 FROM experiments WHERE key = $1`, key,
	).Scan(&e.Key, &e.Description, &metaJSON, &e.TotalPredictions, &e.TotalProducts,
		&e.ValidatedPredictions, &e.CorrectPredictions, &e.Accuracy, &e.AvgPredictionMs,
		&e.CreatedAt, &e.StartedAt, &e.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: experiment %s", key)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get experiment %s", key)
	}

	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &e.Metadata); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal experiment metadata")
		}
	}
	return &e, nil
}

func (s *PostgresStore) ListExperiments(ctx context.Context, limit int) ([]model.Experiment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT key, description, metadata, total_predictions, total_products,
			validated_predictions, correct_predictions, accuracy, avg_prediction_ms,
			created_at, started_at, completed_at
		 FROM experiments ORDER BY created_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list experiments")
	}
	defer rows.Close()

	var exps []model.Experiment
	for rows.Next() {
		var e model.Experiment
		var metaJSON []byte
		if err := rows.Scan(&e.Key, &e.Description, &metaJSON, &e.TotalPredictions, &e.TotalProducts,
			&e.ValidatedPredictions, &e.CorrectPredictions, &e.Accuracy, &e.AvgPredictionMs,
			&e.CreatedAt, &e.StartedAt, &e.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan experiment")
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &e.Metadata); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal experiment metadata")
			}
		}
		exps = append(exps, e)
	}
	return exps, eris.Wrap(rows.Err(), "postgres: experiment rows")
}

func (s *PostgresStore) UpdateExperimentMetrics(ctx context.Context, key string, m model.ExperimentMetrics) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE experiments SET total_predictions = $1, total_products = $2,
			validated_predictions = $3, correct_predictions = $4, accuracy = $5,
			avg_prediction_ms = $6
		 WHERE key = $7`,
		m.TotalPredictions, m.TotalProducts, m.ValidatedPredictions, m.CorrectPredictions,
		m.Accuracy, m.AvgPredictionMs, key,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update experiment metrics %s", key)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: experiment %s", key)
	}
	return nil
}

func (s *PostgresStore) CompleteExperiment(ctx context.Context, key string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE experiments SET completed_at = $1 WHERE key = $2 AND completed_at IS NULL`,
		at, key,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete experiment %s", key)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: experiment %s not found or already completed", key)
	}
	return nil
}

// --- Predictions ---

func (s *PostgresStore) StorePredictions(ctx context.Context, results []model.PredictionResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin prediction batch")
	}
	defer tx.Rollback(ctx)

	for _, r := range results {
		if _, err := tx.Exec(ctx,
			`INSERT INTO prediction_results
				(key, experiment_key, product_key, attribute_key, value, confidence, reasoning, recommendation_key, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			r.Key, r.ExperimentKey, r.ProductKey, r.AttributeKey, r.Value, r.Confidence,
			r.Reasoning, r.RecommendationKey, r.CreatedAt,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert prediction %s", r.Key)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit prediction batch")
}

func (s *PostgresStore) ListPredictions(ctx context.Context, experimentKey string) ([]model.PredictionResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, experiment_key, product_key, attribute_key, value, confidence,
			reasoning, recommendation_key, correct, actual_value, created_at
		 FROM prediction_results WHERE experiment_key = $1 ORDER BY created_at, key`,
		experimentKey,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list predictions for %s", experimentKey)
	}
	defer rows.Close()

	var results []model.PredictionResult
	for rows.Next() {
		var r model.PredictionResult
		if err := rows.Scan(&r.Key, &r.ExperimentKey, &r.ProductKey, &r.AttributeKey, &r.Value,
			&r.Confidence, &r.Reasoning, &r.RecommendationKey, &r.Correct, &r.ActualValue, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan prediction")
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "postgres: prediction rows")
}

func (s *PostgresStore) MarkValidated(ctx context.Context, predictionKey string, correct bool, actualValue string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE prediction_results SET correct = $1, actual_value = $2 WHERE key = $3`,
		correct, actualValue, predictionKey,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark validated %s", predictionKey)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: prediction %s", predictionKey)
	}
	return nil
}

// --- Embeddings ---

func (s *PostgresStore) UpsertProductEmbedding(ctx context.Context, productKey string, vector []float32) error {
	vecJSON, err := json.Marshal(vector)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal embedding")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO product_embeddings (product_key, vector) VALUES ($1, $2)
		 ON CONFLICT (product_key) DO UPDATE SET vector = EXCLUDED.vector`,
		productKey, vecJSON,
	)
	return eris.Wrapf(err, "postgres: upsert embedding %s", productKey)
}

func (s *PostgresStore) ListProductEmbeddings(ctx context.Context) ([]model.ProductEmbedding, error) {
	rows, err := s.pool.Query(ctx, `SELECT product_key, vector FROM product_embeddings`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list embeddings")
	}
	defer rows.Close()

	var embeddings []model.ProductEmbedding
	for rows.Next() {
		var e model.ProductEmbedding
		var vecJSON []byte
		if err := rows.Scan(&e.ProductKey, &vecJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan embedding")
		}
		if err := json.Unmarshal(vecJSON, &e.Vector); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal embedding")
		}
		embeddings = append(embeddings, e)
	}
	return embeddings, eris.Wrap(rows.Err(), "postgres: embedding rows")
}
