package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/facet-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetProduct_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT key, code, name, description FROM products WHERE key = \$1`).
		WithArgs("missing-key").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetProduct(context.Background(), "missing-key")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProductByCode(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT key, code, name, description FROM products WHERE code = \$1`).
		WithArgs("DESK-100").
		WillReturnRows(pgxmock.NewRows([]string{"key", "code", "name", "description"}).
			AddRow("p1", "DESK-100", "Pine Desk", "A solid pine desk"))

	p, err := s.GetProductByCode(context.Background(), "DESK-100")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.Key)
	assert.Equal(t, "Pine Desk", p.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListGapRows_OrderedByRecommendation(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM product_gaps g`).
		WithArgs("p1").
		WillReturnRows(pgxmock.NewRows([]string{"product_key", "attribute_key", "name", "recommendation_id"}).
			AddRow("p1", "a1", "Material", "rec-001").
			AddRow("p1", "a1", "Material", "rec-002").
			AddRow("p1", "a2", "Color", "rec-003"))

	gaps, err := s.ListGapRows(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, gaps, 3)
	assert.Equal(t, "rec-001", gaps[0].RecommendationID)
	assert.Equal(t, "Material", gaps[0].AttributeName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertProduct(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO products .* ON CONFLICT`).
		WithArgs("p1", "DESK-100", "Pine Desk", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertProduct(context.Background(), model.Product{
		Key: "p1", Code: "DESK-100", Name: "Pine Desk",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindRecommendation_FiltersNoAction(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM recommendations r`).
		WithArgs("p1", "a1", model.ActionNone).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.FindRecommendation(context.Background(), "p1", "a1")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateAndGetExperiment(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectExec(`INSERT INTO experiments`).
		WithArgs("exp-1", "baseline run", pgxmock.AnyArg(), now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.CreateExperiment(context.Background(), &model.Experiment{
		Key:         "exp-1",
		Description: "baseline run",
		Metadata:    map[string]any{"model": "sonnet"},
		CreatedAt:   now,
		StartedAt:   now,
	})
	require.NoError(t, err)

	mock.ExpectQuery(`FROM experiments WHERE key = \$1`).
		WithArgs("exp-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"key", "description", "metadata", "total_predictions", "total_products",
			"validated_predictions", "correct_predictions", "accuracy", "avg_prediction_ms",
			"created_at", "started_at", "completed_at",
		}).AddRow("exp-1", "baseline run", []byte(`{"model":"sonnet"}`), 10, 4, 8, 6, 0.75, nil, now, now, nil))

	exp, err := s.GetExperiment(context.Background(), "exp-1")
	require.NoError(t, err)
	assert.Equal(t, 0.75, exp.Accuracy)
	assert.Equal(t, "sonnet", exp.Metadata["model"])
	assert.Nil(t, exp.CompletedAt)
	assert.False(t, exp.Completed())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteExperiment_AlreadyCompleted(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectExec(`UPDATE experiments SET completed_at`).
		WithArgs(now, "exp-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteExperiment(context.Background(), "exp-1", now)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_StorePredictions_SingleTransaction(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO prediction_results`).
		WithArgs("pr-1", "exp-1", "p1", "a1", "Pine", 0.92, "wood grain visible", (*string)(nil), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO prediction_results`).
		WithArgs("pr-2", "exp-1", "p1", "a2", "Brown", 0.85, "typical finish", (*string)(nil), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	results := []model.PredictionResult{
		{Key: "pr-1", ExperimentKey: "exp-1", ProductKey: "p1", AttributeKey: "a1", Value: "Pine", Confidence: 0.92, Reasoning: "wood grain visible", CreatedAt: now},
		{Key: "pr-2", ExperimentKey: "exp-1", ProductKey: "p1", AttributeKey: "a2", Value: "Brown", Confidence: 0.85, Reasoning: "typical finish", CreatedAt: now},
	}
	err := s.StorePredictions(context.Background(), results)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_StorePredictions_Empty(t *testing.T) {
	s, _ := newMockPostgresStore(t)
	assert.NoError(t, s.StorePredictions(context.Background(), nil))
}

func TestPostgresStore_StorePredictions_RollbackOnError(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO prediction_results`).
		WithArgs("pr-1", "exp-1", "p1", "a1", "Pine", 0.92, "", (*string)(nil), now).
		WillReturnError(pgx.ErrTxClosed)
	mock.ExpectRollback()

	err := s.StorePredictions(context.Background(), []model.PredictionResult{
		{Key: "pr-1", ExperimentKey: "exp-1", ProductKey: "p1", AttributeKey: "a1", Value: "Pine", Confidence: 0.92, CreatedAt: now},
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkValidated(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE prediction_results SET correct`).
		WithArgs(true, "Pine", "pr-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.MarkValidated(context.Background(), "pr-1", true, "Pine")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertProductEmbedding(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO product_embeddings`).
		WithArgs("p1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertProductEmbedding(context.Background(), "p1", []float32{0.1, 0.2, 0.3})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProductEmbeddings(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT product_key, vector FROM product_embeddings`).
		WillReturnRows(pgxmock.NewRows([]string{"product_key", "vector"}).
			AddRow("p1", []byte(`[0.1,0.2]`)).
			AddRow("p2", []byte(`[0.3,0.4]`)))

	embeddings, err := s.ListProductEmbeddings(context.Background())
	require.NoError(t, err)
	require.Len(t, embeddings, 2)
	assert.Equal(t, []float32{0.1, 0.2}, embeddings[0].Vector)
	assert.NoError(t, mock.ExpectationsWereMet())
}
