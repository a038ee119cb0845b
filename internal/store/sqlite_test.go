package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/facet-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedCatalog(t *testing.T, st *SQLiteStore) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, st.UpsertProduct(ctx, model.Product{Key: "p1", Code: "DESK-100", Name: "Pine Desk", Description: "A solid pine desk"}))
	require.NoError(t, st.UpsertCategory(ctx, model.Category{Key: "c1", Code: "FURN", Name: "Furniture"}))
	require.NoError(t, st.AssignProductCategory(ctx, "p1", "c1"))
	require.NoError(t, st.UpsertAttribute(ctx, model.Attribute{Key: "a1", Code: "MAT", Name: "Material"}))
	require.NoError(t, st.UpsertAttribute(ctx, model.Attribute{Key: "a2", Code: "COL", Name: "Color"}))
}

// --- Catalog ---

func TestSQLite_ProductRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedCatalog(t, st)

	p, err := st.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "DESK-100", p.Code)

	byCode, err := st.GetProductByCode(ctx, "DESK-100")
	require.NoError(t, err)
	assert.Equal(t, "p1", byCode.Key)

	_, err = st.GetProduct(ctx, "ghost")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_UpsertProduct_UpdatesOnConflict(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedCatalog(t, st)

	require.NoError(t, st.UpsertProduct(ctx, model.Product{Key: "p1", Code: "DESK-100", Name: "Pine Desk v2", Description: "updated"}))

	p, err := st.GetProductByCode(ctx, "DESK-100")
	require.NoError(t, err)
	assert.Equal(t, "Pine Desk v2", p.Name)

	products, err := st.ListProducts(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestSQLite_ProductCategories(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedCatalog(t, st)

	// Duplicate assignment is a no-op.
	require.NoError(t, st.AssignProductCategory(ctx, "p1", "c1"))

	categories, err := st.ListProductCategories(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "c1", categories[0].Key)
	assert.Equal(t, "Furniture", categories[0].Name)
}

func TestSQLite_GetAttribute_ByCodeAndName(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedCatalog(t, st)

	byCode, err := st.GetAttributeByCode(ctx, "MAT")
	require.NoError(t, err)
	assert.Equal(t, "Material", byCode.Name)

	byName, err := st.GetAttributeByName(ctx, "Material")
	require.NoError(t, err)
	assert.Equal(t, "a1", byName.Key)

	_, err = st.GetAttributeByName(ctx, "Weight")
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_GapRows_OrderedByRecommendationID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedCatalog(t, st)

	// Insert out of order; listing must come back sorted by recommendation id.
	require.NoError(t, st.UpsertGapRow(ctx, model.GapRow{ProductKey: "p1", AttributeKey: "a2", RecommendationID: "rec-003"}))
	require.NoError(t, st.UpsertGapRow(ctx, model.GapRow{ProductKey: "p1", AttributeKey: "a1", RecommendationID: "rec-001"}))
	require.NoError(t, st.UpsertGapRow(ctx, model.GapRow{ProductKey: "p1", AttributeKey: "a1", RecommendationID: "rec-002"}))

	gaps, err := st.ListGapRows(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, gaps, 3)
	assert.Equal(t, "rec-001", gaps[0].RecommendationID)
	assert.Equal(t, "rec-002", gaps[1].RecommendationID)
	assert.Equal(t, "rec-003", gaps[2].RecommendationID)
	assert.Equal(t, "Material", gaps[0].AttributeName)
	assert.Equal(t, "Color", gaps[2].AttributeName)
}

func TestSQLite_AllowableValues_ScopedRows(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedCatalog(t, st)

	rows := []model.AllowableValue{
		{AttributeKey: "a1", CategoryKey: "c1", Value: "Pine", Scope: model.ScopeCategory},
		{AttributeKey: "a1", Value: "Oak", Scope: model.ScopeEvery},
		{AttributeKey: "a1", Value: "Steel", Scope: model.ScopeAny},
	}
	for _, v := range rows {
		require.NoError(t, st.UpsertAllowableValue(ctx, v))
	}
	// Re-upsert is idempotent.
	require.NoError(t, st.UpsertAllowableValue(ctx, rows[0]))

	values, err := st.ListAllowableValues(ctx, "a1")
	require.NoError(t, err)
	assert.Len(t, values, 3)
}

// --- Recommendations ---

func TestSQLite_Recommendations_ActionableFilter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedCatalog(t, st)

	recs := []model.Recommendation{
		{Key: "r1", ProductCode: "DESK-100", AttributeCode: "MAT", Action: model.ActionAccept, RecommendedValue: "Pine"},
		{Key: "r2", ProductCode: "DESK-100", AttributeCode: "COL", Action: model.ActionNone},
		{Key: "r3", ProductCode: "DESK-100", AttributeCode: "COL", Action: model.ActionOverride, OverrideValue: "Natural"},
	}
	for _, r := range recs {
		require.NoError(t, st.UpsertRecommendation(ctx, r))
	}

	actionable, err := st.ListActionableRecommendations(ctx)
	require.NoError(t, err)
	require.Len(t, actionable, 2)
	assert.Equal(t, "r1", actionable[0].Key)
	assert.Equal(t, "r3", actionable[1].Key)
}

func TestSQLite_FindRecommendation(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedCatalog(t, st)

	require.NoError(t, st.UpsertRecommendation(ctx, model.Recommendation{
		Key: "r1", ProductCode: "DESK-100", AttributeCode: "MAT",
		Action: model.ActionAccept, RecommendedValue: "Pine",
	}))
	require.NoError(t, st.UpsertRecommendation(ctx, model.Recommendation{
		Key: "r2", ProductCode: "DESK-100", AttributeCode: "COL", Action: model.ActionNone,
	}))

	rec, err := st.FindRecommendation(ctx, "p1", "a1")
	require.NoError(t, err)
	assert.Equal(t, "Pine", rec.RecommendedValue)

	// "No Action" rows are invisible to lookup.
	_, err = st.FindRecommendation(ctx, "p1", "a2")
	assert.True(t, eris.Is(err, ErrNotFound))
}

// --- Experiments ---

func TestSQLite_ExperimentLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	exp := &model.Experiment{
		Key:         "exp-1",
		Description: "baseline",
		Metadata:    map[string]any{"model": "sonnet", "examples": float64(3)},
		CreatedAt:   now,
		StartedAt:   now,
	}
	require.NoError(t, st.CreateExperiment(ctx, exp))

	got, err := st.GetExperiment(ctx, "exp-1")
	require.NoError(t, err)
	assert.Equal(t, "baseline", got.Description)
	assert.Equal(t, "sonnet", got.Metadata["model"])
	assert.False(t, got.Completed())

	avg := 412.5
	require.NoError(t, st.UpdateExperimentMetrics(ctx, "exp-1", model.ExperimentMetrics{
		TotalPredictions:     10,
		TotalProducts:        4,
		ValidatedPredictions: 8,
		CorrectPredictions:   6,
		Accuracy:             0.75,
		AvgPredictionMs:      &avg,
	}))

	require.NoError(t, st.CompleteExperiment(ctx, "exp-1", now.Add(time.Minute)))

	got, err = st.GetExperiment(ctx, "exp-1")
	require.NoError(t, err)
	assert.True(t, got.Completed())
	assert.Equal(t, 0.75, got.Accuracy)
	require.NotNil(t, got.AvgPredictionMs)
	assert.Equal(t, 412.5, *got.AvgPredictionMs)

	// Completing twice is rejected.
	err = st.CompleteExperiment(ctx, "exp-1", now.Add(2*time.Minute))
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_ListExperiments_NewestFirst(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	for i, key := range []string{"exp-a", "exp-b", "exp-c"} {
		require.NoError(t, st.CreateExperiment(ctx, &model.Experiment{
			Key:       key,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	exps, err := st.ListExperiments(ctx, 2)
	require.NoError(t, err)
	require.Len(t, exps, 2)
	assert.Equal(t, "exp-c", exps[0].Key)
	assert.Equal(t, "exp-b", exps[1].Key)
}

// --- Predictions ---

func TestSQLite_Predictions_StoreListValidate(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedCatalog(t, st)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, st.CreateExperiment(ctx, &model.Experiment{Key: "exp-1", CreatedAt: now, StartedAt: now}))

	recKey := "r1"
	results := []model.PredictionResult{
		{Key: "pr-1", ExperimentKey: "exp-1", ProductKey: "p1", AttributeKey: "a1", Value: "Pine", Confidence: 0.92, Reasoning: "grain", RecommendationKey: &recKey, CreatedAt: now},
		{Key: "pr-2", ExperimentKey: "exp-1", ProductKey: "p1", AttributeKey: "a2", Value: "Brown", Confidence: 0.61, CreatedAt: now.Add(time.Second)},
	}
	require.NoError(t, st.StorePredictions(ctx, results))

	listed, err := st.ListPredictions(ctx, "exp-1")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "pr-1", listed[0].Key)
	require.NotNil(t, listed[0].RecommendationKey)
	assert.Equal(t, "r1", *listed[0].RecommendationKey)
	assert.Nil(t, listed[0].Correct)
	assert.False(t, listed[0].Validated())

	require.NoError(t, st.MarkValidated(ctx, "pr-1", true, "Pine"))

	listed, err = st.ListPredictions(ctx, "exp-1")
	require.NoError(t, err)
	require.NotNil(t, listed[0].Correct)
	assert.True(t, *listed[0].Correct)
	require.NotNil(t, listed[0].ActualValue)
	assert.Equal(t, "Pine", *listed[0].ActualValue)
	assert.True(t, listed[0].Validated())
}

func TestSQLite_MarkValidated_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.MarkValidated(context.Background(), "ghost", false, "")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

// --- Embeddings ---

func TestSQLite_Embeddings_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedCatalog(t, st)

	require.NoError(t, st.UpsertProductEmbedding(ctx, "p1", []float32{0.1, 0.2, 0.3}))
	require.NoError(t, st.UpsertProductEmbedding(ctx, "p1", []float32{0.4, 0.5, 0.6}))

	embeddings, err := st.ListProductEmbeddings(ctx)
	require.NoError(t, err)
	require.Len(t, embeddings, 1)
	assert.Equal(t, []float32{0.4, 0.5, 0.6}, embeddings[0].Vector)
}
