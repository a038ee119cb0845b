package experiment

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/facet-cli/internal/gaps"
	"github.com/sells-group/facet-cli/internal/model"
	"github.com/sells-group/facet-cli/internal/predictor"
	"github.com/sells-group/facet-cli/internal/similarity"
	"github.com/sells-group/facet-cli/internal/store"
	"github.com/sells-group/facet-cli/internal/validator"
)

// scriptedPredictor returns canned predictions per product code and
// records the worked examples each call received.
type scriptedPredictor struct {
	answers  map[string][]model.FacetPrediction
	fail     map[string]bool
	examples map[string][]predictor.Example
}

func (s *scriptedPredictor) PredictAll(_ context.Context, product *model.Product, _ []string, gapList []model.ProductAttributeGap, examples []predictor.Example) ([]model.FacetPrediction, error) {
	if s.examples == nil {
		s.examples = make(map[string][]predictor.Example)
	}
	s.examples[product.Code] = examples
	if s.fail[product.Code] {
		return nil, fmt.Errorf("provider down for %s", product.Code)
	}
	if preds, ok := s.answers[product.Code]; ok {
		return preds, nil
	}
	out := make([]model.FacetPrediction, len(gapList))
	for i, g := range gapList {
		out[i] = model.FacetPrediction{AttributeName: g.AttributeName, Confidence: 0.5}
	}
	return out, nil
}

func newOrchestrator(st store.Store, pred GapPredictor) *Orchestrator {
	return NewOrchestrator(st, gaps.NewResolver(st), pred, validator.New(st, 0))
}

// seedPineScenario builds the canonical case: one product, one
// "Material" gap with {Pine, Oak}, human recommendation accepts Pine.
func seedPineScenario(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, st.UpsertProduct(ctx, model.Product{Key: "p1", Code: "DESK-100", Name: "Pine Desk"}))
	require.NoError(t, st.UpsertCategory(ctx, model.Category{Key: "c1", Code: "FURN", Name: "Furniture"}))
	require.NoError(t, st.AssignProductCategory(ctx, "p1", "c1"))
	require.NoError(t, st.UpsertAttribute(ctx, model.Attribute{Key: "a-mat", Code: "MAT", Name: "Material"}))
	require.NoError(t, st.UpsertGapRow(ctx, model.GapRow{ProductKey: "p1", AttributeKey: "a-mat", RecommendationID: "rec-001"}))
	for _, v := range []string{"Pine", "Oak"} {
		require.NoError(t, st.UpsertAllowableValue(ctx, model.AllowableValue{AttributeKey: "a-mat", Value: v, Scope: model.ScopeEvery}))
	}
	require.NoError(t, st.UpsertRecommendation(ctx, model.Recommendation{
		Key: "r1", ProductCode: "DESK-100", AttributeCode: "MAT",
		Action: model.ActionAccept, RecommendedValue: "Pine",
	}))
}

func TestRun_EndToEnd_CorrectPrediction(t *testing.T) {
	st := newTestStore(t)
	seedPineScenario(t, st)

	pred := &scriptedPredictor{answers: map[string][]model.FacetPrediction{
		// Lower-case on purpose: validation is case-insensitive.
		"DESK-100": {{AttributeName: "Material", Value: "pine", Confidence: 0.92, Reasoning: "name says pine"}},
	}}

	exp, err := newOrchestrator(st, pred).Run(context.Background(), RunOptions{Description: "pine run"})
	require.NoError(t, err)

	assert.True(t, exp.Completed())
	assert.Equal(t, 1, exp.TotalPredictions)
	assert.Equal(t, 1, exp.TotalProducts)
	assert.Equal(t, 1, exp.ValidatedPredictions)
	assert.Equal(t, 1, exp.CorrectPredictions)
	assert.Equal(t, 1.0, exp.Accuracy)
	assert.NotNil(t, exp.AvgPredictionMs)

	preds, err := st.ListPredictions(context.Background(), exp.Key)
	require.NoError(t, err)
	require.Len(t, preds, 1)
	require.NotNil(t, preds[0].RecommendationKey)
	assert.Equal(t, "r1", *preds[0].RecommendationKey)
	require.NotNil(t, preds[0].Correct)
	assert.True(t, *preds[0].Correct)
}

func TestRun_ZeroGapsStillCompletes(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	// Product exists but has no gap rows at all.
	require.NoError(t, st.UpsertProduct(ctx, model.Product{Key: "p1", Code: "DESK-100", Name: "Pine Desk"}))

	exp, err := newOrchestrator(st, &scriptedPredictor{}).Run(ctx, RunOptions{})
	require.NoError(t, err)

	assert.True(t, exp.Completed())
	assert.Zero(t, exp.TotalPredictions)
	assert.Zero(t, exp.TotalProducts)
	assert.Equal(t, 0.0, exp.Accuracy)
}

func TestRun_ProductFailureIsContained(t *testing.T) {
	st := newTestStore(t)
	seedPineScenario(t, st)
	ctx := context.Background()

	// Second product whose prediction call blows up.
	require.NoError(t, st.UpsertProduct(ctx, model.Product{Key: "p2", Code: "CHAIR-200", Name: "Oak Chair"}))
	require.NoError(t, st.UpsertGapRow(ctx, model.GapRow{ProductKey: "p2", AttributeKey: "a-mat", RecommendationID: "rec-002"}))

	pred := &scriptedPredictor{
		answers: map[string][]model.FacetPrediction{
			"DESK-100": {{AttributeName: "Material", Value: "Pine", Confidence: 0.9}},
		},
		fail: map[string]bool{"CHAIR-200": true},
	}

	exp, err := newOrchestrator(st, pred).Run(ctx, RunOptions{})
	require.NoError(t, err)

	// The failing product is skipped; the run still completes.
	assert.True(t, exp.Completed())
	assert.Equal(t, 1, exp.TotalProducts)
	assert.Equal(t, 1, exp.TotalPredictions)
	assert.Equal(t, 1.0, exp.Accuracy)
}

func TestRun_IncorrectPrediction(t *testing.T) {
	st := newTestStore(t)
	seedPineScenario(t, st)

	pred := &scriptedPredictor{answers: map[string][]model.FacetPrediction{
		"DESK-100": {{AttributeName: "Material", Value: "Oak", Confidence: 0.55}},
	}}

	exp, err := newOrchestrator(st, pred).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, exp.ValidatedPredictions)
	assert.Zero(t, exp.CorrectPredictions)
	assert.Equal(t, 0.0, exp.Accuracy)
}

func TestRun_SimilarProductExamplesReachPredictor(t *testing.T) {
	st := newTestStore(t)
	seedPineScenario(t, st)
	ctx := context.Background()

	// A neighbor close to the desk in embedding space, with a
	// curator-confirmed Material of its own.
	require.NoError(t, st.UpsertProduct(ctx, model.Product{Key: "p2", Code: "TBL-300", Name: "Oak Dining Table"}))
	require.NoError(t, st.UpsertProductEmbedding(ctx, "p1", []float32{1, 0}))
	require.NoError(t, st.UpsertProductEmbedding(ctx, "p2", []float32{0.9, 0.1}))
	require.NoError(t, st.UpsertRecommendation(ctx, model.Recommendation{
		Key: "r2", ProductCode: "TBL-300", AttributeCode: "MAT",
		Action: model.ActionAccept, RecommendedValue: "Oak",
	}))

	pred := &scriptedPredictor{answers: map[string][]model.FacetPrediction{
		"DESK-100": {{AttributeName: "Material", Value: "Pine", Confidence: 0.9}},
	}}
	searcher := similarity.NewSearcher(st, similarity.NewCache(8), 3)
	o := NewOrchestrator(st, gaps.NewResolver(st), pred, validator.New(st, 0),
		WithSimilarExamples(searcher, 3))

	_, err := o.Run(ctx, RunOptions{})
	require.NoError(t, err)

	examples := pred.examples["DESK-100"]
	require.Len(t, examples, 1)
	assert.Equal(t, "Oak Dining Table", examples[0].ProductName)
	assert.Equal(t, "Material", examples[0].AttributeName)
	assert.Equal(t, "Oak", examples[0].Value)
	assert.Contains(t, examples[0].AllowedValues, "Oak")
	assert.Contains(t, examples[0].AllowedValues, "Pine")
}

func TestRun_NoEmbeddingFallsBackToDefaultExamples(t *testing.T) {
	st := newTestStore(t)
	seedPineScenario(t, st)

	pred := &scriptedPredictor{answers: map[string][]model.FacetPrediction{
		"DESK-100": {{AttributeName: "Material", Value: "Pine", Confidence: 0.9}},
	}}
	searcher := similarity.NewSearcher(st, similarity.NewCache(8), 3)
	o := NewOrchestrator(st, gaps.NewResolver(st), pred, validator.New(st, 0),
		WithSimilarExamples(searcher, 3))

	exp, err := o.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	// Missing embeddings never fail the product; the predictor just
	// gets no neighbor-derived examples.
	assert.True(t, exp.Completed())
	assert.Equal(t, 1, exp.TotalProducts)
	assert.Nil(t, pred.examples["DESK-100"])
}

// cancellingPredictor cancels the run from inside the first prediction
// call, simulating a timeout mid-product.
type cancellingPredictor struct {
	cancel context.CancelFunc
}

func (c *cancellingPredictor) PredictAll(ctx context.Context, _ *model.Product, _ []string, _ []model.ProductAttributeGap, _ []predictor.Example) ([]model.FacetPrediction, error) {
	c.cancel()
	return nil, ctx.Err()
}

func TestRun_CancellationLeavesExperimentIncomplete(t *testing.T) {
	st := newTestStore(t)
	seedPineScenario(t, st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := newOrchestrator(st, &cancellingPredictor{cancel: cancel}).Run(ctx, RunOptions{})
	require.Error(t, err)

	// The experiment row exists but never completed.
	exps, listErr := st.ListExperiments(context.Background(), 10)
	require.NoError(t, listErr)
	require.Len(t, exps, 1)
	assert.False(t, exps[0].Completed())
}

func TestPredictProduct_DryRun(t *testing.T) {
	st := newTestStore(t)
	seedPineScenario(t, st)

	pred := &scriptedPredictor{answers: map[string][]model.FacetPrediction{
		"DESK-100": {{AttributeName: "Material", Value: "Pine", Confidence: 0.9}},
	}}
	o := newOrchestrator(st, pred)

	preds, err := o.PredictProduct(context.Background(), "DESK-100")
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Equal(t, "Pine", preds[0].Value)

	// Nothing persisted, no experiment created.
	exps, err := st.ListExperiments(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, exps)
}

func TestPredictProduct_UnknownCode(t *testing.T) {
	st := newTestStore(t)
	o := newOrchestrator(st, &scriptedPredictor{})

	_, err := o.PredictProduct(context.Background(), "GHOST")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
