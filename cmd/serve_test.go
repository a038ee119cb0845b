package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/facet-cli/internal/experiment"
	"github.com/sells-group/facet-cli/internal/model"
	"github.com/sells-group/facet-cli/internal/similarity"
	"github.com/sells-group/facet-cli/internal/store"
)

func newTestRouter(t *testing.T) (http.Handler, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	searcher := similarity.NewSearcher(st, similarity.NewCache(8), 3)
	// nil orchestrator: prediction endpoints respond 503.
	return buildRouter(context.Background(), st, searcher, nil), st
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestServe_Health(t *testing.T) {
	handler, _ := newTestRouter(t)

	rr := get(t, handler, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestServe_ExperimentLifecycle(t *testing.T) {
	handler, st := newTestRouter(t)
	ctx := context.Background()

	exp, err := experiment.NewManager(st).Create(ctx, "api test", map[string]any{"model": "sonnet"})
	require.NoError(t, err)

	rr := get(t, handler, "/experiments")
	assert.Equal(t, http.StatusOK, rr.Code)
	var exps []model.Experiment
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &exps))
	require.Len(t, exps, 1)
	assert.Equal(t, exp.Key, exps[0].Key)

	rr = get(t, handler, "/experiments/"+exp.Key)
	assert.Equal(t, http.StatusOK, rr.Code)
	var got model.Experiment
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "api test", got.Description)

	rr = get(t, handler, "/experiments/"+exp.Key+"/predictions")
	assert.Equal(t, http.StatusOK, rr.Code)
	var preds []model.PredictionResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &preds))
	assert.Empty(t, preds)
}

func TestServe_ExperimentNotFound(t *testing.T) {
	handler, _ := newTestRouter(t)

	rr := get(t, handler, "/experiments/ghost")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "not found")

	rr = get(t, handler, "/experiments/ghost/predictions")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServe_ExperimentsBadLimit(t *testing.T) {
	handler, _ := newTestRouter(t)

	rr := get(t, handler, "/experiments?limit=banana")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = get(t, handler, "/experiments?limit=-1")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServe_SimilarProducts(t *testing.T) {
	handler, st := newTestRouter(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertProduct(ctx, model.Product{Key: "p1", Code: "DESK-100", Name: "Pine Desk"}))
	require.NoError(t, st.UpsertProduct(ctx, model.Product{Key: "p2", Code: "DESK-200", Name: "Oak Desk"}))
	require.NoError(t, st.UpsertProductEmbedding(ctx, "p1", []float32{1, 0}))
	require.NoError(t, st.UpsertProductEmbedding(ctx, "p2", []float32{0.9, 0.1}))

	rr := get(t, handler, "/products/DESK-100/similar")
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp similarity.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "p1", resp.ProductKey)
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, "p2", resp.Matches[0].ProductKey)
}

func TestServe_SimilarUnknownProduct(t *testing.T) {
	handler, _ := newTestRouter(t)

	rr := get(t, handler, "/products/GHOST/similar")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServe_SimilarNoEmbedding(t *testing.T) {
	handler, st := newTestRouter(t)
	ctx := context.Background()

	// Product exists but was never embedded.
	require.NoError(t, st.UpsertProduct(ctx, model.Product{Key: "p1", Code: "DESK-100", Name: "Pine Desk"}))

	rr := get(t, handler, "/products/DESK-100/similar")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServe_PredictionEndpointsDisabledWithoutKey(t *testing.T) {
	handler, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/experiments", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "not configured")

	rr = get(t, handler, "/products/DESK-100/predictions")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestServe_CacheStats(t *testing.T) {
	handler, _ := newTestRouter(t)

	rr := get(t, handler, "/similarity/stats")
	assert.Equal(t, http.StatusOK, rr.Code)

	var stats similarity.CacheStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, 8, stats.MaxEntries)
	assert.Zero(t, stats.Hits)
}
