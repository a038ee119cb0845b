package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/facet-cli/internal/model"
)

// ErrNotFound is returned when a requested row does not exist. Callers
// check it with eris.Is; it is never smuggled out as a nil pointer.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for the facet prediction pipeline.
type Store interface {
	// Catalog
	GetProduct(ctx context.Context, key string) (*model.Product, error)
	GetProductByCode(ctx context.Context, code string) (*model.Product, error)
	ListProducts(ctx context.Context, limit int) ([]model.Product, error)
	ListProductCategories(ctx context.Context, productKey string) ([]model.Category, error)
	GetAttributeByCode(ctx context.Context, code string) (*model.Attribute, error)
	GetAttributeByName(ctx context.Context, name string) (*model.Attribute, error)
	ListGapRows(ctx context.Context, productKey string) ([]model.GapRow, error)
	ListAllowableValues(ctx context.Context, attributeKey string) ([]model.AllowableValue, error)

	// Catalog ingest
	UpsertProduct(ctx context.Context, p model.Product) error
	UpsertCategory(ctx context.Context, c model.Category) error
	AssignProductCategory(ctx context.Context, productKey, categoryKey string) error
	UpsertAttribute(ctx context.Context, a model.Attribute) error
	UpsertAllowableValue(ctx context.Context, v model.AllowableValue) error
	UpsertRecommendation(ctx context.Context, r model.Recommendation) error
	UpsertGapRow(ctx context.Context, g model.GapRow) error

	// Recommendations
	ListActionableRecommendations(ctx context.Context) ([]model.Recommendation, error)
	FindRecommendation(ctx context.Context, productKey, attributeKey string) (*model.Recommendation, error)

	// Experiments
	CreateExperiment(ctx context.Context, exp *model.Experiment) error
	GetExperiment(ctx context.Context, key string) (*model.Experiment, error)
	ListExperiments(ctx context.Context, limit int) ([]model.Experiment, error)
	UpdateExperimentMetrics(ctx context.Context, key string, m model.ExperimentMetrics) error
	CompleteExperiment(ctx context.Context, key string, at time.Time) error

	// Predictions. StorePredictions writes a product's batch as one
	// transaction: a crash loses at most one product's predictions.
	StorePredictions(ctx context.Context, results []model.PredictionResult) error
	ListPredictions(ctx context.Context, experimentKey string) ([]model.PredictionResult, error)
	MarkValidated(ctx context.Context, predictionKey string, correct bool, actualValue string) error

	// Embeddings
	UpsertProductEmbedding(ctx context.Context, productKey string, vector []float32) error
	ListProductEmbeddings(ctx context.Context) ([]model.ProductEmbedding, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
