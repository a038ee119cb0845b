package experiment

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/facet-cli/internal/gaps"
	"github.com/sells-group/facet-cli/internal/groundtruth"
	"github.com/sells-group/facet-cli/internal/model"
	"github.com/sells-group/facet-cli/internal/predictor"
	"github.com/sells-group/facet-cli/internal/similarity"
	"github.com/sells-group/facet-cli/internal/store"
	"github.com/sells-group/facet-cli/internal/validator"
)

// GapPredictor is the prediction dependency of the orchestrator. A nil
// examples slice tells the predictor to use its configured defaults.
type GapPredictor interface {
	PredictAll(ctx context.Context, product *model.Product, categoryNames []string, gapList []model.ProductAttributeGap, examples []predictor.Example) ([]model.FacetPrediction, error)
}

// RunOptions configures one orchestrated experiment run.
type RunOptions struct {
	Description  string
	Metadata     map[string]any
	ProductLimit int
}

// Orchestrator drives an experiment end to end: load ground truth,
// iterate products, predict and store per product, then validate and
// finalize metrics.
type Orchestrator struct {
	store       store.Store
	resolver    *gaps.Resolver
	predictor   GapPredictor
	validator   *validator.Validator
	truth       *groundtruth.Loader
	manager     *Manager
	recorder    *Recorder
	searcher    *similarity.Searcher // nil = built-in worked examples only
	maxExamples int
}

// Option configures optional orchestrator behavior.
type Option func(*Orchestrator)

// WithSimilarExamples sources worked examples for each product from
// the curator-confirmed values of its nearest neighbors, up to max
// examples per product. max <= 0 keeps the default.
func WithSimilarExamples(searcher *similarity.Searcher, max int) Option {
	return func(o *Orchestrator) {
		o.searcher = searcher
		if max > 0 {
			o.maxExamples = max
		}
	}
}

func NewOrchestrator(st store.Store, resolver *gaps.Resolver, pred GapPredictor, val *validator.Validator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       st,
		resolver:    resolver,
		predictor:   pred,
		validator:   val,
		truth:       groundtruth.NewLoader(st),
		manager:     NewManager(st),
		recorder:    NewRecorder(st),
		maxExamples: defaultMaxSimilarExamples,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes a full experiment. A failure inside one product's
// resolve/predict/store path is logged and the product skipped; a
// failure in ground-truth loading, validation, or finalization is
// fatal and leaves the experiment without completed_at.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*model.Experiment, error) {
	exp, err := o.manager.Create(ctx, opts.Description, opts.Metadata)
	if err != nil {
		return nil, err
	}

	truth, err := o.truth.LoadAll(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: load ground truth")
	}

	products, err := o.store.ListProducts(ctx, opts.ProductLimit)
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: list products")
	}

	var (
		totalPredictions int
		totalProducts    int
		skipped          int
		predictionTime   time.Duration
	)

	for i := range products {
		product := &products[i]
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "orchestrator: cancelled")
		}

		stored, elapsed, err := o.processProduct(ctx, exp.Key, product, truth)
		if err != nil {
			zap.L().Error("product failed, skipping",
				zap.String("experiment", exp.Key),
				zap.String("product", product.Code),
				zap.Error(err))
			skipped++
			continue
		}
		if stored == 0 {
			skipped++
			continue
		}

		totalPredictions += stored
		totalProducts++
		predictionTime += elapsed

		if err := o.manager.UpdateMetrics(ctx, exp.Key, model.ExperimentMetrics{
			TotalPredictions: totalPredictions,
			TotalProducts:    totalProducts,
			AvgPredictionMs:  avgMs(predictionTime, totalPredictions),
		}); err != nil {
			return nil, eris.Wrap(err, "orchestrator: update metrics")
		}
	}

	zap.L().Info("product loop finished",
		zap.String("experiment", exp.Key),
		zap.Int("products", totalProducts),
		zap.Int("skipped", skipped),
		zap.Int("predictions", totalPredictions))

	predictions, err := o.store.ListPredictions(ctx, exp.Key)
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: load stored predictions")
	}
	if err := o.validator.Validate(ctx, predictions, truth); err != nil {
		return nil, eris.Wrap(err, "orchestrator: validate")
	}

	validated, accuracy := validator.Accuracy(predictions)
	correct := 0
	for _, p := range predictions {
		if p.Correct != nil && *p.Correct {
			correct++
		}
	}

	if err := o.manager.UpdateMetrics(ctx, exp.Key, model.ExperimentMetrics{
		TotalPredictions:     totalPredictions,
		TotalProducts:        totalProducts,
		ValidatedPredictions: validated,
		CorrectPredictions:   correct,
		Accuracy:             accuracy,
		AvgPredictionMs:      avgMs(predictionTime, totalPredictions),
	}); err != nil {
		return nil, eris.Wrap(err, "orchestrator: finalize metrics")
	}
	if err := o.manager.Complete(ctx, exp.Key); err != nil {
		return nil, err
	}

	final, err := o.store.GetExperiment(ctx, exp.Key)
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: reload experiment")
	}
	zap.L().Info("experiment completed",
		zap.String("experiment", final.Key),
		zap.Int("validated", final.ValidatedPredictions),
		zap.Float64("accuracy", final.Accuracy))
	return final, nil
}

// processProduct runs resolve → predict → store for one product and
// returns how many predictions were stored plus the wall time spent
// predicting.
func (o *Orchestrator) processProduct(ctx context.Context, experimentKey string, product *model.Product, truth *groundtruth.Set) (int, time.Duration, error) {
	gapList, err := o.resolver.Resolve(ctx, product.Key)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "resolve gaps for %s", product.Code)
	}
	if len(gapList) == 0 {
		zap.L().Debug("product has no resolvable gaps", zap.String("product", product.Code))
		return 0, 0, nil
	}

	categoryNames, err := o.categoryNames(ctx, product.Key)
	if err != nil {
		return 0, 0, err
	}

	start := time.Now()
	predictions, err := o.predictor.PredictAll(ctx, product, categoryNames, gapList, o.similarExamples(ctx, product, truth))
	if err != nil {
		return 0, 0, eris.Wrapf(err, "predict for %s", product.Code)
	}
	elapsed := time.Since(start)

	results, err := o.recorder.Store(ctx, experimentKey, product, predictions)
	if err != nil {
		return 0, 0, err
	}
	return len(results), elapsed, nil
}

func (o *Orchestrator) categoryNames(ctx context.Context, productKey string) ([]string, error) {
	categories, err := o.store.ListProductCategories(ctx, productKey)
	if err != nil {
		return nil, eris.Wrapf(err, "categories for %s", productKey)
	}
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}
	return names, nil
}

// PredictProduct resolves and predicts a single product without
// creating an experiment or persisting anything. Used for dry runs.
func (o *Orchestrator) PredictProduct(ctx context.Context, productCode string) ([]model.FacetPrediction, error) {
	product, err := o.store.GetProductByCode(ctx, productCode)
	if err != nil {
		return nil, eris.Wrapf(err, "orchestrator: product %s", productCode)
	}
	gapList, err := o.resolver.Resolve(ctx, product.Key)
	if err != nil {
		return nil, eris.Wrapf(err, "orchestrator: resolve gaps for %s", productCode)
	}
	if len(gapList) == 0 {
		return nil, nil
	}
	categoryNames, err := o.categoryNames(ctx, product.Key)
	if err != nil {
		return nil, err
	}

	var examples []predictor.Example
	if o.searcher != nil {
		truth, err := o.truth.LoadAll(ctx)
		if err != nil {
			zap.L().Warn("ground truth unavailable for worked examples",
				zap.String("product", productCode), zap.Error(err))
		} else {
			examples = o.similarExamples(ctx, product, truth)
		}
	}
	return o.predictor.PredictAll(ctx, product, categoryNames, gapList, examples)
}

func avgMs(total time.Duration, count int) *float64 {
	if count == 0 {
		return nil
	}
	ms := float64(total.Milliseconds()) / float64(count)
	return &ms
}
