// Package predictor invokes the LLM once per attribute gap and parses
// the structured response into a facet prediction.
package predictor

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/facet-cli/internal/executor"
	"github.com/sells-group/facet-cli/internal/model"
	"github.com/sells-group/facet-cli/internal/resilience"
	"github.com/sells-group/facet-cli/pkg/anthropic"
)

// ErrParse marks a malformed or non-conforming provider response. It
// is never retried here: retry policy belongs to the caller.
var ErrParse = eris.New("predictor: malformed response")

// Config holds predictor tuning.
type Config struct {
	Model       string
	MaxTokens   int64
	Concurrency int
	RateLimit   float64 // requests per second, 0 = unlimited
	Examples    []Example
	Retry       resilience.RetryConfig // zero value = DefaultRetryConfig
}

// Predictor produces facet predictions for product attribute gaps.
type Predictor struct {
	client  anthropic.Client
	limiter *rate.Limiter
	cfg     Config
}

func New(client anthropic.Client, cfg Config) *Predictor {
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-5-20250929"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = executor.DefaultLimit
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = resilience.DefaultRetryConfig()
	}
	if cfg.Retry.OnRetry == nil {
		cfg.Retry.OnRetry = resilience.RetryLogger("anthropic", "predict")
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return &Predictor{client: client, limiter: limiter, cfg: cfg}
}

// Predict asks the model for one gap's value. The system prompt is
// cached provider-side: within a product every gap shares it. A nil
// examples slice falls back to the configured set. The call retries
// transient provider failures; a malformed response (ErrParse) is
// never retried.
func (p *Predictor) Predict(ctx context.Context, product *model.Product, categoryNames []string, gap model.ProductAttributeGap, examples []Example) (model.FacetPrediction, error) {
	if examples == nil {
		examples = p.cfg.Examples
	}
	req := anthropic.MessageRequest{
		Model:     p.cfg.Model,
		MaxTokens: p.cfg.MaxTokens,
		System: []anthropic.SystemBlock{{
			Text:         BuildSystemPrompt(product, categoryNames, examples),
			CacheControl: &anthropic.CacheControl{TTL: "5m"},
		}},
		Messages: []anthropic.Message{{Role: "user", Content: BuildGapPrompt(gap)}},
	}

	resp, err := resilience.DoVal(ctx, p.cfg.Retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "predictor: rate limit wait")
		}
		return p.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return model.FacetPrediction{}, eris.Wrapf(err, "predictor: predict %s/%s", product.Code, gap.AttributeName)
	}
	resp.Usage.LogCost(p.cfg.Model, "predict")

	pred, err := parsePrediction(gap.AttributeName, resp.Text())
	if err != nil {
		zap.L().Warn("prediction parse failed",
			zap.String("product", product.Code),
			zap.String("attribute", gap.AttributeName),
			zap.Error(err))
		return model.FacetPrediction{}, err
	}
	return pred, nil
}

// PredictAll predicts every gap of one product concurrently. Results
// come back in gap order regardless of completion order; any single
// failure aborts the batch.
func (p *Predictor) PredictAll(ctx context.Context, product *model.Product, categoryNames []string, gapList []model.ProductAttributeGap, examples []Example) ([]model.FacetPrediction, error) {
	return executor.Map(ctx, p.cfg.Concurrency, gapList, func(ctx context.Context, gap model.ProductAttributeGap) (model.FacetPrediction, error) {
		return p.Predict(ctx, product, categoryNames, gap, examples)
	})
}

type rawPrediction struct {
	Value          any    `json:"value"`
	Confidence     any    `json:"confidence"`
	Reasoning      string `json:"reasoning"`
	SuggestedValue string `json:"suggested_value"`
}

// parsePrediction decodes the model's JSON answer. Anything that does
// not conform to the response contract fails with ErrParse.
func parsePrediction(attributeName, text string) (model.FacetPrediction, error) {
	var raw rawPrediction
	if err := json.Unmarshal([]byte(cleanJSON(text)), &raw); err != nil {
		return model.FacetPrediction{}, eris.Wrapf(ErrParse, "unmarshal: %v", err)
	}

	value := ""
	switch v := raw.Value.(type) {
	case nil:
	case string:
		value = v
	default:
		return model.FacetPrediction{}, eris.Wrapf(ErrParse, "value has type %T, want string", raw.Value)
	}

	confidence, ok := toFloat64(raw.Confidence)
	if !ok {
		return model.FacetPrediction{}, eris.Wrapf(ErrParse, "confidence %v is not a number", raw.Confidence)
	}

	return model.FacetPrediction{
		AttributeName:  attributeName,
		Value:          value,
		Confidence:     confidence,
		Reasoning:      raw.Reasoning,
		SuggestedValue: raw.SuggestedValue,
	}, nil
}

// cleanJSON strips markdown fences and extracts the JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
