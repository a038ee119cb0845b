package predictor

import (
	"fmt"
	"strings"

	"github.com/sells-group/facet-cli/internal/model"
)

// systemPrompt is the shared instruction block for facet prediction.
const systemPrompt = `You are a product data specialist for an industrial supplies catalog. You predict the value of missing product attributes (facets) from product context.

Rules:
- Return valid JSON for every response
- The predicted value MUST be chosen from the provided allowed values list, verbatim
- If no allowed value applies, return an empty string for value and explain why in reasoning
- If you believe the correct value exists but is missing from the allowed list, return an empty string for value and put your candidate in suggested_value
- Confidence should be 0.0-1.0 based on how directly the product context supports the prediction
- An empty value with no suggested_value means "no value applies" — confidence then reflects how sure you are that nothing applies
- Be precise and factual — these predictions are scored against human-curated catalog decisions`

// ConfidenceGuidance renders the confidence bands as prompt text so the
// model's self-reported scores line up with how they are classified.
func ConfidenceGuidance() string {
	var sb strings.Builder
	sb.WriteString("Confidence bands:\n")
	for _, b := range model.ConfidenceBands {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", b.Level, b.Guidance))
	}
	return sb.String()
}

// Example is a worked example embedded in the system prompt.
type Example struct {
	ProductName    string
	AttributeName  string
	AllowedValues  []string
	Value          string
	Confidence     float64
	Reasoning      string
	SuggestedValue string
}

// defaultExamples covers the three response shapes: a confident pick
// from the list, a no-value-applies empty answer, and a suggested
// value outside the allowed list.
var defaultExamples = []Example{
	{
		ProductName:   "Solid Pine Writing Desk",
		AttributeName: "Material",
		AllowedValues: []string{"Oak", "Pine", "Steel"},
		Value:         "Pine",
		Confidence:    0.95,
		Reasoning:     "The product name states the desk is solid pine.",
	},
	{
		ProductName:   "Universal Replacement Caster",
		AttributeName: "Mounting Type",
		AllowedValues: []string{"Wall Mount", "Ceiling Mount"},
		Value:         "",
		Confidence:    0.8,
		Reasoning:     "Casters are floor hardware; neither mounting option applies.",
	},
	{
		ProductName:    "Bamboo Cutting Board",
		AttributeName:  "Material",
		AllowedValues:  []string{"Oak", "Pine", "Steel"},
		Value:          "",
		Confidence:     0.9,
		Reasoning:      "The board is clearly bamboo, which is not in the allowed list.",
		SuggestedValue: "Bamboo",
	},
}

// DefaultExamples returns up to n of the built-in worked examples;
// n <= 0 returns all of them.
func DefaultExamples(n int) []Example {
	if n <= 0 || n >= len(defaultExamples) {
		return defaultExamples
	}
	return defaultExamples[:n]
}

// BuildSystemPrompt assembles product context, task instructions,
// confidence guidance and worked examples into the system prompt. The
// examples argument may extend or replace the defaults; pass nil to
// use the defaults.
func BuildSystemPrompt(product *model.Product, categoryNames []string, examples []Example) string {
	if examples == nil {
		examples = defaultExamples
	}

	var sb strings.Builder
	sb.WriteString(systemPrompt)
	sb.WriteString("\n\n")
	sb.WriteString(ConfidenceGuidance())

	if len(examples) > 0 {
		sb.WriteString("\n--- Worked Examples ---\n")
		for _, ex := range examples {
			answer := fmt.Sprintf("{\"value\": %q, \"confidence\": %.2f, \"reasoning\": %q", ex.Value, ex.Confidence, ex.Reasoning)
			if ex.SuggestedValue != "" {
				answer += fmt.Sprintf(", \"suggested_value\": %q", ex.SuggestedValue)
			}
			answer += "}"
			sb.WriteString(fmt.Sprintf(
				"Product: %s\nAttribute: %s\nAllowed values: %s\nAnswer: %s\n\n",
				ex.ProductName, ex.AttributeName, strings.Join(ex.AllowedValues, ", "), answer))
		}
	}

	sb.WriteString(fmt.Sprintf("\nProduct under review: %s (%s)", product.Name, product.Code))
	if product.Description != "" {
		sb.WriteString("\nDescription: " + product.Description)
	}
	if len(categoryNames) > 0 {
		sb.WriteString("\nCategories: " + strings.Join(categoryNames, ", "))
	}
	return sb.String()
}

// BuildGapPrompt constructs the per-gap user message.
func BuildGapPrompt(gap model.ProductAttributeGap) string {
	return fmt.Sprintf(`Predict the value of the missing attribute %q.

Allowed values:
- %s

Respond with ONLY valid JSON in this format:
{
  "value": "<one of the allowed values, or empty string>",
  "confidence": <0.0 to 1.0>,
  "reasoning": "<brief explanation>",
  "suggested_value": "<only when the right value is missing from the allowed list, else empty>"
}`, gap.AttributeName, strings.Join(gap.AllowedValues, "\n- "))
}
