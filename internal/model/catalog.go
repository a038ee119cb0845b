package model

// Product is a catalog product whose facets may be incomplete.
type Product struct {
	Key         string `json:"key"`
	Code        string `json:"code"` // external system code
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Category groups products for allowable-value scoping.
type Category struct {
	Key  string `json:"key"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Attribute is a catalog facet definition (e.g. "Material", "Color").
type Attribute struct {
	Key  string `json:"key"`
	Code string `json:"code"` // external system code
	Name string `json:"name"` // human-readable display name
}

// ValueScope identifies which rule tier an allowable value belongs to.
type ValueScope string

const (
	// ScopeCategory restricts the value to (category, attribute) pairs.
	ScopeCategory ValueScope = "category"
	// ScopeEvery declares the value applicable to every category.
	ScopeEvery ValueScope = "every"
	// ScopeAny is the weaker global override list.
	ScopeAny ValueScope = "any"
)

// AllowableValue is one permitted string value for an attribute,
// scoped by rule tier.
type AllowableValue struct {
	AttributeKey string     `json:"attribute_key"`
	CategoryKey  string     `json:"category_key,omitempty"` // set only for ScopeCategory
	Value        string     `json:"value"`
	Scope        ValueScope `json:"scope"`
}

// GapRow is one raw missing-attribute row for a product. The same
// attribute can be reachable through multiple recommendation rows;
// the gap resolver deduplicates by attribute display name.
type GapRow struct {
	ProductKey       string `json:"product_key"`
	AttributeKey     string `json:"attribute_key"`
	AttributeName    string `json:"attribute_name"`
	RecommendationID string `json:"recommendation_id"`
}

// ProductAttributeGap is a single missing attribute on a product with
// the deduplicated, sorted union of allowable values across all three
// rule tiers. Ephemeral: built per orchestration pass, never persisted.
type ProductAttributeGap struct {
	AttributeKey  string   `json:"attribute_key"`
	AttributeName string   `json:"attribute_name"`
	AllowedValues []string `json:"allowed_values"`
}

// Recommendation action labels as entered by curators.
const (
	ActionNone     = "No Action"             // sentinel: nothing to load
	ActionNoChange = "Make no change"        // ground truth = empty string
	ActionOverride = "Apply override"        // ground truth = override value
	ActionAccept   = "Accept Recommendation" // ground truth = recommended value
)

// Recommendation is a human-curated judgment about a product attribute.
// Product and attribute are referenced by external codes; those may go
// stale, so resolution failures are skipped rather than fatal.
type Recommendation struct {
	Key              string `json:"key"`
	ProductCode      string `json:"product_code"`
	AttributeCode    string `json:"attribute_code"`
	Action           string `json:"action"`
	RecommendedValue string `json:"recommended_value,omitempty"`
	OverrideValue    string `json:"override_value,omitempty"`
}

// GroundTruthEntry is a resolved human judgment: the accepted value for
// one (product, attribute) pair. A read-only view over recommendation
// records, never persisted as its own entity.
type GroundTruthEntry struct {
	ProductKey       string `json:"product_key"`
	ProductCode      string `json:"product_code"`
	AttributeKey     string `json:"attribute_key"`
	AttributeCode    string `json:"attribute_code"`
	AttributeName    string `json:"attribute_name"`
	Value            string `json:"value"` // may be empty: "nothing to predict"
	RecommendationID string `json:"recommendation_id"`
	Action           string `json:"action"`
}

// ProductEmbedding is a stored embedding vector for similarity search.
type ProductEmbedding struct {
	ProductKey string    `json:"product_key"`
	Vector     []float32 `json:"vector"`
}
