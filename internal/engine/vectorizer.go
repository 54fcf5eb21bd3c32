package engine

import (
	"carewatch/internal/types"
)

// Vectorizer maps unordered feature readings onto the fixed-order vector
// the model was trained on.
type Vectorizer struct {
	schema []string
}

// NewVectorizer builds a vectorizer for the given schema. The slice is
// copied; an empty schema falls back to the canonical feature order.
func NewVectorizer(schema []string) *Vectorizer {
	if len(schema) == 0 {
		schema = types.DefaultFeatureOrder
	}
	owned := make([]string, len(schema))
	copy(owned, schema)
	return &Vectorizer{schema: owned}
}

// Width returns the vector length.
func (v *Vectorizer) Width() int { return len(v.schema) }

// Schema returns a copy of the field order.
func (v *Vectorizer) Schema() []string {
	out := make([]string, len(v.schema))
	copy(out, v.schema)
	return out
}

// Vectorize emits one value per schema field in order, defaulting missing
// fields to zero. It never fails; defaulted reports how many fields were
// absent so callers can log degraded input.
func (v *Vectorizer) Vectorize(features types.FeatureMap) (vec []float64, defaulted int) {
	vec = make([]float64, len(v.schema))
	for i, field := range v.schema {
		val, ok := features[field]
		if !ok {
			defaulted++
			continue
		}
		vec[i] = val
	}
	return vec, defaulted
}

// VectorizeBatch applies Vectorize to every reading independently.
func (v *Vectorizer) VectorizeBatch(readings []types.FeatureMap) [][]float64 {
	rows := make([][]float64, len(readings))
	for i, features := range readings {
		rows[i], _ = v.Vectorize(features)
	}
	return rows
}
