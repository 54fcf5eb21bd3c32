// Package ml implements the in-process classifier family used by the
// prediction engine: CART decision trees, bagged random forests, the
// standard scaler, and the label encoder, plus the evaluation helpers the
// trainer reports with. Models serialize to JSON so trained artifacts can
// be shipped to and loaded by the serving process.
package ml

import (
	"encoding/json"
	"fmt"

	"carewatch/internal/types"
)

// Classifier is the contract between a trained model and the prediction
// engine. Implementations must be safe for concurrent use once trained.
type Classifier interface {
	// PredictIndex returns the winning class index for a feature vector.
	// Ties resolve to the lowest class index.
	PredictIndex(x []float64) (int, error)

	// Probabilities returns the full class probability distribution for a
	// feature vector. The returned slice is owned by the caller.
	Probabilities(x []float64) ([]float64, error)

	// Classes returns the number of classes the model was trained on.
	Classes() int

	// Features returns the length of feature vector the model expects.
	Features() int
}

// Compile-time interface assertions.
var (
	_ Classifier = (*DecisionTree)(nil)
	_ Classifier = (*RandomForest)(nil)
)

// KindOf reports the ModelKind for a trained classifier.
func KindOf(c Classifier) (types.ModelKind, error) {
	switch c.(type) {
	case *DecisionTree:
		return types.ModelDecisionTree, nil
	case *RandomForest:
		return types.ModelRandomForest, nil
	default:
		return "", fmt.Errorf("unsupported classifier type %T", c)
	}
}

// UnmarshalClassifier decodes a serialized model of the given kind.
func UnmarshalClassifier(kind types.ModelKind, data []byte) (Classifier, error) {
	switch kind {
	case types.ModelDecisionTree:
		var t DecisionTree
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("decoding decision tree: %w", err)
		}
		return &t, nil
	case types.ModelRandomForest:
		var f RandomForest
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decoding random forest: %w", err)
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("unsupported model type %q", kind)
	}
}
