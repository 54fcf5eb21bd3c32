package ml

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// --- Test: TrainRandomForest ---

func TestTrainRandomForestSeparableData(t *testing.T) {
	X, y := bandsData(3, 10, 100)

	// MaxFeatures 2 lets every split see the informative feature, so each
	// tree separates the bands on its own and the vote is unanimous.
	forest, err := TrainRandomForest(context.Background(), X, y, ForestConfig{Trees: 15, MaxFeatures: 2, Seed: 42})
	if err != nil {
		t.Fatalf("TrainRandomForest error: %v", err)
	}
	if got := forest.Classes(); got != 3 {
		t.Errorf("Classes() = %d, want 3", got)
	}
	if got := forest.Features(); got != 2 {
		t.Errorf("Features() = %d, want 2", got)
	}
	if got := len(forest.Trees); got != 15 {
		t.Errorf("trained %d trees, want 15", got)
	}
	for i, row := range X {
		idx, err := forest.PredictIndex(row)
		if err != nil {
			t.Fatalf("PredictIndex(row %d) error: %v", i, err)
		}
		if idx != y[i] {
			t.Errorf("PredictIndex(row %d) = %d, want %d", i, idx, y[i])
		}
	}
}

func TestTrainRandomForestDeterministicForSeed(t *testing.T) {
	X, y := bandsData(3, 10, 100)
	cfg := ForestConfig{Trees: 12, Seed: 7}

	a, err := TrainRandomForest(context.Background(), X, y, cfg)
	if err != nil {
		t.Fatalf("first TrainRandomForest error: %v", err)
	}
	b, err := TrainRandomForest(context.Background(), X, y, cfg)
	if err != nil {
		t.Fatalf("second TrainRandomForest error: %v", err)
	}

	// Per-tree seeds are drawn before training starts, so two runs must
	// produce byte-identical models regardless of goroutine scheduling.
	aJSON, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	bJSON, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if string(aJSON) != string(bJSON) {
		t.Error("same seed produced different forests")
	}
}

func TestTrainRandomForestSeedChangesModel(t *testing.T) {
	X, y := bandsData(3, 10, 100)

	a, err := TrainRandomForest(context.Background(), X, y, ForestConfig{Trees: 12, Seed: 1})
	if err != nil {
		t.Fatalf("TrainRandomForest(seed 1) error: %v", err)
	}
	b, err := TrainRandomForest(context.Background(), X, y, ForestConfig{Trees: 12, Seed: 2})
	if err != nil {
		t.Fatalf("TrainRandomForest(seed 2) error: %v", err)
	}

	aJSON, _ := json.Marshal(a)
	bJSON, _ := json.Marshal(b)
	if string(aJSON) == string(bJSON) {
		t.Error("different seeds produced identical forests")
	}
}

func TestTrainRandomForestRareClassKeepsFullDistribution(t *testing.T) {
	// Class 2 has two rows out of 22, so many bootstrap samples miss it
	// entirely. Leaf distributions must still cover all three classes.
	X, y := bandsData(2, 10, 100)
	X = append(X, []float64{5, 500}, []float64{5, 501})
	y = append(y, 2, 2)

	forest, err := TrainRandomForest(context.Background(), X, y, ForestConfig{Trees: 20, Seed: 3})
	if err != nil {
		t.Fatalf("TrainRandomForest error: %v", err)
	}
	probs, err := forest.Probabilities([]float64{5, 500})
	if err != nil {
		t.Fatalf("Probabilities error: %v", err)
	}
	if len(probs) != 3 {
		t.Fatalf("distribution length = %d, want 3", len(probs))
	}
	sum := 0.0
	for _, p := range probs {
		sum += p
	}
	if !almostEqual(sum, 1.0) {
		t.Errorf("distribution sums to %v, want 1", sum)
	}
}

func TestTrainRandomForestCancelledContext(t *testing.T) {
	X, y := bandsData(3, 10, 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := TrainRandomForest(ctx, X, y, ForestConfig{Trees: 8, Seed: 1})
	if err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestTrainRandomForestInputValidation(t *testing.T) {
	_, err := TrainRandomForest(context.Background(), nil, nil, ForestConfig{Trees: 3, Seed: 1})
	if err == nil {
		t.Fatal("expected error for empty data, got nil")
	}
	if !strings.Contains(err.Error(), "empty") {
		t.Errorf("error = %q, want substring %q", err, "empty")
	}
}

// --- Test: Prediction ---

func TestRandomForestUntrained(t *testing.T) {
	var forest RandomForest
	if _, err := forest.Probabilities([]float64{1}); err == nil {
		t.Error("expected error from untrained forest, got nil")
	}
	if _, err := forest.PredictIndex([]float64{1}); err == nil {
		t.Error("expected error from untrained forest, got nil")
	}
}

func TestRandomForestVectorWidthMismatch(t *testing.T) {
	X, y := bandsData(2, 8, 100)
	forest, err := TrainRandomForest(context.Background(), X, y, ForestConfig{Trees: 5, Seed: 1})
	if err != nil {
		t.Fatalf("TrainRandomForest error: %v", err)
	}

	_, err = forest.Probabilities([]float64{1, 2, 3})
	if err == nil {
		t.Fatal("expected error for wrong vector width, got nil")
	}
	if !strings.Contains(err.Error(), "expects 2") {
		t.Errorf("error = %q, want substring %q", err, "expects 2")
	}
}

func TestRandomForestProbabilitiesAverageTrees(t *testing.T) {
	X, y := bandsData(3, 10, 100)
	forest, err := TrainRandomForest(context.Background(), X, y, ForestConfig{Trees: 10, Seed: 5})
	if err != nil {
		t.Fatalf("TrainRandomForest error: %v", err)
	}

	v := []float64{5, 150}
	want := make([]float64, forest.NumClasses)
	for i := range forest.Trees {
		probs, err := forest.Trees[i].Probabilities(v)
		if err != nil {
			t.Fatalf("tree %d Probabilities error: %v", i, err)
		}
		for c, p := range probs {
			want[c] += p
		}
	}
	for c := range want {
		want[c] /= float64(len(forest.Trees))
	}

	got, err := forest.Probabilities(v)
	if err != nil {
		t.Fatalf("Probabilities error: %v", err)
	}
	for c := range want {
		if !almostEqual(got[c], want[c]) {
			t.Errorf("class %d prob = %v, want mean %v", c, got[c], want[c])
		}
	}
}

// --- Test: Feature Importances ---

func TestRandomForestFeatureImportances(t *testing.T) {
	X, y := bandsData(3, 10, 100)
	forest, err := TrainRandomForest(context.Background(), X, y, ForestConfig{Trees: 10, MaxFeatures: 2, Seed: 9})
	if err != nil {
		t.Fatalf("TrainRandomForest error: %v", err)
	}

	imp := forest.FeatureImportances()
	if len(imp) != 2 {
		t.Fatalf("FeatureImportances length = %d, want 2", len(imp))
	}
	if imp[0] != 0 {
		t.Errorf("importance of constant feature = %v, want 0", imp[0])
	}
	if !almostEqual(imp[1], 1.0) {
		t.Errorf("importance of splitting feature = %v, want 1", imp[1])
	}
}

// --- Test: Serialization ---

func TestRandomForestJSONRoundTrip(t *testing.T) {
	X, y := bandsData(3, 8, 100)
	forest, err := TrainRandomForest(context.Background(), X, y, ForestConfig{Trees: 6, Seed: 11})
	if err != nil {
		t.Fatalf("TrainRandomForest error: %v", err)
	}

	data, err := json.Marshal(forest)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var decoded RandomForest
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	for i, row := range X {
		want, err := forest.Probabilities(row)
		if err != nil {
			t.Fatalf("original Probabilities(row %d) error: %v", i, err)
		}
		got, err := decoded.Probabilities(row)
		if err != nil {
			t.Fatalf("decoded Probabilities(row %d) error: %v", i, err)
		}
		for c := range want {
			if got[c] != want[c] {
				t.Errorf("row %d class %d: decoded prob %v, want %v", i, c, got[c], want[c])
			}
		}
	}
}
