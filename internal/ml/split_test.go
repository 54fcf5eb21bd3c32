package ml

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// --- Test Helpers ---

// labeledRows builds rows whose single feature value doubles as a row
// identity, with class sizes taken from counts.
func labeledRows(counts []int) ([][]float64, []int) {
	var X [][]float64
	var y []int
	i := 0
	for class, n := range counts {
		for j := 0; j < n; j++ {
			X = append(X, []float64{float64(i)})
			y = append(y, class)
			i++
		}
	}
	return X, y
}

func classCountsOf(y []int, numClasses int) []int {
	counts := make([]int, numClasses)
	for _, label := range y {
		counts[label]++
	}
	return counts
}

// --- Test: TrainTestSplit ---

func TestTrainTestSplitStratified(t *testing.T) {
	X, y := labeledRows([]int{50, 30, 20})

	trainX, trainY, testX, testY, err := TrainTestSplit(X, y, 0.2, 42)
	if err != nil {
		t.Fatalf("TrainTestSplit error: %v", err)
	}
	if len(trainX) != 80 || len(trainY) != 80 {
		t.Errorf("train size = %d/%d, want 80/80", len(trainX), len(trainY))
	}
	if len(testX) != 20 || len(testY) != 20 {
		t.Errorf("test size = %d/%d, want 20/20", len(testX), len(testY))
	}

	// Each class contributes 20% of its rows to the test set.
	wantTest := []int{10, 6, 4}
	gotTest := classCountsOf(testY, 3)
	for c := range wantTest {
		if gotTest[c] != wantTest[c] {
			t.Errorf("test count for class %d = %d, want %d", c, gotTest[c], wantTest[c])
		}
	}

	// Train and test must partition the rows exactly.
	seen := make(map[float64]int)
	for _, row := range trainX {
		seen[row[0]]++
	}
	for _, row := range testX {
		seen[row[0]]++
	}
	if len(seen) != 100 {
		t.Fatalf("split covers %d distinct rows, want 100", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("row %v appears %d times across the split", id, n)
		}
	}
}

func TestTrainTestSplitDeterministicForSeed(t *testing.T) {
	X, y := labeledRows([]int{40, 40})

	_, _, testXA, testYA, err := TrainTestSplit(X, y, 0.25, 7)
	if err != nil {
		t.Fatalf("first TrainTestSplit error: %v", err)
	}
	_, _, testXB, testYB, err := TrainTestSplit(X, y, 0.25, 7)
	if err != nil {
		t.Fatalf("second TrainTestSplit error: %v", err)
	}

	if len(testXA) != len(testXB) {
		t.Fatalf("test sizes differ: %d vs %d", len(testXA), len(testXB))
	}
	for i := range testXA {
		if testXA[i][0] != testXB[i][0] || testYA[i] != testYB[i] {
			t.Fatalf("same seed produced different splits at position %d", i)
		}
	}

	_, _, testXC, _, err := TrainTestSplit(X, y, 0.25, 8)
	if err != nil {
		t.Fatalf("third TrainTestSplit error: %v", err)
	}
	same := true
	for i := range testXA {
		if testXA[i][0] != testXC[i][0] {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical test membership")
	}
}

func TestTrainTestSplitTinyClassStaysInTrain(t *testing.T) {
	// A single-row class can never land entirely in the test set.
	X := [][]float64{{0}, {1}, {2}, {3}, {4}}
	y := []int{0, 0, 0, 0, 1}

	_, trainY, _, testY, err := TrainTestSplit(X, y, 0.5, 1)
	if err != nil {
		t.Fatalf("TrainTestSplit error: %v", err)
	}
	for _, label := range testY {
		if label == 1 {
			t.Error("single-row class ended up in the test set")
		}
	}
	found := false
	for _, label := range trainY {
		if label == 1 {
			found = true
		}
	}
	if !found {
		t.Error("single-row class missing from the train set")
	}
}

func TestTrainTestSplitValidation(t *testing.T) {
	X, y := labeledRows([]int{4, 4})

	for _, frac := range []float64{0, 1, -0.2, 1.5} {
		if _, _, _, _, err := TrainTestSplit(X, y, frac, 1); err == nil {
			t.Errorf("TrainTestSplit(fraction %v) expected error, got nil", frac)
		}
	}
	if _, _, _, _, err := TrainTestSplit(nil, nil, 0.2, 1); err == nil {
		t.Error("TrainTestSplit(empty data) expected error, got nil")
	}
}

// --- Test: CrossValidate ---

func TestCrossValidateSeparableData(t *testing.T) {
	X, y := bandsData(3, 10, 100)

	scores, err := CrossValidate(context.Background(), X, y, 5, 42, func(X [][]float64, y []int) (Classifier, error) {
		return TrainDecisionTree(X, y, TreeConfig{})
	})
	if err != nil {
		t.Fatalf("CrossValidate error: %v", err)
	}
	if len(scores) != 5 {
		t.Fatalf("got %d fold scores, want 5", len(scores))
	}
	// Bands are separated by wide gaps, so every fold recovers perfectly.
	for f, s := range scores {
		if !almostEqual(s, 1.0) {
			t.Errorf("fold %d accuracy = %v, want 1", f, s)
		}
	}
}

func TestCrossValidateDeterministicForSeed(t *testing.T) {
	// Overlapping classes keep fold accuracy below 1, so equality across
	// runs is not vacuous.
	var X [][]float64
	var y []int
	for i := 0; i < 20; i++ {
		X = append(X, []float64{float64(i)})
		y = append(y, 0)
	}
	for i := 10; i < 30; i++ {
		X = append(X, []float64{float64(i)})
		y = append(y, 1)
	}

	train := func(X [][]float64, y []int) (Classifier, error) {
		return TrainDecisionTree(X, y, TreeConfig{})
	}
	a, err := CrossValidate(context.Background(), X, y, 4, 17, train)
	if err != nil {
		t.Fatalf("first CrossValidate error: %v", err)
	}
	b, err := CrossValidate(context.Background(), X, y, 4, 17, train)
	if err != nil {
		t.Fatalf("second CrossValidate error: %v", err)
	}
	for f := range a {
		if a[f] != b[f] {
			t.Errorf("fold %d scores differ across runs: %v vs %v", f, a[f], b[f])
		}
	}
}

func TestCrossValidateFoldFailureFailsRun(t *testing.T) {
	X, y := bandsData(2, 6, 10)

	_, err := CrossValidate(context.Background(), X, y, 3, 1, func(X [][]float64, y []int) (Classifier, error) {
		return nil, errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "fold") || !strings.Contains(err.Error(), "boom") {
		t.Errorf("error = %q, want it to name the fold and the cause", err)
	}
}

func TestCrossValidateValidation(t *testing.T) {
	X, y := bandsData(2, 6, 10)
	train := func(X [][]float64, y []int) (Classifier, error) {
		return TrainDecisionTree(X, y, TreeConfig{})
	}

	if _, err := CrossValidate(context.Background(), X, y, 1, 1, train); err == nil {
		t.Error("k = 1 expected error, got nil")
	}
	if _, err := CrossValidate(context.Background(), X, y, len(y)+1, 1, train); err == nil {
		t.Error("k > rows expected error, got nil")
	}
	if _, err := CrossValidate(context.Background(), nil, nil, 2, 1, train); err == nil {
		t.Error("empty data expected error, got nil")
	}

	// A class smaller than k cannot be spread across every fold.
	tinyX := [][]float64{{0}, {1}, {2}, {3}, {4}}
	tinyY := []int{0, 0, 0, 0, 1}
	if _, err := CrossValidate(context.Background(), tinyX, tinyY, 3, 1, train); err == nil {
		t.Error("class smaller than k expected error, got nil")
	}
}

func TestCrossValidateCancelledContext(t *testing.T) {
	X, y := bandsData(2, 6, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CrossValidate(ctx, X, y, 3, 1, func(X [][]float64, y []int) (Classifier, error) {
		return TrainDecisionTree(X, y, TreeConfig{})
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

// --- Test: stratifiedFolds ---

func TestStratifiedFoldsBalanceClasses(t *testing.T) {
	// 8 rows of class 0 and 4 of class 1 into 4 folds: every fold gets
	// exactly 2 of the majority class and 1 of the minority class.
	y := []int{0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1}

	folds := stratifiedFolds(y, 4, 99)
	if len(folds) != 4 {
		t.Fatalf("got %d folds, want 4", len(folds))
	}

	seen := make(map[int]int)
	for f, fold := range folds {
		if len(fold) != 3 {
			t.Errorf("fold %d has %d rows, want 3", f, len(fold))
		}
		counts := []int{0, 0}
		for _, i := range fold {
			if i < 0 || i >= len(y) {
				t.Fatalf("fold %d contains out-of-range index %d", f, i)
			}
			seen[i]++
			counts[y[i]]++
		}
		if counts[0] != 2 || counts[1] != 1 {
			t.Errorf("fold %d class counts = %v, want [2 1]", f, counts)
		}
	}
	if len(seen) != len(y) {
		t.Fatalf("folds cover %d rows, want %d", len(seen), len(y))
	}
	for i, n := range seen {
		if n != 1 {
			t.Errorf("row %d appears in %d folds", i, n)
		}
	}
}
