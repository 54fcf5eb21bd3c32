package ml

import (
	"errors"
	"fmt"
)

// Accuracy returns the fraction of predictions matching the true labels.
func Accuracy(yTrue, yPred []int) (float64, error) {
	if len(yTrue) == 0 {
		return 0, errors.New("no labels to score")
	}
	if len(yTrue) != len(yPred) {
		return 0, fmt.Errorf("true labels (%d) and predictions (%d) length mismatch", len(yTrue), len(yPred))
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue)), nil
}

// ConfusionMatrix returns an numClasses x numClasses matrix where rows are
// true classes and columns are predicted classes.
func ConfusionMatrix(yTrue, yPred []int, numClasses int) ([][]int, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("true labels (%d) and predictions (%d) length mismatch", len(yTrue), len(yPred))
	}
	if numClasses <= 0 {
		return nil, errors.New("numClasses must be positive")
	}
	m := make([][]int, numClasses)
	for i := range m {
		m[i] = make([]int, numClasses)
	}
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if t < 0 || t >= numClasses {
			return nil, fmt.Errorf("true label %d at row %d out of range", t, i)
		}
		if p < 0 || p >= numClasses {
			return nil, fmt.Errorf("prediction %d at row %d out of range", p, i)
		}
		m[t][p]++
	}
	return m, nil
}

// WeightedF1 returns the support-weighted mean of the per-class F1 scores.
// Classes with no true samples contribute zero weight; classes where
// precision and recall are both zero score zero, matching the usual
// zero-division convention.
func WeightedF1(yTrue, yPred []int, numClasses int) (float64, error) {
	m, err := ConfusionMatrix(yTrue, yPred, numClasses)
	if err != nil {
		return 0, err
	}
	if len(yTrue) == 0 {
		return 0, errors.New("no labels to score")
	}

	total := float64(len(yTrue))
	weighted := 0.0
	for c := 0; c < numClasses; c++ {
		tp := float64(m[c][c])
		support := 0.0
		predicted := 0.0
		for j := 0; j < numClasses; j++ {
			support += float64(m[c][j])
			predicted += float64(m[j][c])
		}
		if support == 0 {
			continue
		}
		var precision, recall float64
		if predicted > 0 {
			precision = tp / predicted
		}
		recall = tp / support
		var f1 float64
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		weighted += f1 * support / total
	}
	return weighted, nil
}
