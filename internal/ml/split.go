package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"golang.org/x/sync/errgroup"
)

// cvConcurrency bounds parallel fold evaluation. Each fold trains a whole
// model, which may itself parallelize, so the fan-out stays small.
const cvConcurrency = 2

// TrainTestSplit partitions rows into train and test sets while preserving
// the class proportions of y. The split is deterministic for a given seed.
func TrainTestSplit(X [][]float64, y []int, testFraction float64, seed uint64) (trainX [][]float64, trainY []int, testX [][]float64, testY []int, err error) {
	if err := checkTrainingData(X, y); err != nil {
		return nil, nil, nil, nil, err
	}
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, nil, nil, fmt.Errorf("test fraction %v outside (0, 1)", testFraction)
	}

	byClass := indicesByClass(y)
	rng := rand.New(rand.NewPCG(seed, seed))

	var trainIdx, testIdx []int
	for _, idx := range byClass {
		if len(idx) == 0 {
			continue
		}
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		nTest := int(math.Round(testFraction * float64(len(idx))))
		// A class never moves wholesale into the test set.
		if nTest >= len(idx) {
			nTest = len(idx) - 1
		}
		testIdx = append(testIdx, idx[:nTest]...)
		trainIdx = append(trainIdx, idx[nTest:]...)
	}
	// Restore row order so downstream results do not depend on class layout.
	sort.Ints(trainIdx)
	sort.Ints(testIdx)

	trainX, trainY = takeRows(X, y, trainIdx)
	testX, testY = takeRows(X, y, testIdx)
	return trainX, trainY, testX, testY, nil
}

// TrainFunc fits a classifier on the given rows. CrossValidate calls it
// once per fold.
type TrainFunc func(X [][]float64, y []int) (Classifier, error)

// CrossValidate runs stratified k-fold validation and returns the per-fold
// accuracy in fold order. Folds run concurrently with a bounded limit; any
// fold error fails the whole run.
func CrossValidate(ctx context.Context, X [][]float64, y []int, k int, seed uint64, train TrainFunc) ([]float64, error) {
	if err := checkTrainingData(X, y); err != nil {
		return nil, err
	}
	if k < 2 {
		return nil, errors.New("cross validation needs at least 2 folds")
	}
	if k > len(y) {
		return nil, fmt.Errorf("cannot make %d folds from %d rows", k, len(y))
	}
	for class, idx := range indicesByClass(y) {
		if len(idx) > 0 && len(idx) < k {
			return nil, fmt.Errorf("class %d has %d rows, fewer than %d folds", class, len(idx), k)
		}
	}

	folds := stratifiedFolds(y, k, seed)
	scores := make([]float64, k)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(cvConcurrency)
	for f := 0; f < k; f++ {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			inTest := make([]bool, len(y))
			for _, i := range folds[f] {
				inTest[i] = true
			}
			var trainIdx, testIdx []int
			for i := range y {
				if inTest[i] {
					testIdx = append(testIdx, i)
				} else {
					trainIdx = append(trainIdx, i)
				}
			}
			trainX, trainY := takeRows(X, y, trainIdx)
			testX, testY := takeRows(X, y, testIdx)

			model, err := train(trainX, trainY)
			if err != nil {
				return fmt.Errorf("fold %d: training: %w", f, err)
			}
			preds := make([]int, len(testX))
			for i, row := range testX {
				idx, err := model.PredictIndex(row)
				if err != nil {
					return fmt.Errorf("fold %d: predicting row %d: %w", f, i, err)
				}
				preds[i] = idx
			}
			acc, err := Accuracy(testY, preds)
			if err != nil {
				return fmt.Errorf("fold %d: %w", f, err)
			}
			// Each goroutine writes a distinct index; no lock needed.
			scores[f] = acc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

// stratifiedFolds deals each class's shuffled indices round-robin across k
// folds, keeping the class mix of every fold close to the full dataset.
func stratifiedFolds(y []int, k int, seed uint64) [][]int {
	rng := rand.New(rand.NewPCG(seed, seed))
	folds := make([][]int, k)
	for _, idx := range indicesByClass(y) {
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		for pos, i := range idx {
			f := pos % k
			folds[f] = append(folds[f], i)
		}
	}
	for f := range folds {
		sort.Ints(folds[f])
	}
	return folds
}

// indicesByClass groups row indices by label, ordered by class index.
func indicesByClass(y []int) [][]int {
	byClass := make([][]int, maxLabel(y)+1)
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}
	return byClass
}

func takeRows(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	outX := make([][]float64, len(idx))
	outY := make([]int, len(idx))
	for i, j := range idx {
		outX[i] = X[j]
		outY[i] = y[j]
	}
	return outX, outY
}

// MeanStd returns the mean and population standard deviation of values.
func MeanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	for _, v := range values {
		d := v - mean
		std += d * d
	}
	std = math.Sqrt(std / float64(len(values)))
	return mean, std
}
