package ml

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultForestTrees is the ensemble size.
	DefaultForestTrees = 100
	// DefaultForestMaxDepth bounds per-tree growth inside a forest.
	DefaultForestMaxDepth = 15
	// forestTrainConcurrency bounds parallel tree fits during training.
	forestTrainConcurrency = 8
)

// ForestConfig controls random forest training. Zero values fall back to
// the package defaults; MaxFeatures zero means sqrt of the feature count.
type ForestConfig struct {
	Trees           int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	Seed            uint64
}

func (c ForestConfig) withDefaults() ForestConfig {
	if c.Trees <= 0 {
		c.Trees = DefaultForestTrees
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultForestMaxDepth
	}
	if c.MinSamplesSplit <= 0 {
		c.MinSamplesSplit = DefaultMinSamplesSplit
	}
	if c.MinSamplesLeaf <= 0 {
		c.MinSamplesLeaf = DefaultMinSamplesLeaf
	}
	return c
}

// RandomForest is a bagged ensemble of decision trees. Class probabilities
// are the mean of the per-tree leaf distributions.
type RandomForest struct {
	Trees       []DecisionTree `json:"trees"`
	NumClasses  int            `json:"num_classes"`
	NumFeatures int            `json:"num_features"`
	Importances []float64      `json:"importances,omitempty"`
}

// TrainRandomForest fits cfg.Trees trees on bootstrap samples of the rows,
// restricting each split to a random feature subset. Per-tree generators
// are seeded up front from cfg.Seed, so results are reproducible no matter
// how the parallel fits interleave.
func TrainRandomForest(ctx context.Context, X [][]float64, y []int, cfg ForestConfig) (*RandomForest, error) {
	if err := checkTrainingData(X, y); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	numClasses := maxLabel(y) + 1
	numFeatures := len(X[0])
	maxFeatures := cfg.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Sqrt(float64(numFeatures)))
		if maxFeatures < 1 {
			maxFeatures = 1
		}
	}
	treeCfg := TreeConfig{
		MaxDepth:        cfg.MaxDepth,
		MinSamplesSplit: cfg.MinSamplesSplit,
		MinSamplesLeaf:  cfg.MinSamplesLeaf,
	}

	master := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	seeds := make([][2]uint64, cfg.Trees)
	for i := range seeds {
		seeds[i] = [2]uint64{master.Uint64(), master.Uint64()}
	}

	trees := make([]DecisionTree, cfg.Trees)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(forestTrainConcurrency)
	for i := 0; i < cfg.Trees; i++ {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(seeds[i][0], seeds[i][1]))
			bx, by := bootstrap(X, y, rng)
			tree, err := trainTree(bx, by, treeCfg, numClasses, maxFeatures, rng)
			if err != nil {
				return fmt.Errorf("training tree %d: %w", i, err)
			}
			// Each goroutine writes a distinct index; no lock needed.
			trees[i] = *tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &RandomForest{
		Trees:       trees,
		NumClasses:  numClasses,
		NumFeatures: numFeatures,
		Importances: meanImportances(trees, numFeatures),
	}, nil
}

// bootstrap draws len(y) rows with replacement.
func bootstrap(X [][]float64, y []int, rng *rand.Rand) ([][]float64, []int) {
	n := len(y)
	bx := make([][]float64, n)
	by := make([]int, n)
	for i := 0; i < n; i++ {
		j := rng.IntN(n)
		bx[i] = X[j]
		by[i] = y[j]
	}
	return bx, by
}

// meanImportances averages the per-tree normalized importances and
// renormalizes the result.
func meanImportances(trees []DecisionTree, numFeatures int) []float64 {
	out := make([]float64, numFeatures)
	if len(trees) == 0 {
		return out
	}
	for i := range trees {
		for f, v := range trees[i].Importances {
			out[f] += v
		}
	}
	for f := range out {
		out[f] /= float64(len(trees))
	}
	normalizeInPlace(out)
	return out
}

// Classes returns the number of classes the forest was trained on.
func (f *RandomForest) Classes() int { return f.NumClasses }

// Features returns the feature vector length the forest expects.
func (f *RandomForest) Features() int { return f.NumFeatures }

// FeatureImportances returns the normalized impurity-decrease importance
// per feature column. The returned slice is owned by the caller.
func (f *RandomForest) FeatureImportances() []float64 {
	out := make([]float64, len(f.Importances))
	copy(out, f.Importances)
	return out
}

// PredictIndex returns the winning class index for a feature vector.
// Ties resolve to the lowest class index.
func (f *RandomForest) PredictIndex(x []float64) (int, error) {
	probs, err := f.Probabilities(x)
	if err != nil {
		return 0, err
	}
	return argMax(probs), nil
}

// Probabilities returns the mean class distribution across all trees.
func (f *RandomForest) Probabilities(x []float64) ([]float64, error) {
	if len(f.Trees) == 0 {
		return nil, errors.New("random forest is not trained")
	}
	if len(x) != f.NumFeatures {
		return nil, fmt.Errorf("feature vector has %d values, model expects %d", len(x), f.NumFeatures)
	}
	sum := make([]float64, f.NumClasses)
	for i := range f.Trees {
		probs, err := f.Trees[i].Probabilities(x)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		for c, p := range probs {
			sum[c] += p
		}
	}
	for c := range sum {
		sum[c] /= float64(len(f.Trees))
	}
	return sum, nil
}
