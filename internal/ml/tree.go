package ml

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
)

// Default hyperparameters. They mirror the settings the original activity
// model was tuned with and apply whenever a config field is left zero.
const (
	// DefaultTreeMaxDepth bounds standalone decision tree growth.
	DefaultTreeMaxDepth = 10
	// DefaultMinSamplesSplit is the smallest node eligible for splitting.
	DefaultMinSamplesSplit = 5
	// DefaultMinSamplesLeaf is the smallest allowed child after a split.
	DefaultMinSamplesLeaf = 2
)

// TreeConfig controls decision tree training. Zero values fall back to the
// package defaults.
type TreeConfig struct {
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
}

func (c TreeConfig) withDefaults() TreeConfig {
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultTreeMaxDepth
	}
	if c.MinSamplesSplit <= 0 {
		c.MinSamplesSplit = DefaultMinSamplesSplit
	}
	if c.MinSamplesLeaf <= 0 {
		c.MinSamplesLeaf = DefaultMinSamplesLeaf
	}
	return c
}

// TreeNode is one node of a flattened decision tree. Internal nodes route
// on Feature/Threshold; leaves carry Feature == -1 and the class
// distribution observed during training.
type TreeNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Dist      []float64 `json:"dist,omitempty"`
}

// DecisionTree is a CART classifier over a fixed-width feature vector.
// Nodes are stored in pre-order: index 0 is the root, and children always
// follow their parent, so a serialized tree round-trips byte-exact.
type DecisionTree struct {
	Nodes       []TreeNode `json:"nodes"`
	NumClasses  int        `json:"num_classes"`
	NumFeatures int        `json:"num_features"`
	Importances []float64  `json:"importances,omitempty"`
}

// TrainDecisionTree fits a single tree on the given rows. Labels must be
// dense class indices starting at zero.
func TrainDecisionTree(X [][]float64, y []int, cfg TreeConfig) (*DecisionTree, error) {
	if err := checkTrainingData(X, y); err != nil {
		return nil, err
	}
	return trainTree(X, y, cfg.withDefaults(), maxLabel(y)+1, 0, nil)
}

// trainTree is the shared builder entry point. numClasses sizes every leaf
// distribution, which matters for forests whose bootstrap samples can miss
// a rare class. maxFeatures > 0 restricts each split to a random feature
// subset drawn from rng.
func trainTree(X [][]float64, y []int, cfg TreeConfig, numClasses, maxFeatures int, rng *rand.Rand) (*DecisionTree, error) {
	b := &builder{
		cfg:         cfg,
		numClasses:  numClasses,
		numFeatures: len(X[0]),
		maxFeatures: maxFeatures,
		rng:         rng,
		importances: make([]float64, len(X[0])),
		totalRows:   float64(len(y)),
	}
	b.build(X, y, 0)
	normalizeInPlace(b.importances)
	return &DecisionTree{
		Nodes:       b.nodes,
		NumClasses:  numClasses,
		NumFeatures: b.numFeatures,
		Importances: b.importances,
	}, nil
}

// Classes returns the number of classes the tree was trained on.
func (t *DecisionTree) Classes() int { return t.NumClasses }

// Features returns the feature vector length the tree expects.
func (t *DecisionTree) Features() int { return t.NumFeatures }

// FeatureImportances returns the normalized impurity-decrease importance
// per feature column. The returned slice is owned by the caller.
func (t *DecisionTree) FeatureImportances() []float64 {
	out := make([]float64, len(t.Importances))
	copy(out, t.Importances)
	return out
}

// PredictIndex returns the winning class index for a feature vector.
// Ties resolve to the lowest class index.
func (t *DecisionTree) PredictIndex(x []float64) (int, error) {
	probs, err := t.Probabilities(x)
	if err != nil {
		return 0, err
	}
	return argMax(probs), nil
}

// Probabilities walks the tree and returns a copy of the leaf's class
// distribution. Traversal is bounded by the node count so a corrupted
// artifact cannot loop forever.
func (t *DecisionTree) Probabilities(x []float64) ([]float64, error) {
	if len(t.Nodes) == 0 {
		return nil, errors.New("decision tree is not trained")
	}
	if len(x) != t.NumFeatures {
		return nil, fmt.Errorf("feature vector has %d values, model expects %d", len(x), t.NumFeatures)
	}
	idx := 0
	for step := 0; step <= len(t.Nodes); step++ {
		node := &t.Nodes[idx]
		if node.Feature < 0 {
			if len(node.Dist) != t.NumClasses {
				return nil, fmt.Errorf("corrupt tree: leaf %d has %d class weights, expected %d", idx, len(node.Dist), t.NumClasses)
			}
			dist := make([]float64, t.NumClasses)
			copy(dist, node.Dist)
			return dist, nil
		}
		if node.Feature >= len(x) {
			return nil, fmt.Errorf("corrupt tree: node %d routes on feature %d of %d", idx, node.Feature, len(x))
		}
		if x[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
		if idx < 0 || idx >= len(t.Nodes) {
			return nil, fmt.Errorf("corrupt tree: child index %d out of range", idx)
		}
	}
	return nil, errors.New("corrupt tree: traversal did not reach a leaf")
}

// builder accumulates flattened nodes and importance mass during a
// recursive build.
type builder struct {
	cfg         TreeConfig
	numClasses  int
	numFeatures int
	maxFeatures int
	rng         *rand.Rand
	nodes       []TreeNode
	importances []float64
	totalRows   float64
}

// build grows the subtree for the given rows and returns its root index.
// The node is appended before recursing so children land after their
// parent in the flattened slice.
func (b *builder) build(X [][]float64, y []int, depth int) int {
	idx := len(b.nodes)
	b.nodes = append(b.nodes, TreeNode{Feature: -1, Left: -1, Right: -1})

	counts := classCounts(y, b.numClasses)
	if depth >= b.cfg.MaxDepth || len(y) < b.cfg.MinSamplesSplit || isPure(counts) {
		b.nodes[idx].Dist = distribution(counts, len(y))
		return idx
	}

	feature, threshold, gain, ok := b.bestSplit(X, y, counts)
	if !ok {
		b.nodes[idx].Dist = distribution(counts, len(y))
		return idx
	}
	b.importances[feature] += float64(len(y)) / b.totalRows * gain

	leftX, leftY, rightX, rightY := partition(X, y, feature, threshold)
	left := b.build(leftX, leftY, depth+1)
	right := b.build(rightX, rightY, depth+1)

	b.nodes[idx].Feature = feature
	b.nodes[idx].Threshold = threshold
	b.nodes[idx].Left = left
	b.nodes[idx].Right = right
	return idx
}

// bestSplit scans candidate features for the threshold with the largest
// Gini gain. Thresholds are midpoints between consecutive distinct sorted
// values; children smaller than MinSamplesLeaf are skipped. Returns
// ok == false when no split improves on the parent.
func (b *builder) bestSplit(X [][]float64, y []int, parentCounts []int) (feature int, threshold float64, gain float64, ok bool) {
	n := len(y)
	parentGini := giniFromCounts(parentCounts, n)
	feature = -1

	type pair struct {
		v float64
		c int
	}
	pairs := make([]pair, n)
	left := make([]int, b.numClasses)

	for _, f := range b.splitCandidates() {
		for i, row := range X {
			pairs[i] = pair{v: row[f], c: y[i]}
		}
		sort.Slice(pairs, func(i, j int) bool { return pairs[i].v < pairs[j].v })

		for i := range left {
			left[i] = 0
		}
		leftN := 0
		for i := 0; i < n-1; i++ {
			left[pairs[i].c]++
			leftN++
			if pairs[i].v == pairs[i+1].v {
				continue
			}
			rightN := n - leftN
			if leftN < b.cfg.MinSamplesLeaf || rightN < b.cfg.MinSamplesLeaf {
				continue
			}
			g := parentGini -
				float64(leftN)/float64(n)*giniFromCounts(left, leftN) -
				float64(rightN)/float64(n)*giniOfComplement(parentCounts, left, rightN)
			if g > gain {
				gain = g
				feature = f
				threshold = (pairs[i].v + pairs[i+1].v) / 2
			}
		}
	}
	if feature < 0 || gain <= 0 {
		return -1, 0, 0, false
	}
	return feature, threshold, gain, true
}

// splitCandidates returns the feature indices to consider for one split,
// in ascending order so equal-gain ties break deterministically.
func (b *builder) splitCandidates() []int {
	if b.maxFeatures <= 0 || b.maxFeatures >= b.numFeatures {
		all := make([]int, b.numFeatures)
		for i := range all {
			all[i] = i
		}
		return all
	}
	sub := b.rng.Perm(b.numFeatures)[:b.maxFeatures]
	sort.Ints(sub)
	return sub
}

func partition(X [][]float64, y []int, feature int, threshold float64) (leftX [][]float64, leftY []int, rightX [][]float64, rightY []int) {
	for i, row := range X {
		if row[feature] <= threshold {
			leftX = append(leftX, row)
			leftY = append(leftY, y[i])
		} else {
			rightX = append(rightX, row)
			rightY = append(rightY, y[i])
		}
	}
	return leftX, leftY, rightX, rightY
}

func classCounts(y []int, numClasses int) []int {
	counts := make([]int, numClasses)
	for _, label := range y {
		counts[label]++
	}
	return counts
}

func distribution(counts []int, total int) []float64 {
	dist := make([]float64, len(counts))
	if total == 0 {
		return dist
	}
	for i, c := range counts {
		dist[i] = float64(c) / float64(total)
	}
	return dist
}

func giniFromCounts(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		g -= p * p
	}
	return g
}

// giniOfComplement is the Gini impurity of parent minus left, computed
// without materializing the right-side counts.
func giniOfComplement(parent, left []int, total int) float64 {
	if total == 0 {
		return 0
	}
	g := 1.0
	for i := range parent {
		p := float64(parent[i]-left[i]) / float64(total)
		g -= p * p
	}
	return g
}

func isPure(counts []int) bool {
	seen := 0
	for _, c := range counts {
		if c > 0 {
			seen++
			if seen > 1 {
				return false
			}
		}
	}
	return true
}

func maxLabel(y []int) int {
	max := 0
	for _, label := range y {
		if label > max {
			max = label
		}
	}
	return max
}

// argMax returns the index of the largest value; ties resolve to the
// lowest index.
func argMax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func normalizeInPlace(v []float64) {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	if sum <= 0 {
		return
	}
	for i := range v {
		v[i] /= sum
	}
}

func checkTrainingData(X [][]float64, y []int) error {
	if len(X) == 0 || len(y) == 0 {
		return errors.New("training data is empty")
	}
	if len(X) != len(y) {
		return fmt.Errorf("feature rows (%d) and labels (%d) length mismatch", len(X), len(y))
	}
	width := len(X[0])
	if width == 0 {
		return errors.New("feature rows are empty")
	}
	for i, row := range X {
		if len(row) != width {
			return fmt.Errorf("feature row %d has %d values, expected %d", i, len(row), width)
		}
	}
	for i, label := range y {
		if label < 0 {
			return fmt.Errorf("negative label %d at row %d", label, i)
		}
	}
	return nil
}
