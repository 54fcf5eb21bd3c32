// Package training implements the offline model training pipeline: dataset
// loading with mean imputation, encoder and scaler fitting, a stratified
// holdout split, cross validation, holdout evaluation, and artifact
// persistence in the layout the prediction engine loads.
package training

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"carewatch/internal/engine"
	"carewatch/internal/ml"
	"carewatch/internal/types"
)

const (
	// DefaultTestFraction is the holdout share of the dataset.
	DefaultTestFraction = 0.2
	// DefaultCVFolds is the cross validation fold count.
	DefaultCVFolds = 5
	// DefaultSeed drives the split, the folds, and forest training.
	DefaultSeed = 42
)

// Config controls a training run. Zero values fall back to the package
// defaults; Seed zero selects DefaultSeed.
type Config struct {
	// DataPath is the labeled training CSV.
	DataPath string
	// OutDir receives the four model artifacts.
	OutDir string
	// Model picks the classifier family.
	Model types.ModelKind
	// Seed makes the split, the folds, and forest training reproducible.
	Seed uint64

	TestFraction float64
	CVFolds      int
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = types.ModelRandomForest
	}
	if c.Seed == 0 {
		c.Seed = DefaultSeed
	}
	if c.TestFraction <= 0 {
		c.TestFraction = DefaultTestFraction
	}
	if c.CVFolds <= 0 {
		c.CVFolds = DefaultCVFolds
	}
	return c
}

// Result summarizes a completed training run. Metadata matches what was
// written to the artifact directory.
type Result struct {
	Metadata  *types.ModelMetadata
	CVScores  []float64
	TrainRows int
	TestRows  int
	Imputed   int
}

// featureImportancer is satisfied by both model families.
type featureImportancer interface {
	FeatureImportances() []float64
}

// Trainer runs the training pipeline end to end.
type Trainer struct {
	logger *slog.Logger
	clock  types.Clock
}

// NewTrainer returns a Trainer. A nil logger falls back to slog.Default
// and a nil clock to the real time.
func NewTrainer(logger *slog.Logger, clock types.Clock) *Trainer {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Trainer{logger: logger, clock: clock}
}

// Run executes one training run: load, preprocess, split, fit, cross
// validate, evaluate, persist.
func (t *Trainer) Run(ctx context.Context, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	if cfg.DataPath == "" {
		return nil, fmt.Errorf("training data path is required")
	}
	if cfg.OutDir == "" {
		return nil, fmt.Errorf("artifact output directory is required")
	}
	if cfg.Model != types.ModelDecisionTree && cfg.Model != types.ModelRandomForest {
		return nil, fmt.Errorf("unsupported model type %q", cfg.Model)
	}

	ds, err := LoadCSV(cfg.DataPath)
	if err != nil {
		return nil, fmt.Errorf("loading dataset: %w", err)
	}
	t.logger.Info("dataset loaded",
		"path", cfg.DataPath,
		"rows", ds.Len(),
		"imputed_cells", ds.Imputed,
	)

	encoder, err := ml.FitLabelEncoder(ds.Labels)
	if err != nil {
		return nil, fmt.Errorf("fitting label encoder: %w", err)
	}
	y, err := encoder.Transform(ds.Labels)
	if err != nil {
		return nil, fmt.Errorf("encoding labels: %w", err)
	}
	scaler, err := ml.FitScaler(ds.X)
	if err != nil {
		return nil, fmt.Errorf("fitting scaler: %w", err)
	}
	scaled, err := scaler.TransformBatch(ds.X)
	if err != nil {
		return nil, fmt.Errorf("scaling features: %w", err)
	}
	t.logger.Info("dataset preprocessed", "classes", encoder.Classes)

	trainX, trainY, testX, testY, err := ml.TrainTestSplit(scaled, y, cfg.TestFraction, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("splitting dataset: %w", err)
	}
	t.logger.Info("dataset split",
		"train_rows", len(trainX),
		"test_rows", len(testX),
		"test_fraction", cfg.TestFraction,
	)

	train := newTrainFunc(ctx, cfg)
	classifier, err := train(trainX, trainY)
	if err != nil {
		return nil, fmt.Errorf("training %s: %w", cfg.Model, err)
	}
	t.logger.Info("model trained", "model_type", cfg.Model)

	scores, err := ml.CrossValidate(ctx, trainX, trainY, cfg.CVFolds, cfg.Seed, train)
	if err != nil {
		return nil, fmt.Errorf("cross validating: %w", err)
	}
	cvMean, cvStd := ml.MeanStd(scores)
	t.logger.Info("cross validation complete",
		"folds", cfg.CVFolds,
		"mean_accuracy", cvMean,
		"accuracy_std", cvStd,
	)

	metrics, err := evaluate(classifier, testX, testY, encoder.Len())
	if err != nil {
		return nil, fmt.Errorf("evaluating holdout: %w", err)
	}
	metrics.CVAccuracyMean = cvMean
	metrics.CVAccuracyStd = cvStd
	t.logger.Info("holdout evaluated",
		"accuracy", metrics.Accuracy,
		"f1_score", metrics.F1Weighted,
	)

	meta := &types.ModelMetadata{
		ModelType:         cfg.Model,
		Features:          slices.Clone(types.DefaultFeatureOrder),
		Classes:           slices.Clone(encoder.Classes),
		Metrics:           *metrics,
		FeatureImportance: importanceByFeature(classifier),
		TrainedAt:         t.clock.Now().UTC(),
	}

	if err := engine.SaveArtifacts(cfg.OutDir, classifier, encoder, scaler, meta); err != nil {
		return nil, fmt.Errorf("saving artifacts: %w", err)
	}
	t.logger.Info("artifacts written", "dir", cfg.OutDir, "model_type", cfg.Model)

	return &Result{
		Metadata:  meta,
		CVScores:  scores,
		TrainRows: len(trainX),
		TestRows:  len(testX),
		Imputed:   ds.Imputed,
	}, nil
}

// newTrainFunc binds the configured model family so the holdout fit and
// every cross validation fold train identically.
func newTrainFunc(ctx context.Context, cfg Config) ml.TrainFunc {
	if cfg.Model == types.ModelDecisionTree {
		return func(X [][]float64, y []int) (ml.Classifier, error) {
			return ml.TrainDecisionTree(X, y, ml.TreeConfig{})
		}
	}
	return func(X [][]float64, y []int) (ml.Classifier, error) {
		return ml.TrainRandomForest(ctx, X, y, ml.ForestConfig{Seed: cfg.Seed})
	}
}

// evaluate scores the classifier on the holdout split.
func evaluate(c ml.Classifier, testX [][]float64, testY []int, numClasses int) (*types.ModelMetrics, error) {
	preds := make([]int, len(testX))
	for i, x := range testX {
		idx, err := c.PredictIndex(x)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		preds[i] = idx
	}

	accuracy, err := ml.Accuracy(testY, preds)
	if err != nil {
		return nil, err
	}
	f1, err := ml.WeightedF1(testY, preds, numClasses)
	if err != nil {
		return nil, err
	}
	confusion, err := ml.ConfusionMatrix(testY, preds, numClasses)
	if err != nil {
		return nil, err
	}
	return &types.ModelMetrics{
		Accuracy:        accuracy,
		F1Weighted:      f1,
		ConfusionMatrix: confusion,
	}, nil
}

// importanceByFeature maps impurity-decrease importances onto the schema
// field names.
func importanceByFeature(c ml.Classifier) map[string]float64 {
	fi, ok := c.(featureImportancer)
	if !ok {
		return nil
	}
	imp := fi.FeatureImportances()
	if len(imp) != len(types.DefaultFeatureOrder) {
		return nil
	}
	out := make(map[string]float64, len(imp))
	for i, name := range types.DefaultFeatureOrder {
		out[name] = imp[i]
	}
	return out
}
