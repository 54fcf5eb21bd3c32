// Package main implements the trainer CLI for fitting an activity
// classification model from a labelled sensor dataset.
//
// The trainer reads a CSV of sensor readings, fits the label encoder,
// feature scaler, and classifier, cross validates on the training split,
// and writes the artifact set the API server loads at startup.
//
// Usage:
//
//	go run ./cmd/trainer
//	go run ./cmd/trainer --data=training_data/training_data.csv --out=models
//	go run ./cmd/trainer --model=decision_tree --seed=7
//
// Training is fully offline: it needs no database and no environment
// configuration, only the dataset file and a writable output directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"carewatch/internal/training"
	"carewatch/internal/types"
)

func main() {
	dataFlag := flag.String("data", "training_data/training_data.csv", "Path to the labelled training CSV")
	outFlag := flag.String("out", "models", "Directory to write model artifacts into")
	modelFlag := flag.String("model", string(types.ModelRandomForest), "Model family to train (decision_tree or random_forest)")
	seedFlag := flag.Uint64("seed", training.DefaultSeed, "Seed for the dataset split, cross validation folds, and forest sampling")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: trainer [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Train an activity classifier and write its artifact set.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	// Validate the model family before spending time loading the dataset.
	model := types.ModelKind(*modelFlag)
	if model != types.ModelDecisionTree && model != types.ModelRandomForest {
		fmt.Fprintf(os.Stderr, "error: unknown model %q\n\n", *modelFlag)
		flag.Usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	trainer := training.NewTrainer(logger, nil)
	res, err := trainer.Run(ctx, training.Config{
		DataPath: *dataFlag,
		OutDir:   *outFlag,
		Model:    model,
		Seed:     *seedFlag,
	})
	if err != nil {
		logger.Error("training failed", "error", err)
		os.Exit(1)
	}

	logger.Info("training succeeded",
		"model_type", string(res.Metadata.ModelType),
		"out_dir", *outFlag,
		"train_rows", res.TrainRows,
		"test_rows", res.TestRows,
		"imputed_cells", res.Imputed,
		"accuracy", res.Metadata.Metrics.Accuracy,
		"f1_score", res.Metadata.Metrics.F1Weighted,
		"cv_accuracy_mean", res.Metadata.Metrics.CVAccuracyMean,
	)
}
