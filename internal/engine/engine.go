// Package engine implements the prediction service core: an artifact
// store that loads and atomically publishes trained model bundles, the
// feature vectorizer, the inference pipeline, and the lifecycle
// controller that serializes loads. Once a bundle is published the
// predict path is lock-free.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"carewatch/internal/types"
)

// State is the lifecycle state of the artifact store. A failed load
// records its error and returns the store to StateNotLoaded, so the next
// EnsureReady call retries from scratch.
type State int

const (
	StateNotLoaded State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateNotLoaded:
		return "not_loaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Engine owns the artifact lifecycle and answers predictions against the
// currently published bundle.
type Engine struct {
	source ArtifactSource
	logger *slog.Logger

	current atomic.Pointer[bundle]

	// loadMu serializes load attempts; the predict path never takes it.
	loadMu sync.Mutex

	statusMu sync.Mutex
	state    State
	lastErr  error
}

// NewEngine creates an engine over the given artifact source. Nothing is
// loaded until the first EnsureReady call.
func NewEngine(source ArtifactSource, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{source: source, logger: logger}
}

// Ready reports whether a bundle is published, without loading anything.
func (e *Engine) Ready() bool { return e.current.Load() != nil }

// Status reports the lifecycle state and the error recorded by the most
// recent failed load, for the health and info surfaces.
func (e *Engine) Status() (State, error) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	return e.state, e.lastErr
}

func (e *Engine) setStatus(state State, err error) {
	e.statusMu.Lock()
	e.state = state
	e.lastErr = err
	e.statusMu.Unlock()
}

// EnsureReady publishes a bundle if none is loaded yet. It is idempotent:
// once the store is Ready it returns true immediately, with no locks and
// no artifact reads. Concurrent cold-start callers serialize on one
// mutex and exactly one of them performs the load. A failed load is
// recorded and reported as false; nothing retries until the next call.
func (e *Engine) EnsureReady() bool {
	if e.current.Load() != nil {
		return true
	}
	e.loadMu.Lock()
	defer e.loadMu.Unlock()
	// Another caller may have finished the load while we waited.
	if e.current.Load() != nil {
		return true
	}

	e.setStatus(StateLoading, nil)
	b, err := loadBundle(e.source, e.logger)
	if err != nil {
		e.setStatus(StateNotLoaded, err)
		e.logger.Error("model load failed", "error", err)
		return false
	}
	e.current.Store(b)
	e.setStatus(StateReady, nil)
	e.logger.Info("model ready",
		"model_type", b.metadata.ModelType,
		"classes", len(b.classes),
		"features", b.vectorizer.Width(),
	)
	return true
}

// Predict classifies one reading. Any subset of schema fields is
// accepted; missing fields default to zero and the defaulted count is
// logged at debug. Fails with ErrNotReady when no bundle is published.
func (e *Engine) Predict(features types.FeatureMap) (*types.Prediction, error) {
	b := e.current.Load()
	if b == nil {
		return nil, ErrNotReady
	}
	vec, defaulted := b.vectorizer.Vectorize(features)
	if defaulted > 0 {
		e.logger.Debug("reading missing schema fields",
			"defaulted", defaulted,
			"schema_fields", b.vectorizer.Width(),
		)
	}
	return b.predict(vec)
}

// PredictBatch classifies each reading independently. Results preserve
// input order and carry the 0-based input position; batch items carry no
// per-item distribution.
func (e *Engine) PredictBatch(readings []types.FeatureMap) ([]types.BatchPredictionItem, error) {
	b := e.current.Load()
	if b == nil {
		return nil, ErrNotReady
	}
	items := make([]types.BatchPredictionItem, len(readings))
	for i, vec := range b.vectorizer.VectorizeBatch(readings) {
		p, err := b.predict(vec)
		if err != nil {
			return nil, fmt.Errorf("reading %d: %w", i, err)
		}
		items[i] = types.BatchPredictionItem{
			Index:         i,
			ActivityClass: p.ActivityClass,
			Confidence:    p.Confidence,
		}
	}
	return items, nil
}

// Info reports the model info surface. When no bundle is loaded only the
// model_loaded flag is set.
func (e *Engine) Info() *types.ModelInfo {
	b := e.current.Load()
	if b == nil {
		return &types.ModelInfo{}
	}
	classes := make([]string, len(b.encoder.Classes))
	copy(classes, b.encoder.Classes)
	return &types.ModelInfo{
		ModelLoaded: true,
		Metadata:    b.metadata,
		Classes:     classes,
		Features:    b.vectorizer.Schema(),
	}
}

// predict runs the scale, probabilities, decode pipeline on one
// fixed-order vector. Confidence is read from the same index that names
// the winning class, so the two can never disagree.
func (b *bundle) predict(vec []float64) (*types.Prediction, error) {
	scaled, err := b.scaler.Transform(vec)
	if err != nil {
		return nil, err
	}
	idx, err := b.classifier.PredictIndex(scaled)
	if err != nil {
		return nil, err
	}
	probs, err := b.classifier.Probabilities(scaled)
	if err != nil {
		return nil, err
	}
	if len(probs) != len(b.classes) || idx >= len(probs) {
		return nil, fmt.Errorf("classifier returned %d probabilities for %d classes", len(probs), len(b.classes))
	}
	scores := make(types.ConfidenceScores, len(probs))
	for c, p := range probs {
		scores[b.classes[c]] = p
	}
	return &types.Prediction{
		ActivityClass:    b.classes[idx],
		Confidence:       probs[idx],
		ConfidenceScores: scores,
	}, nil
}
