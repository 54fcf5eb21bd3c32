package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"carewatch/internal/ml"
	"carewatch/internal/types"
)

// Artifact file names under the models directory. The three model
// artifacts are zstd-framed JSON; metadata stays plain JSON so it can be
// inspected without tooling.
const (
	ClassifierArtifact = "activity_classifier.zst"
	EncoderArtifact    = "label_encoder.zst"
	ScalerArtifact     = "scaler.zst"
	MetadataArtifact   = "model_metadata.json"
)

// ArtifactSource yields the raw bytes of one named artifact.
type ArtifactSource interface {
	ReadArtifact(name string) ([]byte, error)
}

// NewDirSource returns an ArtifactSource reading from a models directory.
func NewDirSource(dir string) ArtifactSource { return &dirSource{dir: dir} }

type dirSource struct{ dir string }

func (s *dirSource) ReadArtifact(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.dir, name))
}

func (s *dirSource) String() string { return s.dir }

// classifierDoc wraps a serialized model with its kind so decoding can
// dispatch without sniffing the payload.
type classifierDoc struct {
	ModelType types.ModelKind `json:"model_type"`
	Model     json.RawMessage `json:"model"`
}

// decoderPool provides reusable zstd decoders to avoid repeated allocations.
var decoderPool = sync.Pool{
	New: func() any {
		d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			// This should never fail with nil input and default options.
			panic(fmt.Sprintf("failed to create zstd decoder: %v", err))
		}
		return d
	},
}

// decodeCompressedJSON decompresses a zstd frame and unmarshals the JSON
// payload into v.
func decodeCompressedJSON(data []byte, v any) error {
	decoder := decoderPool.Get().(*zstd.Decoder)
	defer decoderPool.Put(decoder)

	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("zstd decompression failed: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding JSON payload: %w", err)
	}
	return nil
}

// encodeCompressedJSON marshals v and wraps it in a zstd frame.
func encodeCompressedJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding JSON payload: %w", err)
	}
	w, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	defer w.Close()
	return w.EncodeAll(raw, nil), nil
}

// SaveArtifacts writes one coherent artifact set to dir in the layout the
// store loads from. The trainer is the only writer.
func SaveArtifacts(dir string, classifier ml.Classifier, encoder *ml.LabelEncoder, scaler *ml.StandardScaler, meta *types.ModelMetadata) error {
	kind, err := ml.KindOf(classifier)
	if err != nil {
		return err
	}
	modelJSON, err := json.Marshal(classifier)
	if err != nil {
		return fmt.Errorf("encoding classifier: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating models dir: %w", err)
	}

	writeCompressed := func(name string, v any) error {
		data, err := encodeCompressedJSON(v)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		return nil
	}

	if err := writeCompressed(ClassifierArtifact, classifierDoc{ModelType: kind, Model: modelJSON}); err != nil {
		return err
	}
	if err := writeCompressed(EncoderArtifact, encoder); err != nil {
		return err
	}
	if err := writeCompressed(ScalerArtifact, scaler); err != nil {
		return err
	}

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", MetadataArtifact, err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetadataArtifact), metaJSON, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", MetadataArtifact, err)
	}
	return nil
}

// bundle holds one coherent set of decoded artifacts. Bundles are never
// mutated after publication; a later load swaps the whole pointer, so
// readers always see four artifacts that were trained together.
type bundle struct {
	classifier ml.Classifier
	encoder    *ml.LabelEncoder
	scaler     *ml.StandardScaler
	metadata   *types.ModelMetadata
	vectorizer *Vectorizer

	// classes caches the decoded labels in encoder index order.
	classes []types.ActivityClass
}

// loadBundle reads and decodes all four artifacts, then cross-checks them
// against each other. The bundle is built fully aside; the caller
// publishes it with a single pointer swap.
func loadBundle(source ArtifactSource, logger *slog.Logger) (*bundle, error) {
	var doc classifierDoc
	if err := loadArtifact(source, logger, ClassifierArtifact, &doc); err != nil {
		return nil, err
	}
	classifier, err := ml.UnmarshalClassifier(doc.ModelType, doc.Model)
	if err != nil {
		return nil, newLoadError(source, ClassifierArtifact, err)
	}

	encoder := &ml.LabelEncoder{}
	if err := loadArtifact(source, logger, EncoderArtifact, encoder); err != nil {
		return nil, err
	}
	scaler := &ml.StandardScaler{}
	if err := loadArtifact(source, logger, ScalerArtifact, scaler); err != nil {
		return nil, err
	}
	metadata := &types.ModelMetadata{}
	if err := loadArtifact(source, logger, MetadataArtifact, metadata); err != nil {
		return nil, err
	}

	if err := encoder.Validate(); err != nil {
		return nil, newLoadError(source, EncoderArtifact, err)
	}
	if err := scaler.Validate(); err != nil {
		return nil, newLoadError(source, ScalerArtifact, err)
	}
	if got, want := classifier.Classes(), encoder.Len(); got != want {
		return nil, newLoadError(source, ClassifierArtifact,
			fmt.Errorf("classifier predicts %d classes but encoder names %d", got, want))
	}

	schema := metadata.Features
	if len(schema) == 0 {
		schema = types.DefaultFeatureOrder
	}
	if got, want := scaler.Width(), len(schema); got != want {
		return nil, newLoadError(source, ScalerArtifact,
			fmt.Errorf("scaler has %d columns but the schema has %d fields", got, want))
	}
	if got, want := classifier.Features(), len(schema); got != want {
		return nil, newLoadError(source, ClassifierArtifact,
			fmt.Errorf("classifier expects %d features but the schema has %d fields", got, want))
	}
	if len(metadata.Classes) > 0 && !slices.Equal(metadata.Classes, encoder.Classes) {
		return nil, newLoadError(source, MetadataArtifact,
			fmt.Errorf("metadata classes %v do not match encoder classes %v", metadata.Classes, encoder.Classes))
	}

	classes := make([]types.ActivityClass, encoder.Len())
	for i, name := range encoder.Classes {
		classes[i] = types.ActivityClass(name)
	}
	return &bundle{
		classifier: classifier,
		encoder:    encoder,
		scaler:     scaler,
		metadata:   metadata,
		vectorizer: NewVectorizer(schema),
		classes:    classes,
	}, nil
}

// loadArtifact reads one named artifact and decodes it into v, logging
// the outcome either way. Compressed artifacts are recognized by their
// .zst suffix.
func loadArtifact(source ArtifactSource, logger *slog.Logger, name string, v any) error {
	start := time.Now()
	data, err := source.ReadArtifact(name)
	if err == nil {
		if strings.HasSuffix(name, ".zst") {
			err = decodeCompressedJSON(data, v)
		} else {
			err = json.Unmarshal(data, v)
		}
	}
	if err != nil {
		loadErr := newLoadError(source, name, err)
		logger.Error("artifact load failed", "artifact", name, "error", loadErr)
		return loadErr
	}
	logger.Info("artifact loaded",
		"artifact", name,
		"bytes", len(data),
		"duration", time.Since(start),
	)
	return nil
}

func newLoadError(source ArtifactSource, name string, err error) *LoadError {
	path := name
	if s, ok := source.(fmt.Stringer); ok {
		path = filepath.Join(s.String(), name)
	}
	return &LoadError{Artifact: name, Path: path, Err: err}
}
