package datagen

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carewatch/internal/training"
	"carewatch/internal/types"
)

// --- Test Helpers ---

var generatedAt = time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return generatedAt }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestGenerator() *Generator {
	return NewGenerator(testLogger(), fixedClock{})
}

// --- Generator Tests ---

func TestGenerate_ClassMix(t *testing.T) {
	readings, err := newTestGenerator().Generate(context.Background(), Config{Samples: 1000, Seed: 42})
	require.NoError(t, err)
	require.Len(t, readings, 1000)

	totals := ClassTotals(readings)
	assert.Equal(t, 250, totals[types.ActivitySleeping])
	assert.Equal(t, 300, totals[types.ActivityResting])
	assert.Equal(t, 250, totals[types.ActivityActive])
	assert.Equal(t, 100, totals[types.ActivityRestless])
	assert.Equal(t, 70, totals[types.ActivityFallRisk])
	assert.Equal(t, 30, totals[types.ActivityFallDetected])
}

func TestGenerate_DeterministicForSeed(t *testing.T) {
	gen := newTestGenerator()
	cfg := Config{Samples: 300, Seed: 9, Devices: 3}

	first, err := gen.Generate(context.Background(), cfg)
	require.NoError(t, err)
	second, err := gen.Generate(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, first, second, "same seed must reproduce the dataset, ids included")

	cfg.Seed = 10
	other, err := gen.Generate(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestGenerate_DeviceStreamsPreserveMix(t *testing.T) {
	readings, err := newTestGenerator().Generate(context.Background(), Config{
		Samples: 1000,
		Seed:    42,
		Devices: 4,
	})
	require.NoError(t, err)
	require.Len(t, readings, 1000)

	// The class mix stays exact regardless of the device split.
	totals := ClassTotals(readings)
	assert.Equal(t, 300, totals[types.ActivityResting])
	assert.Equal(t, 30, totals[types.ActivityFallDetected])

	devices := map[string]int{}
	for i := range readings {
		devices[readings[i].DeviceID]++
	}
	require.Len(t, devices, 4)
	for _, id := range []string{"room-001", "room-002", "room-003", "room-004"} {
		assert.Positive(t, devices[id], "device %s should contribute readings", id)
	}
}

func TestGenerate_ReadingInvariants(t *testing.T) {
	readings, err := newTestGenerator().Generate(context.Background(), Config{Samples: 600, Seed: 4})
	require.NoError(t, err)
	require.Len(t, readings, 600)

	earliest := generatedAt.AddDate(0, 0, -32)
	latest := generatedAt.Add(24 * time.Hour)

	for i := range readings {
		r := &readings[i]

		require.Len(t, r.ID, 36, "reading %d id should be a uuid", i)
		assert.Equal(t, "room-001", r.DeviceID)

		assert.GreaterOrEqual(t, r.MotionLevel, 0.0, "reading %d", i)
		assert.LessOrEqual(t, r.MotionLevel, 100.0, "reading %d", i)
		assert.Equal(t, math.Trunc(r.MotionLevel), r.MotionLevel, "motion is a whole level")

		assert.GreaterOrEqual(t, r.SoundLevel, 0.0, "reading %d", i)
		assert.LessOrEqual(t, r.SoundLevel, 255.0, "reading %d", i)
		assert.Equal(t, math.Trunc(r.SoundLevel), r.SoundLevel, "sound is a whole level")

		assert.InDelta(t, math.Round(r.Temperature*10), r.Temperature*10, 1e-9,
			"temperature keeps one decimal")

		assert.GreaterOrEqual(t, r.HourOfDay, 0)
		assert.LessOrEqual(t, r.HourOfDay, 23)
		assert.Equal(t, types.IsNightHour(r.HourOfDay), r.IsNight, "reading %d", i)
		assert.Equal(t, r.HourOfDay, r.Timestamp.Hour(), "timestamp hour is pinned")

		assert.GreaterOrEqual(t, r.MotionTrend, -20.0)
		assert.LessOrEqual(t, r.MotionTrend, 20.0)

		assert.True(t, r.Timestamp.After(earliest), "reading %d timestamp too old: %s", i, r.Timestamp)
		assert.True(t, r.Timestamp.Before(latest), "reading %d timestamp too new: %s", i, r.Timestamp)

		if r.ActivityClass == types.ActivityFallDetected {
			assert.GreaterOrEqual(t, r.MotionLevel, 85.0, "fall readings spike motion")
			assert.GreaterOrEqual(t, r.SoundLevel, 180.0, "fall readings spike sound")
		}
	}
}

func TestGenerate_Validation(t *testing.T) {
	gen := newTestGenerator()

	_, err := gen.Generate(context.Background(), Config{Samples: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "samples must be positive")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = gen.Generate(ctx, Config{Samples: 100, Seed: 1})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDistributionSumsToOne(t *testing.T) {
	total := 0.0
	for _, share := range Distribution {
		total += share
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

// --- Writer Tests ---

func TestWriteCSV_LoadsBackThroughDatasetReader(t *testing.T) {
	readings, err := newTestGenerator().Generate(context.Background(), Config{Samples: 200, Seed: 11})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, readings))

	ds, err := training.ReadCSV(&buf)
	require.NoError(t, err)
	require.Equal(t, len(readings), ds.Len())
	assert.Zero(t, ds.Imputed)

	// Row order and values survive the round trip exactly.
	first := readings[0]
	isNight := 0.0
	if first.IsNight {
		isNight = 1.0
	}
	want := []float64{
		first.Temperature, first.MotionLevel, first.SoundLevel,
		float64(first.HourOfDay), isNight, first.MotionTrend,
	}
	assert.Equal(t, want, ds.X[0])
	assert.Equal(t, string(first.ActivityClass), ds.Labels[0])
}

func TestWriteFHIRBundle_Envelope(t *testing.T) {
	readings, err := newTestGenerator().Generate(context.Background(), Config{Samples: 40, Seed: 2})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteFHIRBundle(&buf, readings, "patient-001"))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "Bundle", decoded["resourceType"])
	assert.Equal(t, "collection", decoded["type"])
	entries, ok := decoded["entry"].([]any)
	require.True(t, ok)
	assert.Len(t, entries, len(readings))
}

func TestWriteFiles(t *testing.T) {
	readings, err := newTestGenerator().Generate(context.Background(), Config{Samples: 40, Seed: 3})
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "exports")
	require.NoError(t, WriteFiles(dir, readings, "patient-001"))

	raw, err := os.ReadFile(filepath.Join(dir, CSVFileName))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Equal(t, "id,timestamp,temperature,motion_level,sound_level,hour_of_day,is_night,motion_trend,activity_class", lines[0])
	assert.Len(t, lines, len(readings)+1)

	_, err = os.Stat(filepath.Join(dir, BundleFileName))
	require.NoError(t, err)
}
