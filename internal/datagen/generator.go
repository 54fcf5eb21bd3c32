// Package datagen produces labeled synthetic sensor datasets for model
// training: per-class sensor envelopes, a ward-realistic class mix, and
// export to the training CSV layout and a FHIR Observation bundle.
package datagen

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"carewatch/internal/types"
)

// generateConcurrency bounds parallel device streams.
const generateConcurrency = 4

// Config controls one generation run.
type Config struct {
	// Samples is the total target count. Per-class counts truncate, so a
	// handful fewer rows can come back when shares do not divide evenly.
	Samples int
	// Seed makes the run reproducible, reading IDs included.
	Seed uint64
	// Devices is the number of simulated room sensors. Zero means one.
	Devices int
}

// Generator produces labeled synthetic readings.
type Generator struct {
	logger *slog.Logger
	clock  types.Clock
}

// NewGenerator returns a Generator. A nil logger falls back to
// slog.Default and a nil clock to the real time.
func NewGenerator(logger *slog.Logger, clock types.Clock) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Generator{logger: logger, clock: clock}
}

// Generate produces labeled readings with the configured class mix, spread
// over simulated devices and shuffled. Runs with the same config produce
// identical output.
func (g *Generator) Generate(ctx context.Context, cfg Config) ([]types.SensorReading, error) {
	if cfg.Samples <= 0 {
		return nil, fmt.Errorf("samples must be positive, got %d", cfg.Samples)
	}
	devices := cfg.Devices
	if devices <= 0 {
		devices = 1
	}
	if devices > cfg.Samples {
		devices = cfg.Samples
	}

	totals := classCounts(cfg.Samples)
	now := g.clock.Now()
	streams := make([][]types.SensorReading, devices)

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(generateConcurrency)
	for d := 0; d < devices; d++ {
		eg.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			// Per-device generators keep output independent of scheduling.
			rng := rand.New(rand.NewPCG(cfg.Seed, uint64(d)))
			streams[d] = g.deviceStream(rng, deviceID(d), deviceShare(totals, devices, d), now)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var readings []types.SensorReading
	for _, stream := range streams {
		readings = append(readings, stream...)
	}

	// One shuffle across devices so exports do not arrive grouped by class.
	shuffleRng := rand.New(rand.NewPCG(cfg.Seed, uint64(devices)))
	shuffleRng.Shuffle(len(readings), func(i, j int) {
		readings[i], readings[j] = readings[j], readings[i]
	})

	g.logger.Info("dataset generated",
		"samples", len(readings),
		"requested", cfg.Samples,
		"devices", devices,
	)
	return readings, nil
}

// ClassTotals counts readings per activity class.
func ClassTotals(readings []types.SensorReading) map[types.ActivityClass]int {
	totals := make(map[types.ActivityClass]int, len(types.AllActivityClasses))
	for i := range readings {
		totals[readings[i].ActivityClass]++
	}
	return totals
}

// classCounts returns per-class sample counts in AllActivityClasses order.
func classCounts(samples int) []int {
	counts := make([]int, len(types.AllActivityClasses))
	for i, class := range types.AllActivityClasses {
		counts[i] = int(float64(samples) * Distribution[class])
	}
	return counts
}

// deviceShare splits each class count evenly across devices, handing
// remainders to the lowest device indices.
func deviceShare(totals []int, devices, device int) []int {
	share := make([]int, len(totals))
	for c, total := range totals {
		share[c] = total / devices
		if device < total%devices {
			share[c]++
		}
	}
	return share
}

func deviceID(d int) string {
	return fmt.Sprintf("room-%03d", d+1)
}

func (g *Generator) deviceStream(rng *rand.Rand, device string, counts []int, now time.Time) []types.SensorReading {
	total := 0
	for _, c := range counts {
		total += c
	}
	readings := make([]types.SensorReading, 0, total)
	for ci, class := range types.AllActivityClasses {
		for i := 0; i < counts[ci]; i++ {
			readings = append(readings, g.reading(rng, device, class, now))
		}
	}
	return readings
}

// nightHours is the overnight window readings can land in.
var nightHours = []int{22, 23, 0, 1, 2, 3, 4, 5}

func (g *Generator) reading(rng *rand.Rand, device string, class types.ActivityClass, now time.Time) types.SensorReading {
	p := classPatterns[class]

	hour := drawHour(rng, p.nightWeight)

	motion := clamp(0, 100, uniform(rng, p.motionMin, p.motionMax)+rng.NormFloat64()*p.motionVariance/3)
	sound := clamp(0, 255, uniform(rng, p.soundMin, p.soundMax)+rng.NormFloat64()*p.soundVariance/3)
	temperature := round1(uniform(rng, p.tempMin, p.tempMax) + rng.NormFloat64()*0.5)

	// A fall reads as a spike, not a drift around the band.
	if class == types.ActivityFallDetected {
		motion = uniform(rng, 85, 100)
		sound = uniform(rng, 180, 250)
	}

	return types.SensorReading{
		ID:            newID(rng),
		DeviceID:      device,
		Timestamp:     timestampAt(rng, now, hour),
		Temperature:   temperature,
		MotionLevel:   math.Trunc(motion),
		SoundLevel:    math.Trunc(sound),
		HourOfDay:     hour,
		IsNight:       types.IsNightHour(hour),
		MotionTrend:   round2(uniform(rng, -20, 20)),
		ActivityClass: class,
	}
}

func drawHour(rng *rand.Rand, nightWeight float64) int {
	if rng.Float64() < nightWeight {
		return nightHours[rng.IntN(len(nightHours))]
	}
	return 6 + rng.IntN(16)
}

// timestampAt places a reading in the trailing month and pins its hour.
func timestampAt(rng *rand.Rand, now time.Time, hour int) time.Time {
	ts := now.UTC().
		AddDate(0, 0, -rng.IntN(31)).
		Add(-time.Duration(rng.IntN(24))*time.Hour - time.Duration(rng.IntN(60))*time.Minute)
	return time.Date(ts.Year(), ts.Month(), ts.Day(), hour, ts.Minute(), ts.Second(), 0, time.UTC)
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func clamp(lo, hi, v float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// newID draws a v4 UUID from the seeded generator so IDs stay reproducible.
func newID(rng *rand.Rand) string {
	id, err := uuid.NewRandomFromReader(rngReader{rng})
	if err != nil {
		// The reader below never fails.
		panic(err)
	}
	return id.String()
}

type rngReader struct{ rng *rand.Rand }

func (r rngReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(r.rng.UintN(256))
	}
	return len(p), nil
}
