package datagen

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"carewatch/internal/fhir"
	"carewatch/internal/types"
)

// Standard export names under the output directory.
const (
	// CSVFileName is the training dataset export.
	CSVFileName = "training_data.csv"
	// BundleFileName is the FHIR Observation export.
	BundleFileName = "fhir_observations.json"
)

// csvColumns is the training CSV column layout.
var csvColumns = []string{
	"id", "timestamp",
	types.FeatureTemperature, types.FeatureMotionLevel, types.FeatureSoundLevel,
	types.FeatureHourOfDay, types.FeatureIsNight, types.FeatureMotionTrend,
	"activity_class",
}

// WriteCSV writes readings in the training CSV column order.
func WriteCSV(w io.Writer, readings []types.SensorReading) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvColumns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i := range readings {
		r := &readings[i]
		isNight := "0"
		if r.IsNight {
			isNight = "1"
		}
		record := []string{
			r.ID,
			r.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatFloat(r.Temperature, 'f', 1, 64),
			strconv.FormatFloat(r.MotionLevel, 'f', -1, 64),
			strconv.FormatFloat(r.SoundLevel, 'f', -1, 64),
			strconv.Itoa(r.HourOfDay),
			isNight,
			strconv.FormatFloat(r.MotionTrend, 'f', -1, 64),
			string(r.ActivityClass),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFHIRBundle writes readings as an indented FHIR Bundle of
// Observations.
func WriteFHIRBundle(w io.Writer, readings []types.SensorReading, patientID string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(fhir.NewBundle(readings, patientID))
}

// WriteFiles writes the CSV and the FHIR bundle under dir using the
// standard export names.
func WriteFiles(dir string, readings []types.SensorReading, patientID string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	if err := writeFile(filepath.Join(dir, CSVFileName), func(w io.Writer) error {
		return WriteCSV(w, readings)
	}); err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, BundleFileName), func(w io.Writer) error {
		return WriteFHIRBundle(w, readings, patientID)
	})
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}
