package training

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"carewatch/internal/types"
)

// TargetColumn is the label column every training CSV must carry alongside
// the six feature columns.
const TargetColumn = "activity_class"

// Dataset is an in-memory training set: the feature matrix in canonical
// column order and the raw class label per row. Imputed counts the cells
// that were filled with their column mean during loading.
type Dataset struct {
	X       [][]float64
	Labels  []string
	Imputed int
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.X) }

// LoadCSV reads a labeled training dataset from a CSV file.
func LoadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ds, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// ReadCSV parses a labeled training dataset. Columns are located by header
// name, so extra columns (ids, timestamps) and arbitrary column order are
// accepted. Empty cells and NaN spellings count as missing and are imputed
// with the mean of their column.
func ReadCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("dataset is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	colIdx := make(map[string]int, len(header))
	for i, name := range header {
		colIdx[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, name := range types.DefaultFeatureOrder {
		if _, ok := colIdx[name]; !ok {
			missing = append(missing, name)
		}
	}
	if _, ok := colIdx[TargetColumn]; !ok {
		missing = append(missing, TargetColumn)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}

	ds := &Dataset{}
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading rows: %w", err)
		}
		line++

		row := make([]float64, len(types.DefaultFeatureOrder))
		for j, name := range types.DefaultFeatureOrder {
			cell := strings.TrimSpace(record[colIdx[name]])
			if cell == "" {
				row[j] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: column %s: %w", line, name, err)
			}
			if math.IsInf(v, 0) {
				return nil, fmt.Errorf("line %d: column %s: non-finite value %q", line, name, cell)
			}
			// NaN spellings parse cleanly and land here as missing cells.
			row[j] = v
		}

		label := strings.TrimSpace(record[colIdx[TargetColumn]])
		if label == "" {
			return nil, fmt.Errorf("line %d: empty %s", line, TargetColumn)
		}

		ds.X = append(ds.X, row)
		ds.Labels = append(ds.Labels, label)
	}

	if len(ds.X) == 0 {
		return nil, errors.New("dataset has no rows")
	}

	imputed, err := imputeColumnMeans(ds.X, types.DefaultFeatureOrder)
	if err != nil {
		return nil, err
	}
	ds.Imputed = imputed
	return ds, nil
}

// imputeColumnMeans replaces missing cells with the mean of the present
// values in their column and reports how many cells were filled.
func imputeColumnMeans(X [][]float64, names []string) (int, error) {
	sums := make([]float64, len(names))
	counts := make([]int, len(names))
	for _, row := range X {
		for j, v := range row {
			if !math.IsNaN(v) {
				sums[j] += v
				counts[j]++
			}
		}
	}

	imputed := 0
	for _, row := range X {
		for j, v := range row {
			if !math.IsNaN(v) {
				continue
			}
			if counts[j] == 0 {
				return 0, fmt.Errorf("column %s has no values to impute from", names[j])
			}
			row[j] = sums[j] / float64(counts[j])
			imputed++
		}
	}
	return imputed, nil
}
