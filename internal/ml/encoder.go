package ml

import (
	"errors"
	"fmt"
	"sort"
)

// LabelEncoder maps class names to dense indices. Classes are stored in
// sorted order, so index assignment is stable across training runs.
type LabelEncoder struct {
	Classes []string `json:"classes"`
}

// FitLabelEncoder collects the distinct labels and sorts them.
func FitLabelEncoder(labels []string) (*LabelEncoder, error) {
	if len(labels) == 0 {
		return nil, errors.New("cannot fit label encoder on empty labels")
	}
	seen := make(map[string]bool, len(labels))
	classes := make([]string, 0, 8)
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			classes = append(classes, l)
		}
	}
	sort.Strings(classes)
	return &LabelEncoder{Classes: classes}, nil
}

// Len returns the number of known classes.
func (e *LabelEncoder) Len() int { return len(e.Classes) }

// Transform maps each label to its class index. Unknown labels are an
// error, not a silent bucket.
func (e *LabelEncoder) Transform(labels []string) ([]int, error) {
	index := make(map[string]int, len(e.Classes))
	for i, c := range e.Classes {
		index[c] = i
	}
	out := make([]int, len(labels))
	for i, l := range labels {
		idx, ok := index[l]
		if !ok {
			return nil, fmt.Errorf("unknown label %q at row %d", l, i)
		}
		out[i] = idx
	}
	return out, nil
}

// Inverse returns the class name for an index.
func (e *LabelEncoder) Inverse(index int) (string, error) {
	if index < 0 || index >= len(e.Classes) {
		return "", fmt.Errorf("class index %d out of range [0, %d)", index, len(e.Classes))
	}
	return e.Classes[index], nil
}

// Validate checks the internal state of an encoder, typically one decoded
// from an artifact.
func (e *LabelEncoder) Validate() error {
	if len(e.Classes) == 0 {
		return errors.New("label encoder has no classes")
	}
	seen := make(map[string]bool, len(e.Classes))
	for i, c := range e.Classes {
		if c == "" {
			return fmt.Errorf("label encoder class %d is empty", i)
		}
		if seen[c] {
			return fmt.Errorf("label encoder class %q is duplicated", c)
		}
		seen[c] = true
	}
	return nil
}
