package engine

import (
	"errors"
	"fmt"
)

// ErrNotReady is returned by prediction calls when no artifact bundle has
// been published. The predict path never loads implicitly; callers decide
// when to trigger a load.
var ErrNotReady = errors.New("model artifacts are not loaded")

// LoadError reports the artifact that broke a load attempt. The store
// publishes nothing when any artifact fails, so a LoadError always means
// the previously visible bundle, if any, is still the visible one.
type LoadError struct {
	Artifact string
	Path     string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading artifact %s from %s: %v", e.Artifact, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
