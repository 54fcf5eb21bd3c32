package core

import (
	"context"
	"sync"
	"time"
)

// --- MockModelStatus ---

// MockModelStatus implements the ModelStatus interface for testing the
// health surface without a real prediction engine.
type MockModelStatus struct {
	// Loaded is the value returned by Ready.
	Loaded bool

	// mu protects Calls for concurrent access.
	mu sync.Mutex

	// Calls counts how many times Ready was consulted.
	Calls int
}

// Ready implements the ModelStatus interface.
func (m *MockModelStatus) Ready() bool {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	return m.Loaded
}

// --- MockProbe ---

// MockProbe implements the HealthProbe interface for testing. It returns
// a configurable error and can simulate a slow subsystem via Delay.
//
// Usage:
//
//	probe := &MockProbe{ProbeName: "database"}
//	srv.HealthProbes = append(srv.HealthProbes, probe)
//
// To simulate a failure:
//
//	probe := &MockProbe{ProbeName: "database", Err: errors.New("pool exhausted")}
type MockProbe struct {
	// ProbeName is returned by Name.
	ProbeName string

	// Err is the error returned by Check.
	Err error

	// Delay, when set, makes Check sleep before returning unless the
	// context expires first.
	Delay time.Duration

	// CheckFunc, when set, overrides the default behavior entirely.
	CheckFunc func(ctx context.Context) error

	// mu protects Calls for concurrent access.
	mu sync.Mutex

	// Calls counts how many times Check ran.
	Calls int
}

// Name implements the HealthProbe interface.
func (m *MockProbe) Name() string { return m.ProbeName }

// Check implements the HealthProbe interface. It records the call, then
// delegates to CheckFunc if set, otherwise waits out Delay (respecting
// context cancellation) and returns Err.
func (m *MockProbe) Check(ctx context.Context) error {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()

	if m.CheckFunc != nil {
		return m.CheckFunc(ctx)
	}

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.Err
}

// CallCount returns how many times Check ran, safely across goroutines.
func (m *MockProbe) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}
