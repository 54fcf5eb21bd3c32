package core

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// healthCheckTimeout is the maximum time allowed for all health probes to
// complete. A probe exceeding this deadline marks the service unhealthy.
const healthCheckTimeout = 2 * time.Second

// HealthProbe is a subsystem health check. Each probe represents a
// dependency (model artifacts on disk, the readings database) whose
// failure should surface on the health endpoint.
type HealthProbe interface {
	// Name returns a stable identifier for the probe (e.g. "model",
	// "database").
	Name() string

	// Check performs the health check against the subsystem. It should
	// respect the context deadline and return an error if the subsystem
	// is unhealthy or unreachable.
	Check(ctx context.Context) error
}

// NewProbe wraps a name and a check function into a HealthProbe, for
// subsystems that do not carry their own probe type.
func NewProbe(name string, check func(ctx context.Context) error) HealthProbe {
	return &funcProbe{name: name, check: check}
}

type funcProbe struct {
	name  string
	check func(ctx context.Context) error
}

func (p *funcProbe) Name() string                    { return p.name }
func (p *funcProbe) Check(ctx context.Context) error { return p.check(ctx) }

// componentStatus is the health state of a single subsystem.
type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthResponse is the JSON body of the health endpoint. ModelLoaded
// reports whether a trained model is currently published; a cold store is
// not unhealthy, since the first prediction request triggers the load.
type healthResponse struct {
	Status      string                     `json:"status"`
	ModelLoaded bool                       `json:"model_loaded"`
	Timestamp   time.Time                  `json:"timestamp"`
	Components  map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth executes all registered health probes concurrently under a
// short timeout. It returns 200 OK when every probe reports healthy and
// 503 Service Unavailable otherwise. The handler never triggers a model
// load: the liveness surface must stay cheap and side-effect free.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	modelLoaded := s.Model != nil && s.Model.Ready()

	probes := s.HealthProbes
	if len(probes) == 0 {
		JSON(w, r, http.StatusOK, healthResponse{
			Status:      "healthy",
			ModelLoaded: modelLoaded,
			Timestamp:   time.Now().UTC(),
		})
		return
	}

	type probeResult struct {
		name string
		err  error
	}

	var (
		mu      sync.Mutex
		results = make([]probeResult, 0, len(probes))
		wg      sync.WaitGroup
	)

	for _, probe := range probes {
		wg.Add(1)
		go func(p HealthProbe) {
			defer wg.Done()

			var err error
			func() {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("probe panicked: %v", r)
					}
				}()
				err = p.Check(ctx)
			}()

			mu.Lock()
			results = append(results, probeResult{name: p.Name(), err: err})
			mu.Unlock()
		}(probe)
	}

	// Wait for all probes to complete or the deadline to expire; probes
	// that miss the deadline are reported as timed out.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	mu.Lock()
	collected := make([]probeResult, len(results))
	copy(collected, results)
	mu.Unlock()

	completed := make(map[string]probeResult, len(collected))
	for _, res := range collected {
		completed[res.name] = res
	}

	components := make(map[string]componentStatus, len(probes))
	allHealthy := true

	for _, probe := range probes {
		name := probe.Name()
		if result, ok := completed[name]; ok {
			if result.err != nil {
				allHealthy = false
				components[name] = componentStatus{
					Status:  "unhealthy",
					Message: result.err.Error(),
				}
			} else {
				components[name] = componentStatus{Status: "healthy"}
			}
		} else {
			allHealthy = false
			components[name] = componentStatus{
				Status:  "unhealthy",
				Message: "health check timed out",
			}
		}
	}

	resp := healthResponse{
		ModelLoaded: modelLoaded,
		Timestamp:   time.Now().UTC(),
		Components:  components,
	}

	if allHealthy {
		resp.Status = "healthy"
		JSON(w, r, http.StatusOK, resp)
	} else {
		resp.Status = "unhealthy"
		JSON(w, r, http.StatusServiceUnavailable, resp)
	}
}
