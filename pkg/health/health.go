// Package health reports whether the configured store answers.
package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// DefaultTimeout bounds a single check when none is given.
const DefaultTimeout = 5 * time.Second

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Checkable is implemented by stores and adapters.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// Checker runs one named check.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// StoreChecker checks a Checkable under a timeout.
type StoreChecker struct {
	name    string
	target  Checkable
	timeout time.Duration
}

// NewStoreChecker wraps target. A non-positive timeout uses DefaultTimeout.
func NewStoreChecker(name string, target Checkable, timeout time.Duration) *StoreChecker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &StoreChecker{name: name, target: target, timeout: timeout}
}

func (c *StoreChecker) Name() string { return c.name }

func (c *StoreChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result := CheckResult{Name: c.name, Status: StatusHealthy}
	if err := c.target.HealthCheck(checkCtx); err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
	}
	result.Duration = time.Since(start)
	return result
}

// Report aggregates check results. Checks are ordered by name.
type Report struct {
	Status Status        `json:"status"`
	Checks []CheckResult `json:"checks"`
}

// Healthy reports whether every check passed.
func (r Report) Healthy() bool { return r.Status == StatusHealthy }

// Registry holds named checkers. Registering a name twice replaces it.
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
}

func NewRegistry() *Registry {
	return &Registry{checkers: make(map[string]Checker)}
}

func (r *Registry) Register(c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[c.Name()] = c
}

// Check runs all checks concurrently.
func (r *Registry) Check(ctx context.Context) Report {
	r.mu.RLock()
	checkers := make([]Checker, 0, len(r.checkers))
	for _, c := range r.checkers {
		checkers = append(checkers, c)
	}
	r.mu.RUnlock()
	sort.Slice(checkers, func(i, j int) bool { return checkers[i].Name() < checkers[j].Name() })

	results := make([]CheckResult, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.Check(ctx)
		}()
	}
	wg.Wait()

	report := Report{Status: StatusHealthy, Checks: results}
	for _, res := range results {
		if res.Status != StatusHealthy {
			report.Status = StatusUnhealthy
		}
	}
	return report
}
