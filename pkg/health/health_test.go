package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubTarget struct {
	err   error
	delay time.Duration
}

func (s stubTarget) HealthCheck(ctx context.Context) error {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.err
}

func TestStoreChecker(t *testing.T) {
	ok := NewStoreChecker("memory", stubTarget{}, 0)
	if res := ok.Check(context.Background()); res.Status != StatusHealthy || res.Error != "" {
		t.Fatalf("healthy target: %+v", res)
	}

	bad := NewStoreChecker("mongodb", stubTarget{err: errors.New("no reachable servers")}, time.Second)
	res := bad.Check(context.Background())
	if res.Status != StatusUnhealthy || res.Error != "no reachable servers" {
		t.Fatalf("failing target: %+v", res)
	}
}

func TestStoreChecker_Timeout(t *testing.T) {
	slow := NewStoreChecker("slow", stubTarget{delay: time.Second}, 10*time.Millisecond)
	res := slow.Check(context.Background())
	if res.Status != StatusUnhealthy {
		t.Fatalf("expected timeout to be unhealthy, got %+v", res)
	}
	if res.Duration >= time.Second {
		t.Fatalf("check did not honour timeout: %v", res.Duration)
	}
}

func TestRegistry_Check(t *testing.T) {
	r := NewRegistry()
	r.Register(NewStoreChecker("b", stubTarget{}, 0))
	r.Register(NewStoreChecker("a", stubTarget{}, 0))

	report := r.Check(context.Background())
	if !report.Healthy() {
		t.Fatalf("expected healthy report, got %+v", report)
	}
	if len(report.Checks) != 2 || report.Checks[0].Name != "a" || report.Checks[1].Name != "b" {
		t.Fatalf("checks not ordered by name: %+v", report.Checks)
	}

	r.Register(NewStoreChecker("b", stubTarget{err: errors.New("down")}, 0))
	report = r.Check(context.Background())
	if report.Healthy() || len(report.Checks) != 2 {
		t.Fatalf("replaced checker should fail the report: %+v", report)
	}
}

func TestRegistry_Empty(t *testing.T) {
	if report := NewRegistry().Check(context.Background()); !report.Healthy() {
		t.Fatalf("empty registry should be healthy: %+v", report)
	}
}
