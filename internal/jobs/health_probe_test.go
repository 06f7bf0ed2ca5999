package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"smec/conclave/internal/config"
)

type recordingHealth struct {
	mu       sync.Mutex
	statuses map[string]healthpb.HealthCheckResponse_ServingStatus
	updates  int
}

func (r *recordingHealth) SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[service] = status
	r.updates++
}

func (r *recordingHealth) status(service string) healthpb.HealthCheckResponse_ServingStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statuses[service]
}

func TestRunProbes(t *testing.T) {
	ok := Probe{Name: "ok", Check: func(context.Context) error { return nil }}
	down := Probe{Name: "down", Check: func(context.Context) error { return errors.New("connection refused") }}

	if !runProbes(context.Background(), time.Second, []Probe{ok, ok}) {
		t.Fatalf("expected healthy")
	}
	if runProbes(context.Background(), time.Second, []Probe{ok, down}) {
		t.Fatalf("expected unhealthy when one probe fails")
	}

	slow := Probe{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	if runProbes(context.Background(), 10*time.Millisecond, []Probe{slow}) {
		t.Fatalf("expected timed out probe to count as unhealthy")
	}
}

func TestStartHealthProbeJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	failing := false
	probe := Probe{Name: "db", Check: func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if failing {
			return errors.New("db down")
		}
		return nil
	}}

	health := &recordingHealth{statuses: map[string]healthpb.HealthCheckResponse_ServingStatus{}}
	cfg := config.Config{HealthProbeInterval: 10 * time.Millisecond, HealthProbeTimeout: time.Second}
	StartHealthProbeJob(ctx, cfg, health, []string{"", "svc"}, probe)

	if health.status("svc") != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING after first probe")
	}

	mu.Lock()
	failing = true
	mu.Unlock()

	deadline := time.Now().Add(2 * time.Second)
	for health.status("svc") != healthpb.HealthCheckResponse_NOT_SERVING {
		if time.Now().After(deadline) {
			t.Fatalf("expected NOT_SERVING after probe failure")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if health.status("") != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected overall status to follow")
	}
}
