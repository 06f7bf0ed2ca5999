package jobs

import (
	"context"
	"log"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"smec/conclave/internal/config"
)

// StatusSetter is satisfied by *health.Server.
type StatusSetter interface {
	SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus)
}

type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// StartHealthProbeJob checks every dependency once immediately and then on
// each tick, publishing the combined result under the given service names.
func StartHealthProbeJob(ctx context.Context, cfg config.Config, health StatusSetter, services []string, probes ...Probe) {
	if health == nil {
		log.Printf("health probe job disabled: no health server")
		return
	}
	interval := cfg.HealthProbeInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	timeout := cfg.HealthProbeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	publish(health, services, runProbes(ctx, timeout, probes))

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				publish(health, services, runProbes(ctx, timeout, probes))
			}
		}
	}()
}

func runProbes(ctx context.Context, timeout time.Duration, probes []Probe) bool {
	healthy := true
	for _, probe := range probes {
		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		err := probe.Check(probeCtx)
		cancel()
		if err != nil {
			log.Printf("health probe %s failed: %v", probe.Name, err)
			healthy = false
		}
	}
	return healthy
}

func publish(health StatusSetter, services []string, healthy bool) {
	status := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	for _, service := range services {
		health.SetServingStatus(service, status)
	}
}
