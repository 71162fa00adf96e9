package admin

import (
	"context"
	"sync"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/autoaim/internal/aim/l4tracker"
	"github.com/banshee-data/autoaim/internal/aim/pipeline"
)

// TrackerService is the health service name that follows tracker state.
const TrackerService = "autoaim.Tracker"

// Health maintains grpc health statuses for the process and the tracker.
// It is a pipeline.PublishSink so every frame refreshes the tracker status.
type Health struct {
	srv *health.Server

	mu    sync.Mutex
	state l4tracker.TrackerState
}

var _ pipeline.PublishSink = (*Health)(nil)

// NewHealth starts with both statuses NOT_SERVING.
func NewHealth() *Health {
	h := &Health{srv: health.NewServer()}
	h.srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	h.srv.SetServingStatus(TrackerService, healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Server returns the grpc health implementation for registration.
func (h *Health) Server() *health.Server {
	return h.srv
}

// SetRunning flips the overall status with the pipeline's lifecycle.
// Stopping also drops the tracker status.
func (h *Health) SetRunning(running bool) {
	if running {
		h.srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		return
	}
	h.srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	h.setTracker(l4tracker.Lost)
}

// PublishFrame implements pipeline.PublishSink.
func (h *Health) PublishFrame(r *pipeline.FrameResult) error {
	h.setTracker(r.Snapshot.State)
	return nil
}

func (h *Health) setTracker(s l4tracker.TrackerState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = s
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s == l4tracker.Tracking {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.srv.SetServingStatus(TrackerService, status)
}

// TrackerState is the state last published.
func (h *Health) TrackerState() l4tracker.TrackerState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Status returns the current status of service ("" for the process).
func (h *Health) Status(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := h.srv.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// Shutdown marks every service NOT_SERVING permanently.
func (h *Health) Shutdown() {
	h.srv.Shutdown()
}
