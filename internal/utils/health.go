package utils

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Services  []Service `json:"services"`
}

type Service struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ConnectionReporter exposes the live-feed connection state.
type ConnectionReporter interface {
	Connected() bool
}

type HealthChecker struct {
	Redis *redis.Client
	Feed  ConnectionReporter
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	var services []Service
	overallStatus := "healthy"

	if h.Redis != nil {
		service := Service{Name: "Redis"}
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			service.Status = "down"
			service.Message = err.Error()
			overallStatus = "degraded"
		} else {
			service.Status = "up"
		}
		services = append(services, service)
		cancel()
	}

	if h.Feed != nil {
		service := Service{Name: "Feed"}
		if h.Feed.Connected() {
			service.Status = "up"
		} else {
			service.Status = "down"
			service.Message = "live feed disconnected"
			overallStatus = "degraded"
		}
		services = append(services, service)
	}

	return HealthStatus{
		Status:    overallStatus,
		Timestamp: time.Now().UTC(),
		Services:  services,
	}
}
