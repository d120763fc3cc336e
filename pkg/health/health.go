// Package health aggregates process-wide request/error counters and system
// resource usage into a tri-level health status. Snapshots are computed on
// demand and are side-effect-free; counters are only ever incremented by the
// dispatcher, once per attempt.
package health

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cecil-the-coder/imagegen-kit/pkg/types"
)

// Status is the aggregate health level.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Thresholds holds the soft and hard ceilings that derive the status.
// Crossing a soft ceiling degrades; crossing a hard ceiling is unhealthy.
type Thresholds struct {
	SoftResourcePercent float64
	HardResourcePercent float64
	SoftErrorRate       float64
	HardErrorRate       float64
}

// DefaultThresholds returns the standard ceilings: resources degrade at 80%
// and fail at 95%; the error rate degrades at 0.1 and fails at 0.5.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SoftResourcePercent: 80.0,
		HardResourcePercent: 95.0,
		SoftErrorRate:       0.1,
		HardErrorRate:       0.5,
	}
}

// ResourceUsage is a point-in-time sample of system resource consumption.
type ResourceUsage struct {
	CPUPercent    float64
	MemoryPercent float64
	DiskPercent   float64
}

// ResourceSampler supplies resource usage samples. The default uses
// gopsutil; tests inject a stub.
type ResourceSampler interface {
	Sample() (ResourceUsage, error)
}

// Details carries the snapshot's metrics, serialized with the field names
// the health endpoint exposes.
type Details struct {
	UptimeSeconds      float64 `json:"uptimeSeconds"`
	UptimeHuman        string  `json:"uptimeHuman"`
	CPUUsagePercent    float64 `json:"cpuUsagePercent"`
	MemoryUsagePercent float64 `json:"memoryUsagePercent"`
	DiskUsagePercent   float64 `json:"diskUsagePercent"`
	RequestCount       int64   `json:"requestCount"`
	ErrorCount         int64   `json:"errorCount"`
	ErrorRate          float64 `json:"errorRate"`
}

// Snapshot is a point-in-time health report.
type Snapshot struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
	Details   Details   `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

// Checker maintains the monotonic attempt counters and produces snapshots.
// Counter increments are safe for high-frequency concurrent writers.
type Checker struct {
	start      time.Time
	requests   atomic.Int64
	errors     atomic.Int64
	sampler    ResourceSampler
	thresholds Thresholds
}

// Option configures a Checker.
type Option func(*Checker)

// WithSampler replaces the default gopsutil resource sampler.
func WithSampler(s ResourceSampler) Option {
	return func(c *Checker) { c.sampler = s }
}

// WithThresholds overrides the status ceilings.
func WithThresholds(t Thresholds) Option {
	return func(c *Checker) { c.thresholds = t }
}

// NewChecker creates a health checker. Uptime is measured from this call.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		start:      time.Now(),
		thresholds: DefaultThresholds(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sampler == nil {
		c.sampler = newSystemSampler()
	}
	return c
}

// RecordAttempt increments the request counter, and the error counter when
// the attempt failed. The dispatcher calls this exactly once per attempt.
func (c *Checker) RecordAttempt(success bool) {
	c.requests.Add(1)
	if !success {
		c.errors.Add(1)
	}
}

// Counters returns the current request and error totals.
func (c *Checker) Counters() (requests, errors int64) {
	return c.requests.Load(), c.errors.Load()
}

// Snapshot samples resource usage and derives the aggregate status. It is
// read-only: counters are never reset by a snapshot.
func (c *Checker) Snapshot() Snapshot {
	now := time.Now()
	requests := c.requests.Load()
	errors := c.errors.Load()

	errorRate := 0.0
	if requests > 0 {
		errorRate = float64(errors) / float64(requests)
	}

	uptime := now.Sub(c.start).Seconds()
	details := Details{
		UptimeSeconds: uptime,
		UptimeHuman:   formatUptime(uptime),
		RequestCount:  requests,
		ErrorCount:    errors,
		ErrorRate:     errorRate,
	}

	usage, err := c.sampler.Sample()
	if err != nil {
		return Snapshot{
			Status:    StatusUnhealthy,
			Message:   fmt.Sprintf("health check error: %v", err),
			Details:   details,
			Timestamp: now,
		}
	}
	details.CPUUsagePercent = usage.CPUPercent
	details.MemoryUsagePercent = usage.MemoryPercent
	details.DiskUsagePercent = usage.DiskPercent

	status, issues := c.derive(usage, errorRate)

	message := "all systems operational"
	switch status {
	case StatusDegraded:
		message = "system degraded: " + strings.Join(issues, ", ")
	case StatusUnhealthy:
		message = "system unhealthy: " + strings.Join(issues, ", ")
	}

	return Snapshot{
		Status:    status,
		Message:   message,
		Details:   details,
		Timestamp: now,
	}
}

func (c *Checker) derive(usage ResourceUsage, errorRate float64) (Status, []string) {
	status := StatusHealthy
	var issues []string

	resources := []struct {
		name  string
		value float64
	}{
		{"CPU usage", usage.CPUPercent},
		{"memory usage", usage.MemoryPercent},
		{"disk usage", usage.DiskPercent},
	}
	for _, r := range resources {
		switch {
		case r.value >= c.thresholds.HardResourcePercent:
			status = StatusUnhealthy
			issues = append(issues, fmt.Sprintf("critical %s: %.1f%%", r.name, r.value))
		case r.value >= c.thresholds.SoftResourcePercent:
			if status != StatusUnhealthy {
				status = StatusDegraded
			}
			issues = append(issues, fmt.Sprintf("high %s: %.1f%%", r.name, r.value))
		}
	}

	switch {
	case errorRate >= c.thresholds.HardErrorRate:
		status = StatusUnhealthy
		issues = append(issues, fmt.Sprintf("critical error rate: %.2f", errorRate))
	case errorRate >= c.thresholds.SoftErrorRate:
		if status != StatusUnhealthy {
			status = StatusDegraded
		}
		issues = append(issues, fmt.Sprintf("elevated error rate: %.2f", errorRate))
	}

	return status, issues
}

// CheckBackend probes a single backend's liveness with a short timeout.
func (c *Checker) CheckBackend(ctx context.Context, b types.Backend) types.BackendHealth {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return types.BackendHealth{Backend: b.Name(), Healthy: b.HealthCheck(ctx)}
}

func formatUptime(seconds float64) string {
	s := int64(seconds)
	days := s / 86400
	hours := (s % 86400) / 3600
	minutes := (s % 3600) / 60
	secs := s % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if secs > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", secs))
	}
	return strings.Join(parts, " ")
}
