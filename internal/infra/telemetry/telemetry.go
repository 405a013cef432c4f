package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/khepriforge/auth-service/internal/infra/config"
)

// Provider represents a telemetry provider handle.
type Provider struct {
	requestCounter prometheus.Counter
	loginAttempts  *prometheus.CounterVec
	accountLocks   prometheus.Counter
}

// Attach configures telemetry exporters and returns a provider handle.
func Attach(_ context.Context, cfg *config.AppConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	requestCounter := promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "khepri",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	})

	loginAttempts := promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "khepri",
		Name:      "login_attempts_total",
		Help:      "Login attempts partitioned by outcome",
	}, []string{"outcome"})

	accountLocks := promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "khepri",
		Name:      "account_locks_total",
		Help:      "Accounts locked or suspended by the progressive lockout policy",
	})

	return &Provider{
		requestCounter: requestCounter,
		loginAttempts:  loginAttempts,
		accountLocks:   accountLocks,
	}, nil
}

// RequestCounter exposes the HTTP request metric.
func (p *Provider) RequestCounter() prometheus.Counter {
	if p == nil {
		return prometheus.NewCounter(prometheus.CounterOpts{})
	}
	return p.requestCounter
}

// CountLoginAttempt records a login attempt with its outcome label
// (success, invalid, locked, suspended).
func (p *Provider) CountLoginAttempt(outcome string) {
	if p == nil {
		return
	}
	p.loginAttempts.WithLabelValues(outcome).Inc()
}

// CountAccountLock records a lockout or suspension.
func (p *Provider) CountAccountLock() {
	if p == nil {
		return
	}
	p.accountLocks.Inc()
}

// MetricsHandler exposes the Prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
