// Package metrics collects Prometheus metrics for the portal and serves
// them for scraping. The Collector implements the auth plugin's
// MetricsRecorder; the HTTP middleware counts every request.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portal"

// Collector holds the portal's Prometheus metrics.
type Collector struct {
	loginAttempts *prometheus.CounterVec
	otpGenerated  *prometheus.CounterVec
	otpVerified   *prometheus.CounterVec
	accessDenied  *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		otpGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_generated_total",
			Help:      "One-time passcodes issued by purpose.",
		}, []string{"purpose"}),
		otpVerified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_verifications_total",
			Help:      "Passcode verification attempts by purpose and outcome.",
		}, []string{"purpose", "outcome"}),
		accessDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_denied_total",
			Help:      "Requests turned away by the route gate, by reason.",
		}, []string{"reason"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(
		c.loginAttempts,
		c.otpGenerated,
		c.otpVerified,
		c.accessDenied,
		c.httpRequests,
		c.httpLatency,
	)

	return c
}

// LoginAttempt counts a login by outcome ("success" or an error type).
func (c *Collector) LoginAttempt(outcome string) {
	c.loginAttempts.WithLabelValues(outcome).Inc()
}

// OTPGenerated counts an issued passcode.
func (c *Collector) OTPGenerated(purpose string) {
	c.otpGenerated.WithLabelValues(purpose).Inc()
}

// OTPVerified counts a verification attempt.
func (c *Collector) OTPVerified(purpose, outcome string) {
	c.otpVerified.WithLabelValues(purpose, outcome).Inc()
}

// AccessDenied counts a gate refusal.
func (c *Collector) AccessDenied(reason string) {
	c.accessDenied.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest counts a finished request.
func (c *Collector) RecordHTTPRequest(method string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// Middleware returns Echo middleware that records every request. Register it
// outside the request logger so the status is final. Paths are not a label;
// they are unbounded.
func (c *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			status := ctx.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if !ctx.Response().Committed {
					status = http.StatusInternalServerError
				}
			}
			c.RecordHTTPRequest(ctx.Request().Method, status, time.Since(start))
			return err
		}
	}
}

// Handler returns the HTTP handler for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
