package auth

// MetricsRecorder receives security-relevant counters from the auth plugin.
// The Prometheus collector in internal/metrics implements it.
type MetricsRecorder interface {
	LoginAttempt(outcome string)
	OTPGenerated(purpose string)
	OTPVerified(purpose, outcome string)
	AccessDenied(reason string)
}

// NopMetrics discards everything. Used when no collector is wired.
type NopMetrics struct{}

func (NopMetrics) LoginAttempt(string)        {}
func (NopMetrics) OTPGenerated(string)        {}
func (NopMetrics) OTPVerified(string, string) {}
func (NopMetrics) AccessDenied(string)        {}
