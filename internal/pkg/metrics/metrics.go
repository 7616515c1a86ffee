// Package metrics exposes Prometheus instrumentation for authentication
// outcomes. Failures caused by the caller and failures caused by the
// backing stores are counted under different outcomes so alerting can tell
// an attack from an outage.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rohansroy/giterdone/internal/domain"
)

const Namespace = "giterdone"

// Flow names.
const (
	FlowRegister       = "register"
	FlowLoginPassword  = "login_password"
	FlowLoginPasskey   = "login_passkey"
	FlowPasskeyEnroll  = "passkey_enroll"
	FlowTOTP           = "totp"
	FlowRecovery       = "recovery"
	FlowPasswordChange = "password_change"
	FlowRefresh        = "refresh"
	FlowProfile        = "profile"
)

// Outcome values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

var (
	// AuthAttempts counts authentication flow results by outcome.
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "auth_attempts_total",
			Help:      "Authentication flow results by flow and outcome",
		},
		[]string{"flow", "outcome"},
	)

	// WebAuthnFailures breaks down passkey verification failures by cause.
	WebAuthnFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "webauthn_failures_total",
			Help:      "Passkey ceremony failures by reason",
		},
		[]string{"reason"},
	)

	// RequestDuration tracks HTTP latency by route pattern.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method, route and status",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func RecordAuth(flow, outcome string) {
	AuthAttempts.WithLabelValues(flow, outcome).Inc()
}

func RecordWebAuthnFailure(reason string) {
	WebAuthnFailures.WithLabelValues(reason).Inc()
}

// Observe records the outcome of a flow from its returned error.
func Observe(flow string, err error) {
	switch {
	case err == nil:
		RecordAuth(flow, OutcomeSuccess)
	case domain.IsInfra(err):
		RecordAuth(flow, OutcomeError)
	default:
		RecordAuth(flow, OutcomeFailure)
	}
}
