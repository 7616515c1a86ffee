package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rohansroy/giterdone/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestRecordAuth_SeparatesOutcomes(t *testing.T) {
	before := testutil.ToFloat64(AuthAttempts.WithLabelValues(FlowRefresh, OutcomeError))
	RecordAuth(FlowRefresh, OutcomeError)
	RecordAuth(FlowRefresh, OutcomeFailure)
	assert.Equal(t, before+1, testutil.ToFloat64(AuthAttempts.WithLabelValues(FlowRefresh, OutcomeError)))
}

func TestRecordWebAuthnFailure(t *testing.T) {
	before := testutil.ToFloat64(WebAuthnFailures.WithLabelValues("replay"))
	RecordWebAuthnFailure("replay")
	assert.Equal(t, before+1, testutil.ToFloat64(WebAuthnFailures.WithLabelValues("replay")))
}

func TestObserve(t *testing.T) {
	value := func(outcome string) float64 {
		return testutil.ToFloat64(AuthAttempts.WithLabelValues(FlowProfile, outcome))
	}
	ok, fail, infra := value(OutcomeSuccess), value(OutcomeFailure), value(OutcomeError)

	Observe(FlowProfile, nil)
	Observe(FlowProfile, domain.ErrInvalidCredentials)
	Observe(FlowProfile, domain.Infra("users.get", errors.New("down")))

	assert.Equal(t, ok+1, value(OutcomeSuccess))
	assert.Equal(t, fail+1, value(OutcomeFailure))
	assert.Equal(t, infra+1, value(OutcomeError))
}
