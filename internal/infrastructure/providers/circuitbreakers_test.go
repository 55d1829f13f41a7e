package providers

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_TripsOnErrorRate(t *testing.T) {
	cbm := NewCircuitBreakerManager()
	cbm.InitializeEndpoint(EndpointStats, &CircuitBreakerConfig{
		Name:                EndpointStats,
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             time.Minute,
		ErrorRateThreshold:  50,
		ConsecutiveFailures: 100,
	})

	boom := errors.New("boom")
	for i := 0; i < 10; i++ {
		fail := i%2 == 1
		_, _ = cbm.Execute(EndpointStats, func() (interface{}, error) {
			if fail {
				return nil, boom
			}
			return nil, nil
		})
	}

	status := cbm.GetStatus(EndpointStats)
	require.NotNil(t, status)
	assert.Equal(t, gobreaker.StateOpen.String(), status.State)

	_, err := cbm.Execute(EndpointStats, func() (interface{}, error) { return nil, nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestCircuitBreaker_ErrorRateDisabled(t *testing.T) {
	cbm := NewCircuitBreakerManager()
	cbm.InitializeEndpoint(EndpointStats, &CircuitBreakerConfig{
		Name:                EndpointStats,
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             time.Minute,
		ConsecutiveFailures: 100,
	})

	for i := 0; i < 20; i++ {
		fail := i%2 == 1
		_, _ = cbm.Execute(EndpointStats, func() (interface{}, error) {
			if fail {
				return nil, errors.New("boom")
			}
			return nil, nil
		})
	}

	assert.Equal(t, gobreaker.StateClosed.String(), cbm.GetStatus(EndpointStats).State)
}

func TestCircuitBreaker_ClientErrorsDoNotCount(t *testing.T) {
	assert.True(t, isBreakerSuccess(nil))
	assert.True(t, isBreakerSuccess(&StatusError{Code: 404}))
	assert.False(t, isBreakerSuccess(&StatusError{Code: 429}))
	assert.False(t, isBreakerSuccess(&StatusError{Code: 502}))
	assert.False(t, isBreakerSuccess(errors.New("dial tcp: refused")))
}
