package fetch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tileforge/tileserv/pkg/config"
	"github.com/tileforge/tileserv/pkg/testutil"
)

func breakerConfig() *config.HTTPConfig {
	cfg := &config.Default().HTTP
	cfg.FailureThreshold = 3
	cfg.SuccessThreshold = 2
	cfg.BreakerTimeout = 50 * time.Millisecond
	return cfg
}

func TestBreakerStartsClosed(t *testing.T) {
	cb := NewCircuitBreaker(breakerConfig(), testutil.TestLogger(t))

	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(breakerConfig(), testutil.TestLogger(t))

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestBreakerSuccessResetsFailureStreak(t *testing.T) {
	cb := NewCircuitBreaker(breakerConfig(), testutil.TestLogger(t))

	cb.RecordFailure()
	cb.RecordFailure()
	for i := 0; i < 8; i++ {
		cb.RecordSuccess()
	}
	cb.RecordFailure()
	cb.RecordFailure()

	// The success run reset the consecutive-failure streak and kept the
	// windowed failure rate below the trip level.
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(breakerConfig(), testutil.TestLogger(t))

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	assert.Equal(t, StateOpen, cb.State())

	// After the breaker timeout a probe request is allowed.
	time.Sleep(60 * time.Millisecond)
	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())

	// Enough successes close the circuit again.
	cb.RecordSuccess()
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(breakerConfig(), testutil.TestLogger(t))

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}
	time.Sleep(60 * time.Millisecond)
	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}
