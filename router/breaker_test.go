package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/agentrelay/model"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	now := time.Unix(0, 0)
	b := NewBreaker(3, time.Second)

	b.RecordFailure(model.KindTimeout, now)
	b.RecordFailure(model.KindTimeout, now)
	assert.True(t, b.Allow(now))
	b.RecordFailure(model.KindTimeout, now)

	assert.Equal(t, CircuitOpen, b.State())
	assert.Equal(t, model.KindTimeout, b.OpenedKind())
	assert.False(t, b.Allow(now.Add(500*time.Millisecond)))
}

func TestBreaker_CountsPerKind(t *testing.T) {
	now := time.Unix(0, 0)
	b := NewBreaker(2, time.Second)

	b.RecordFailure(model.KindTimeout, now)
	b.RecordFailure(model.KindServer, now)
	assert.Equal(t, CircuitClosed, b.State())
}

func TestBreaker_ResetsOnKindChange(t *testing.T) {
	now := time.Unix(0, 0)
	b := NewBreaker(2, time.Second)

	b.RecordFailure(model.KindTimeout, now)
	b.RecordFailure(model.KindServer, now)
	b.RecordFailure(model.KindTimeout, now)
	assert.Equal(t, CircuitClosed, b.State())

	b.RecordFailure(model.KindTimeout, now)
	assert.Equal(t, CircuitOpen, b.State())
	assert.Equal(t, model.KindTimeout, b.OpenedKind())
}

func TestBreaker_CanceledProbeReopens(t *testing.T) {
	now := time.Unix(0, 0)
	b := NewBreaker(1, time.Second)
	b.RecordFailure(model.KindServer, now)

	later := now.Add(2 * time.Second)
	assert.True(t, b.Allow(later))
	b.RecordCanceled()
	assert.Equal(t, CircuitOpen, b.State())
	assert.Equal(t, model.KindServer, b.OpenedKind())

	// The original open time still counts, so the next call probes right away.
	assert.True(t, b.Allow(later))
	assert.Equal(t, CircuitHalfOpen, b.State())
}

func TestBreaker_CanceledWhileClosed(t *testing.T) {
	b := NewBreaker(1, time.Second)
	b.RecordCanceled()
	assert.Equal(t, CircuitClosed, b.State())
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Unix(0, 0)
	b := NewBreaker(1, time.Second)
	b.RecordFailure(model.KindServer, now)

	later := now.Add(time.Second)
	assert.True(t, b.Allow(later))
	assert.Equal(t, CircuitHalfOpen, b.State())
	assert.False(t, b.Allow(later), "only one probe while half-open")

	b.RecordFailure(model.KindServer, later)
	assert.Equal(t, CircuitOpen, b.State())

	assert.True(t, b.Allow(later.Add(time.Second)))
	b.RecordSuccess()
	assert.Equal(t, CircuitClosed, b.State())
	assert.True(t, b.Allow(later.Add(time.Second)))
}

func TestNewBreaker_Defaults(t *testing.T) {
	b := NewBreaker(0, 0)
	assert.Equal(t, 5, b.threshold)
	assert.Equal(t, 30*time.Second, b.cooldown)
}
