package werr

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransientRoundTripsDelay(t *testing.T) {
	err := Transient(errors.New("pod not ready"), 5*time.Second)

	delay, ok := AsTransient(err)
	assert.True(t, ok)
	assert.Equal(t, 5*time.Second, delay)
	assert.False(t, IsPermanent(err))
}

func TestPermanentIsNotTransient(t *testing.T) {
	err := Permanent(errors.New("template not found"))

	assert.True(t, IsPermanent(err))
	_, ok := AsTransient(err)
	assert.False(t, ok)
}

func TestWrappedTransientStillDetected(t *testing.T) {
	inner := Transient(errors.New("namespace create conflict"), time.Second)
	wrapped := fmt.Errorf("reconciling instance: %w", inner)

	delay, ok := AsTransient(wrapped)
	assert.True(t, ok)
	assert.Equal(t, time.Second, delay)
}
