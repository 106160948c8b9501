package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	var transitions []string
	b := New(Settings{
		Name:        "kafka",
		MaxFailures: 2,
		OpenTimeout: time.Minute,
		OnStateChange: func(_, from, to string) {
			transitions = append(transitions, from+"->"+to)
		},
	})

	boom := errors.New("broker down")
	assert.ErrorIs(t, b.Do(func() error { return boom }), boom)
	assert.ErrorIs(t, b.Do(func() error { return boom }), boom)

	calls := 0
	err := b.Do(func() error {
		calls++
		return nil
	})
	require.Error(t, err)
	assert.True(t, IsOpen(err))
	assert.Equal(t, 0, calls, "open breaker must not invoke fn")
	assert.Equal(t, "open", b.State())
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b := New(Settings{Name: "kafka", MaxFailures: 2})
	boom := errors.New("broker down")

	_ = b.Do(func() error { return boom })
	require.NoError(t, b.Do(func() error { return nil }))
	_ = b.Do(func() error { return boom })

	assert.Equal(t, "closed", b.State())
}

func TestIsOpen_OtherErrors(t *testing.T) {
	assert.False(t, IsOpen(errors.New("x")))
	assert.False(t, IsOpen(nil))
}
