package clock_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/clock"
)

type countingStepper struct {
	n      int
	failAt int
}

func (s *countingStepper) AdvanceTick(context.Context) error {
	if s.failAt > 0 && s.n+1 == s.failAt {
		return errors.New("engine disconnected")
	}
	s.n++
	return nil
}

func TestAdvance(t *testing.T) {
	s := &countingStepper{}
	c := clock.New(10, s)
	assert.Equal(t, 100, c.Ticks(10))
	assert.Equal(t, 5, c.Ticks(0.5))

	require.NoError(t, c.Advance(context.Background(), 36005))
	assert.Equal(t, 36005, s.n)
	assert.Equal(t, int64(36005), c.Step)
	h, m, sec := c.GetHourMinuteSecond()
	assert.Equal(t, 1, h)
	assert.Equal(t, 0, m)
	assert.InDelta(t, 0.5, sec, 1e-6)
	assert.Equal(t, "01:00:00.5", c.String())
}

func TestAdvanceStopsOnError(t *testing.T) {
	s := &countingStepper{failAt: 4}
	c := clock.New(10, s)
	err := c.Advance(context.Background(), 10)
	assert.ErrorContains(t, err, "advance tick 4")
	assert.Equal(t, int64(3), c.Step)
}

func TestAdvanceCancelled(t *testing.T) {
	s := &countingStepper{}
	c := clock.New(10, s)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Advance(ctx, 5), context.Canceled)
	assert.Equal(t, 0, s.n)
}
