package randengine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/roundabout-sim-oss/utils/randengine"
)

func TestSameSeedSameSequence(t *testing.T) {
	a := randengine.New(42)
	b := randengine.New(42)
	for range 10 {
		assert.Equal(t, a.Intn(1000), b.Intn(1000))
	}
	assert.Equal(t, a.Fork().Uint64(), b.Fork().Uint64())
}

func TestShuffledKeepsInput(t *testing.T) {
	e := randengine.New(1)
	in := []int{1, 2, 3, 4, 5, 6, 7, 8}
	out := randengine.Shuffled(e, in)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, in)
	assert.ElementsMatch(t, in, out)
}

func TestChoice(t *testing.T) {
	e := randengine.New(3)
	items := []string{"a", "b", "c"}
	for range 20 {
		assert.Contains(t, items, randengine.Choice(e, items))
	}
	assert.Panics(t, func() { randengine.Choice(e, []string{}) })
	assert.False(t, e.PTrue(0))
	assert.True(t, e.PTrue(1))
}
