package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoiseDeterministic(t *testing.T) {
	a := NewNoise(42)
	b := NewNoise(42)
	c := NewNoise(7)

	differs := false
	for i := 0; i < 50; i++ {
		x, y, z := float64(i)*0.37, float64(i)*0.11, float64(i)*0.05
		assert.Equal(t, a.Noise2D(x, y), b.Noise2D(x, y))
		assert.Equal(t, a.Noise3D(x, y, z), b.Noise3D(x, y, z))
		v := a.Noise2D(x, y)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
		if v != c.Noise2D(x, y) {
			differs = true
		}
	}
	assert.True(t, differs, "разные сиды дают разный шум")
	assert.Equal(t, int64(42), a.Seed())
}
