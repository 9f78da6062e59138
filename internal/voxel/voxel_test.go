package voxel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHexColor(t *testing.T) {
	v := HexColor(0x11223344)
	assert.Equal(t, Voxel{R: 0x11, G: 0x22, B: 0x33, A: 0x44}, v)
	assert.Equal(t, uint32(0x11223344), v.Hex())
	assert.True(t, HexColor(0xffffff00).IsEmpty())
	assert.True(t, HexColor(0x000000ff).IsOpaque())
}

func TestHSLRoundTrip(t *testing.T) {
	for _, c := range []Voxel{red, green, blue, RGBA(255, 255, 255, 255), RGBA(0, 0, 0, 255), RGBA(128, 128, 128, 255)} {
		back := HSLToRGB(RGBToHSL(c))
		// квантование HSL до байта даёт погрешность в пару единиц
		assert.InDelta(t, c.R, back.R, 2, "цвет %08x", c.Hex())
		assert.InDelta(t, c.G, back.G, 2, "цвет %08x", c.Hex())
		assert.InDelta(t, c.B, back.B, 2, "цвет %08x", c.Hex())
		assert.Equal(t, uint8(255), back.A)
	}
	assert.Equal(t, HSL{H: 0, S: 255, L: 128}, RGBToHSL(red))
}

func TestOpNames(t *testing.T) {
	for _, op := range []Op{OpNone, OpAdd, OpSub, OpPaint} {
		parsed, ok := ParseOp(op.String())
		assert.True(t, ok)
		assert.Equal(t, op, parsed)
	}
	_, ok := ParseOp("smudge")
	assert.False(t, ok)
}

func TestShapeByName(t *testing.T) {
	assert.Equal(t, []string{"cube", "cylinder", "sphere"}, ShapeNames())
	s, ok := ShapeByName("cylinder")
	assert.True(t, ok)
	assert.Equal(t, "cylinder", s.Name)
	_, ok = ShapeByName("torus")
	assert.False(t, ok)
}

func TestPainterApply(t *testing.T) {
	half := RGBA(10, 20, 30, 100)

	add := Painter{Op: OpAdd, Color: red}
	assert.Equal(t, RGBA(255, 0, 0, 255), add.apply(half, 1))
	assert.Equal(t, RGBA(255, 0, 0, 100), Painter{Op: OpAdd, Color: RGBA(255, 0, 0, 50)}.apply(half, 1), "альфа ADD не уменьшается")

	sub := Painter{Op: OpSub}
	assert.Equal(t, Voxel{}, sub.apply(half, 1))
	assert.Equal(t, half, sub.apply(half, 0.5), "SUB не увеличивает альфу")
	assert.Equal(t, RGBA(10, 20, 30, 51), sub.apply(RGBA(10, 20, 30, 255), 0.8))

	paint := Painter{Op: OpPaint, Color: blue}
	assert.Equal(t, Voxel{}, paint.apply(Voxel{}, 1), "PAINT не трогает пустые воксели")
	assert.Equal(t, RGBA(0, 0, 255, 100), paint.apply(half, 1))
}
