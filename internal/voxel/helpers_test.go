package voxel

import (
	"testing"

	"github.com/annel0/voxmesh/internal/vec"
	"github.com/stretchr/testify/assert"
)

var (
	red   = RGBA(255, 0, 0, 255)
	green = RGBA(0, 255, 0, 255)
	blue  = RGBA(0, 0, 255, 255)
)

func box(x0, y0, z0, x1, y1, z1 int) vec.Box {
	return vec.NewBox(vec.Vec3{X: x0, Y: y0, Z: z0}, vec.Vec3{X: x1, Y: y1, Z: z1})
}

func add(color Voxel, shape Shape) Painter {
	return Painter{Op: OpAdd, Shape: shape, Color: color}
}

// assertSameVoxels сравнивает два меша повоксельно
func assertSameVoxels(t *testing.T, a, b *Mesh) {
	t.Helper()
	area := a.Box(true).Union(b.Box(true))
	mismatches := 0
	area.ForEach(func(p vec.Vec3) {
		if a.Get(p) != b.Get(p) {
			mismatches++
		}
	})
	assert.Zero(t, mismatches, "меши должны совпадать повоксельно в %s", area)
}

// assertSameOccupancy сравнивает только занятость вокселей
func assertSameOccupancy(t *testing.T, a, b *Mesh) {
	t.Helper()
	area := a.Box(true).Union(b.Box(true))
	mismatches := 0
	area.ForEach(func(p vec.Vec3) {
		if a.Get(p).IsEmpty() != b.Get(p).IsEmpty() {
			mismatches++
		}
	})
	assert.Zero(t, mismatches, "занятость мешей должна совпадать в %s", area)
}

// countingObserver считает события хранилища
type countingObserver struct {
	allocated, cloned, freed, tables int
}

func (o *countingObserver) BlockDataAllocated() { o.allocated++ }
func (o *countingObserver) BlockDataCloned()    { o.cloned++ }
func (o *countingObserver) BlockDataFreed()     { o.freed++ }
func (o *countingObserver) MeshTableCopied(int) { o.tables++ }
