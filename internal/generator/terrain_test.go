package generator

import (
	"context"
	"testing"

	"github.com/annel0/voxmesh/internal/vec"
	"github.com/annel0/voxmesh/internal/voxel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDeterministic(t *testing.T) {
	area := vec.NewBox(vec.Vec3{X: -16, Y: -16, Z: 0}, vec.Vec3{X: 31, Y: 31, Z: 63})
	store := voxel.NewStore(voxel.StoreConfig{})

	a := store.NewMesh()
	defer a.Release()
	gen := NewTerrainGenerator(1234, nil)
	gen.TreeDensity = 0.05
	require.NoError(t, gen.Generate(context.Background(), a, area))
	require.Greater(t, a.VoxelCount(), 0)

	// нижний слой всегда заполнен
	area.ForEach(func(p vec.Vec3) {
		if p.Z == 0 {
			assert.False(t, a.Get(p).IsEmpty(), "дно области %v", p)
		}
	})

	same := NewTerrainGenerator(1234, nil)
	same.TreeDensity = 0.05
	b := store.NewMesh()
	defer b.Release()
	require.NoError(t, same.Generate(context.Background(), b, area))

	mismatches := 0
	a.Box(true).Union(b.Box(true)).ForEach(func(p vec.Vec3) {
		if a.Get(p) != b.Get(p) {
			mismatches++
		}
	})
	assert.Zero(t, mismatches, "один сид даёт один ландшафт")
}

func TestGenerateCaves(t *testing.T) {
	area := vec.NewBox(vec.Vec3{}, vec.Vec3{X: 31, Y: 31, Z: 40})
	store := voxel.NewStore(voxel.StoreConfig{})

	solid := store.NewMesh()
	defer solid.Release()
	gen := NewTerrainGenerator(99, nil)
	gen.TreeDensity = 0
	require.NoError(t, gen.Generate(context.Background(), solid, area))

	caves := store.NewMesh()
	defer caves.Release()
	gen.CaveThreshold = 0.52
	require.NoError(t, gen.Generate(context.Background(), caves, area))

	assert.Less(t, caves.VoxelCount(), solid.VoxelCount(), "пещеры вырезают воксели")
}

func TestGenerateCancelled(t *testing.T) {
	store := voxel.NewStore(voxel.StoreConfig{})
	mesh := store.NewMesh()
	defer mesh.Release()
	gen := NewTerrainGenerator(5, nil)
	gen.TreeDensity = 1

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := gen.Generate(ctx, mesh, vec.NewBox(vec.Vec3{}, vec.Vec3{X: 15, Y: 15, Z: 40}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateRespectsBudget(t *testing.T) {
	store := voxel.NewStore(voxel.StoreConfig{MaxBlockData: 1})
	mesh := store.NewMesh()
	defer mesh.Release()
	err := NewTerrainGenerator(5, nil).Generate(context.Background(), mesh, vec.NewBox(vec.Vec3{}, vec.Vec3{X: 63, Y: 63, Z: 40}))
	assert.ErrorIs(t, err, voxel.ErrResourceExhausted)
	assert.Zero(t, mesh.BlockCount())
}
