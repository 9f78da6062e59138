package render

import (
	"testing"

	"github.com/annel0/voxmesh/internal/vec"
	"github.com/annel0/voxmesh/internal/voxel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red   = voxel.RGBA(255, 0, 0, 255)
	glass = voxel.RGBA(200, 200, 255, 128)
)

func meshWith(t *testing.T, store *voxel.Store, voxels map[vec.Vec3]voxel.Voxel) *voxel.Mesh {
	t.Helper()
	m := store.NewMesh()
	for p, v := range voxels {
		require.NoError(t, m.Op(voxel.Painter{Op: voxel.OpAdd, Shape: voxel.ShapeCube, Color: v}, vec.NewBox(p, p)))
	}
	return m
}

func centerNeighborhood(t *testing.T, m *voxel.Mesh, origin vec.Vec3) voxel.Neighborhood {
	t.Helper()
	b, ok := m.Block(origin)
	require.True(t, ok)
	return m.Neighborhood(b)
}

func TestSingleVoxelHasSixFaces(t *testing.T) {
	store := voxel.NewStore(voxel.StoreConfig{})
	m := meshWith(t, store, map[vec.Vec3]voxel.Voxel{{X: 3, Y: 4, Z: 5}: red})

	verts := GenerateVertices(centerNeighborhood(t, m, vec.Vec3{}), 0)
	require.Len(t, verts, 6*4)

	normals := map[[3]int8]int{}
	for _, v := range verts {
		normals[v.Normal]++
		assert.Equal(t, [4]uint8{255, 0, 0, 255}, v.Color)
		assert.Equal(t, uint8(3<<4|4), v.PosData[0])
		for axis, lo := range []int{3, 4, 5} {
			assert.GreaterOrEqual(t, int(v.Pos[axis]), lo*PosScale)
			assert.LessOrEqual(t, int(v.Pos[axis]), (lo+1)*PosScale)
		}
	}
	assert.Len(t, normals, 6)
	for n, count := range normals {
		assert.Equal(t, 4, count, "нормаль %v", n)
	}
}

func TestQuadWindingFacesOutward(t *testing.T) {
	store := voxel.NewStore(voxel.StoreConfig{})
	m := meshWith(t, store, map[vec.Vec3]voxel.Voxel{{X: 1, Y: 1, Z: 1}: red})
	verts := GenerateVertices(centerNeighborhood(t, m, vec.Vec3{}), 0)

	for q := 0; q < len(verts); q += 4 {
		p0, p1, p2 := verts[q].Pos, verts[q+1].Pos, verts[q+2].Pos
		a := [3]int{int(p1[0]) - int(p0[0]), int(p1[1]) - int(p0[1]), int(p1[2]) - int(p0[2])}
		b := [3]int{int(p2[0]) - int(p0[0]), int(p2[1]) - int(p0[1]), int(p2[2]) - int(p0[2])}
		cross := [3]int{a[1]*b[2] - a[2]*b[1], a[2]*b[0] - a[0]*b[2], a[0]*b[1] - a[1]*b[0]}
		n := verts[q].Normal
		dot := cross[0]*int(n[0]) + cross[1]*int(n[1]) + cross[2]*int(n[2])
		assert.Greater(t, dot, 0, "четырёхугольник %d должен быть обращён по нормали", q/4)
	}
}

func TestFaceCullingAcrossBlocks(t *testing.T) {
	store := voxel.NewStore(voxel.StoreConfig{})
	m := meshWith(t, store, map[vec.Vec3]voxel.Voxel{
		{X: 15, Y: 0, Z: 0}: red,
		{X: 16, Y: 0, Z: 0}: red,
	})

	left := GenerateVertices(centerNeighborhood(t, m, vec.Vec3{}), 0)
	right := GenerateVertices(centerNeighborhood(t, m, vec.Vec3{X: 16}), 0)
	assert.Len(t, left, 5*4, "грань, закрытая соседним блоком, не выводится")
	assert.Len(t, right, 5*4)
	for _, v := range left {
		assert.NotEqual(t, [3]int8{1, 0, 0}, v.Normal)
	}
}

func TestDeterministicForIdenticalBytes(t *testing.T) {
	store := voxel.NewStore(voxel.StoreConfig{})
	m := store.NewMesh()
	require.NoError(t, m.Op(voxel.Painter{Op: voxel.OpAdd, Shape: voxel.ShapeSphere, Color: red}, vec.NewBox(vec.Vec3{X: 1, Y: 1, Z: 1}, vec.Vec3{X: 13, Y: 12, Z: 11})))
	b, _ := m.Block(vec.Vec3{})

	twin, err := store.NewBlockDataFromBytes(b.Data().Bytes())
	require.NoError(t, err)
	other := store.NewMesh()
	require.NoError(t, other.AddBlock(twin, vec.Vec3{X: 160}))
	ob, _ := other.Block(vec.Vec3{X: 160})
	require.NotEqual(t, b.Data().ID(), ob.Data().ID())

	for _, effects := range []Effects{0, EffectSmooth | EffectBorders, EffectBordersAll | EffectSeeBack, EffectRenderPos} {
		a := GenerateVertices(m.Neighborhood(b), effects)
		c := GenerateVertices(other.Neighborhood(ob), effects)
		assert.Equal(t, a, c, "эффекты %s", effects)
		assert.NotEmpty(t, a)
	}
}

func TestEffects(t *testing.T) {
	store := voxel.NewStore(voxel.StoreConfig{})
	single := meshWith(t, store, map[vec.Vec3]voxel.Voxel{{X: 2, Y: 2, Z: 2}: red})
	nb := centerNeighborhood(t, single, vec.Vec3{})

	back := GenerateVertices(nb, EffectSeeBack)
	assert.Len(t, back, 2*6*4)
	backs := 0
	for _, v := range back {
		if v.Flags&VertexBack != 0 {
			backs++
		}
	}
	assert.Equal(t, 6*4, backs)

	all := GenerateVertices(nb, EffectBordersAll)
	assert.Len(t, all, 6*(1+4)*4, "по рамке на каждое ребро каждой грани")

	bar := meshWith(t, store, map[vec.Vec3]voxel.Voxel{{X: 2, Y: 2, Z: 2}: red, {X: 3, Y: 2, Z: 2}: red})
	barNb := centerNeighborhood(t, bar, vec.Vec3{})
	assert.Less(t, len(GenerateVertices(barNb, EffectBorders)), len(GenerateVertices(barNb, EffectBordersAll)),
		"между одинаковыми вокселями рамка не нужна")

	picking := GenerateVertices(nb, EffectRenderPos|EffectBordersAll|EffectSeeBack)
	require.Len(t, picking, 6*4)
	assert.Equal(t, [4]uint8{2<<4 | 2, picking[0].PosData[1], 0, 255}, picking[0].Color)

	smooth := GenerateVertices(nb, EffectSmooth)
	assert.Equal(t, uint8(0xF), smooth[0].BumpUV[0], "у одиночного вокселя все рёбра открыты")
}

func TestSemiTransparentFaces(t *testing.T) {
	store := voxel.NewStore(voxel.StoreConfig{})
	m := meshWith(t, store, map[vec.Vec3]voxel.Voxel{{X: 2, Y: 2, Z: 2}: red, {X: 3, Y: 2, Z: 2}: glass})
	nb := centerNeighborhood(t, m, vec.Vec3{})

	assert.Len(t, GenerateVertices(nb, 0), 10*4)
	assert.Len(t, GenerateVertices(nb, EffectSemiTransparent), 11*4, "непрозрачный воксель виден сквозь полупрозрачный")
}

func TestShadowMask(t *testing.T) {
	store := voxel.NewStore(voxel.StoreConfig{})
	m := meshWith(t, store, map[vec.Vec3]voxel.Voxel{{X: 5, Y: 5, Z: 5}: red, {X: 5, Y: 6, Z: 6}: red})
	verts := GenerateVertices(centerNeighborhood(t, m, vec.Vec3{}), 0)

	found := false
	for _, v := range verts {
		if v.Normal == [3]int8{0, 0, 1} && v.PosData[0] == 5<<4|5 {
			assert.NotZero(t, v.ShadowUV[0], "сосед над гранью затеняет её")
			found = true
		}
	}
	assert.True(t, found)
}

func TestQuadIndices(t *testing.T) {
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3, 4, 5, 6, 4, 6, 7}, QuadIndices(2))
	assert.Empty(t, QuadIndices(0))
}

func TestParseEffects(t *testing.T) {
	e, err := ParseEffects([]string{"borders", " Smooth ", "", "none"})
	require.NoError(t, err)
	assert.Equal(t, EffectBorders|EffectSmooth, e)
	assert.Equal(t, "borders|smooth", e.String())
	assert.Equal(t, "none", Effects(0).String())

	_, err = ParseEffects([]string{"bloom"})
	assert.Error(t, err)
}
