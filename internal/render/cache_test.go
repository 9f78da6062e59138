package render

import (
	"testing"

	"github.com/annel0/voxmesh/internal/logging"
	"github.com/annel0/voxmesh/internal/vec"
	"github.com/annel0/voxmesh/internal/voxel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKey(t *testing.T) {
	store := voxel.NewStore(voxel.StoreConfig{})
	m := meshWith(t, store, map[vec.Vec3]voxel.Voxel{{X: 1, Y: 1, Z: 1}: red})
	nb := centerNeighborhood(t, m, vec.Vec3{})

	copyMesh := m.Copy()
	b, _ := copyMesh.Block(vec.Vec3{})
	same := copyMesh.Neighborhood(b)
	assert.Equal(t, Key(&nb, 0), Key(&same, 0), "одни и те же данные дают один ключ")
	assert.NotEqual(t, Key(&nb, 0), Key(&nb, EffectSmooth))

	require.NoError(t, copyMesh.Op(voxel.Painter{Op: voxel.OpAdd, Shape: voxel.ShapeCube, Color: red}, vec.NewBox(vec.Vec3{X: 2}, vec.Vec3{X: 2})))
	b, _ = copyMesh.Block(vec.Vec3{})
	changed := copyMesh.Neighborhood(b)
	assert.NotEqual(t, Key(&nb, 0), Key(&changed, 0), "изменённые данные получают новый ключ")
}

func TestCacheVertices(t *testing.T) {
	cache, err := NewCache(CacheConfig{}, logging.Discard())
	require.NoError(t, err)
	defer cache.Close()

	store := voxel.NewStore(voxel.StoreConfig{})
	m := meshWith(t, store, map[vec.Vec3]voxel.Voxel{{X: 1, Y: 1, Z: 1}: red})
	nb := centerNeighborhood(t, m, vec.Vec3{})

	first := cache.Vertices(nb, EffectSmooth)
	cache.Wait()
	second := cache.Vertices(nb, EffectSmooth)
	assert.Equal(t, first, second)
	assert.Equal(t, GenerateVertices(nb, EffectSmooth), first)

	metrics := cache.Metrics()
	assert.Equal(t, int64(2), metrics.Hits+metrics.Misses)
	assert.GreaterOrEqual(t, metrics.Misses, int64(1))
}

func TestBuildMesh(t *testing.T) {
	store := voxel.NewStore(voxel.StoreConfig{})
	m := meshWith(t, store, map[vec.Vec3]voxel.Voxel{
		{X: 15, Y: 0, Z: 0}:   red,
		{X: 16, Y: 0, Z: 0}:   red,
		{X: -1, Y: -1, Z: -1}: red,
	})

	buffers := BuildMesh(m, 0, nil)
	require.Len(t, buffers, 3)
	assert.Equal(t, vec.Vec3{X: -16, Y: -16, Z: -16}, buffers[0].Pos)
	total := 0
	for _, b := range buffers {
		total += len(b.Vertices)
	}
	assert.Equal(t, (5+5+6)*4, total)

	cache, err := NewCache(DefaultCacheConfig(), nil)
	require.NoError(t, err)
	defer cache.Close()
	assert.Equal(t, buffers, BuildMesh(m, 0, cache))
}

func TestCacheSeesInPlaceEdits(t *testing.T) {
	cache, err := NewCache(DefaultCacheConfig(), nil)
	require.NoError(t, err)
	defer cache.Close()

	store := voxel.NewStore(voxel.StoreConfig{})
	m := store.NewMesh()
	defer m.Release()
	area := vec.NewBox(vec.Vec3{}, vec.Vec3{X: 3, Y: 3, Z: 3})
	require.NoError(t, m.Op(voxel.Painter{Op: voxel.OpAdd, Shape: voxel.ShapeCube, Color: red}, area))

	before := BuildMesh(m, EffectSmooth, cache)
	cache.Wait()

	blue := voxel.RGBA(0, 0, 255, 255)
	require.NoError(t, m.Op(voxel.Painter{Op: voxel.OpPaint, Shape: voxel.ShapeCube, Color: blue}, area))
	require.Zero(t, store.Stats().Cloned, "данные не разделены, запись идёт на месте")

	painted := BuildMesh(m, EffectSmooth, cache)
	assert.Equal(t, BuildMesh(m, EffectSmooth, nil), painted)
	assert.NotEqual(t, before, painted)
	cache.Wait()

	// второй мазок в том же блоке
	p := vec.Vec3{X: 8, Y: 8, Z: 8}
	require.NoError(t, m.Op(voxel.Painter{Op: voxel.OpAdd, Shape: voxel.ShapeCube, Color: red}, vec.NewBox(p, p)))
	stroked := BuildMesh(m, EffectSmooth, cache)
	assert.Equal(t, BuildMesh(m, EffectSmooth, nil), stroked)
	require.Len(t, stroked, 1)
	assert.Len(t, stroked[0].Vertices, len(painted[0].Vertices)+6*4)
}
