package voxel

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkRefcounts сверяет счётчики ссылок BlockData с фактическими привязками
// во всех живых таблицах
func checkRefcounts(t *testing.T, store *Store, meshes []*Mesh) {
	t.Helper()
	tables := make(map[*blockTable]bool)
	attached := make(map[*BlockData]int32)
	for _, m := range meshes {
		if m.table == nil || tables[m.table] {
			continue
		}
		tables[m.table] = true
		for _, b := range m.table.blocks {
			attached[b.data]++
			assert.NotZero(t, b.data.filled, "в меше не должно оставаться пустых блоков")
		}
	}

	var total int64
	for d, n := range attached {
		require.Equal(t, n, d.Refs(), "счётчик ссылок BlockData %d", d.ID())
		total += int64(n)
	}
	stats := store.Stats()
	assert.Equal(t, total, stats.Attachments)
	assert.Equal(t, int64(len(attached)), stats.LiveData)
}

func TestRefcountConservation(t *testing.T) {
	store := NewStore(StoreConfig{})
	rng := rand.New(rand.NewSource(42))
	meshes := []*Mesh{store.NewMesh()}

	randomBox := func() (int, int, int, int, int, int) {
		x, y, z := rng.Intn(64)-32, rng.Intn(64)-32, rng.Intn(32)-16
		return x, y, z, x + rng.Intn(24), y + rng.Intn(24), z + rng.Intn(24)
	}
	palette := []Voxel{red, green, blue}
	shapes := []Shape{ShapeSphere, ShapeCube, ShapeCylinder}

	for step := 0; step < 300; step++ {
		m := meshes[rng.Intn(len(meshes))]
		switch rng.Intn(7) {
		case 0, 1:
			p := Painter{Op: OpAdd, Shape: shapes[rng.Intn(3)], Color: palette[rng.Intn(3)]}
			require.NoError(t, m.Op(p, box(randomBox())))
		case 2:
			p := Painter{Op: OpSub, Shape: shapes[rng.Intn(3)], Smoothness: float32(rng.Intn(3))}
			require.NoError(t, m.Op(p, box(randomBox())))
		case 3:
			require.NoError(t, m.Op(Painter{Op: OpPaint, Shape: ShapeCube, Color: palette[rng.Intn(3)]}, box(randomBox())))
		case 4:
			if len(meshes) < 8 {
				meshes = append(meshes, m.Copy())
			}
		case 5:
			other := meshes[rng.Intn(len(meshes))]
			require.NoError(t, m.Merge(other))
		case 6:
			if len(meshes) > 1 {
				i := rng.Intn(len(meshes))
				meshes[i].Release()
				meshes = append(meshes[:i], meshes[i+1:]...)
			}
		}
		checkRefcounts(t, store, meshes)
	}

	for _, m := range meshes {
		m.Release()
	}
	stats := store.Stats()
	assert.Zero(t, stats.LiveData, "после освобождения всех мешей данных не остаётся")
	assert.Zero(t, stats.Attachments)
	assert.Equal(t, stats.Allocated, stats.Freed, "каждый созданный BlockData должен быть освобождён")
}

func TestFastAndExactEmptinessAgree(t *testing.T) {
	store := NewStore(StoreConfig{})
	m := store.NewMesh()
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		x, y, z := rng.Intn(40), rng.Intn(40), rng.Intn(40)
		op := OpAdd
		if i%3 == 0 {
			op = OpSub
		}
		require.NoError(t, m.Op(Painter{Op: op, Shape: ShapeSphere, Color: red, Smoothness: 2}, box(x, y, z, x+9, y+9, z+9)))
		m.ForEachBlock(func(b *Block) {
			require.Equal(t, b.IsEmpty(true), b.IsEmpty(false))
		})
	}
}
