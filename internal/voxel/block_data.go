package voxel

import (
	"sync/atomic"

	"github.com/annel0/voxmesh/internal/vec"
)

// BlockData разделяемое содержимое блока. После того как на данные
// появилась вторая ссылка, они неизменяемы: любая запись сначала проходит
// через Block.ensureWritable, который при необходимости делает копию.
type BlockData struct {
	ref    int32
	id     uint64
	filled int // число непустых вокселей, поддерживается всеми записями
	store  *Store
	voxels [BlockVolume]Voxel
}

func index(x, y, z int) int {
	return x + y*BlockSize + z*BlockSize*BlockSize
}

// ID стабильный идентификатор данных (для кешей, не для сравнения содержимого)
func (d *BlockData) ID() uint64 {
	return d.id
}

// Refs текущее число ссылок
func (d *BlockData) Refs() int32 {
	return atomic.LoadInt32(&d.ref)
}

// Filled число непустых вокселей
func (d *BlockData) Filled() int {
	return d.filled
}

// At возвращает воксель по локальным координатам 0..15
func (d *BlockData) At(x, y, z int) Voxel {
	return d.voxels[index(x, y, z)]
}

// AtLocal возвращает воксель по локальному вектору
func (d *BlockData) AtLocal(p vec.Vec3) Voxel {
	return d.voxels[index(p.X, p.Y, p.Z)]
}

// Set записывает воксель в ещё не привязанные данные (счётчик ссылок 0).
// Для привязанных данных запись идёт только через операции меша.
func (d *BlockData) Set(x, y, z int, v Voxel) {
	invariant(d.Refs() == 0, "direct write into attached BlockData")
	d.put(index(x, y, z), v)
}

// Bytes возвращает копию сырых данных RGBA
func (d *BlockData) Bytes() []byte {
	out := make([]byte, BlockBytes)
	for i, v := range d.voxels {
		out[i*4] = v.R
		out[i*4+1] = v.G
		out[i*4+2] = v.B
		out[i*4+3] = v.A
	}
	return out
}

// Equal сравнивает содержимое двух блоков
func (d *BlockData) Equal(other *BlockData) bool {
	if d == other {
		return true
	}
	if d == nil || other == nil {
		return false
	}
	return d.filled == other.filled && d.voxels == other.voxels
}

// put единственная точка записи вокселя; поддерживает счётчик filled
func (d *BlockData) put(i int, v Voxel) {
	v = v.normalize()
	old := d.voxels[i]
	if old == v {
		return
	}
	if old.A == 0 {
		d.filled++
	} else if v.A == 0 {
		d.filled--
	}
	d.voxels[i] = v
}

// scanEmpty полный просмотр данных
func (d *BlockData) scanEmpty() bool {
	for i := range d.voxels {
		if d.voxels[i].A != 0 {
			return false
		}
	}
	return true
}

// exactBox минимальный локальный бокс непустых вокселей
func (d *BlockData) exactBox() vec.Box {
	box := vec.EmptyBox()
	if d.filled == 0 {
		return box
	}
	for z := 0; z < BlockSize; z++ {
		for y := 0; y < BlockSize; y++ {
			for x := 0; x < BlockSize; x++ {
				if d.voxels[index(x, y, z)].A != 0 {
					box = box.Extend(vec.Vec3{X: x, Y: y, Z: z})
				}
			}
		}
	}
	return box
}
