package voxel

import (
	"sort"
	"sync/atomic"

	"github.com/annel0/voxmesh/internal/vec"
)

// blockTable таблица блоков, разделяемая несколькими дескрипторами Mesh.
// Пока ref > 1, таблица неизменяема.
type blockTable struct {
	ref         int32
	blocks      map[vec.Vec3]*Block
	nextBlockID int
}

func newBlockTable() *blockTable {
	return &blockTable{ref: 1, blocks: make(map[vec.Vec3]*Block), nextBlockID: 1}
}

// Mesh разреженный объём: таблица блоков на равномерной сетке.
// Копирование меша — O(1): дескрипторы разделяют таблицу до первой записи.
//
// Дескриптор не потокобезопасен: один Mesh используется одной горутиной,
// разные дескрипторы с общими данными могут жить в разных горутинах.
type Mesh struct {
	store *Store
	table *blockTable
}

// NewMesh создаёт пустой меш
func (s *Store) NewMesh() *Mesh {
	return &Mesh{store: s}
}

// Store возвращает хранилище меша
func (m *Mesh) Store() *Store {
	return m.store
}

// Copy возвращает новый дескриптор на те же данные (O(1))
func (m *Mesh) Copy() *Mesh {
	if m.table != nil {
		atomic.AddInt32(&m.table.ref, 1)
	}
	return &Mesh{store: m.store, table: m.table}
}

// Set делает меш копией other, освобождая прежнее содержимое
func (m *Mesh) Set(other *Mesh) {
	if m.table == other.table {
		return
	}
	invariant(m.store == other.store, "Set across stores")
	if other.table != nil {
		atomic.AddInt32(&other.table.ref, 1)
	}
	m.dropTable()
	m.table = other.table
}

// Clear удаляет все блоки меша
func (m *Mesh) Clear() {
	m.dropTable()
}

// Release снимает все ссылки дескриптора. После вызова меш пуст и может использоваться снова.
func (m *Mesh) Release() {
	m.dropTable()
}

func (m *Mesh) dropTable() {
	t := m.table
	m.table = nil
	if t == nil {
		return
	}
	ref := atomic.AddInt32(&t.ref, -1)
	invariant(ref >= 0, "block table refcount underflow")
	if ref > 0 {
		return
	}
	for _, b := range t.blocks {
		m.store.release(b.data)
	}
}

// SharesStorage проверяет, что два меша разделяют одну таблицу блоков,
// то есть ни один из них не изменялся после копирования.
func (m *Mesh) SharesStorage(other *Mesh) bool {
	if m.table == nil || other.table == nil {
		return m.table == nil && other.table == nil
	}
	return m.table == other.table
}

// writable отделяет таблицу, если она разделена, и возвращает её для записи.
// Данные блоков при этом не копируются: на них лишь добавляются ссылки.
func (m *Mesh) writable() *blockTable {
	t := m.table
	if t == nil {
		t = newBlockTable()
		m.table = t
		return t
	}
	if atomic.LoadInt32(&t.ref) == 1 {
		return t
	}

	nt := &blockTable{
		ref:         1,
		blocks:      make(map[vec.Vec3]*Block, len(t.blocks)),
		nextBlockID: t.nextBlockID,
	}
	for pos, b := range t.blocks {
		m.store.acquire(b.data)
		nt.blocks[pos] = &Block{pos: b.pos, id: b.id, data: b.data}
	}
	m.store.tableCopied(len(t.blocks))
	m.dropTable()
	m.table = nt
	return nt
}

// Get возвращает воксель по мировым координатам; вне блоков: пустой
func (m *Mesh) Get(p vec.Vec3) Voxel {
	if m.table == nil {
		return Voxel{}
	}
	b, ok := m.table.blocks[p.ToBlockCoords()]
	if !ok {
		return Voxel{}
	}
	l := p.LocalInBlock()
	return b.data.voxels[index(l.X, l.Y, l.Z)]
}

// Block возвращает блок с началом origin
func (m *Mesh) Block(origin vec.Vec3) (*Block, bool) {
	if m.table == nil {
		return nil, false
	}
	b, ok := m.table.blocks[origin]
	return b, ok
}

// BlockCount количество блоков
func (m *Mesh) BlockCount() int {
	if m.table == nil {
		return 0
	}
	return len(m.table.blocks)
}

// VoxelCount количество непустых вокселей
func (m *Mesh) VoxelCount() int {
	n := 0
	m.ForEachBlock(func(b *Block) {
		n += b.data.filled
	})
	return n
}

// ForEachBlock обходит блоки в порядке хеш-таблицы (не определён)
func (m *Mesh) ForEachBlock(fn func(b *Block)) {
	if m.table == nil {
		return
	}
	for _, b := range m.table.blocks {
		fn(b)
	}
}

// Blocks возвращает блоки, отсортированные по позиции (z, y, x)
func (m *Mesh) Blocks() []*Block {
	if m.table == nil {
		return nil
	}
	out := make([]*Block, 0, len(m.table.blocks))
	for _, b := range m.table.blocks {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return lessPos(out[i].pos, out[j].pos) })
	return out
}

// Box объединение боксов всех блоков; exact: только по непустым вокселям
func (m *Mesh) Box(exact bool) vec.Box {
	box := vec.EmptyBox()
	m.ForEachBlock(func(b *Block) {
		box = box.Union(b.Box(exact))
	})
	return box
}

// Neighborhood 27 блоков вокруг b (включая сам блок). Индекс соседа со
// смещением (dx, dy, dz) ∈ {-1,0,1}³: (dx+1) + (dy+1)*3 + (dz+1)*9.
// Отсутствующие соседи: nil.
type Neighborhood [27]*BlockData

// NeighborIndex индекс соседа в Neighborhood
func NeighborIndex(dx, dy, dz int) int {
	return (dx + 1) + (dy+1)*3 + (dz+1)*9
}

// Center данные самого блока
func (n *Neighborhood) Center() *BlockData {
	return n[13]
}

// At воксель по локальным координатам центрального блока; допускаются
// координаты от -16 до 31, попадающие в соседей
func (n *Neighborhood) At(x, y, z int) Voxel {
	dx, dy, dz := x>>4, y>>4, z>>4
	d := n[NeighborIndex(dx, dy, dz)]
	if d == nil {
		return Voxel{}
	}
	return d.voxels[index(x&0xF, y&0xF, z&0xF)]
}

// Neighborhood собирает соседние данные блока для генерации вершин
func (m *Mesh) Neighborhood(b *Block) Neighborhood {
	var n Neighborhood
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				pos := b.pos.Add(vec.Vec3{X: dx * BlockSize, Y: dy * BlockSize, Z: dz * BlockSize})
				if nb, ok := m.Block(pos); ok {
					n[NeighborIndex(dx, dy, dz)] = nb.data
				}
			}
		}
	}
	return n
}

func lessPos(a, b vec.Vec3) bool {
	if a.Z != b.Z {
		return a.Z < b.Z
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}
