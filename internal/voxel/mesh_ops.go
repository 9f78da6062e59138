package voxel

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/annel0/voxmesh/internal/logging"
	"github.com/annel0/voxmesh/internal/vec"
	"github.com/go-gl/mathgl/mgl32"
)

// blockCells начала всех ячеек сетки, пересекающих бокс, в порядке (z, y, x)
func blockCells(box vec.Box) []vec.Vec3 {
	if box.IsEmpty() {
		return nil
	}
	lo := box.Min.ToBlockCoords()
	hi := box.Max.ToBlockCoords()
	cells := make([]vec.Vec3, 0, ((hi.X-lo.X)/BlockSize+1)*((hi.Y-lo.Y)/BlockSize+1)*((hi.Z-lo.Z)/BlockSize+1))
	for z := lo.Z; z <= hi.Z; z += BlockSize {
		for y := lo.Y; y <= hi.Y; y += BlockSize {
			for x := lo.X; x <= hi.X; x += BlockSize {
				cells = append(cells, vec.Vec3{X: x, Y: y, Z: z})
			}
		}
	}
	return cells
}

// existingCells начала существующих блоков, пересекающих бокс
func (m *Mesh) existingCells(box vec.Box) []vec.Vec3 {
	if m.table == nil || box.IsEmpty() {
		return nil
	}
	lo := box.Min.ToBlockCoords()
	hi := box.Max.ToBlockCoords()
	span := ((hi.X-lo.X)/BlockSize + 1) * ((hi.Y-lo.Y)/BlockSize + 1) * ((hi.Z-lo.Z)/BlockSize + 1)

	var cells []vec.Vec3
	if span <= len(m.table.blocks) {
		for _, c := range blockCells(box) {
			if _, ok := m.table.blocks[c]; ok {
				cells = append(cells, c)
			}
		}
		return cells
	}
	for pos, b := range m.table.blocks {
		if b.CellBox().Intersects(box) {
			cells = append(cells, pos)
		}
	}
	sort.Slice(cells, func(i, j int) bool { return lessPos(cells[i], cells[j]) })
	return cells
}

// allocationsNeeded оценивает число новых BlockData для записи в ячейки:
// новые блоки плюс копии разделённых данных. Если таблица разделена,
// после её отделения каждый существующий блок окажется разделённым.
func (m *Mesh) allocationsNeeded(cells []vec.Vec3, create bool) int {
	shared := m.tableShared()
	n := 0
	for _, c := range cells {
		b, ok := m.Block(c)
		switch {
		case !ok:
			if create {
				n++
			}
		case shared || b.data.Refs() > 1:
			n++
		}
	}
	return n
}

func (m *Mesh) tableShared() bool {
	return m.table != nil && atomic.LoadInt32(&m.table.ref) > 1
}

// newBlock создаёт блок с пустыми приватными данными
func (m *Mesh) newBlock(t *blockTable, pos vec.Vec3) *Block {
	invariant(t.blocks[pos] == nil, "duplicate block position")
	d := m.store.NewBlockData()
	m.store.acquire(d)
	b := &Block{pos: pos, id: t.nextBlockID, data: d}
	t.nextBlockID++
	t.blocks[pos] = b
	return b
}

// compact удаляет блок, если он стал пустым
func (m *Mesh) compact(t *blockTable, b *Block) bool {
	if b.data.filled != 0 {
		return false
	}
	delete(t.blocks, b.pos)
	m.store.release(b.data)
	return true
}

// Op применяет художника к боксу. Затрагиваются только блоки, пересекающие бокс;
// ADD может создавать блоки, SUB и PAINT работают только с существующими.
// Блоки, ставшие пустыми, удаляются до возврата.
func (m *Mesh) Op(p Painter, box vec.Box) error {
	return m.op(nil, p, box)
}

// OpContext отменяемый вариант Op. Контекст проверяется между блоками;
// результат фиксируется атомарно, при отмене меш не меняется.
func (m *Mesh) OpContext(ctx context.Context, p Painter, box vec.Box) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.Copy()
	defer work.Release()
	if err := work.op(ctx, p, box); err != nil {
		return err
	}
	m.Set(work)
	return nil
}

func (m *Mesh) op(ctx context.Context, p Painter, box vec.Box) error {
	if box.IsEmpty() || p.Op == OpNone {
		return nil
	}

	var cells []vec.Vec3
	if p.Op == OpAdd {
		cells = blockCells(box)
	} else {
		cells = m.existingCells(box)
	}
	if len(cells) == 0 {
		return nil
	}
	if err := m.store.reserve(m.allocationsNeeded(cells, p.Op == OpAdd)); err != nil {
		return fmt.Errorf("op %s %s: %w", p.Op, box, err)
	}

	f := newFrame(box)
	changed, created, removed := 0, 0, 0
	for _, c := range cells {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		var current *BlockData
		if b, ok := m.Block(c); ok {
			current = b.data
		}
		changes := planOp(current, c, p, f, box)
		if len(changes) == 0 {
			continue
		}
		created += m.applyChanges(c, changes, &removed)
		changed++
	}
	logging.LogBlockOp(m.store.logger, "op "+p.Op.String(), changed, created, removed)
	return nil
}

// applyChanges записывает изменения в ячейку c. Таблица отделяется, а блок
// создаётся только здесь, то есть когда есть что записать.
// Возвращает 1, если блок был создан.
func (m *Mesh) applyChanges(c vec.Vec3, changes []change, removed *int) int {
	t := m.writable()
	created := 0
	b, ok := t.blocks[c]
	if !ok {
		b = m.newBlock(t, c)
		created = 1
	}
	b.apply(m.store, changes)
	if m.compact(t, b) {
		*removed++
	}
	return created
}

// Merge накладывает other поверх меша: отсутствующие блоки подключаются без копирования,
// в совпадающих непустые воксели other заменяют воксели меша.
func (m *Mesh) Merge(other *Mesh) error {
	if other == nil || other.table == nil || m.table == other.table {
		return nil
	}
	if m.store != other.store {
		return ErrForeignStore
	}

	src := other.Blocks()
	clones := 0
	shared := m.tableShared()
	for _, ob := range src {
		if b, ok := m.Block(ob.pos); ok && b.data != ob.data && (shared || b.data.Refs() > 1) {
			clones++
		}
	}
	if err := m.store.reserve(clones); err != nil {
		return fmt.Errorf("merge: %w", err)
	}

	attached, removed := 0, 0
	for _, ob := range src {
		b, ok := m.Block(ob.pos)
		if !ok {
			t := m.writable()
			m.store.acquire(ob.data)
			t.blocks[ob.pos] = &Block{pos: ob.pos, id: t.nextBlockID, data: ob.data}
			t.nextBlockID++
			attached++
			continue
		}
		if changes := planMerge(b.data, ob.data); len(changes) > 0 {
			m.applyChanges(ob.pos, changes, &removed)
		}
	}
	logging.LogBlockOp(m.store.logger, "merge", len(src), attached, removed)
	return nil
}

// Fill задаёт каждый воксель бокса значением fn(pos). Для каждого блока,
// в котором что-то меняется, ensureWritable вызывается ровно один раз.
func (m *Mesh) Fill(box vec.Box, fn func(pos vec.Vec3) Voxel) error {
	cells := blockCells(box)
	if len(cells) == 0 {
		return nil
	}
	if err := m.store.reserve(m.allocationsNeeded(cells, true)); err != nil {
		return fmt.Errorf("fill %s: %w", box, err)
	}

	changed, created, removed := 0, 0, 0
	for _, c := range cells {
		var current *BlockData
		if b, ok := m.Block(c); ok {
			current = b.data
		}
		changes := planFill(current, c, box, fn)
		if len(changes) == 0 {
			continue
		}
		created += m.applyChanges(c, changes, &removed)
		changed++
	}
	logging.LogBlockOp(m.store.logger, "fill", changed, created, removed)
	return nil
}

// AddBlock подключает данные к ячейке с началом pos (с заменой существующего блока).
// Пустые данные лишь удаляют блок в ячейке.
func (m *Mesh) AddBlock(data *BlockData, pos vec.Vec3) error {
	if data == nil {
		return fmt.Errorf("%w: nil data", ErrInvalidBlockData)
	}
	if !pos.IsBlockAligned() {
		return fmt.Errorf("%w: %v", ErrMisalignedBlock, pos)
	}
	if data.store != m.store {
		return ErrForeignStore
	}
	// непривязанные данные становятся живыми только после подключения
	if data.filled != 0 && data.Refs() == 0 {
		if err := m.store.reserve(1); err != nil {
			return fmt.Errorf("add block %v: %w", pos, err)
		}
	}

	if _, exists := m.Block(pos); !exists && data.filled == 0 {
		return nil
	}
	t := m.writable()
	old, exists := t.blocks[pos]
	if data.filled == 0 {
		delete(t.blocks, pos)
		m.store.release(old.data)
		return nil
	}

	m.store.acquire(data)
	if exists {
		m.store.release(old.data)
		old.data = data
		return nil
	}
	t.blocks[pos] = &Block{pos: pos, id: t.nextBlockID, data: data}
	t.nextBlockID++
	return nil
}

// Move пересобирает меш, применяя к нему аффинное преобразование mat
// (выборка ближайшего вокселя исходного меша).
func (m *Mesh) Move(mat mgl32.Mat4) error {
	if mat.Det() == 0 {
		return ErrSingularTransform
	}
	src := m.Box(true)
	if src.IsEmpty() {
		return nil
	}
	inv := mat.Inv()
	dst := src.Transform(mat)

	moved := m.store.NewMesh()
	defer moved.Release()
	err := moved.Fill(dst, func(p vec.Vec3) Voxel {
		q := mgl32.TransformCoordinate(p.Center(), inv)
		return m.Get(vec.FromFloat(q))
	})
	if err != nil {
		return fmt.Errorf("move: %w", err)
	}
	m.Set(moved)
	return nil
}
