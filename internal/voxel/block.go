package voxel

import "github.com/annel0/voxmesh/internal/vec"

// Block позиция на сетке блоков и владеющая ссылка на BlockData.
// pos: мировые координаты начала блока, всегда кратные BlockSize.
type Block struct {
	pos  vec.Vec3
	id   int
	data *BlockData
}

// Pos возвращает начало блока в мировых координатах
func (b *Block) Pos() vec.Vec3 {
	return b.pos
}

// ID идентификатор блока внутри меша (сохраняется при копировании меша)
func (b *Block) ID() int {
	return b.id
}

// Data возвращает данные блока только для чтения
func (b *Block) Data() *BlockData {
	return b.data
}

// Get возвращает воксель по мировым координатам; вне блока: пустой
func (b *Block) Get(p vec.Vec3) Voxel {
	if !b.CellBox().Contains(p) {
		return Voxel{}
	}
	return b.data.AtLocal(p.Sub(b.pos))
}

// CellBox бокс ячейки сетки, занимаемой блоком
func (b *Block) CellBox() vec.Box {
	return vec.BlockBox(b.pos, BlockSize)
}

// IsEmpty проверяет пустоту блока. В быстром режиме используется
// поддерживаемый счётчик непустых вокселей, в точном: полный просмотр.
// После возврата из любой операции меша оба режима дают одинаковый ответ.
func (b *Block) IsEmpty(fast bool) bool {
	if fast {
		return b.data.filled == 0
	}
	return b.data.scanEmpty()
}

// Box возвращает бокс блока: точный (по непустым вокселям) или ячейку сетки
func (b *Block) Box(exact bool) vec.Box {
	if !exact {
		return b.CellBox()
	}
	local := b.data.exactBox()
	if local.IsEmpty() {
		return local
	}
	return vec.Box{Min: local.Min.Add(b.pos), Max: local.Max.Add(b.pos)}
}

// ensureWritable единственная точка, через которую проходят все записи вокселей.
// Если данные разделены, блок получает собственную копию, а старая ссылка снимается.
// Приватные данные меняются на месте, но получают новый идентификатор: кеши,
// построенные по идентификатору, не увидят устаревшего содержимого.
// Вызывается только перед реальным изменением хотя бы одного вокселя.
func (b *Block) ensureWritable(s *Store) *BlockData {
	if b.data.Refs() == 1 {
		b.data.id = s.nextID()
		return b.data
	}
	c := s.clone(b.data)
	s.acquire(c)
	s.release(b.data)
	b.data = c
	return c
}

// change запись одного вокселя, вычисленная до копирования данных
type change struct {
	i int
	v Voxel
}

// forEachLocal обходит воксели пересечения бокса с ячейкой с началом origin
func forEachLocal(origin vec.Vec3, box vec.Box, fn func(i int, world vec.Vec3)) {
	area := box.Intersect(vec.BlockBox(origin, BlockSize))
	area.ForEach(func(p vec.Vec3) {
		l := p.Sub(origin)
		fn(index(l.X, l.Y, l.Z), p)
	})
}

// voxelAt воксель данных d (nil: пустой блок)
func voxelAt(d *BlockData, i int) Voxel {
	if d == nil {
		return Voxel{}
	}
	return d.voxels[i]
}

// planOp вычисляет изменения художника в ячейке origin с данными d (nil: блока нет)
func planOp(d *BlockData, origin vec.Vec3, p Painter, f frame, box vec.Box) []change {
	var out []change
	forEachLocal(origin, box, func(i int, world vec.Vec3) {
		w := p.weight(world, f)
		if w <= 0 {
			return
		}
		old := voxelAt(d, i)
		if v := p.apply(old, w).normalize(); v != old {
			out = append(out, change{i: i, v: v})
		}
	})
	return out
}

// planMerge непустые воксели other, отличающиеся от d
func planMerge(d, other *BlockData) []change {
	if d == other {
		return nil
	}
	var out []change
	for i, v := range other.voxels {
		if v.A != 0 && v != voxelAt(d, i) {
			out = append(out, change{i: i, v: v})
		}
	}
	return out
}

// planFill значения fn внутри бокса, отличающиеся от d
func planFill(d *BlockData, origin vec.Vec3, box vec.Box, fn func(pos vec.Vec3) Voxel) []change {
	var out []change
	forEachLocal(origin, box, func(i int, world vec.Vec3) {
		if v := fn(world).normalize(); v != voxelAt(d, i) {
			out = append(out, change{i: i, v: v})
		}
	})
	return out
}

// apply записывает изменения; данные копируются, только если они разделены
func (b *Block) apply(s *Store, changes []change) {
	if len(changes) == 0 {
		return
	}
	d := b.ensureWritable(s)
	for _, c := range changes {
		d.put(c.i, c.v)
	}
}
