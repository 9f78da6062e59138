package vec

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Box описывает прямоугольную область вокселей. Обе границы включительны:
// Box{Min: {0,0,0}, Max: {3,3,3}} содержит 4×4×4 вокселя.
// Пустой бокс задаётся через EmptyBox (Min > Max хотя бы по одной оси).
type Box struct {
	Min Vec3
	Max Vec3
}

// EmptyBox возвращает бокс, не содержащий ни одного вокселя
func EmptyBox() Box {
	return Box{Min: Vec3{X: 0, Y: 0, Z: 0}, Max: Vec3{X: -1, Y: -1, Z: -1}}
}

// NewBox создаёт бокс по двум углам в любом порядке
func NewBox(a, b Vec3) Box {
	return Box{
		Min: Vec3{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)},
		Max: Vec3{X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)},
	}
}

// BlockBox возвращает бокс ячейки блока с началом origin
func BlockBox(origin Vec3, size int) Box {
	return Box{Min: origin, Max: Vec3{X: origin.X + size - 1, Y: origin.Y + size - 1, Z: origin.Z + size - 1}}
}

// IsEmpty проверяет, что бокс не содержит вокселей
func (b Box) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Size возвращает размеры бокса в вокселях
func (b Box) Size() Vec3 {
	if b.IsEmpty() {
		return Vec3{}
	}
	return Vec3{X: b.Max.X - b.Min.X + 1, Y: b.Max.Y - b.Min.Y + 1, Z: b.Max.Z - b.Min.Z + 1}
}

// Volume возвращает количество вокселей в боксе
func (b Box) Volume() int {
	s := b.Size()
	return s.X * s.Y * s.Z
}

// Contains проверяет, принадлежит ли воксель боксу
func (b Box) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Intersect возвращает пересечение двух боксов (возможно пустое)
func (b Box) Intersect(other Box) Box {
	r := Box{
		Min: Vec3{X: max(b.Min.X, other.Min.X), Y: max(b.Min.Y, other.Min.Y), Z: max(b.Min.Z, other.Min.Z)},
		Max: Vec3{X: min(b.Max.X, other.Max.X), Y: min(b.Max.Y, other.Max.Y), Z: min(b.Max.Z, other.Max.Z)},
	}
	if r.IsEmpty() {
		return EmptyBox()
	}
	return r
}

// Intersects проверяет наличие общих вокселей
func (b Box) Intersects(other Box) bool {
	return !b.Intersect(other).IsEmpty()
}

// Union возвращает минимальный бокс, содержащий оба
func (b Box) Union(other Box) Box {
	if b.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return b
	}
	return Box{
		Min: Vec3{X: min(b.Min.X, other.Min.X), Y: min(b.Min.Y, other.Min.Y), Z: min(b.Min.Z, other.Min.Z)},
		Max: Vec3{X: max(b.Max.X, other.Max.X), Y: max(b.Max.Y, other.Max.Y), Z: max(b.Max.Z, other.Max.Z)},
	}
}

// Extend расширяет бокс так, чтобы он содержал воксель p
func (b Box) Extend(p Vec3) Box {
	return b.Union(Box{Min: p, Max: p})
}

// Center возвращает геометрический центр бокса
func (b Box) Center() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(b.Min.X+b.Max.X+1) / 2,
		float32(b.Min.Y+b.Max.Y+1) / 2,
		float32(b.Min.Z+b.Max.Z+1) / 2,
	}
}

// HalfSize возвращает половину размеров бокса
func (b Box) HalfSize() mgl32.Vec3 {
	s := b.Size()
	return mgl32.Vec3{float32(s.X) / 2, float32(s.Y) / 2, float32(s.Z) / 2}
}

// ForEach вызывает fn для каждого вокселя бокса (x быстрее всего)
func (b Box) ForEach(fn func(p Vec3)) {
	if b.IsEmpty() {
		return
	}
	for z := b.Min.Z; z <= b.Max.Z; z++ {
		for y := b.Min.Y; y <= b.Max.Y; y++ {
			for x := b.Min.X; x <= b.Max.X; x++ {
				fn(Vec3{X: x, Y: y, Z: z})
			}
		}
	}
}

// Transform возвращает бокс, описанный вокруг образа b при преобразовании mat
func (b Box) Transform(mat mgl32.Mat4) Box {
	if b.IsEmpty() {
		return b
	}
	out := EmptyBox()
	lo := mgl32.Vec3{float32(b.Min.X), float32(b.Min.Y), float32(b.Min.Z)}
	hi := mgl32.Vec3{float32(b.Max.X + 1), float32(b.Max.Y + 1), float32(b.Max.Z + 1)}
	for i := 0; i < 8; i++ {
		c := lo
		if i&1 != 0 {
			c[0] = hi[0]
		}
		if i&2 != 0 {
			c[1] = hi[1]
		}
		if i&4 != 0 {
			c[2] = hi[2]
		}
		p := mgl32.TransformCoordinate(c, mat)
		out = out.Extend(FromFloat(p))
		// верхняя грань включает воксель, если точка лежит строго внутри него
		out = out.Extend(FromFloat(p.Sub(mgl32.Vec3{0.001, 0.001, 0.001})))
	}
	return out
}

func (b Box) String() string {
	if b.IsEmpty() {
		return "[empty]"
	}
	return fmt.Sprintf("[%d,%d,%d]-[%d,%d,%d]", b.Min.X, b.Min.Y, b.Min.Z, b.Max.X, b.Max.Y, b.Max.Z)
}
