package voxel

import (
	"math"

	"github.com/annel0/voxmesh/internal/vec"
	"github.com/go-gl/mathgl/mgl32"
)

// Op вид операции редактирования
type Op int

const (
	OpNone Op = iota
	OpAdd
	OpSub
	OpPaint
)

// String возвращает имя операции
func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpPaint:
		return "paint"
	default:
		return "none"
	}
}

// ParseOp разбирает имя операции
func ParseOp(s string) (Op, bool) {
	switch s {
	case "add":
		return OpAdd, true
	case "sub":
		return OpSub, true
	case "paint":
		return OpPaint, true
	case "none", "":
		return OpNone, true
	}
	return OpNone, false
}

// Painter описание операции редактирования: вид, форма, цвет и мягкость края.
// Передаётся по значению, состояния не имеет.
type Painter struct {
	Op    Op
	Shape Shape
	Color Voxel
	// Smoothness ширина мягкого края в вокселях; 0: жёсткая граница
	Smoothness float32
}

// frame локальная система координат бокса операции
type frame struct {
	center mgl32.Vec3
	half   mgl32.Vec3
	scale  float32 // минимальная полуось, для перевода расстояния в воксели
}

func newFrame(box vec.Box) frame {
	half := box.HalfSize()
	scale := half[0]
	if half[1] < scale {
		scale = half[1]
	}
	if half[2] < scale {
		scale = half[2]
	}
	return frame{center: box.Center(), half: half, scale: scale}
}

// local переводит центр вокселя в систему [-1,1]³ бокса
func (f frame) local(p vec.Vec3) mgl32.Vec3 {
	c := p.Center().Sub(f.center)
	return mgl32.Vec3{c[0] / f.half[0], c[1] / f.half[1], c[2] / f.half[2]}
}

// weight вес воздействия на воксель: 0: вне формы, 1: полностью внутри
func (p Painter) weight(pos vec.Vec3, f frame) float32 {
	fn := p.Shape.Func
	if fn == nil {
		fn = cubeFunc
	}
	d := fn(f.local(pos), f.half)
	if p.Smoothness <= 0 {
		if d > 0 {
			return 1
		}
		return 0
	}
	w := 0.5 + d*f.scale/p.Smoothness
	return mgl32.Clamp(w, 0, 1)
}

// apply комбинирует старый воксель с цветом художника с весом w (> 0)
func (p Painter) apply(old Voxel, w float32) Voxel {
	switch p.Op {
	case OpAdd:
		a := scale8(p.Color.A, w)
		if a == 0 {
			return old
		}
		if old.A > a {
			a = old.A
		}
		return Voxel{R: p.Color.R, G: p.Color.G, B: p.Color.B, A: a}
	case OpSub:
		if old.A == 0 {
			return old
		}
		keep := scale8(255, 1-w)
		if keep < old.A {
			old.A = keep
		}
		return old.normalize()
	case OpPaint:
		if old.A == 0 {
			return old
		}
		return Voxel{
			R: mix8(old.R, p.Color.R, w),
			G: mix8(old.G, p.Color.G, w),
			B: mix8(old.B, p.Color.B, w),
			A: old.A,
		}
	}
	return old
}

func scale8(v uint8, w float32) uint8 {
	return uint8(math.Round(float64(float32(v) * w)))
}

func mix8(a, b uint8, t float32) uint8 {
	return uint8(math.Round(float64(float32(a)*(1-t) + float32(b)*t)))
}
