package voxel

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// ShapeFunc функция принадлежности формы. p — точка в локальной системе бокса,
// где бокс занимает [-1,1]³; size: половина размеров бокса в вокселях.
// Положительное значение: точка внутри, ноль: на границе.
type ShapeFunc func(p, size mgl32.Vec3) float32

// Shape именованная форма кисти
type Shape struct {
	Name string
	Func ShapeFunc
}

var (
	// ShapeSphere эллипсоид, вписанный в бокс
	ShapeSphere = Shape{Name: "sphere", Func: sphereFunc}
	// ShapeCube весь бокс
	ShapeCube = Shape{Name: "cube", Func: cubeFunc}
	// ShapeCylinder цилиндр вдоль оси Z, вписанный в бокс
	ShapeCylinder = Shape{Name: "cylinder", Func: cylinderFunc}
)

// ShapeByName ищет встроенную форму по имени
func ShapeByName(name string) (Shape, bool) {
	for _, s := range []Shape{ShapeSphere, ShapeCube, ShapeCylinder} {
		if s.Name == name {
			return s, true
		}
	}
	return Shape{}, false
}

// ShapeNames имена встроенных форм в алфавитном порядке
func ShapeNames() []string {
	names := []string{ShapeSphere.Name, ShapeCube.Name, ShapeCylinder.Name}
	sort.Strings(names)
	return names
}

func sphereFunc(p, _ mgl32.Vec3) float32 {
	return 1 - p.Len()
}

func cubeFunc(p, _ mgl32.Vec3) float32 {
	m := abs32(p[0])
	if v := abs32(p[1]); v > m {
		m = v
	}
	if v := abs32(p[2]); v > m {
		m = v
	}
	return 1 - m
}

func cylinderFunc(p, _ mgl32.Vec3) float32 {
	r := float32(math.Hypot(float64(p[0]), float64(p[1])))
	if z := abs32(p[2]); z > r {
		r = z
	}
	return 1 - r
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
