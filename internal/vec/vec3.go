package vec

import "github.com/go-gl/mathgl/mgl32"

// Vec3 представляет трехмерный вектор с целочисленными координатами.
// Используется для мировых координат вокселей и позиций блоков.
type Vec3 struct {
	X int
	Y int
	Z int
}

// ToBlockCoords возвращает начало блока 16³, которому принадлежит воксель.
// Арифметический сдвиг даёт корректное округление вниз для отрицательных координат.
func (v Vec3) ToBlockCoords() Vec3 {
	return Vec3{X: (v.X >> 4) << 4, Y: (v.Y >> 4) << 4, Z: (v.Z >> 4) << 4}
}

// LocalInBlock возвращает локальные координаты внутри блока (0..15)
func (v Vec3) LocalInBlock() Vec3 {
	return Vec3{X: v.X & 0xF, Y: v.Y & 0xF, Z: v.Z & 0xF} // Модуль 16
}

// IsBlockAligned проверяет, что вектор является началом блока
func (v Vec3) IsBlockAligned() bool {
	return v.X&0xF == 0 && v.Y&0xF == 0 && v.Z&0xF == 0
}

// DistanceTo возвращает квадрат расстояния до другого вектора
func (v Vec3) DistanceTo(other Vec3) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return float64(dx*dx + dy*dy + dz*dz)
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Sub вычитает вектор
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{
		X: v.X - other.X,
		Y: v.Y - other.Y,
		Z: v.Z - other.Z,
	}
}

// Center возвращает центр вокселя в мировых координатах с плавающей точкой
func (v Vec3) Center() mgl32.Vec3 {
	return mgl32.Vec3{float32(v.X) + 0.5, float32(v.Y) + 0.5, float32(v.Z) + 0.5}
}

// FromFloat возвращает воксель, содержащий точку p
func FromFloat(p mgl32.Vec3) Vec3 {
	return Vec3{X: floor(p[0]), Y: floor(p[1]), Z: floor(p[2])}
}

func floor(f float32) int {
	i := int(f)
	if f < 0 && float32(i) != f {
		i--
	}
	return i
}
