// Package voxel реализует разреженное хранилище цветных вокселей:
// блоки 16³ с copy-on-write данными, меш как разреженную таблицу блоков
// и операции редактирования (op/merge/fill/move).
//
// Пакет не содержит глобального изменяемого состояния: счётчики
// идентификаторов, учёт ссылок и бюджет памяти живут в Store,
// который передаётся явно всем мешам документа.
package voxel

const (
	// BlockSize длина ребра блока в вокселях
	BlockSize = 16
	// BlockVolume количество вокселей в блоке
	BlockVolume = BlockSize * BlockSize * BlockSize
	// BlockBytes размер сырых данных блока (RGBA на воксель)
	BlockBytes = BlockVolume * 4
)

// Voxel цветной воксель RGBA. A == 0 означает пустой воксель.
type Voxel struct {
	R, G, B, A uint8
}

// RGBA создаёт воксель из компонентов
func RGBA(r, g, b, a uint8) Voxel {
	return Voxel{R: r, G: g, B: b, A: a}
}

// HexColor создаёт воксель из значения вида 0xRRGGBBAA
func HexColor(v uint32) Voxel {
	return Voxel{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}
}

// Hex возвращает цвет в формате 0xRRGGBBAA
func (v Voxel) Hex() uint32 {
	return uint32(v.R)<<24 | uint32(v.G)<<16 | uint32(v.B)<<8 | uint32(v.A)
}

// IsEmpty проверяет, что воксель пустой
func (v Voxel) IsEmpty() bool {
	return v.A == 0
}

// IsOpaque проверяет полную непрозрачность
func (v Voxel) IsOpaque() bool {
	return v.A == 255
}

// normalize приводит пустой воксель к каноническому нулевому значению
func (v Voxel) normalize() Voxel {
	if v.A == 0 {
		return Voxel{}
	}
	return v
}
