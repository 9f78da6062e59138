// Package render строит вершинные буферы блоков меша для внешнего
// рендерера и кеширует их по идентичности данных блоков.
package render

import (
	"fmt"
	"sort"
	"strings"
)

// Effects флаги эффектов генерации. Значения битов совпадают
// с константами шейдеров рендерера.
type Effects uint32

const (
	// EffectRenderPos буфер для выборки: цвет заменяется кодом позиции,
	// рамки и обратные грани не строятся
	EffectRenderPos Effects = 1 << 1
	// EffectSmooth заполняет BumpUV маской рёбер для сглаживания нормалей
	EffectSmooth Effects = 1 << 2
	// EffectBorders рамки по рёбрам, где соседний воксель отличается
	EffectBorders Effects = 1 << 3
	// EffectBordersAll рамки по всем рёбрам граней
	EffectBordersAll Effects = 1 << 4
	// EffectSemiTransparent грани непрозрачных вокселей рядом с полупрозрачными
	EffectSemiTransparent Effects = 1 << 5
	// EffectSeeBack дополнительно строит обратную сторону каждой грани
	EffectSeeBack Effects = 1 << 6
)

var effectNames = map[string]Effects{
	"render_pos":       EffectRenderPos,
	"smooth":           EffectSmooth,
	"borders":          EffectBorders,
	"borders_all":      EffectBordersAll,
	"semi_transparent": EffectSemiTransparent,
	"see_back":         EffectSeeBack,
}

// Has проверяет установку флага
func (e Effects) Has(flag Effects) bool {
	return e&flag != 0
}

func (e Effects) String() string {
	if e == 0 {
		return "none"
	}
	var names []string
	for name, flag := range effectNames {
		if e.Has(flag) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

// ParseEffects разбирает список имён эффектов (из конфигурации или CLI)
func ParseEffects(names []string) (Effects, error) {
	var e Effects
	for _, n := range names {
		n = strings.TrimSpace(strings.ToLower(n))
		if n == "" || n == "none" {
			continue
		}
		flag, ok := effectNames[n]
		if !ok {
			return 0, fmt.Errorf("unknown render effect %q", n)
		}
		e |= flag
	}
	return e, nil
}

// PosScale число единиц фиксированной точки на воксель в Vertex.Pos
const PosScale = 8

// Флаги вершины
const (
	VertexFace   uint8 = 0
	VertexBack   uint8 = 1 << 0
	VertexBorder uint8 = 1 << 1
)

// Vertex вершина буфера блока.
//
// Pos — координаты внутри блока в 1/PosScale вокселя (0..128).
// PosData: код вокселя для выборки: (x<<4|y, z<<4|грань).
// ShadowUV: маска занятости 8 соседей перед гранью и номер угла (AO).
// BumpUV: маска открытых рёбер грани и номер угла (только с EffectSmooth).
type Vertex struct {
	Pos      [3]uint8
	Normal   [3]int8
	Color    [4]uint8
	PosData  [2]uint8
	ShadowUV [2]uint8
	BumpUV   [2]uint8
	Flags    uint8
}

// QuadIndices индексы треугольников для quads четырёхугольников
// (по два треугольника против часовой стрелки на каждый)
func QuadIndices(quads int) []uint32 {
	out := make([]uint32, 0, quads*6)
	for q := 0; q < quads; q++ {
		base := uint32(q * 4)
		out = append(out, base, base+1, base+2)
		out = append(out, base, base+2, base+3)
	}
	return out
}
