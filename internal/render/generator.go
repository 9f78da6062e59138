package render

import "github.com/annel0/voxmesh/internal/voxel"

// face описание грани вокселя: нормаль, смещение плоскости грани
// и касательные оси u, v. Углы грани идут против часовой стрелки,
// если смотреть снаружи: base, base+u, base+u+v, base+v.
type face struct {
	normal [3]int
	base   [3]int
	u, v   [3]int
}

// Порядок граней фиксирован и входит в PosData
var faces = [6]face{
	{normal: [3]int{1, 0, 0}, base: [3]int{1, 0, 0}, u: [3]int{0, 1, 0}, v: [3]int{0, 0, 1}},
	{normal: [3]int{-1, 0, 0}, base: [3]int{0, 0, 0}, u: [3]int{0, 0, 1}, v: [3]int{0, 1, 0}},
	{normal: [3]int{0, 1, 0}, base: [3]int{0, 1, 0}, u: [3]int{0, 0, 1}, v: [3]int{1, 0, 0}},
	{normal: [3]int{0, -1, 0}, base: [3]int{0, 0, 0}, u: [3]int{1, 0, 0}, v: [3]int{0, 0, 1}},
	{normal: [3]int{0, 0, 1}, base: [3]int{0, 0, 1}, u: [3]int{1, 0, 0}, v: [3]int{0, 1, 0}},
	{normal: [3]int{0, 0, -1}, base: [3]int{0, 0, 0}, u: [3]int{0, 1, 0}, v: [3]int{1, 0, 0}},
}

// Соседи в плоскости перед гранью для маски затенения, по кругу
var shadowRing = [8][2]int{
	{-1, -1}, {0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0},
}

// Рёбра грани: направление наружу в координатах (u, v) и полоса рамки
// в единицах фиксированной точки
var edges = [4]struct {
	du, dv         int
	a0, b0, a1, b1 int
}{
	{0, -1, 0, 0, PosScale, 1},
	{1, 0, PosScale - 1, 0, PosScale, PosScale},
	{0, 1, 0, PosScale - 1, PosScale, PosScale},
	{-1, 0, 0, 0, 1, PosScale},
}

type generator struct {
	nb      *voxel.Neighborhood
	effects Effects
	out     []Vertex
}

// GenerateVertices строит вершины центрального блока окрестности.
// Грань вокселя выводится, только если соседний воксель за ней (возможно,
// в соседнем блоке) пуст; с EffectSemiTransparent также если непрозрачный
// воксель граничит с полупрозрачным. Каждая грань даёт 4 вершины.
//
// Результат зависит только от содержимого окрестности и флагов:
// одинаковые данные дают побитово одинаковый буфер.
func GenerateVertices(nb voxel.Neighborhood, effects Effects) []Vertex {
	if nb.Center() == nil || nb.Center().Filled() == 0 {
		return nil
	}
	g := generator{nb: &nb, effects: effects}
	for z := 0; z < voxel.BlockSize; z++ {
		for y := 0; y < voxel.BlockSize; y++ {
			for x := 0; x < voxel.BlockSize; x++ {
				v := nb.At(x, y, z)
				if v.IsEmpty() {
					continue
				}
				for f := range faces {
					g.voxelFace([3]int{x, y, z}, v, f)
				}
			}
		}
	}
	return g.out
}

func (g *generator) at(p [3]int) voxel.Voxel {
	return g.nb.At(p[0], p[1], p[2])
}

// visible правило отсечения грани
func (g *generator) visible(v, across voxel.Voxel) bool {
	if across.IsEmpty() {
		return true
	}
	return g.effects.Has(EffectSemiTransparent) && v.IsOpaque() && !across.IsOpaque()
}

func (g *generator) voxelFace(p [3]int, v voxel.Voxel, fi int) {
	f := &faces[fi]
	front := add3(p, f.normal)
	if !g.visible(v, g.at(front)) {
		return
	}

	shadow := uint8(0)
	for i, o := range shadowRing {
		q := add3(front, add3(scale3(f.u, o[0]), scale3(f.v, o[1])))
		if !g.at(q).IsEmpty() {
			shadow |= 1 << i
		}
	}

	var bump uint8
	if g.effects.Has(EffectSmooth) {
		for i, e := range edges {
			side := add3(p, add3(scale3(f.u, e.du), scale3(f.v, e.dv)))
			if g.at(side).IsEmpty() {
				bump |= 1 << i
			}
		}
	}

	color := [4]uint8{v.R, v.G, v.B, v.A}
	posData := [2]uint8{uint8(p[0]<<4 | p[1]), uint8(p[2]<<4 | fi)}
	if g.effects.Has(EffectRenderPos) {
		color = [4]uint8{posData[0], posData[1], 0, 255}
	}

	tmpl := Vertex{
		Normal:   [3]int8{int8(f.normal[0]), int8(f.normal[1]), int8(f.normal[2])},
		Color:    color,
		PosData:  posData,
		ShadowUV: [2]uint8{shadow, 0},
		BumpUV:   [2]uint8{bump, 0},
	}
	g.quad(p, f, tmpl, 0, 0, PosScale, PosScale, false)

	if g.effects.Has(EffectRenderPos) {
		return
	}
	if g.effects.Has(EffectSeeBack) {
		back := tmpl
		back.Normal = [3]int8{-tmpl.Normal[0], -tmpl.Normal[1], -tmpl.Normal[2]}
		back.Flags = VertexBack
		g.quad(p, f, back, 0, 0, PosScale, PosScale, true)
	}
	if g.effects.Has(EffectBorders) || g.effects.Has(EffectBordersAll) {
		border := tmpl
		border.Flags = VertexBorder
		border.Color = [4]uint8{v.R / 2, v.G / 2, v.B / 2, v.A}
		for _, e := range edges {
			if g.effects.Has(EffectBordersAll) || g.edgeDiffers(p, front, f, v, e.du, e.dv) {
				g.quad(p, f, border, e.a0, e.b0, e.a1, e.b1, false)
			}
		}
	}
}

// edgeDiffers проверяет, что поверхность за ребром грани отличается:
// соседний воксель пуст, другого цвета или его грань закрыта
func (g *generator) edgeDiffers(p, front [3]int, f *face, v voxel.Voxel, du, dv int) bool {
	off := add3(scale3(f.u, du), scale3(f.v, dv))
	side := g.at(add3(p, off))
	if side != v {
		return true
	}
	return !g.at(add3(front, off)).IsEmpty()
}

// quad выводит прямоугольник [a0,a1]×[b0,b1] в координатах грани
func (g *generator) quad(p [3]int, f *face, tmpl Vertex, a0, b0, a1, b1 int, reversed bool) {
	corners := [4][2]int{{a0, b0}, {a1, b0}, {a1, b1}, {a0, b1}}
	if reversed {
		corners = [4][2]int{{a0, b0}, {a0, b1}, {a1, b1}, {a1, b0}}
	}
	for i, c := range corners {
		vert := tmpl
		for axis := 0; axis < 3; axis++ {
			pos := (p[axis]+f.base[axis])*PosScale + c[0]*f.u[axis] + c[1]*f.v[axis]
			vert.Pos[axis] = uint8(pos)
		}
		vert.ShadowUV[1] = uint8(i)
		vert.BumpUV[1] = uint8(i)
		g.out = append(g.out, vert)
	}
}

func add3(a, b [3]int) [3]int {
	return [3]int{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

func scale3(a [3]int, s int) [3]int {
	return [3]int{a[0] * s, a[1] * s, a[2] * s}
}
