// Package generator заполняет меши процедурным ландшафтом.
package generator

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/annel0/voxmesh/internal/logging"
	"github.com/annel0/voxmesh/internal/util"
	"github.com/annel0/voxmesh/internal/vec"
	"github.com/annel0/voxmesh/internal/voxel"
)

// Константы высот для генерации (доля от MaxHeight)
const (
	DeepWaterMax  = 0.20 // Ниже - глубинная вода
	WaterMax      = 0.30 // Ниже - мелководье
	SandMax       = 0.35 // Ниже - пляж
	MountainStart = 0.70 // Выше - скалы
	SnowStart     = 0.85 // Выше - снег
)

// Палитра ландшафта
var (
	ColorDeepWater = voxel.HexColor(0x1f3f8fff)
	ColorWater     = voxel.HexColor(0x3f6fcfc0)
	ColorSand      = voxel.HexColor(0xd8c88aff)
	ColorGrass     = voxel.HexColor(0x4f9f3fff)
	ColorRock      = voxel.HexColor(0x7f7f7fff)
	ColorSnow      = voxel.HexColor(0xf4f4f4ff)
	ColorTrunk     = voxel.HexColor(0x6b4a2bff)
	ColorLeaves    = voxel.HexColor(0x2f7f2fff)
)

// TerrainGenerator генерирует ландшафт по шуму Перлина. Ось Z направлена вверх.
type TerrainGenerator struct {
	Seed          int64   // Сид для генерации шума
	NoiseScale    float64 // Масштаб шума высот
	CaveScale     float64 // Масштаб объёмного шума пещер
	CaveThreshold float64 // Порог пещер (0: без пещер)
	MaxHeight     int     // Высота самой высокой точки над дном области
	TreeDensity   float64 // Вероятность дерева на клетке травы

	noise  *util.Noise
	logger *logging.Logger
}

// NewTerrainGenerator создаёт генератор с настройками по умолчанию
func NewTerrainGenerator(seed int64, logger *logging.Logger) *TerrainGenerator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &TerrainGenerator{
		Seed:        seed,
		NoiseScale:  0.03,
		CaveScale:   0.08,
		MaxHeight:   32,
		TreeDensity: 0.01,
		noise:       util.NewNoise(seed),
		logger:      logger,
	}
}

// Height высота столбца (x, y) в долях от MaxHeight
func (g *TerrainGenerator) Height(x, y int) float64 {
	return g.noise.Noise2D(float64(x)*g.NoiseScale, float64(y)*g.NoiseScale)
}

// colorAt цвет вокселя на относительной высоте z столбца с высотой h
func (g *TerrainGenerator) colorAt(z int, h float64) voxel.Voxel {
	top := int(math.Round(h * float64(g.MaxHeight)))
	water := int(WaterMax * float64(g.MaxHeight))
	switch {
	case z <= top:
		rel := float64(z) / float64(g.MaxHeight)
		switch {
		case z < top-3:
			return ColorRock
		case rel >= SnowStart:
			return ColorSnow
		case rel >= MountainStart:
			return ColorRock
		case rel < SandMax:
			return ColorSand
		default:
			return ColorGrass
		}
	case z <= water:
		if h < DeepWaterMax {
			return ColorDeepWater
		}
		return ColorWater
	}
	return voxel.Voxel{}
}

// Generate заполняет столбцы области XY ландшафтом, начиная с area.Min.Z.
// Пещеры вырезаются объёмным шумом, деревья ставятся операциями кисти.
func (g *TerrainGenerator) Generate(ctx context.Context, mesh *voxel.Mesh, area vec.Box) error {
	if area.IsEmpty() {
		return nil
	}
	size := area.Size()
	heights := make([]float64, size.X*size.Y)
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			heights[x+y*size.X] = g.Height(area.Min.X+x, area.Min.Y+y)
		}
	}

	box := vec.Box{Min: area.Min, Max: vec.Vec3{X: area.Max.X, Y: area.Max.Y, Z: min(area.Max.Z, area.Min.Z+g.MaxHeight)}}
	err := mesh.Fill(box, func(p vec.Vec3) voxel.Voxel {
		h := heights[(p.X-area.Min.X)+(p.Y-area.Min.Y)*size.X]
		z := p.Z - area.Min.Z
		c := g.colorAt(z, h)
		if c.IsEmpty() || g.CaveThreshold <= 0 || z == 0 || c.A < 255 {
			return c
		}
		n := g.noise.Noise3D(float64(p.X)*g.CaveScale, float64(p.Y)*g.CaveScale, float64(p.Z)*g.CaveScale)
		if n > g.CaveThreshold {
			return voxel.Voxel{}
		}
		return c
	})
	if err != nil {
		return fmt.Errorf("terrain fill %s: %w", box, err)
	}

	// Создаем локальный генератор случайных чисел для детерминированности
	rng := rand.New(rand.NewSource(g.Seed + int64(area.Min.X*31) + int64(area.Min.Y*17)))
	trees := 0
	for y := 2; y < size.Y-2; y++ {
		for x := 2; x < size.X-2; x++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			h := heights[x+y*size.X]
			if h < SandMax || h >= MountainStart || rng.Float64() >= g.TreeDensity {
				continue
			}
			top := area.Min.Z + int(math.Round(h*float64(g.MaxHeight)))
			if err := g.placeTree(ctx, mesh, vec.Vec3{X: area.Min.X + x, Y: area.Min.Y + y, Z: top + 1}, rng); err != nil {
				return err
			}
			trees++
		}
	}
	g.logger.Debug("Ландшафт %s сгенерирован: деревьев=%d", area, trees)
	return nil
}

// placeTree ставит ствол и крону
func (g *TerrainGenerator) placeTree(ctx context.Context, mesh *voxel.Mesh, base vec.Vec3, rng *rand.Rand) error {
	height := 3 + rng.Intn(3)
	trunk := vec.NewBox(base, base.Add(vec.Vec3{Z: height - 1}))
	if err := mesh.OpContext(ctx, voxel.Painter{Op: voxel.OpAdd, Shape: voxel.ShapeCube, Color: ColorTrunk}, trunk); err != nil {
		return fmt.Errorf("tree trunk: %w", err)
	}
	r := 2
	crown := vec.NewBox(
		base.Add(vec.Vec3{X: -r, Y: -r, Z: height - 1}),
		base.Add(vec.Vec3{X: r, Y: r, Z: height + 2*r - 1}),
	)
	if err := mesh.OpContext(ctx, voxel.Painter{Op: voxel.OpAdd, Shape: voxel.ShapeSphere, Color: ColorLeaves}, crown); err != nil {
		return fmt.Errorf("tree crown: %w", err)
	}
	return nil
}
