package render

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/annel0/voxmesh/internal/logging"
	"github.com/annel0/voxmesh/internal/vec"
	"github.com/annel0/voxmesh/internal/voxel"
	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto"
)

// vertexBytes размер вершины в буфере рендерера
const vertexBytes = 17

// CacheConfig параметры кеша вершинных буферов
type CacheConfig struct {
	// MaxBytes предельный суммарный размер буферов
	MaxBytes int64
	// NumCounters число счётчиков частоты (обычно 10× ожидаемого числа записей)
	NumCounters int64
}

// DefaultCacheConfig параметры по умолчанию: 64 МБ буферов
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{MaxBytes: 64 << 20, NumCounters: 100_000}
}

// CacheMetrics метрики кеша
type CacheMetrics struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRatio float64 `json:"hit_ratio"`
}

// Cache кеш вершинных буферов. Ключ: хеш идентификаторов 27 BlockData
// окрестности и флагов эффектов: привязанные данные неизменяемы,
// поэтому совпадение идентификаторов означает совпадение содержимого.
type Cache struct {
	c      *ristretto.Cache
	hits   int64
	misses int64
	logger *logging.Logger
}

// NewCache создаёт кеш
func NewCache(cfg CacheConfig, logger *logging.Logger) (*Cache, error) {
	if cfg.MaxBytes <= 0 || cfg.NumCounters <= 0 {
		def := DefaultCacheConfig()
		if cfg.MaxBytes <= 0 {
			cfg.MaxBytes = def.MaxBytes
		}
		if cfg.NumCounters <= 0 {
			cfg.NumCounters = def.NumCounters
		}
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("render cache: %w", err)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	logger.Debug("Кеш вершин создан: max=%d байт", cfg.MaxBytes)
	return &Cache{c: c, logger: logger}, nil
}

// Key ключ кеша для окрестности блока
func Key(nb *voxel.Neighborhood, effects Effects) uint64 {
	var buf [(27 + 1) * 8]byte
	for i, d := range nb {
		var id uint64
		if d != nil {
			id = d.ID()
		}
		binary.LittleEndian.PutUint64(buf[i*8:], id)
	}
	binary.LittleEndian.PutUint64(buf[len(nb)*8:], uint64(effects))
	return xxhash.Sum64(buf[:])
}

// Vertices возвращает буфер из кеша или строит и сохраняет его.
// Буфер разделяется между вызывающими и не должен изменяться.
func (c *Cache) Vertices(nb voxel.Neighborhood, effects Effects) []Vertex {
	key := Key(&nb, effects)
	if v, ok := c.c.Get(key); ok {
		atomic.AddInt64(&c.hits, 1)
		return v.([]Vertex)
	}
	atomic.AddInt64(&c.misses, 1)
	verts := GenerateVertices(nb, effects)
	cost := int64(len(verts)) * vertexBytes
	if cost == 0 {
		cost = 1
	}
	c.c.Set(key, verts, cost)
	return verts
}

// Wait дожидается применения отложенных записей
func (c *Cache) Wait() {
	c.c.Wait()
}

// Clear очищает кеш
func (c *Cache) Clear() {
	c.c.Clear()
}

// Close освобождает ресурсы кеша
func (c *Cache) Close() {
	m := c.Metrics()
	c.logger.Debug("Кеш вершин закрыт: попаданий=%d, промахов=%d", m.Hits, m.Misses)
	c.c.Close()
}

// Metrics возвращает метрики кеша
func (c *Cache) Metrics() CacheMetrics {
	m := CacheMetrics{
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
	}
	if total := m.Hits + m.Misses; total > 0 {
		m.HitRatio = float64(m.Hits) / float64(total)
	}
	return m
}

// BlockBuffer вершинный буфер одного блока меша
type BlockBuffer struct {
	Pos      vec.Vec3
	BlockID  int
	Vertices []Vertex
}

// BuildMesh строит буферы всех блоков меша в порядке позиций.
// cache может быть nil.
func BuildMesh(m *voxel.Mesh, effects Effects, cache *Cache) []BlockBuffer {
	blocks := m.Blocks()
	out := make([]BlockBuffer, 0, len(blocks))
	for _, b := range blocks {
		nb := m.Neighborhood(b)
		var verts []Vertex
		if cache != nil {
			verts = cache.Vertices(nb, effects)
		} else {
			verts = GenerateVertices(nb, effects)
		}
		if len(verts) == 0 {
			continue
		}
		out = append(out, BlockBuffer{Pos: b.Pos(), BlockID: b.ID(), Vertices: verts})
	}
	return out
}
