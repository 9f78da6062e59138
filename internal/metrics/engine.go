// Package metrics экспортирует метрики движка в Prometheus.
package metrics

import (
	"github.com/annel0/voxmesh/internal/render"
	"github.com/annel0/voxmesh/internal/voxel"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "voxmesh"

// EngineMetrics наблюдатель хранилища блоков, ведущий счётчики Prometheus.
// Передаётся в voxel.StoreConfig.Observer.
type EngineMetrics struct {
	allocated   prometheus.Counter
	cloned      prometheus.Counter
	freed       prometheus.Counter
	tableCopies prometheus.Counter
	tableBlocks prometheus.Histogram

	reg prometheus.Registerer
}

var _ voxel.Observer = (*EngineMetrics)(nil)

// NewEngineMetrics создаёт метрики и регистрирует их в reg
func NewEngineMetrics(reg prometheus.Registerer) (*EngineMetrics, error) {
	m := &EngineMetrics{
		allocated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "block_data_allocated_total",
			Help:      "Всего создано BlockData (включая копии).",
		}),
		cloned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "block_data_cloned_total",
			Help:      "Копий BlockData при copy-on-write.",
		}),
		freed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "block_data_freed_total",
			Help:      "Освобождённых BlockData.",
		}),
		tableCopies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mesh_table_copies_total",
			Help:      "Отделений разделённых таблиц блоков меша.",
		}),
		tableBlocks: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mesh_table_copy_blocks",
			Help:      "Число блоков в отделяемой таблице.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		reg: reg,
	}
	for _, c := range []prometheus.Collector{m.allocated, m.cloned, m.freed, m.tableCopies, m.tableBlocks} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *EngineMetrics) BlockDataAllocated() { m.allocated.Inc() }
func (m *EngineMetrics) BlockDataCloned()    { m.cloned.Inc() }
func (m *EngineMetrics) BlockDataFreed()     { m.freed.Inc() }

func (m *EngineMetrics) MeshTableCopied(blocks int) {
	m.tableCopies.Inc()
	m.tableBlocks.Observe(float64(blocks))
}

// WatchStore добавляет датчики живых BlockData и привязок хранилища
func (m *EngineMetrics) WatchStore(store *voxel.Store) error {
	live := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "block_data_live",
		Help:      "BlockData с ненулевым счётчиком ссылок.",
	}, func() float64 { return float64(store.Stats().LiveData) })
	attachments := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "block_attachments",
		Help:      "Сумма ссылок на BlockData из блоков мешей.",
	}, func() float64 { return float64(store.Stats().Attachments) })
	if err := m.reg.Register(live); err != nil {
		return err
	}
	return m.reg.Register(attachments)
}

// WatchRenderCache добавляет метрики кеша вершин
func (m *EngineMetrics) WatchRenderCache(cache *render.Cache) error {
	hits := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "render_cache_hits_total",
		Help:      "Попаданий в кеш вершинных буферов.",
	}, func() float64 { return float64(cache.Metrics().Hits) })
	misses := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "render_cache_misses_total",
		Help:      "Промахов кеша вершинных буферов.",
	}, func() float64 { return float64(cache.Metrics().Misses) })
	if err := m.reg.Register(hits); err != nil {
		return err
	}
	return m.reg.Register(misses)
}
