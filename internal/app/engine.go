package app

import (
	"context"
	"fmt"

	"github.com/annel0/voxmesh/internal/config"
	"github.com/annel0/voxmesh/internal/document"
	"github.com/annel0/voxmesh/internal/logging"
	"github.com/annel0/voxmesh/internal/metrics"
	"github.com/annel0/voxmesh/internal/observability"
	"github.com/annel0/voxmesh/internal/render"
	"github.com/annel0/voxmesh/internal/storage"
	"github.com/annel0/voxmesh/internal/voxel"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Engine собирает компоненты редактора по конфигурации:
// хранилище вокселей, кеш вершин, персистентность, метрики и трассировку.
type Engine struct {
	Config   *config.Config
	Store    *voxel.Store
	Cache    *render.Cache
	Images   *storage.ImageStorage
	Effects  render.Effects
	Registry *prometheus.Registry
	Process  *metrics.ProcessMetrics

	metricsServer     *metrics.Server
	shutdownTelemetry observability.ShutdownFunc
	logger            *logging.Logger
}

// NewEngine инициализирует движок. При ошибке уже открытые ресурсы закрываются.
func NewEngine(ctx context.Context, cfg *config.Config, logger *logging.Logger) (_ *Engine, err error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.Default()
	}

	logging.GetLoggerManager().Configure(cfg.Logging.GetDir(), cfg.Logging.GetLevel())

	e := &Engine{Config: cfg, logger: logger, Registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			e.Close()
		}
	}()

	e.Effects, err = cfg.Render.GetEffects()
	if err != nil {
		return nil, fmt.Errorf("конфигурация рендера: %w", err)
	}

	engineMetrics, err := metrics.NewEngineMetrics(e.Registry)
	if err != nil {
		return nil, fmt.Errorf("метрики движка: %w", err)
	}
	e.Process, err = metrics.NewProcessMetrics(e.Registry)
	if err != nil {
		return nil, fmt.Errorf("метрики процесса: %w", err)
	}

	e.Store = voxel.NewStore(voxel.StoreConfig{
		MaxBlockData: cfg.Engine.GetMaxBlockData(),
		Observer:     engineMetrics,
		Logger:       logging.GetEngineLogger(),
	})
	if err = engineMetrics.WatchStore(e.Store); err != nil {
		return nil, err
	}

	e.Cache, err = render.NewCache(cfg.Render.GetCacheConfig(), logging.GetRenderLogger())
	if err != nil {
		return nil, fmt.Errorf("кеш вершин: %w", err)
	}
	if err = engineMetrics.WatchRenderCache(e.Cache); err != nil {
		return nil, err
	}

	e.Images, err = storage.NewImageStorage(cfg.Storage.GetDataPath(), logging.GetStorageLogger())
	if err != nil {
		return nil, err
	}

	e.shutdownTelemetry, err = observability.InitTelemetry(ctx, observability.Config{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.GetServiceName(),
		Endpoint:    cfg.Telemetry.Endpoint,
		SampleRatio: cfg.Telemetry.GetSampleRatio(),
	})
	if err != nil {
		return nil, fmt.Errorf("телеметрия: %w", err)
	}

	if cfg.Metrics.Enabled {
		e.metricsServer = metrics.StartHTTP(fmt.Sprintf(":%d", cfg.Metrics.GetPort()), e.Registry)
	}

	logger.Info("✅ Движок инициализирован (бюджет BlockData=%d, эффекты=%s)",
		cfg.Engine.GetMaxBlockData(), e.Effects)
	return e, nil
}

// NewImage создаёт пустой документ на хранилище движка
func (e *Engine) NewImage() *document.Image {
	return document.NewImage(e.Store, e.imageConfig())
}

// LoadImage загружает сохранённый документ по строковому идентификатору
func (e *Engine) LoadImage(ctx context.Context, id string) (*document.Image, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("неверный идентификатор документа %q: %w", id, err)
	}
	return e.Images.LoadImage(ctx, uid, e.Store, e.imageConfig())
}

// Render строит буферы вершин для всех видимых слоёв документа
func (e *Engine) Render(img *document.Image) ([]render.BlockBuffer, error) {
	flat, err := img.Flatten()
	if err != nil {
		return nil, err
	}
	defer flat.Release()
	return render.BuildMesh(flat, e.Effects, e.Cache), nil
}

func (e *Engine) imageConfig() document.ImageConfig {
	return document.ImageConfig{
		HistoryDepth: e.Config.History.GetDepth(),
		Logger:       logging.GetHistoryLogger(),
	}
}

// Close освобождает ресурсы движка в обратном порядке
func (e *Engine) Close() {
	ctx := context.Background()
	if e.metricsServer != nil {
		if err := e.metricsServer.Shutdown(ctx); err != nil {
			e.logger.Warn("Ошибка остановки сервера метрик: %v", err)
		}
	}
	if e.shutdownTelemetry != nil {
		if err := e.shutdownTelemetry(ctx); err != nil {
			e.logger.Warn("Ошибка остановки телеметрии: %v", err)
		}
	}
	if e.Images != nil {
		if err := e.Images.Close(); err != nil {
			e.logger.Warn("Ошибка закрытия хранилища: %v", err)
		}
	}
	if e.Cache != nil {
		e.Cache.Close()
	}
}
