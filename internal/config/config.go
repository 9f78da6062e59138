package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/annel0/voxmesh/internal/document"
	"github.com/annel0/voxmesh/internal/logging"
	"github.com/annel0/voxmesh/internal/render"
	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации движка.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	History   HistoryConfig   `yaml:"history"`
	Render    RenderConfig    `yaml:"render"`
	Storage   StorageConfig   `yaml:"storage"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type EngineConfig struct {
	// MaxBlockData бюджет живых BlockData (0: без ограничения)
	MaxBlockData int `yaml:"max_block_data"`
}

type HistoryConfig struct {
	Depth int `yaml:"depth"`
}

type RenderConfig struct {
	Effects       []string `yaml:"effects"`
	CacheMaxBytes int64    `yaml:"cache_max_bytes"`
}

type StorageConfig struct {
	DataPath string `yaml:"data_path"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// GetMaxBlockData возвращает бюджет BlockData с поддержкой fallback значений
func (e *EngineConfig) GetMaxBlockData() int {
	return getIntWithEnvFallback(e.MaxBlockData, "VOXMESH_MAX_BLOCK_DATA", 0)
}

// GetDepth возвращает глубину истории с поддержкой fallback значений
func (h *HistoryConfig) GetDepth() int {
	return getIntWithEnvFallback(h.Depth, "VOXMESH_HISTORY_DEPTH", document.DefaultHistoryDepth)
}

// GetEffects разбирает список эффектов рендера
func (r *RenderConfig) GetEffects() (render.Effects, error) {
	names := r.Effects
	if len(names) == 0 {
		if env := os.Getenv("VOXMESH_RENDER_EFFECTS"); env != "" {
			names = strings.Split(env, ",")
		}
	}
	return render.ParseEffects(names)
}

// GetCacheConfig параметры кеша вершин
func (r *RenderConfig) GetCacheConfig() render.CacheConfig {
	cfg := render.DefaultCacheConfig()
	if r.CacheMaxBytes > 0 {
		cfg.MaxBytes = r.CacheMaxBytes
	}
	return cfg
}

// GetDataPath возвращает каталог данных: config -> env -> default
func (s *StorageConfig) GetDataPath() string {
	return getStringWithEnvFallback(s.DataPath, "VOXMESH_DATA_PATH", "./data")
}

// GetPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (m *MetricsConfig) GetPort() int {
	return getIntWithEnvFallback(m.Port, "VOXMESH_METRICS_PORT", 2112)
}

// GetServiceName имя сервиса для трассировки
func (t *TelemetryConfig) GetServiceName() string {
	return getStringWithEnvFallback(t.ServiceName, "OTEL_SERVICE_NAME", "voxmesh")
}

// GetSampleRatio доля трассируемых операций; вне (0,1] считается 1
func (t *TelemetryConfig) GetSampleRatio() float64 {
	if t.SampleRatio <= 0 || t.SampleRatio > 1 {
		return 1
	}
	return t.SampleRatio
}

// GetDir каталог файлов логов; пусто: только консоль
func (l *LoggingConfig) GetDir() string {
	return getStringWithEnvFallback(l.Dir, "VOXMESH_LOG_DIR", "")
}

// GetLevel уровень логирования; неизвестное значение даёт INFO
func (l *LoggingConfig) GetLevel() logging.LogLevel {
	level, err := logging.ParseLevel(getStringWithEnvFallback(l.Level, "VOXMESH_LOG_LEVEL", "info"))
	if err != nil {
		return logging.INFO
	}
	return level
}

// getIntWithEnvFallback возвращает значение с приоритетом: config -> env -> default
func getIntWithEnvFallback(configValue int, envVar string, defaultValue int) int {
	// Если значение задано в конфиге и больше 0, используем его
	if configValue > 0 {
		return configValue
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.Atoi(envVal); err == nil && v > 0 {
			return v
		}
	}

	// Используем дефолтное значение
	return defaultValue
}

func getStringWithEnvFallback(configValue, envVar, defaultValue string) string {
	if configValue != "" {
		return configValue
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		return envVal
	}
	return defaultValue
}

// Default конфигурация без файла: все значения берутся из env и умолчаний
func Default() *Config {
	return &Config{}
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV VOXMESH_CONFIG или возвращает Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("VOXMESH_CONFIG")
		if path == "" {
			return Default(), nil // конфиг не задан: использовать дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
