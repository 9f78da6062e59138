package logging

import (
	"fmt"
	"sort"
	"sync"
)

// LoggerManager реестр логгеров компонентов движка (engine, history, render, storage...).
// Все логгеры менеджера получают общий консольный уровень.
type LoggerManager struct {
	mu      sync.Mutex
	dir     string
	level   LogLevel
	loggers map[string]*Logger
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

// NewLoggerManager создаёт менеджер. Если dir не пуст, каждый компонент пишет и в свой файл.
func NewLoggerManager(dir string) *LoggerManager {
	return &LoggerManager{
		dir:     dir,
		level:   INFO,
		loggers: make(map[string]*Logger),
	}
}

// GetLoggerManager возвращает глобальный менеджер логгеров
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = NewLoggerManager("")
	})
	return globalManager
}

// Configure задаёт каталог файлов и уровень. Уровень применяется и к уже
// созданным логгерам; каталог влияет только на новые.
func (lm *LoggerManager) Configure(dir string, level LogLevel) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.dir = dir
	lm.level = level
	for _, l := range lm.loggers {
		l.SetLevel(level)
	}
}

// GetLogger возвращает логгер для компонента, создавая его при необходимости
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if logger, ok := lm.loggers[component]; ok {
		return logger, nil
	}

	var (
		logger *Logger
		err    error
	)
	if lm.dir != "" {
		logger, err = NewFileLogger(component, lm.dir)
	} else {
		logger, err = NewLogger(component)
	}
	if err != nil {
		return nil, fmt.Errorf("не удалось создать логгер %s: %w", component, err)
	}
	logger.SetLevel(lm.level)

	lm.loggers[component] = logger
	return logger, nil
}

// MustGetLogger возвращает логгер или консольный fallback при ошибке
func (lm *LoggerManager) MustGetLogger(component string) *Logger {
	logger, err := lm.GetLogger(component)
	if err != nil {
		fallback, _ := NewLogger(component)
		return fallback
	}
	return logger
}

// CloseAll закрывает все логгеры и очищает реестр
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var lastErr error
	for component, logger := range lm.loggers {
		if err := logger.Close(); err != nil {
			lastErr = fmt.Errorf("не удалось закрыть логгер %s: %w", component, err)
		}
	}

	lm.loggers = make(map[string]*Logger)
	return lastErr
}

// ListComponents имена зарегистрированных компонентов по алфавиту
func (lm *LoggerManager) ListComponents() []string {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	components := make([]string, 0, len(lm.loggers))
	for component := range lm.loggers {
		components = append(components, component)
	}
	sort.Strings(components)
	return components
}

// SetLogLevel устанавливает уровни консоли и файла для одного компонента
func (lm *LoggerManager) SetLogLevel(component string, consoleLevel, fileLevel LogLevel) error {
	lm.mu.Lock()
	logger, ok := lm.loggers[component]
	lm.mu.Unlock()

	if !ok {
		return fmt.Errorf("логгер компонента %s не найден", component)
	}

	logger.mu.Lock()
	logger.minConsoleLevel = consoleLevel
	logger.minFileLevel = fileLevel
	logger.mu.Unlock()
	return nil
}

func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().MustGetLogger(component)
}

func GetEngineLogger() *Logger  { return GetComponentLogger("engine") }
func GetHistoryLogger() *Logger { return GetComponentLogger("history") }
func GetRenderLogger() *Logger  { return GetComponentLogger("render") }
func GetStorageLogger() *Logger { return GetComponentLogger("storage") }
