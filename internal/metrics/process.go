package metrics

import (
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessMetrics метрики процесса редактора
type ProcessMetrics struct {
	StartTime time.Time
	proc      *process.Process
}

// NewProcessMetrics создаёт метрики текущего процесса и регистрирует
// датчики памяти и времени работы
func NewProcessMetrics(reg prometheus.Registerer) (*ProcessMetrics, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	pm := &ProcessMetrics{StartTime: time.Now(), proc: proc}

	rss := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "process_rss_bytes",
		Help:      "Резидентная память процесса.",
	}, func() float64 {
		v, err := pm.RSS()
		if err != nil {
			return 0
		}
		return float64(v)
	})
	uptime := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Время работы процесса.",
	}, func() float64 { return time.Since(pm.StartTime).Seconds() })

	if err := reg.Register(rss); err != nil {
		return nil, err
	}
	if err := reg.Register(uptime); err != nil {
		return nil, err
	}
	return pm, nil
}

// RSS возвращает резидентную память процесса в байтах
func (pm *ProcessMetrics) RSS() (uint64, error) {
	info, err := pm.proc.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return info.RSS, nil
}

// GetUptime возвращает время работы в читаемом виде
func (pm *ProcessMetrics) GetUptime() string {
	uptime := time.Since(pm.StartTime)

	hours := int(uptime.Hours())
	minutes := int(uptime.Minutes()) % 60
	seconds := int(uptime.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	}
	return fmt.Sprintf("%dс", seconds)
}
