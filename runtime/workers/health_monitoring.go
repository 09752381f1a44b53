package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"media-vault/contract"

	"github.com/shirou/gopsutil/process"
)

var _ contract.Worker = (*HealthMonitoringWorker)(nil)

// HealthMonitoringWorker periodically reports the pipeline process's own CPU
// and memory footprint. Large media buffers make the worker pool the usual
// memory hotspot; this gives operators a trail without external tooling.
type HealthMonitoringWorker struct {
	log            *slog.Logger
	metricInterval time.Duration
}

func NewHealthMonitoringWorker(log *slog.Logger, metricInterval time.Duration) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{log: log, metricInterval: metricInterval}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case <-ticker.C:
			cpu, err := proc.CPUPercent()
			if err != nil {
				w.log.Debug("CPU usage unavailable", "error", err)
				continue
			}
			ram, err := proc.MemoryPercent()
			if err != nil {
				w.log.Debug("Memory usage unavailable", "error", err)
				continue
			}
			w.log.Info("Pipeline process health", "cpu_percent", cpu, "ram_percent", ram)
		}
	}
}
