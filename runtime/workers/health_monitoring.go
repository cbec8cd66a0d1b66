package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// ConnectionCounter reports how many channel identities are currently
// registered for delivery.
type ConnectionCounter interface {
	ConnectionCount() int
}

// HealthWorker periodically logs the server's own resource usage and
// the number of live connections. Pure observability, no side effects
// on the delivery path.
type HealthWorker struct {
	log            *slog.Logger
	connections    ConnectionCounter
	metricInterval time.Duration
}

func NewHealthWorker(log *slog.Logger, connections ConnectionCounter, metricInterval time.Duration) *HealthWorker {
	return &HealthWorker{
		log:            log,
		connections:    connections,
		metricInterval: metricInterval,
	}
}

func (w *HealthWorker) Run(ctx context.Context) error {
	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health telemetry")
			return nil
		case <-ticker.C:
			cpu, err := self.CPUPercent()
			if err != nil {
				w.log.Error("Error while finding process cpu usage", "err", err)
				continue
			}
			ram, err := self.MemoryPercent()
			if err != nil {
				w.log.Error("Error while finding process ram usage", "err", err)
				continue
			}
			w.log.Info("telemetry: server health",
				"connections", w.connections.ConnectionCount(),
				"cpu_percent", cpu,
				"ram_percent", ram,
			)
		}
	}
}
