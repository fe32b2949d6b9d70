// Package local collects telemetry from the machine the daemon runs on.
package local

import (
	"context"
	"time"

	"metricsd/internal/domain"
	"metricsd/internal/logger"
)

type HostReader interface {
	CPUPercent(ctx context.Context, window time.Duration) (float64, error)
	CPUTempC(ctx context.Context, group string) (float64, error)
	BootTime(ctx context.Context) (time.Time, error)
}

type GPUQuerier interface {
	QueryGPU(ctx context.Context) (domain.GPUReading, error)
	QueryMemoryUsedMiB(ctx context.Context) (uint64, error)
}

type Options struct {
	CPUSampleWindow time.Duration
	CPUSensor       string
	GPUPoolMiB      uint64
}

type Collector struct {
	host HostReader
	gpu  GPUQuerier
	log  logger.Logger
	opts Options

	now func() time.Time
}

func NewCollector(host HostReader, gpu GPUQuerier, opts Options, log logger.Logger) *Collector {
	return &Collector{
		host: host,
		gpu:  gpu,
		log:  log,
		opts: opts,
		now:  time.Now,
	}
}

// Collect never fails: every measurement that cannot be taken is left at
// its zero value and rendered as a placeholder by the payload.
func (c *Collector) Collect(ctx context.Context) domain.LocalMetrics {
	m := domain.LocalMetrics{VRAMTotalMiB: c.opts.GPUPoolMiB}

	if v, err := c.host.CPUPercent(ctx, c.opts.CPUSampleWindow); err != nil {
		c.log.Debug("cpu usage unavailable", "error", err)
	} else {
		m.CPUPercent = domain.ClampPercent(v)
	}

	if v, err := c.host.CPUTempC(ctx, c.opts.CPUSensor); err != nil {
		c.log.Debug("cpu temperature unavailable", "sensor", c.opts.CPUSensor, "error", err)
	} else {
		m.CPUTempC = v
	}

	if reading, err := c.gpu.QueryGPU(ctx); err != nil {
		c.log.Debug("gpu stats unavailable", "error", err)
	} else {
		if reading.HasUtilization {
			reading.Utilization = domain.ClampPercentInt(reading.Utilization)
		}
		m.GPU = reading
	}

	if used, err := c.gpu.QueryMemoryUsedMiB(ctx); err != nil {
		c.log.Debug("gpu memory unavailable", "error", err)
	} else {
		m.VRAMUsedMiB = used
	}

	if boot, err := c.host.BootTime(ctx); err != nil {
		c.log.Debug("boot time unavailable", "error", err)
	} else if up := c.now().Sub(boot); up > 0 {
		m.Uptime = up
	}

	return m
}
