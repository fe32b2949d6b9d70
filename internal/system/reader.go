// Package system reads host CPU, sensor, uptime and GPU state.
package system

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/sensors"

	"metricsd/internal/logger"
)

var ErrSensorGroupNotFound = errors.New("sensor group not found")

type SystemReader struct {
	log logger.Logger

	temperatures func(ctx context.Context) ([]sensors.TemperatureStat, error)
}

func NewReader(log logger.Logger) *SystemReader {
	return &SystemReader{
		log:          log,
		temperatures: sensors.TemperaturesWithContext,
	}
}

// CPUPercent blocks for window and returns the aggregate utilization over it.
func (r *SystemReader) CPUPercent(ctx context.Context, window time.Duration) (float64, error) {
	values, err := cpu.PercentWithContext(ctx, window, false)
	if err != nil {
		return 0, fmt.Errorf("cpu percent: %w", err)
	}
	if len(values) == 0 {
		return 0, errors.New("cpu percent: no samples")
	}

	return values[0], nil
}

// CPUTempC returns the hottest reading of the given sensor group, e.g. "acpitz".
func (r *SystemReader) CPUTempC(ctx context.Context, group string) (float64, error) {
	temps, err := r.temperatures(ctx)
	if err != nil {
		// gopsutil reports unreadable inputs as warnings next to the readable ones.
		r.log.Debug("sensor read reported warnings", "error", err.Error())
		if len(temps) == 0 {
			return 0, fmt.Errorf("read sensors: %w", err)
		}
	}

	return maxGroupTemperature(temps, group)
}

func (r *SystemReader) BootTime(ctx context.Context) (time.Time, error) {
	secs, err := host.BootTimeWithContext(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("boot time: %w", err)
	}

	return time.Unix(int64(secs), 0), nil
}

func maxGroupTemperature(temps []sensors.TemperatureStat, group string) (float64, error) {
	group = strings.ToLower(group)
	found := false
	best := 0.0

	for _, t := range temps {
		key := strings.ToLower(strings.TrimSpace(t.SensorKey))
		if key != group && !strings.HasPrefix(key, group+"_") {
			continue
		}
		if math.IsNaN(t.Temperature) || math.IsInf(t.Temperature, 0) {
			continue
		}

		if !found || t.Temperature > best {
			best = t.Temperature
			found = true
		}
	}

	if !found {
		return 0, fmt.Errorf("%w: %s", ErrSensorGroupNotFound, group)
	}

	return best, nil
}
