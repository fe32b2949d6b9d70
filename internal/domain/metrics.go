package domain

import (
	"math"
	"time"
)

// GPUReading is the result of one GPU utilization/temperature query.
// A field is only meaningful when its Has* flag is set.
type GPUReading struct {
	Utilization    int
	HasUtilization bool
	TemperatureC   int
	HasTemperature bool
}

type LocalMetrics struct {
	CPUPercent   float64
	CPUTempC     float64
	GPU          GPUReading
	VRAMUsedMiB  uint64
	VRAMTotalMiB uint64
	Uptime       time.Duration
}

// RemoteMetrics is already display-formatted by the remote host.
type RemoteMetrics struct {
	CPUPercent float64
	GPUPercent int
	GPUTemp    string
	CPUTempC   float64
	RAMUsed    string
	Uptime     string
}

type Snapshot struct {
	Local       LocalMetrics
	Remote      *RemoteMetrics
	RefreshedAt time.Time
}

func ClampPercent(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func ClampPercentInt(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func Round1(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*10) / 10
}
