package domain

import (
	"fmt"
	"time"
)

// Unavailable is shown by the dashboard for any string metric that could not be measured.
const Unavailable = "--"

type Payload struct {
	Spark LocalPayload   `json:"spark"`
	Linux *RemotePayload `json:"linux,omitempty"`
}

type LocalPayload struct {
	CPUPercent  float64 `json:"cpu_pct"`
	GPUPercent  int     `json:"gpu_pct"`
	VRAMPercent float64 `json:"vram_pct"`
	VRAMUsed    string  `json:"vram_gb"`
	GPUTemp     string  `json:"gpu_temp"`
	CPUTemp     float64 `json:"cpu_temp"`
	Uptime      string  `json:"uptime"`
}

type RemotePayload struct {
	CPUPercent float64 `json:"cpu_pct"`
	GPUPercent int     `json:"gpu_pct"`
	GPUTemp    string  `json:"gpu_temp"`
	CPUTemp    float64 `json:"cpu_temp"`
	RAMUsed    string  `json:"ram_gb"`
	Uptime     string  `json:"uptime"`
}

// NewPayload converts a snapshot into the dashboard wire format. This is the
// only place where missing readings turn into sentinel values.
func NewPayload(s Snapshot) Payload {
	p := Payload{Spark: newLocalPayload(s.Local)}

	if r := s.Remote; r != nil {
		p.Linux = &RemotePayload{
			CPUPercent: Round1(ClampPercent(r.CPUPercent)),
			GPUPercent: ClampPercentInt(r.GPUPercent),
			GPUTemp:    orUnavailable(r.GPUTemp),
			CPUTemp:    Round1(r.CPUTempC),
			RAMUsed:    orUnavailable(r.RAMUsed),
			Uptime:     orUnavailable(r.Uptime),
		}
	}

	return p
}

func newLocalPayload(m LocalMetrics) LocalPayload {
	p := LocalPayload{
		CPUPercent: Round1(ClampPercent(m.CPUPercent)),
		VRAMUsed:   Unavailable,
		GPUTemp:    Unavailable,
		CPUTemp:    Round1(m.CPUTempC),
		Uptime:     FormatUptime(m.Uptime),
	}

	if m.GPU.HasUtilization {
		p.GPUPercent = ClampPercentInt(m.GPU.Utilization)
	}
	if m.GPU.HasTemperature {
		p.GPUTemp = fmt.Sprintf("%d°C", m.GPU.TemperatureC)
	}

	if m.VRAMUsedMiB > 0 {
		p.VRAMUsed = fmt.Sprintf("%.1f GB", float64(m.VRAMUsedMiB)/1024)
		if m.VRAMTotalMiB > 0 {
			p.VRAMPercent = Round1(ClampPercent(float64(m.VRAMUsedMiB) / float64(m.VRAMTotalMiB) * 100))
		}
	}

	return p
}

// FormatUptime renders whole days and hours, truncating the remainder.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	days := secs / 86400
	hours := (secs % 86400) / 3600
	return fmt.Sprintf("%dd %dh", days, hours)
}

func orUnavailable(s string) string {
	if s == "" {
		return Unavailable
	}
	return s
}
