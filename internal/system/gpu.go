package system

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"metricsd/internal/command"
	"metricsd/internal/domain"
)

const nvidiaSMI = "nvidia-smi"

var (
	gpuQueryArgs = []string{
		"--query-gpu=utilization.gpu,temperature.gpu",
		"--format=csv,noheader,nounits",
	}
	computeAppsQueryArgs = []string{
		"--query-compute-apps=used_gpu_memory",
		"--format=csv,noheader,nounits",
	}
)

// NvidiaSMI queries GPU state through the nvidia-smi CLI.
type NvidiaSMI struct {
	runner command.Runner
}

func NewNvidiaSMI(runner command.Runner) *NvidiaSMI {
	return &NvidiaSMI{runner: runner}
}

func (n *NvidiaSMI) QueryGPU(ctx context.Context) (domain.GPUReading, error) {
	out, err := n.runner.Run(ctx, nvidiaSMI, gpuQueryArgs...)
	if err != nil {
		return domain.GPUReading{}, fmt.Errorf("query gpu: %w", err)
	}

	return parseGPUQuery(out), nil
}

// QueryMemoryUsedMiB sums the memory held by every compute process. On
// unified memory parts the regular memory.used query only reports N/A.
func (n *NvidiaSMI) QueryMemoryUsedMiB(ctx context.Context) (uint64, error) {
	out, err := n.runner.Run(ctx, nvidiaSMI, computeAppsQueryArgs...)
	if err != nil {
		return 0, fmt.Errorf("query compute apps: %w", err)
	}

	return sumComputeAppMemory(out), nil
}

func parseGPUQuery(out []byte) domain.GPUReading {
	var reading domain.GPUReading

	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	fields := strings.Split(line, ",")

	if v, ok := parseIntToken(fields[0]); ok {
		reading.Utilization = v
		reading.HasUtilization = true
	}

	if len(fields) > 1 {
		if v, ok := parseIntToken(fields[1]); ok {
			reading.TemperatureC = v
			reading.HasTemperature = true
		}
	}

	return reading
}

func sumComputeAppMemory(out []byte) uint64 {
	var total uint64

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		v, ok := parseIntToken(scanner.Text())
		if !ok || v < 0 {
			continue
		}
		total += uint64(v)
	}

	return total
}

func parseIntToken(token string) (int, bool) {
	token = strings.TrimSpace(token)
	if isUnavailableToken(token) {
		return 0, false
	}

	v, err := strconv.Atoi(token)
	if err != nil {
		// Some drivers print fractional values, e.g. "45.0".
		f, ferr := strconv.ParseFloat(token, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int(f), true
	}

	return v, true
}

func isUnavailableToken(token string) bool {
	switch strings.ToUpper(token) {
	case "", "N/A", "[N/A]", "[NOT SUPPORTED]":
		return true
	}
	return false
}
