package system

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metricsd/internal/domain"
)

type fakeRunner struct {
	outputs map[string]string
	err     error
	calls   []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	call := name + " " + strings.Join(args, " ")
	f.calls = append(f.calls, call)
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.outputs[args[0]]), nil
}

func TestParseGPUQuery(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want domain.GPUReading
	}{
		{"both", "37, 52\n", domain.GPUReading{Utilization: 37, HasUtilization: true, TemperatureC: 52, HasTemperature: true}},
		{"util n/a", "[N/A], 48", domain.GPUReading{TemperatureC: 48, HasTemperature: true}},
		{"temp n/a", "12, N/A", domain.GPUReading{Utilization: 12, HasUtilization: true}},
		{"empty", "", domain.GPUReading{}},
		{"single field", "5", domain.GPUReading{Utilization: 5, HasUtilization: true}},
		{"multi gpu uses first", "10, 40\n90, 80\n", domain.GPUReading{Utilization: 10, HasUtilization: true, TemperatureC: 40, HasTemperature: true}},
		{"garbage", "abc, def", domain.GPUReading{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseGPUQuery([]byte(tt.out)))
		})
	}
}

func TestSumComputeAppMemory(t *testing.T) {
	assert.Equal(t, uint64(0), sumComputeAppMemory(nil))
	assert.Equal(t, uint64(0), sumComputeAppMemory([]byte("[N/A]\nN/A\n\n")))
	assert.Equal(t, uint64(3072), sumComputeAppMemory([]byte("1024\n2048\n")))
	assert.Equal(t, uint64(1500), sumComputeAppMemory([]byte(" 1500 \n[N/A]\nbogus\n")))
}

func TestNvidiaSMIQueries(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		gpuQueryArgs[0]:         "64, 55\n",
		computeAppsQueryArgs[0]: "4096\n4096\n",
	}}
	smi := NewNvidiaSMI(runner)

	reading, err := smi.QueryGPU(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 64, reading.Utilization)
	assert.Equal(t, 55, reading.TemperatureC)

	used, err := smi.QueryMemoryUsedMiB(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(8192), used)

	require.Len(t, runner.calls, 2)
	assert.Equal(t, "nvidia-smi --query-gpu=utilization.gpu,temperature.gpu --format=csv,noheader,nounits", runner.calls[0])
	assert.Equal(t, "nvidia-smi --query-compute-apps=used_gpu_memory --format=csv,noheader,nounits", runner.calls[1])
}

func TestNvidiaSMIPropagatesRunnerErrors(t *testing.T) {
	smi := NewNvidiaSMI(&fakeRunner{err: errors.New("not found")})

	_, err := smi.QueryGPU(context.Background())
	assert.ErrorContains(t, err, "query gpu")

	_, err = smi.QueryMemoryUsedMiB(context.Background())
	assert.ErrorContains(t, err, "query compute apps")
}
