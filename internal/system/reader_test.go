package system

import (
	"context"
	"errors"
	"testing"

	"github.com/shirou/gopsutil/v4/sensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metricsd/internal/logger"
)

func readerWithTemps(temps []sensors.TemperatureStat, err error) *SystemReader {
	r := NewReader(logger.Nop())
	r.temperatures = func(context.Context) ([]sensors.TemperatureStat, error) {
		return temps, err
	}
	return r
}

func TestCPUTempCPicksHottestZoneInGroup(t *testing.T) {
	r := readerWithTemps([]sensors.TemperatureStat{
		{SensorKey: "acpitz", Temperature: 41.5},
		{SensorKey: "acpitz_1", Temperature: 47.25},
		{SensorKey: "nvme_composite", Temperature: 70},
	}, nil)

	temp, err := r.CPUTempC(context.Background(), "acpitz")
	require.NoError(t, err)
	assert.Equal(t, 47.25, temp)
}

func TestCPUTempCMissingGroup(t *testing.T) {
	r := readerWithTemps([]sensors.TemperatureStat{{SensorKey: "coretemp_package_id_0", Temperature: 60}}, nil)

	_, err := r.CPUTempC(context.Background(), "acpitz")
	assert.ErrorIs(t, err, ErrSensorGroupNotFound)

	r = readerWithTemps(nil, nil)
	_, err = r.CPUTempC(context.Background(), "acpitz")
	assert.ErrorIs(t, err, ErrSensorGroupNotFound)
}

func TestCPUTempCToleratesPartialWarnings(t *testing.T) {
	r := readerWithTemps([]sensors.TemperatureStat{{SensorKey: "acpitz", Temperature: 39}}, errors.New("some inputs unreadable"))

	temp, err := r.CPUTempC(context.Background(), "acpitz")
	require.NoError(t, err)
	assert.Equal(t, 39.0, temp)

	r = readerWithTemps(nil, errors.New("not implemented"))
	_, err = r.CPUTempC(context.Background(), "acpitz")
	assert.ErrorContains(t, err, "read sensors")
}
