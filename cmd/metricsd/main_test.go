package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metricsd/internal/domain"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	err := run(context.Background(), []string{"--port", "70000"})
	assert.ErrorContains(t, err, "port must be at most 65535")
}

func TestRunServesAfterFirstRefresh(t *testing.T) {
	port := freePort(t)
	t.Setenv("METRICSD_BIND", "127.0.0.1")
	t.Setenv("LOG_LEVEL", "error")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, []string{"--port", strconv.Itoa(port)}) }()

	url := "http://127.0.0.1:" + strconv.Itoa(port) + "/api/metrics"

	var resp *http.Response
	require.Eventually(t, func() bool {
		r, err := http.Get(url)
		if err != nil {
			return false
		}
		resp = r
		return true
	}, 10*time.Second, 50*time.Millisecond)
	defer resp.Body.Close()

	// The listener only exists once a snapshot is cached, so the very
	// first answer is already a full payload.
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload domain.Payload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Nil(t, payload.Linux)
	assert.NotEmpty(t, payload.Spark.Uptime)
	assert.NotEmpty(t, payload.Spark.VRAMUsed)
	assert.NotEmpty(t, payload.Spark.GPUTemp)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
