// Package remote collects telemetry from a single peer over SSH.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"metricsd/internal/domain"
)

var ErrMalformedResponse = errors.New("malformed remote response")

// Transport runs script on host and returns its stdout. A non-zero remote
// exit status must be reported as an error.
type Transport interface {
	Run(ctx context.Context, host, script string) ([]byte, error)
}

type Collector struct {
	transport Transport
	timeout   time.Duration
}

func NewCollector(transport Transport, timeout time.Duration) *Collector {
	return &Collector{transport: transport, timeout: timeout}
}

type response struct {
	CPUPercent *float64 `json:"cpu_pct"`
	GPUPercent *float64 `json:"gpu_pct"`
	GPUTemp    string   `json:"gpu_temp"`
	CPUTemp    *float64 `json:"cpu_temp"`
	RAMUsed    string   `json:"ram_gb"`
	Uptime     string   `json:"uptime"`
}

// Collect returns nil with an error on any failure. It never retries; the
// poller's next cycle is the retry.
func (c *Collector) Collect(ctx context.Context, host string) (*domain.RemoteMetrics, error) {
	if host == "" {
		return nil, errors.New("remote host is not configured")
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	out, err := c.transport.Run(ctx, host, collectScript)
	if err != nil {
		return nil, fmt.Errorf("run remote script on %s: %w", host, err)
	}

	return parseResponse(out)
}

func parseResponse(out []byte) (*domain.RemoteMetrics, error) {
	line := lastJSONLine(out)
	if line == nil {
		return nil, fmt.Errorf("%w: no JSON object in output", ErrMalformedResponse)
	}

	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if resp.CPUPercent == nil || resp.Uptime == "" {
		return nil, fmt.Errorf("%w: missing cpu_pct or uptime", ErrMalformedResponse)
	}

	m := &domain.RemoteMetrics{
		CPUPercent: domain.ClampPercent(*resp.CPUPercent),
		GPUTemp:    strings.TrimSpace(resp.GPUTemp),
		RAMUsed:    strings.TrimSpace(resp.RAMUsed),
		Uptime:     strings.TrimSpace(resp.Uptime),
	}
	if resp.GPUPercent != nil {
		m.GPUPercent = domain.ClampPercentInt(int(*resp.GPUPercent))
	}
	if resp.CPUTemp != nil {
		m.CPUTempC = *resp.CPUTemp
	}

	return m, nil
}

// lastJSONLine skips anything a login shell may print before the payload.
func lastJSONLine(out []byte) []byte {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if bytes.HasPrefix(line, []byte("{")) {
			return line
		}
	}
	return nil
}
