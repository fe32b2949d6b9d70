package remote

import (
	"context"
	"math"
	"strconv"
	"time"
)

type inputRunner interface {
	RunWithInput(ctx context.Context, input []byte, name string, args ...string) ([]byte, error)
}

// ExecTransport shells out to the ssh client, so host aliases, keys and
// jump hosts come from the user's ssh config.
type ExecTransport struct {
	runner         inputRunner
	connectTimeout time.Duration
}

func NewExecTransport(runner inputRunner, connectTimeout time.Duration) *ExecTransport {
	return &ExecTransport{runner: runner, connectTimeout: connectTimeout}
}

func (t *ExecTransport) Run(ctx context.Context, host, script string) ([]byte, error) {
	return t.runner.RunWithInput(ctx, []byte(script), "ssh", t.args(host)...)
}

func (t *ExecTransport) args(host string) []string {
	secs := int(math.Ceil(t.connectTimeout.Seconds()))
	if secs < 1 {
		secs = 1
	}

	return []string{
		"-o", "ConnectTimeout=" + strconv.Itoa(secs),
		"-o", "BatchMode=yes",
		host,
		"sh -s",
	}
}
