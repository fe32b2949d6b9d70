package workers

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"metricsd/internal/domain"
	"metricsd/internal/logger"
)

const remoteWarnInterval = time.Minute

type LocalCollector interface {
	Collect(ctx context.Context) domain.LocalMetrics
}

type RemoteCollector interface {
	Collect(ctx context.Context, host string) (*domain.RemoteMetrics, error)
}

type SnapshotWriter interface {
	Update(local domain.LocalMetrics, remote *domain.RemoteMetrics)
}

// Poller refreshes the snapshot store from the collectors. It is driven
// by a single goroutine and is not safe for concurrent Run calls.
type Poller struct {
	local      LocalCollector
	remote     RemoteCollector
	remoteHost string
	store      SnapshotWriter
	log        logger.Logger

	remoteWarn *rate.Sometimes
	remoteDown bool
}

// NewPoller builds a poller; remote collection is skipped when remoteHost is empty.
func NewPoller(local LocalCollector, remote RemoteCollector, remoteHost string, store SnapshotWriter, log logger.Logger) *Poller {
	return &Poller{
		local:      local,
		remote:     remote,
		remoteHost: remoteHost,
		store:      store,
		log:        log,
		remoteWarn: newRemoteWarn(),
	}
}

func (p *Poller) Name() string {
	return "metrics-poller"
}

func (p *Poller) Run(ctx context.Context) error {
	local := p.local.Collect(ctx)

	var remote *domain.RemoteMetrics
	if p.remoteHost != "" && p.remote != nil {
		remote = p.collectRemote(ctx)
	}

	p.store.Update(local, remote)

	return nil
}

func (p *Poller) collectRemote(ctx context.Context) *domain.RemoteMetrics {
	m, err := p.remote.Collect(ctx, p.remoteHost)
	if err != nil {
		p.remoteDown = true
		p.log.Debug("remote collection failed", "host", p.remoteHost, "error", err)
		p.remoteWarn.Do(func() {
			p.log.Warn("remote host unreachable, omitting its metrics", "host", p.remoteHost, "error", err)
		})
		return nil
	}

	if p.remoteDown {
		p.remoteDown = false
		p.remoteWarn = newRemoteWarn()
		p.log.Info("remote host reachable again", "host", p.remoteHost)
	}

	return m
}

func newRemoteWarn() *rate.Sometimes {
	return &rate.Sometimes{First: 1, Interval: remoteWarnInterval}
}
