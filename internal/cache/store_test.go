package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metricsd/internal/domain"
)

func TestSnapshotBeforeFirstUpdate(t *testing.T) {
	_, ok := NewStore().Snapshot()
	assert.False(t, ok)
}

func TestUpdateReplacesWholeSnapshot(t *testing.T) {
	s := NewStore()
	stamp := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return stamp }

	s.Update(domain.LocalMetrics{CPUPercent: 10}, &domain.RemoteMetrics{CPUPercent: 20, Uptime: "1d 1h"})

	snap, ok := s.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 10.0, snap.Local.CPUPercent)
	require.NotNil(t, snap.Remote)
	assert.Equal(t, 20.0, snap.Remote.CPUPercent)
	assert.Equal(t, stamp, snap.RefreshedAt)

	s.Update(domain.LocalMetrics{CPUPercent: 11}, nil)

	snap, ok = s.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 11.0, snap.Local.CPUPercent)
	assert.Nil(t, snap.Remote, "a failed remote attempt must not leave the previous reading behind")
}

func TestUpdateCopiesRemote(t *testing.T) {
	s := NewStore()
	remote := &domain.RemoteMetrics{CPUPercent: 5}
	s.Update(domain.LocalMetrics{}, remote)

	remote.CPUPercent = 99

	snap, _ := s.Snapshot()
	assert.Equal(t, 5.0, snap.Remote.CPUPercent)
}

// Each update writes the same value into every field; a reader seeing two
// different values would have observed a torn snapshot.
func TestConcurrentReadersNeverSeeTornSnapshots(t *testing.T) {
	s := NewStore()
	s.Update(domain.LocalMetrics{}, &domain.RemoteMetrics{})

	const rounds = 2000
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= rounds; i++ {
			v := float64(i)
			var remote *domain.RemoteMetrics
			if i%3 != 0 {
				remote = &domain.RemoteMetrics{CPUPercent: v, CPUTempC: v}
			}
			s.Update(domain.LocalMetrics{CPUPercent: v, CPUTempC: v, VRAMUsedMiB: uint64(i)}, remote)
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				snap, ok := s.Snapshot()
				if !assert.True(t, ok) {
					return
				}
				l := snap.Local
				if l.CPUPercent != l.CPUTempC || uint64(l.CPUPercent) != l.VRAMUsedMiB {
					t.Errorf("torn local section: %+v", l)
					return
				}
				if rm := snap.Remote; rm != nil && (rm.CPUPercent != rm.CPUTempC || (rm.CPUPercent != 0 && rm.CPUPercent != l.CPUPercent)) {
					t.Errorf("remote from a different cycle: local=%v remote=%v", l.CPUPercent, rm.CPUPercent)
					return
				}
			}
		}()
	}

	wg.Wait()
}
