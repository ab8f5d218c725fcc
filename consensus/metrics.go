package consensus

import (
	"context"
	"time"

	"github.com/praizmiky/massa/metrics"
)

// StatsCollector periodically samples the Controller and HealthTracker and
// publishes the results to metrics.DefaultRegistry, following the ticker
// loop of the teacher's metrics.MetricsReporter (metrics/reporter.go) but
// driving the standard gauges/counters of metrics/standard.go directly
// instead of a pluggable backend.
type StatsCollector struct {
	ctrl   *Controller
	health *HealthTracker

	interval time.Duration
}

// NewStatsCollector builds a collector sampling ctrl and health every
// interval once Run is called.
func NewStatsCollector(ctrl *Controller, health *HealthTracker, interval time.Duration) *StatsCollector {
	return &StatsCollector{ctrl: ctrl, health: health, interval: interval}
}

// Run samples metrics every interval until ctx is cancelled. Meant to run on
// its own goroutine alongside the worker's.
func (s *StatsCollector) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sampleOnce(ctx)
		}
	}
}

// sampleOnce takes one snapshot; Run calls it on every tick.
func (s *StatsCollector) sampleOnce(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, defaultCallTimeout)
	defer cancel()

	if statuses, err := s.ctrl.GetBlockStatuses(callCtx); err == nil {
		var active, pending int64
		for _, st := range statuses {
			switch st.Kind {
			case StatusActive:
				active++
			case StatusWaitingForDependencies, StatusWaitingForSlot, StatusIncoming:
				pending++
			}
		}
		metrics.ActiveBlocks.Set(active)
		metrics.PendingDependencies.Set(pending)
	}

	if cliques, err := s.ctrl.GetCliques(callCtx); err == nil {
		metrics.CliqueCount.Set(int64(len(cliques)))
	}

	if s.health != nil {
		now := time.Now()
		metrics.FinalizationRate.Set(int64(s.health.FinalRate(now) * 1000))
		if s.health.IsDesynced(now) {
			metrics.Desynced.Set(1)
		} else {
			metrics.Desynced.Set(0)
		}
	}
}
