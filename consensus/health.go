package consensus

import (
	"sync"
	"time"
)

// HealthTracker implements the desync-detection window supplemented from
// original_source/massa-consensus-worker/src/worker/mod.rs and init.rs:
// on construction it derives stats_desync_detection_timespan = t0 *
// periods_per_cycle * 2 and keeps stats_history_timespan = max(that,
// stats_timespan), then compares the observed finalization rate over the
// desync-detection window against the rate implied by t0/thread_count.
// The history window bounds how long finals are kept and is the span
// FinalRate averages over.
type HealthTracker struct {
	mu sync.Mutex

	t0          time.Duration
	threadCount uint8

	desyncDetectionWindow time.Duration
	historyWindow         time.Duration

	finals []time.Time // timestamps of RecordFinal calls, oldest first
}

// NewHealthTracker derives the desync-detection and history windows from
// cfg, as described above.
func NewHealthTracker(cfg *Config) *HealthTracker {
	t0 := time.Duration(cfg.T0) * time.Millisecond
	desync := t0 * time.Duration(cfg.PeriodsPerCycle) * 2
	history := desync
	if cfg.StatsTimespan > history {
		history = cfg.StatsTimespan
	}
	return &HealthTracker{
		t0:                    t0,
		threadCount:           cfg.ThreadCount,
		desyncDetectionWindow: desync,
		historyWindow:         history,
	}
}

// RecordFinal notes that a block became final at now, for rate tracking.
func (h *HealthTracker) RecordFinal(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finals = append(h.finals, now)
	h.trimLocked(now)
}

// trimLocked drops entries older than historyWindow. Caller holds mu.
func (h *HealthTracker) trimLocked(now time.Time) {
	cutoff := now.Add(-h.historyWindow)
	i := 0
	for i < len(h.finals) && h.finals[i].Before(cutoff) {
		i++
	}
	h.finals = h.finals[i:]
}

// IsDesynced reports whether the observed finalization rate over the
// desync-detection window has fallen below half the expected rate implied
// by t0/thread_count, suggesting this node has lost touch with the network.
func (h *HealthTracker) IsDesynced(now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trimLocked(now)

	if h.t0 <= 0 || h.threadCount == 0 {
		return false
	}
	cutoff := now.Add(-h.desyncDetectionWindow)
	var observed int
	for _, ts := range h.finals {
		if !ts.Before(cutoff) {
			observed++
		}
	}
	expected := float64(h.desyncDetectionWindow) / float64(h.t0) * float64(h.threadCount)
	return float64(observed) < expected*0.5
}

// FinalRate returns the observed finals-per-second rate over the history
// window, for exposure as a metric.
func (h *HealthTracker) FinalRate(now time.Time) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trimLocked(now)
	if h.historyWindow <= 0 {
		return 0
	}
	return float64(len(h.finals)) / h.historyWindow.Seconds()
}
