package consensus

import (
	"testing"
	"time"
)

func healthTestConfig() *Config {
	cfg := DefaultConfig()
	cfg.ThreadCount = 2
	cfg.T0 = 1000
	cfg.PeriodsPerCycle = 2
	cfg.StatsTimespan = time.Second
	return cfg
}

func TestHealthTrackerDesyncedWithNoFinals(t *testing.T) {
	h := NewHealthTracker(healthTestConfig())
	now := time.Now()
	if !h.IsDesynced(now) {
		t.Fatal("expected a tracker with no recorded finals to report desynced")
	}
}

func TestHealthTrackerNotDesyncedAtExpectedRate(t *testing.T) {
	cfg := healthTestConfig()
	h := NewHealthTracker(cfg)
	now := time.Now()

	// desync window = t0 * periods_per_cycle * 2 = 4s; expected finals over
	// that window = (window/t0)*threadCount = 8. Record comfortably above
	// half that to avoid flagging desync.
	for i := 0; i < 8; i++ {
		h.RecordFinal(now.Add(-time.Duration(i) * 250 * time.Millisecond))
	}
	if h.IsDesynced(now) {
		t.Fatal("expected tracker with finals at the expected rate to report synced")
	}
}

func TestHealthTrackerTrimsOldFinals(t *testing.T) {
	cfg := healthTestConfig()
	h := NewHealthTracker(cfg)
	now := time.Now()

	h.RecordFinal(now.Add(-time.Hour))
	if rate := h.FinalRate(now); rate != 0 {
		t.Fatalf("expected stale final to be trimmed out of the rate, got %v", rate)
	}
}
