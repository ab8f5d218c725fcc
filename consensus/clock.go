package consensus

import (
	"fmt"
	"time"

	"github.com/praizmiky/massa/models"
)

// Clock converts between wall-clock time and Slots, anchored at
// GenesisTimestamp (spec.md §4.1: "Inputs: genesis_timestamp, t0,
// thread_count, clock_compensation"). All methods are pure computations. They
// return an error on arithmetic overflow, which callers treat as fatal per
// spec.md §4.1, on a slot thread outside [0, thread_count), and when t0 is
// smaller than thread_count.
type Clock struct {
	genesisTimestamp uint64 // unix millis
	t0               uint64 // period duration, millis
	threadCount      uint8
	compensation     int64 // millis added to "now" before conversion
}

// NewClock builds a Clock from a Config. Panics if T0 or ThreadCount is
// zero, mirroring the teacher's fail-fast constructor style.
func NewClock(cfg *Config) *Clock {
	if cfg.T0 == 0 {
		panic("consensus: T0 must be > 0")
	}
	if cfg.ThreadCount == 0 {
		panic("consensus: ThreadCount must be > 0")
	}
	return &Clock{
		genesisTimestamp: cfg.GenesisTimestamp,
		t0:               cfg.T0,
		threadCount:      cfg.ThreadCount,
		compensation:     cfg.ClockCompensationMillis,
	}
}

// nowMillis returns the compensated wall-clock time in unix millis.
func (c *Clock) nowMillis(now time.Time) int64 {
	return now.UnixMilli() + c.compensation
}

// timestampOf returns the unix-millis instant a slot begins: genesis +
// period*t0 + thread*(t0/thread_count), the standard "every thread gets an
// equal fraction of the period" schedule.
func (c *Clock) timestampOf(slot models.Slot) (int64, error) {
	if slot.Thread >= c.threadCount {
		return 0, fmt.Errorf("consensus: thread %d out of range [0,%d)", slot.Thread, c.threadCount)
	}
	periodOffset := slot.Period * c.t0
	threadOffset := uint64(slot.Thread) * (c.t0 / uint64(c.threadCount))
	total := periodOffset + threadOffset
	if total < periodOffset { // overflow
		return 0, fmt.Errorf("consensus: slot %s timestamp overflow", slot)
	}
	return int64(c.genesisTimestamp) + int64(total), nil
}

// SlotInstant returns the time.Time a slot begins (spec.md §4.1:
// "slot_instant(slot) -> Instant").
func (c *Clock) SlotInstant(slot models.Slot) (time.Time, error) {
	ms, err := c.timestampOf(slot)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

// CurrentSlot returns the slot active at the given time, or false if now is
// before genesis (spec.md §4.1: "current_slot(now) -> Option<Slot>").
func (c *Clock) CurrentSlot(now time.Time) (models.Slot, bool, error) {
	nowMs := c.nowMillis(now)
	if nowMs < int64(c.genesisTimestamp) {
		return models.Slot{}, false, nil
	}
	elapsed := uint64(nowMs) - c.genesisTimestamp
	period := elapsed / c.t0
	intoPeriod := elapsed % c.t0
	perThread := c.t0 / uint64(c.threadCount)
	if perThread == 0 {
		return models.Slot{}, false, fmt.Errorf("consensus: t0 %d smaller than thread_count %d", c.t0, c.threadCount)
	}
	thread := intoPeriod / perThread
	if thread >= uint64(c.threadCount) {
		thread = uint64(c.threadCount) - 1
	}
	return models.NewSlot(period, uint8(thread)), true, nil
}

// NextSlot returns the slot immediately following prev in the global
// thread-interleaved order (spec.md §4.1: "next_slot(prev)").
func (c *Clock) NextSlot(prev models.Slot) (models.Slot, error) {
	return prev.NextInThread(c.threadCount)
}
