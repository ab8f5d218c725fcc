package consensus

import (
	"testing"

	"github.com/praizmiky/massa/models"
)

func TestDependencyTrackerDrainReadySlots(t *testing.T) {
	statuses := NewStatusMap(10, 10)
	tracker := NewDependencyTracker(statuses)

	id := idFromByte(1)
	header := &models.BlockHeader{}
	tracker.WaitForSlot(id, models.NewSlot(5, 0), header, nil)

	// Not yet ready: current slot is before the waiting slot.
	ready := tracker.DrainReadySlots(models.NewSlot(4, 0))
	if len(ready) != 0 {
		t.Fatalf("expected no ready entries, got %d", len(ready))
	}
	status, _ := statuses.Get(id)
	if status.Kind != StatusWaitingForSlot {
		t.Fatalf("expected id to remain WaitingForSlot, got %v", status.Kind)
	}

	ready = tracker.DrainReadySlots(models.NewSlot(5, 0))
	if len(ready) != 1 || ready[0].Header != header {
		t.Fatalf("expected id to be released as Incoming with its header, got %+v", ready)
	}
	status, _ = statuses.Get(id)
	if status.Kind != StatusIncoming {
		t.Fatalf("expected id to transition to Incoming, got %v", status.Kind)
	}
}

func TestDependencyTrackerResolveDependencyReleasesWhenEmpty(t *testing.T) {
	statuses := NewStatusMap(10, 10)
	tracker := NewDependencyTracker(statuses)

	waiter := idFromByte(1)
	parentA := idFromByte(2)
	parentB := idFromByte(3)
	missing := models.NewPreHashSet(parentA, parentB)
	tracker.WaitForDependencies(waiter, missing, nil, nil)

	released := tracker.ResolveDependency(parentA)
	if len(released) != 0 {
		t.Fatalf("expected no release yet, still missing parentB: %v", released)
	}
	status, _ := statuses.Get(waiter)
	if status.Missing.Contains(parentA) {
		t.Error("expected parentA to be removed from the missing set")
	}

	released = tracker.ResolveDependency(parentB)
	if len(released) != 1 || released[0] != waiter {
		t.Fatalf("expected waiter to be released, got %v", released)
	}
}

func TestDependencyTrackerCycleDetectionAndDiscard(t *testing.T) {
	statuses := NewStatusMap(10, 10)
	tracker := NewDependencyTracker(statuses)

	a := idFromByte(1)
	b := idFromByte(2)
	c := idFromByte(3)

	tracker.WaitForDependencies(a, models.NewPreHashSet(b), nil, nil)
	tracker.WaitForDependencies(b, models.NewPreHashSet(c), nil, nil)
	tracker.WaitForDependencies(c, models.NewPreHashSet(a), nil, nil)

	if n := tracker.CycleLength(a); n != -1 {
		t.Fatalf("expected a genuine cycle (-1), got %d", n)
	}

	tracker.DiscardChain(a)
	for _, id := range []models.BlockId{a, b, c} {
		status, ok := statuses.Get(id)
		if !ok || status.Kind != StatusDiscarded || status.DiscardReason != DiscardInvalid {
			t.Errorf("expected %v to be Discarded(invalid), got %+v", id, status)
		}
	}
}

func TestDependencyTrackerNoCycleOnAcyclicChain(t *testing.T) {
	statuses := NewStatusMap(10, 10)
	tracker := NewDependencyTracker(statuses)

	a := idFromByte(1)
	b := idFromByte(2)
	tracker.WaitForDependencies(a, models.NewPreHashSet(b), nil, nil)
	// b has no recorded status at all (genuinely missing, not a cycle).

	if n := tracker.CycleLength(a); n == -1 {
		t.Fatal("expected no cycle for a chain ending at an unknown block")
	}
}
