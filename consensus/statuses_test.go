package consensus

import (
	"testing"

	"github.com/praizmiky/massa/models"
)

func TestDiscardReasonString(t *testing.T) {
	tests := []struct {
		r    DiscardReason
		want string
	}{
		{DiscardInvalid, "invalid"},
		{DiscardStale, "stale"},
		{DiscardAttack, "attack"},
		{DiscardReason(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.r.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestBlockStatusConstructors(t *testing.T) {
	header := &models.BlockHeader{}
	incoming := NewIncomingStatus(header, nil)
	if incoming.Kind != StatusIncoming || incoming.Header != header {
		t.Error("NewIncomingStatus did not set fields correctly")
	}

	slot := models.NewSlot(1, 0)
	waitingSlot := NewWaitingForSlotStatus(slot, nil, nil)
	if waitingSlot.Kind != StatusWaitingForSlot || waitingSlot.WaitingSlot != slot {
		t.Error("NewWaitingForSlotStatus did not set fields correctly")
	}

	missing := models.NewPreHashSet()
	waitingDeps := NewWaitingForDependenciesStatus(missing, 7, nil, nil)
	if waitingDeps.Kind != StatusWaitingForDependencies || waitingDeps.Sequence != 7 {
		t.Error("NewWaitingForDependenciesStatus did not set fields correctly")
	}

	ab := models.NewActiveBlock(2)
	active := NewActiveStatus(ab)
	if active.Kind != StatusActive || active.Active != ab {
		t.Error("NewActiveStatus did not set fields correctly")
	}

	discarded := NewDiscardedStatus(DiscardStale, 3)
	if discarded.Kind != StatusDiscarded || discarded.DiscardReason != DiscardStale {
		t.Error("NewDiscardedStatus did not set fields correctly")
	}
}

func TestBlockStatusIsTerminal(t *testing.T) {
	discarded := NewDiscardedStatus(DiscardInvalid, 1)
	if !discarded.IsTerminal() {
		t.Error("Discarded status should be terminal")
	}

	nonFinalActive := NewActiveStatus(models.NewActiveBlock(2))
	if nonFinalActive.IsTerminal() {
		t.Error("non-final Active status should not be terminal")
	}

	finalActive := models.NewActiveBlock(2)
	finalActive.IsFinal = true
	if !NewActiveStatus(finalActive).IsTerminal() {
		t.Error("final Active status should be terminal")
	}

	waiting := NewWaitingForSlotStatus(models.NewSlot(0, 0), nil, nil)
	if waiting.IsTerminal() {
		t.Error("WaitingForSlot status should not be terminal")
	}
}
