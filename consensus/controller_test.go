package consensus

import (
	"context"
	"testing"
	"time"

	"github.com/praizmiky/massa/models"
)

func TestControllerSubmitRespectsContextCancellationOnSend(t *testing.T) {
	// An unbuffered command channel with no worker draining it: the send in
	// submit can never succeed, so a cancelled context must still return
	// promptly instead of blocking forever.
	ctrl := &Controller{cmdCh: make(chan command)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ctrl.GetCliques(ctx)
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestControllerSubmitRespectsContextCancellationOnReply(t *testing.T) {
	// A worker-less channel of capacity 1 accepts the send, but nothing ever
	// replies; a short deadline must still return rather than block.
	ctrl := &Controller{cmdCh: make(chan command, 1)}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := ctrl.GetBlockStatuses(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestControllerSubmitReturnsReplyError(t *testing.T) {
	cmdCh := make(chan command, 1)
	ctrl := &Controller{cmdCh: cmdCh}

	go func() {
		cmd := <-cmdCh
		cmd.reply <- commandReply{err: ErrChannelClosed}
	}()

	_, err := ctrl.GetBestParents(context.Background())
	if err != ErrChannelClosed {
		t.Fatalf("expected ErrChannelClosed surfaced from the reply, got %v", err)
	}
}

func TestControllerSubscribeNewBlocksDeliversPublishedIds(t *testing.T) {
	bc := NewBroadcaster[models.BlockId](1)
	ctrl := &Controller{newBlocks: bc}

	ch, id := ctrl.SubscribeNewBlocks()
	defer ctrl.UnsubscribeNewBlocks(id)

	var want models.BlockId
	want[0] = 9
	bc.Publish(want)

	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("got %v, want %v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscription delivery")
	}
}
