package consensus

import (
	"context"
	"errors"
	"time"

	"github.com/praizmiky/massa/models"
)

// ErrChannelClosed is returned by a Controller call submitted after the
// worker has stopped (spec.md §7: "ChannelClosed — controller or protocol
// sink gone; worker finalizes and exits cleanly").
var ErrChannelClosed = errors.New("consensus: command channel closed")

// commandKind tags which Worker handler a command dispatches to.
type commandKind int

const (
	cmdRegisterBlockHeader commandKind = iota
	cmdRegisterBlock
	cmdMarkInvalidBlock
	cmdGetBlockStatuses
	cmdGetCliques
	cmdGetLatestFinalBlocks
	cmdGetBootstrapPart
	cmdGetBestParents
	cmdGetBlockGraphStatus
	cmdStop
)

// command is the single envelope type carried on the worker's command
// channel (spec.md §4.9: "wait on command_channel"), built by one of
// Controller's methods and replied to on reply, a channel of capacity 1.
type command struct {
	kind commandKind

	id     models.BlockId
	header *models.BlockHeader
	block  *models.Block
	handle models.StorageHandle
	cursor models.Slot
	start  models.Slot
	end    models.Slot

	reply chan commandReply
}

// commandReply carries back whichever result field matches the command's
// kind, plus an error.
type commandReply struct {
	status     BlockStatus
	statuses   map[models.BlockId]BlockStatus
	cliques    []*models.Clique
	finals     []models.ParentWithPeriod
	graph      models.BootstrapableGraph
	nextCursor models.Slot
	hasMore    bool
	parents    []models.ParentWithPeriod
	blockIDs   []models.BlockId
	err        error
}

// Controller is the non-blocking command-submission handle described in
// spec.md §6: every call enqueues a command on the worker's buffered
// channel, waiting for room if the buffer is full, then blocks on its own
// reply; the caller's ctx bounds both waits (spec.md §5: "any number of
// reader threads").
type Controller struct {
	cmdCh chan command

	newBlocks       *Broadcaster[models.BlockId]
	newBlockHeaders *Broadcaster[models.BlockHeader]
	newFilledBlocks *Broadcaster[FilledBlock]
	missingBlocks   *Broadcaster[models.BlockId]
}

func (c *Controller) submit(ctx context.Context, cmd command) (commandReply, error) {
	select {
	case c.cmdCh <- cmd:
	case <-ctx.Done():
		return commandReply{}, ctx.Err()
	}
	select {
	case reply, ok := <-cmd.reply:
		if !ok {
			return commandReply{}, ErrChannelClosed
		}
		return reply, reply.err
	case <-ctx.Done():
		return commandReply{}, ctx.Err()
	}
}

// RegisterBlockHeader submits a header for validation (spec.md §6).
func (c *Controller) RegisterBlockHeader(ctx context.Context, id models.BlockId, header *models.BlockHeader) (BlockStatus, error) {
	reply, err := c.submit(ctx, command{kind: cmdRegisterBlockHeader, id: id, header: header, reply: make(chan commandReply, 1)})
	return reply.status, err
}

// RegisterBlock submits a full block, with the storage handle keeping its
// bytes alive for the lifetime of the resulting status.
func (c *Controller) RegisterBlock(ctx context.Context, id models.BlockId, block *models.Block, handle models.StorageHandle) (BlockStatus, error) {
	reply, err := c.submit(ctx, command{kind: cmdRegisterBlock, id: id, block: block, handle: handle, reply: make(chan commandReply, 1)})
	return reply.status, err
}

// MarkInvalidBlock forces id to Discarded(invalid).
func (c *Controller) MarkInvalidBlock(ctx context.Context, id models.BlockId) (BlockStatus, error) {
	reply, err := c.submit(ctx, command{kind: cmdMarkInvalidBlock, id: id, reply: make(chan commandReply, 1)})
	return reply.status, err
}

// GetBlockStatuses returns a snapshot of every tracked status.
func (c *Controller) GetBlockStatuses(ctx context.Context) (map[models.BlockId]BlockStatus, error) {
	reply, err := c.submit(ctx, command{kind: cmdGetBlockStatuses, reply: make(chan commandReply, 1)})
	return reply.statuses, err
}

// GetCliques returns a snapshot of the current clique set.
func (c *Controller) GetCliques(ctx context.Context) ([]*models.Clique, error) {
	reply, err := c.submit(ctx, command{kind: cmdGetCliques, reply: make(chan commandReply, 1)})
	return reply.cliques, err
}

// GetLatestFinalBlocks returns latest_final_blocks_periods, one entry per
// thread (spec.md §3).
func (c *Controller) GetLatestFinalBlocks(ctx context.Context) ([]models.ParentWithPeriod, error) {
	reply, err := c.submit(ctx, command{kind: cmdGetLatestFinalBlocks, reply: make(chan commandReply, 1)})
	return reply.finals, err
}

// GetBootstrapPart returns the paginated bootstrap export page starting at
// cursor, plus the cursor for the following page (spec.md §4.8).
func (c *Controller) GetBootstrapPart(ctx context.Context, cursor models.Slot) (models.BootstrapableGraph, models.Slot, bool, error) {
	reply, err := c.submit(ctx, command{kind: cmdGetBootstrapPart, cursor: cursor, reply: make(chan commandReply, 1)})
	return reply.graph, reply.nextCursor, reply.hasMore, err
}

// GetBestParents returns the best parent in each thread within the current
// blockclique, for building the next header (spec.md §4.4, §6).
func (c *Controller) GetBestParents(ctx context.Context) ([]models.ParentWithPeriod, error) {
	reply, err := c.submit(ctx, command{kind: cmdGetBestParents, reply: make(chan commandReply, 1)})
	return reply.parents, err
}

// GetBlockGraphStatus returns the ids of every active block whose slot
// falls in [start, end].
func (c *Controller) GetBlockGraphStatus(ctx context.Context, start, end models.Slot) ([]models.BlockId, error) {
	reply, err := c.submit(ctx, command{kind: cmdGetBlockGraphStatus, start: start, end: end, reply: make(chan commandReply, 1)})
	return reply.blockIDs, err
}

// SubscribeNewBlocks returns a receiver fed one BlockId per block that
// reaches Active (spec.md §6: "subscribe_new_blocks").
func (c *Controller) SubscribeNewBlocks() (<-chan models.BlockId, int) {
	return c.newBlocks.Subscribe()
}

// UnsubscribeNewBlocks releases a subscription obtained from SubscribeNewBlocks.
func (c *Controller) UnsubscribeNewBlocks(id int) { c.newBlocks.Unsubscribe(id) }

// SubscribeNewBlockHeaders returns a receiver fed one BlockHeader per
// accepted header.
func (c *Controller) SubscribeNewBlockHeaders() (<-chan models.BlockHeader, int) {
	return c.newBlockHeaders.Subscribe()
}

// UnsubscribeNewBlockHeaders releases a subscription obtained from
// SubscribeNewBlockHeaders.
func (c *Controller) UnsubscribeNewBlockHeaders(id int) { c.newBlockHeaders.Unsubscribe(id) }

// SubscribeNewFilledBlocks returns a receiver fed one FilledBlock per block
// whose operations are known at activation time.
func (c *Controller) SubscribeNewFilledBlocks() (<-chan FilledBlock, int) {
	return c.newFilledBlocks.Subscribe()
}

// UnsubscribeNewFilledBlocks releases a subscription obtained from
// SubscribeNewFilledBlocks.
func (c *Controller) UnsubscribeNewFilledBlocks(id int) { c.newFilledBlocks.Unsubscribe(id) }

// SubscribeMissingBlocks returns a receiver fed one BlockId per dependency
// discovered missing while resolving a pending header, deduped so a block
// named by several pending headers surfaces only once until it resolves or
// the wishlist is reset. The protocol layer drains this to drive its own
// block-request traffic.
func (c *Controller) SubscribeMissingBlocks() (<-chan models.BlockId, int) {
	return c.missingBlocks.Subscribe()
}

// UnsubscribeMissingBlocks releases a subscription obtained from
// SubscribeMissingBlocks.
func (c *Controller) UnsubscribeMissingBlocks(id int) { c.missingBlocks.Unsubscribe(id) }

// defaultCallTimeout bounds the Controller calls StatsCollector makes on
// each sample, so a wedged worker cannot hang the collector forever.
// Controller itself applies no default timeout: a call's ctx is its only
// bound.
const defaultCallTimeout = 5 * time.Second
