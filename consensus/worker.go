package consensus

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/praizmiky/massa/crypto"
	"github.com/praizmiky/massa/log"
	"github.com/praizmiky/massa/metrics"
	"github.com/praizmiky/massa/models"
)

// Worker is the single owning thread of spec.md §4.9: it holds every piece
// of mutable consensus state and is the only goroutine that ever calls into
// Driver. Everything else — Controller, WSServer — only ever talks to it
// through the command channel or a broadcast subscription.
type Worker struct {
	cfg    *Config
	clock  *Clock
	driver *Driver
	health *HealthTracker

	cmdCh chan command
	done  chan struct{}

	newBlocks       *Broadcaster[models.BlockId]
	newBlockHeaders *Broadcaster[models.BlockHeader]
	newFilledBlocks *Broadcaster[FilledBlock]
	missingBlocks   *Broadcaster[models.BlockId]

	wishlist *Wishlist

	log *log.Logger
}

// WorkerComponents bundles the pieces NewWorker wires together, so callers
// assembling a node (consensus/manager.go, node/node.go) build the
// individual C1-C8 components once and hand them over as a unit.
type WorkerComponents struct {
	Config   *Config
	Clock    *Clock
	Statuses *StatusMap
	Deps     *DependencyTracker
	DAG      *ActiveDAG
	Clique   *CliqueEngine
	Finality *FinalityEngine
	Health   *HealthTracker
}

// NewWorker assembles a Worker and its Controller over the given
// components. The two share the command channel and broadcasters; the
// Controller is the handle every other goroutine uses.
func NewWorker(c WorkerComponents) (*Worker, *Controller) {
	driver := NewDriver(c.Config, c.Clock, c.Statuses, c.Deps, c.DAG, c.Clique, c.Finality)

	w := &Worker{
		cfg:    c.Config,
		clock:  c.Clock,
		driver: driver,
		health: c.Health,
		cmdCh:  make(chan command, c.Config.ChannelSize),
		done:   make(chan struct{}),

		newBlocks:       NewBroadcaster[models.BlockId](c.Config.WsNewBlocksCapacity),
		newBlockHeaders: NewBroadcaster[models.BlockHeader](c.Config.WsNewBlockHeadersCapacity),
		newFilledBlocks: NewBroadcaster[FilledBlock](c.Config.WsNewFilledBlocksCapacity),
		missingBlocks:   NewBroadcaster[models.BlockId](int(c.Config.MaxFutureProcessingBlocks)),

		wishlist: NewWishlist(c.Config.MaxFutureProcessingBlocks),

		log: log.Default().Module("consensus.worker"),
	}

	driver.OnActive(w.publishActive)
	driver.OnMissingBlock(w.publishMissing)

	ctrl := &Controller{
		cmdCh:           w.cmdCh,
		newBlocks:       w.newBlocks,
		newBlockHeaders: w.newBlockHeaders,
		newFilledBlocks: w.newFilledBlocks,
		missingBlocks:   w.missingBlocks,
	}
	return w, ctrl
}

// publishMissing forwards a newly-discovered missing dependency to the
// protocol layer's wishlist sink, deduped through the bloom filter so a
// block referenced by several pending headers is requested only once.
func (w *Worker) publishMissing(id models.BlockId) {
	if w.wishlist.ShouldRequest(id) {
		w.missingBlocks.Publish(id)
		metrics.MissingBlocksRequested.Inc()
	}
}

// publishActive feeds the three broadcast sinks after a block joins the
// active DAG (spec.md §4.9: "Broadcast sinks... are fed inside handle
// after successful state mutation").
func (w *Worker) publishActive(ab *models.ActiveBlock, header *models.BlockHeader, operations [][]byte) {
	w.newBlocks.Publish(ab.BlockId)
	if header != nil {
		w.newBlockHeaders.Publish(*header)
		if operations != nil {
			w.newFilledBlocks.Publish(FilledBlock{Header: *header, Operations: operations})
		}
	}
	if ab.IsFinal {
		metrics.FinalBlocks.Inc()
		if w.health != nil {
			w.health.RecordFinal(time.Now())
		}
	}
}

// Run executes the worker loop of spec.md §4.9 until Stop is requested or
// the command channel is closed. It is meant to run on its own goroutine;
// Manager.Start launches it.
func (w *Worker) Run() {
	defer close(w.done)
	defer w.newBlocks.Close()
	defer w.newBlockHeaders.Close()
	defer w.newFilledBlocks.Close()
	defer w.missingBlocks.Close()

	current, ok, err := w.clock.CurrentSlot(time.Now())
	if err != nil {
		w.fatal(err)
		return
	}
	if !ok {
		current = models.NewSlot(0, 0)
	}

	for {
		next := nextSlot(current, w.cfg.ThreadCount)
		deadlineAt, err := w.clock.SlotInstant(next)
		if err != nil {
			w.fatal(err)
			return
		}

		timer := time.NewTimer(time.Until(deadlineAt))
		stop := w.waitForCommandOrDeadline(timer)
		timer.Stop()
		if stop {
			return
		}

		now := time.Now()
		if !now.Before(deadlineAt) {
			tickCurrent, ok, err := w.clock.CurrentSlot(now)
			if err != nil {
				w.fatal(err)
				return
			}
			if ok {
				current = tickCurrent
			} else {
				current = next
			}
			w.tick(current, now)
		}
	}
}

// waitForCommandOrDeadline services at most one command (re-checking the
// deadline isn't needed between multiple queued commands: each loop
// iteration drains exactly one, matching spec.md's "if command: handle it;
// re-check deadline" by simply looping back to the top). Returns true if
// the worker should stop.
func (w *Worker) waitForCommandOrDeadline(timer *time.Timer) bool {
	select {
	case cmd, ok := <-w.cmdCh:
		if !ok {
			return true
		}
		if cmd.kind == cmdStop {
			close(cmd.reply)
			return true
		}
		w.handle(cmd)
		return false
	case <-timer.C:
		return false
	}
}

// tick advances current_slot, drains slot-waiters and runs the periodic
// pruning/finality sweep (spec.md §4.9).
func (w *Worker) tick(current models.Slot, now time.Time) {
	for _, status := range w.driver.deps.DrainReadySlots(current) {
		if status.Header == nil {
			continue
		}
		id, err := headerIDOf(status.Header, w.cfg.ThreadCount)
		if err != nil {
			continue
		}
		var ops [][]byte
		if status.Block != nil {
			ops = status.Block.Operations
		}
		w.driver.register(id, status.Header, ops, status.Handle, now)
	}
	w.driver.finality.Advance()
}

// handle dispatches one command to the Driver and replies, matching
// spec.md §4.9's "All mutation happens inside handle".
func (w *Worker) handle(cmd command) {
	reply := commandReply{}
	now := time.Now()
	metrics.CommandsProcessed.Inc()
	metrics.CommandQueueDepth.Set(int64(len(w.cmdCh)))

	switch cmd.kind {
	case cmdRegisterBlockHeader:
		start := time.Now()
		reply.status, reply.err = w.driver.RegisterBlockHeader(cmd.id, cmd.header, now)
		metrics.BlockProcessTime.Observe(float64(time.Since(start).Milliseconds()))
	case cmdRegisterBlock:
		start := time.Now()
		reply.status, reply.err = w.driver.RegisterBlock(cmd.id, cmd.block, cmd.handle, now)
		metrics.BlockProcessTime.Observe(float64(time.Since(start).Milliseconds()))
	case cmdMarkInvalidBlock:
		reply.status = w.driver.MarkInvalidBlock(cmd.id)
		metrics.DiscardedBlocks.Inc()
	case cmdGetBlockStatuses:
		reply.statuses = w.snapshotStatuses()
	case cmdGetCliques:
		reply.cliques = w.driver.clique.Cliques()
	case cmdGetLatestFinalBlocks:
		reply.finals = w.latestFinals()
	case cmdGetBootstrapPart:
		bs := NewBootstrap(w.driver.dag, w.driver.statuses, w.cfg.ThreadCount, w.cfg.BootstrapPartSize)
		reply.graph, reply.nextCursor, reply.hasMore, reply.err = bs.ExportPart(cmd.cursor)
		if reply.err == nil {
			metrics.BootstrapPartsServed.Inc()
		}
	case cmdGetBestParents:
		reply.parents = w.driver.dag.BestParents(w.driver.clique.Blockclique())
	case cmdGetBlockGraphStatus:
		reply.blockIDs = w.blockGraphStatus(cmd.start, cmd.end)
	default:
		reply.err = ErrChannelClosed
	}

	select {
	case cmd.reply <- reply:
	default:
	}
	close(cmd.reply)
}

func (w *Worker) snapshotStatuses() map[models.BlockId]BlockStatus {
	out := make(map[models.BlockId]BlockStatus)
	for _, kind := range []StatusKind{StatusIncoming, StatusWaitingForSlot, StatusWaitingForDependencies, StatusActive, StatusDiscarded} {
		for _, id := range w.driver.statuses.IDsByKind(kind) {
			if status, ok := w.driver.statuses.Get(id); ok {
				out[id] = status
			}
		}
	}
	return out
}

func (w *Worker) latestFinals() []models.ParentWithPeriod {
	out := make([]models.ParentWithPeriod, w.cfg.ThreadCount)
	for t := uint8(0); t < w.cfg.ThreadCount; t++ {
		out[t] = models.ParentWithPeriod{Period: w.driver.dag.LatestFinalPeriod(t)}
	}
	return out
}

func (w *Worker) blockGraphStatus(start, end models.Slot) []models.BlockId {
	var out []models.BlockId
	for _, id := range w.driver.statuses.IDsByKind(StatusActive) {
		ab, ok := w.driver.dag.Get(id)
		if !ok {
			continue
		}
		if !ab.Slot.Before(start) && !ab.Slot.After(end) {
			out = append(out, id)
		}
	}
	return out
}

// fatal reports an unrecoverable error (spec.md §7: ClockOverflow /
// ConfigError are fatal at startup/runtime) to Sentry and the log, then
// lets Run return so Manager can observe the worker has stopped.
func (w *Worker) fatal(err error) {
	sentry.CaptureException(err)
	w.log.Error("consensus worker stopped on fatal error", "error", err)
}

// headerIDOf recomputes a header's content hash, used when replaying a
// released WaitingForSlot/WaitingForDependencies entry that was stored by
// header rather than by id.
func headerIDOf(header *models.BlockHeader, threadCount uint8) (models.BlockId, error) {
	return crypto.HashBlockHeader(header, threadCount)
}

// nextSlot returns the slot immediately following s in the total (period,
// thread) order, wrapping to the next period after the last thread.
func nextSlot(s models.Slot, threadCount uint8) models.Slot {
	if s.Thread+1 >= threadCount {
		return models.NewSlot(s.Period+1, 0)
	}
	return models.NewSlot(s.Period, s.Thread+1)
}
