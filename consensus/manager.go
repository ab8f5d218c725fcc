package consensus

import (
	"fmt"
	"time"
)

// Manager owns the Worker's lifecycle: starting its goroutine and
// orchestrating its shutdown (spec.md §5: "the manager sends a Stop
// sentinel on the command channel; the worker finishes the in-flight
// command, emits a final snapshot, then joins").
type Manager struct {
	worker *Worker
}

// NewManager wraps worker for lifecycle management.
func NewManager(worker *Worker) *Manager {
	return &Manager{worker: worker}
}

// Start launches the worker loop on its own goroutine. Safe to call once;
// calling it twice starts two competing loops over the same state and is a
// caller error.
func (m *Manager) Start() {
	go m.worker.Run()
}

// Stop sends the Stop sentinel and blocks until the worker goroutine has
// exited or timeout elapses (spec.md §5).
func (m *Manager) Stop(timeout time.Duration) error {
	reply := make(chan commandReply, 1)
	select {
	case m.worker.cmdCh <- command{kind: cmdStop, reply: reply}:
	case <-time.After(timeout):
		return ErrChannelClosed
	}
	select {
	case <-m.worker.done:
		return nil
	case <-time.After(timeout):
		return ErrChannelClosed
	}
}

// New assembles every C1-C9 component from cfg and returns the Manager,
// Controller, and WSServer a node wires into its protocol layer, RPC
// surface, and websocket listener. This is the single entry point
// node/node.go uses to stand up the consensus graph core.
func New(cfg *Config) (*Manager, *Controller, *WSServer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("consensus: invalid config: %w", err)
	}

	clock := NewClock(cfg)
	statuses := NewStatusMap(cfg.MaxDiscardedBlocks, cfg.MaxDependencyBlocks)
	deps := NewDependencyTracker(statuses)
	dag := NewActiveDAG(cfg.ThreadCount)
	clique := NewCliqueEngine(dag, cfg.ThreadCount, cfg.MaxCliqueCount)
	health := NewHealthTracker(cfg)

	finality := NewFinalityEngine(dag, clique, statuses, deps, cfg.DeltaF0, cfg.ForceKeepFinalPeriods, nil)

	worker, ctrl := NewWorker(WorkerComponents{
		Config:   cfg,
		Clock:    clock,
		Statuses: statuses,
		Deps:     deps,
		DAG:      dag,
		Clique:   clique,
		Finality: finality,
		Health:   health,
	})

	return NewManager(worker), ctrl, NewWSServer(worker), nil
}
