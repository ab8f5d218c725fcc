package node

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/praizmiky/massa/consensus"
	"github.com/praizmiky/massa/log"
)

// Node is the top-level massa-node process. It owns a consensus.Manager and
// Controller (the consensus graph core assembled by consensus.New) plus the
// supporting websocket and health surfaces, and drives their startup and
// shutdown through a LifecycleManager.
type Node struct {
	config *Config

	mgr  *consensus.Manager
	ctrl *consensus.Controller

	wsServer *consensus.WSServer
	wsHTTP   *http.Server

	health    *HealthChecker
	lifecycle *LifecycleManager

	mu      sync.Mutex
	running bool
	stop    chan struct{}

	log *log.Logger
}

// New creates a Node from config, assembling the consensus graph core via
// consensus.New (consensus/manager.go). A nil config uses DefaultConfig().
func New(config *Config) (*Node, error) {
	if config == nil {
		c := DefaultConfig()
		config = &c
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := config.InitDataDir(); err != nil {
		return nil, fmt.Errorf("init datadir: %w", err)
	}

	mgr, ctrl, ws, err := consensus.New(&config.Config)
	if err != nil {
		return nil, fmt.Errorf("init consensus: %w", err)
	}

	n := &Node{
		config:   config,
		mgr:      mgr,
		ctrl:     ctrl,
		wsServer: ws,
		stop:     make(chan struct{}),
		log:      log.Default().Module("node"),
	}

	n.health = NewHealthChecker()
	n.health.RegisterSubsystem("consensus", NewConsensusChecker(ctrl, nil))

	n.lifecycle = NewLifecycleManager(DefaultLifecycleConfig())
	if err := n.lifecycle.Register(consensusService{mgr: mgr}, 0); err != nil {
		return nil, fmt.Errorf("register consensus service: %w", err)
	}

	return n, nil
}

// consensusService adapts consensus.Manager to the node package's Service
// interface (node/lifecycle.go) so LifecycleManager can start/stop it
// alongside any other registered services in priority order.
type consensusService struct {
	mgr *consensus.Manager
}

func (s consensusService) Name() string { return "consensus" }
func (s consensusService) Start() error { s.mgr.Start(); return nil }
func (s consensusService) Stop() error  { return s.mgr.Stop(defaultShutdownTimeout) }

const defaultShutdownTimeout = 30 * time.Second

// Start starts the consensus worker loop and, when ws_enabled, the
// websocket server.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running {
		return errors.New("node already running")
	}

	n.log.Info("starting massa-node", "thread_count", n.config.ThreadCount, "t0_ms", n.config.T0)

	if errs := n.lifecycle.StartAll(); len(errs) > 0 {
		return fmt.Errorf("start services: %v", errs)
	}

	if n.config.WsEnabled && n.config.WSListenAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/ws/new_blocks", n.wsServer.ServeNewBlocks)
		mux.HandleFunc("/ws/new_block_headers", n.wsServer.ServeNewBlockHeaders)
		mux.HandleFunc("/ws/new_filled_blocks", n.wsServer.ServeNewFilledBlocks)
		mux.HandleFunc("/ws/missing_blocks", n.wsServer.ServeMissingBlocks)

		n.wsHTTP = &http.Server{Addr: n.config.WSListenAddr, Handler: mux}
		go func() {
			n.log.Info("websocket server listening", "addr", n.config.WSListenAddr)
			if err := n.wsHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				n.log.Error("websocket server stopped", "error", err)
			}
		}()
	}

	n.running = true
	n.log.Info("massa-node started")
	return nil
}

// Stop gracefully shuts down the node's services in reverse priority order.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.running {
		return nil
	}

	n.log.Info("stopping massa-node")

	if n.wsHTTP != nil {
		if err := n.wsHTTP.Close(); err != nil {
			n.log.Warn("websocket server close error", "error", err)
		}
		n.wsHTTP = nil
	}

	if errs := n.lifecycle.StopAll(); len(errs) > 0 {
		n.log.Warn("errors stopping services", "errors", errs)
	}

	n.running = false
	close(n.stop)
	n.log.Info("massa-node stopped")
	return nil
}

// Wait blocks until the node is stopped.
func (n *Node) Wait() {
	<-n.stop
}

// Controller returns the handle for submitting commands to the consensus
// graph core (spec.md §6).
func (n *Node) Controller() *consensus.Controller {
	return n.ctrl
}

// Health returns the node's subsystem health aggregator.
func (n *Node) Health() *HealthChecker {
	return n.health
}

// Config returns the node configuration.
func (n *Node) Config() *Config {
	return n.config
}

// Running reports whether the node is currently running.
func (n *Node) Running() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}
