package node

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected log level info, got %s", cfg.LogLevel)
	}
	if cfg.WsEnabled {
		t.Error("expected ws disabled by default")
	}

	home, err := os.UserHomeDir()
	if err == nil {
		want := filepath.Join(home, ".massa-node")
		if cfg.DataDir != want {
			t.Errorf("expected DataDir %q, got %q", want, cfg.DataDir)
		}
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid default", modify: func(c *Config) {}, wantErr: false},
		{name: "empty datadir", modify: func(c *Config) { c.DataDir = "" }, wantErr: true},
		{name: "invalid log level", modify: func(c *Config) { c.LogLevel = "verbose" }, wantErr: true},
		{name: "zero thread count", modify: func(c *Config) { c.ThreadCount = 0 }, wantErr: true},
		{
			name: "ws enabled without listen addr",
			modify: func(c *Config) {
				c.WsEnabled = true
				c.WSListenAddr = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func testNodeConfig(t *testing.T) *Config {
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.ThreadCount = 1
	return &cfg
}

func TestNewNode(t *testing.T) {
	cfg := testNodeConfig(t)

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if n.Controller() == nil {
		t.Error("controller should not be nil")
	}
	if n.Config().ThreadCount != 1 {
		t.Errorf("expected thread count 1, got %d", n.Config().ThreadCount)
	}
}

func TestNewNode_NilConfig(t *testing.T) {
	n, err := New(nil)
	if err != nil {
		t.Fatalf("New(nil) error: %v", err)
	}
	if n.Config().LogLevel != "info" {
		t.Errorf("expected info, got %s", n.Config().LogLevel)
	}
}

func TestNewNode_InvalidConfig(t *testing.T) {
	cfg := testNodeConfig(t)
	cfg.ThreadCount = 0
	_, err := New(cfg)
	if err == nil {
		t.Fatal("expected error for invalid config")
	}
}

func TestNode_StartStop(t *testing.T) {
	cfg := testNodeConfig(t)

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := n.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if err := n.Start(); err == nil {
		t.Error("expected error on double start")
	}

	if err := n.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
}

func TestNode_StopWithoutStart(t *testing.T) {
	cfg := testNodeConfig(t)

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := n.Stop(); err != nil {
		t.Fatalf("Stop() on non-started node should not error: %v", err)
	}
}

func TestNode_DoubleStop(t *testing.T) {
	cfg := testNodeConfig(t)

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if err := n.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := n.Stop(); err != nil {
		t.Fatalf("first Stop() error: %v", err)
	}
	if err := n.Stop(); err != nil {
		t.Fatalf("second Stop() should not error: %v", err)
	}
}

func TestNode_Running(t *testing.T) {
	cfg := testNodeConfig(t)

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if n.Running() {
		t.Error("node should not be running before Start()")
	}
	if err := n.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if !n.Running() {
		t.Error("node should be running after Start()")
	}
	if err := n.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if n.Running() {
		t.Error("node should not be running after Stop()")
	}
}

func TestNode_HealthReflectsConsensus(t *testing.T) {
	cfg := testNodeConfig(t)

	n, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := n.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer n.Stop()

	report := n.Health().CheckAll()
	status, err := n.Health().CheckSubsystem("consensus")
	if err != nil {
		t.Fatalf("CheckSubsystem(consensus): %v", err)
	}
	if status.Status != StatusHealthy {
		t.Errorf("expected consensus subsystem healthy, got %v: %s", status.Status, status.Message)
	}
	if len(report.Subsystems) != 1 {
		t.Errorf("expected 1 subsystem in report, got %d", len(report.Subsystems))
	}
}

func TestInitDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "massa-node-test")

	cfg := DefaultConfig()
	cfg.DataDir = dir

	if err := cfg.InitDataDir(); err != nil {
		t.Fatalf("InitDataDir() error: %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("datadir not created: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("datadir is not a directory")
	}

	for _, sub := range dataDirSubdirs {
		subpath := filepath.Join(dir, sub)
		info, err := os.Stat(subpath)
		if err != nil {
			t.Errorf("subdir %q not created: %v", sub, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("subdir %q is not a directory", sub)
		}
	}
}

func TestInitDataDir_Idempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "massa-node-test")

	cfg := DefaultConfig()
	cfg.DataDir = dir

	if err := cfg.InitDataDir(); err != nil {
		t.Fatalf("first InitDataDir() error: %v", err)
	}

	marker := filepath.Join(dir, "blocks", "marker")
	if err := os.WriteFile(marker, []byte("test"), 0600); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	if err := cfg.InitDataDir(); err != nil {
		t.Fatalf("second InitDataDir() error: %v", err)
	}

	if _, err := os.Stat(marker); err != nil {
		t.Errorf("marker file removed after second init: %v", err)
	}
}

func TestInitDataDir_EmptyPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = ""
	if err := cfg.InitDataDir(); err == nil {
		t.Fatal("expected error for empty datadir")
	}
}

func TestConfig_ResolvePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/data/massa-node"

	got := cfg.ResolvePath("blocks")
	want := "/data/massa-node/blocks"
	if got != want {
		t.Errorf("ResolvePath(blocks) = %q, want %q", got, want)
	}

	got = cfg.ResolvePath("/absolute/path")
	want = "/absolute/path"
	if got != want {
		t.Errorf("ResolvePath(/absolute/path) = %q, want %q", got, want)
	}
}
