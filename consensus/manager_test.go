package consensus

import (
	"context"
	"testing"
	"time"

	"github.com/praizmiky/massa/crypto"
	"github.com/praizmiky/massa/models"
)

func managerTestConfig() *Config {
	cfg := DefaultConfig()
	cfg.ThreadCount = 1
	cfg.T0 = 50
	cfg.GenesisTimestamp = uint64(time.Now().UnixMilli())
	return cfg
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ThreadCount = 0
	if _, _, _, err := New(cfg); err == nil {
		t.Fatal("expected New to reject a config with ThreadCount == 0")
	}
}

func TestManagerRunsAndStopsCleanly(t *testing.T) {
	cfg := managerTestConfig()
	mgr, ctrl, ws, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if ws == nil {
		t.Fatal("expected a non-nil WSServer")
	}
	mgr.Start()

	priv, _ := crypto.GeneratePrivateKey()
	header := &models.BlockHeader{
		CreatorPublicKey: priv.PublicKey(),
		Slot:             models.NewSlot(0, 0),
		HasParents:       false,
	}
	signingHash, err := crypto.HeaderSigningHash(header, cfg.ThreadCount)
	if err != nil {
		t.Fatalf("HeaderSigningHash: %v", err)
	}
	header.Signature, err = crypto.Sign(priv, signingHash)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	id, err := crypto.HashBlockHeader(header, cfg.ThreadCount)
	if err != nil {
		t.Fatalf("HashBlockHeader: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	status, err := ctrl.RegisterBlockHeader(ctx, id, header)
	if err != nil {
		t.Fatalf("RegisterBlockHeader: %v", err)
	}
	if status.Kind != StatusActive {
		t.Fatalf("expected genesis header to activate, got %v", status.Kind)
	}

	if err := mgr.Stop(2 * time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestManagerStopTimesOutWhenWorkerNeverStarted(t *testing.T) {
	cfg := managerTestConfig()
	mgr, _, _, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Worker.Run was never launched, so nothing ever drains the command
	// channel or closes done; Stop must bound its wait rather than hang.
	if err := mgr.Stop(50 * time.Millisecond); err == nil {
		t.Fatal("expected Stop to time out when the worker goroutine never ran")
	}
}
