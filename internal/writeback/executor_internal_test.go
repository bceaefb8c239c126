package writeback

import (
	"context"
	"path/filepath"
	"testing"

	"lingotool/internal/lang"
	"lingotool/internal/logging"
	"lingotool/internal/patch"
	"lingotool/internal/quality"
	"lingotool/internal/testsupport"
)

func TestCurrentContentHashHonorsCancellation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	containerID := testsupport.NewContainer(t, store,
		filepath.Join(testsupport.BaseDir(cfg), "mod.jar"), "swordmod")

	exec := NewExecutor(store, patch.NewService(store, quality.NewGate(cfg), nil), cfg, logging.NewNop())
	item := &patch.Item{
		ID:                "item-1",
		TargetContainerID: containerID,
		Namespace:         "swordmod",
		Locale:            "de_de",
		Policy:            patch.PolicyOverlay,
		Content:           lang.Entries{"item.sword": "Schwert"},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The overlay branch resolves the container's artifact through the
	// store; a cancelled context must abort that lookup.
	if _, err := exec.currentContentHash(ctx, item, ""); err == nil {
		t.Fatal("expected cancelled context to abort the artifact lookup")
	}
}
