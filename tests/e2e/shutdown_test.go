package e2e

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/scryhq/ingestor/internal/control"
	"github.com/scryhq/ingestor/internal/core/config"
)

func TestGracefulShutdown(t *testing.T) {
	// No database, queue, or broker: the API alone should start and stop cleanly.
	cfg := config.Default()
	cfg.Server.Port = 18123
	cfg.Retry.Enabled = true

	app, err := control.NewApp(cfg)
	if err != nil {
		t.Fatalf("Failed to create app: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		t.Fatalf("Failed to start app: %v", err)
	}

	// Let the listener come up and verify it answers
	time.Sleep(300 * time.Millisecond)
	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port))
	if err != nil {
		t.Fatalf("Health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Health status = %d, want 200", resp.StatusCode)
	}

	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()

	if err := app.Stop(stopCtx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}

	// The listener should be gone
	_, err = http.Get(fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port))
	if err == nil {
		t.Error("Server still answering after Stop")
	}
}
