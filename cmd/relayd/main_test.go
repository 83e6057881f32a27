package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func TestWaitForShutdownReturnsListenerError(t *testing.T) {
	serveErr := make(chan error, 1)
	serveErr <- errors.New("listen tcp :8080: address already in use")
	if err := waitForShutdown(serveErr, make(chan os.Signal)); err == nil || err.Error() != "listen tcp :8080: address already in use" {
		t.Fatalf("expected listener error, got %v", err)
	}

	closed := make(chan error)
	close(closed)
	if err := waitForShutdown(closed, make(chan os.Signal)); err == nil {
		t.Fatal("a listener that stops without error should still be reported")
	}
}

func TestWaitForShutdownOnSignal(t *testing.T) {
	sigs := make(chan os.Signal, 1)
	sigs <- syscall.SIGTERM
	if err := waitForShutdown(make(chan error), sigs); err != nil {
		t.Fatalf("signal should shut down cleanly, got %v", err)
	}
}

func TestOpenRecordStoreDefaultsToSQLite(t *testing.T) {
	store, err := openRecordStore(context.Background(), filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	defer store.Close()
	if err := store.PingContext(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
