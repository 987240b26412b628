package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "viewer.duckdb"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWatcherImportsDroppedFile(t *testing.T) {
	store := openTestStore(t)
	dir := t.TempDir()

	w := NewWatcher(store, dir)
	w.settle = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Let the watcher register the directory before dropping the file
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, "orders.csv")
	if err := os.WriteFile(path, []byte("id,total\n1,9.99\n2,4.50\n"), 0644); err != nil {
		t.Fatalf("write result file: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		tables, err := store.Tables()
		if err != nil {
			t.Fatalf("list tables: %v", err)
		}
		if len(tables) == 1 && tables[0] == "orders" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("dropped file was never imported, tables: %v", tables)
		}
		time.Sleep(20 * time.Millisecond)
	}

	count, err := store.RowCount("orders")
	if err != nil {
		t.Fatalf("row count: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 imported rows, got %d", count)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled on shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}

func TestWatcherShutdownWithPendingImport(t *testing.T) {
	store := openTestStore(t)
	dir := t.TempDir()

	w := NewWatcher(store, dir)
	// Settle delay long enough that the import is still pending at cancel
	w.settle = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "late.jsonl"), []byte(`{"a":1}`+"\n"), 0644); err != nil {
		t.Fatalf("write result file: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop with a pending import")
	}

	w.mu.Lock()
	pending := len(w.pending)
	w.mu.Unlock()
	if pending != 0 {
		t.Errorf("shutdown left %d pending timers", pending)
	}

	tables, err := store.Tables()
	if err != nil {
		t.Fatalf("list tables: %v", err)
	}
	if len(tables) != 0 {
		t.Errorf("cancelled import still landed: %v", tables)
	}
}
