package dataset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"datadesigner/internal/logging"
)

// settleDelay is how long a file must sit unchanged before import, so we
// never read a result file mid-download.
const settleDelay = 500 * time.Millisecond

// Watcher auto-imports result files dropped into the output directory.
type Watcher struct {
	store  *Store
	dir    string
	settle time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher creates a watcher importing files from dir into store.
func NewWatcher(store *Store, dir string) *Watcher {
	return &Watcher{
		store:   store,
		dir:     dir,
		settle:  settleDelay,
		pending: make(map[string]*time.Timer),
	}
}

// importable reports whether a path looks like a result file.
func importable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".json", ".jsonl", ".parquet":
		return true
	}
	return false
}

// Run watches the output directory until the context is cancelled. Each
// create or write event on a result file schedules an import after a
// settle delay; repeated writes push the import back.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return err
	}
	logging.Dataset("watching %s for result files", w.dir)

	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !importable(event.Name) {
				continue
			}
			w.schedule(event.Name)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logging.DatasetError("watch error: %v", err)
		}
	}
}

// schedule arms (or re-arms) the settle timer for a path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		table, err := w.store.ImportFile(path)
		if err != nil {
			logging.DatasetError("auto-import %s failed: %v", path, err)
			return
		}
		logging.Dataset("auto-imported %s as %q", path, table)
	})
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}
