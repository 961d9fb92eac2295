// Package ingest discovers documents in a watched directory, hands each
// one to the pipeline exactly once, and disposes of the result: succeeded
// documents move to the archive and their transaction is persisted,
// quarantined ones stay where they are for a human to look at.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ledgerscan/constants"
	"ledgerscan/internal/document"
	"ledgerscan/internal/store"
)

// Orchestrator is the slice of the pipeline the watcher depends on.
type Orchestrator interface {
	ProcessDocument(ctx context.Context, src document.SourceDocument) document.Outcome
}

type Config struct {
	WatchDir    string
	ArchiveDir  string
	AllowedExts map[string]struct{} // lowercase, without '.'
	Debounce    time.Duration       // coalesce write bursts before submitting
}

// Watcher owns discovery and disposal. Processing itself happens on the
// queue's workers.
type Watcher struct {
	cfg       Config
	logger    *slog.Logger
	processor Orchestrator
	txStore   store.TransactionStore
	queue     *Queue

	fsw *fsnotify.Watcher

	mu   sync.Mutex
	seen map[string]struct{}

	wg sync.WaitGroup
}

func NewWatcher(cfg Config, processor Orchestrator, txStore store.TransactionStore, logger *slog.Logger, opts ...QueueOption) (*Watcher, error) {
	if cfg.WatchDir == "" {
		return nil, fmt.Errorf("watch directory not configured")
	}
	if cfg.ArchiveDir == "" {
		return nil, fmt.Errorf("archive directory not configured")
	}
	if cfg.AllowedExts == nil {
		cfg.AllowedExts = constants.AllowedExtensions
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{
		cfg:       cfg,
		logger:    logger,
		processor: processor,
		txStore:   txStore,
		seen:      make(map[string]struct{}),
	}
	w.queue = NewQueue(w.handle, logger, opts...)
	return w, nil
}

// Start begins watching the configured directory. The watch is not
// recursive: subdirectories (including the archive, if nested) are
// ignored.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.cfg.ArchiveDir, 0o755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Error("failed to create fsnotify watcher", "error", err)
		return err
	}
	if err := fsw.Add(w.cfg.WatchDir); err != nil {
		w.logger.Error("failed to watch directory", "dir", w.cfg.WatchDir, "error", err)
		fsw.Close()
		return err
	}
	w.fsw = fsw

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer fsw.Close()

		var timer *time.Timer
		var pendingMu sync.Mutex
		pending := map[string]struct{}{}

		submitPending := func() {
			pendingMu.Lock()
			defer pendingMu.Unlock()
			for p := range pending {
				w.submit(p)
				delete(pending, p)
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-fsw.Events:
				if !ok {
					return
				}
				if !w.eligible(e.Name) {
					continue
				}
				if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				pendingMu.Lock()
				pending[e.Name] = struct{}{}
				pendingMu.Unlock()
				if w.cfg.Debounce > 0 {
					if timer != nil {
						timer.Stop()
					}
					timer = time.AfterFunc(w.cfg.Debounce, submitPending)
				} else {
					submitPending()
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.logger.Error("watcher error", "error", err)
			}
		}
	}()

	w.logger.Info("ingest.watching", "dir", w.cfg.WatchDir, "archive", w.cfg.ArchiveDir)
	return nil
}

// ProcessExisting scans the top level of the watch directory and submits
// every eligible file that has not been submitted before. It returns the
// number submitted.
func (w *Watcher) ProcessExisting(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(w.cfg.WatchDir)
	if err != nil {
		return 0, fmt.Errorf("scan watch directory: %w", err)
	}
	submitted := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return submitted, ctx.Err()
		}
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.cfg.WatchDir, entry.Name())
		if !w.eligible(path) {
			continue
		}
		if w.submit(path) {
			submitted++
		}
	}
	w.logger.Info("ingest.initial_scan", "dir", w.cfg.WatchDir, "submitted", submitted)
	return submitted, nil
}

// Stop halts discovery and drains the worker pool.
func (w *Watcher) Stop(ctx context.Context) {
	if w.fsw != nil {
		w.fsw.Close()
	}
	w.wg.Wait()
	w.queue.Shutdown(ctx)
}

func (w *Watcher) eligible(path string) bool {
	ext := constants.NormalizeExt(filepath.Ext(path))
	_, ok := w.cfg.AllowedExts[ext]
	if !ok {
		return false
	}
	// Hidden and partial files never enter the pipeline.
	base := filepath.Base(path)
	return !strings.HasPrefix(base, ".")
}

// submit hands a path to the workers at most once per watcher lifetime.
func (w *Watcher) submit(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	w.mu.Lock()
	if _, dup := w.seen[abs]; dup {
		w.mu.Unlock()
		return false
	}
	w.seen[abs] = struct{}{}
	w.mu.Unlock()
	return w.queue.Enqueue(Job{Path: abs})
}

// forget makes a path eligible for rediscovery after a transient failure.
func (w *Watcher) forget(path string) {
	w.mu.Lock()
	delete(w.seen, path)
	w.mu.Unlock()
}

// handle runs on a queue worker: process one document and dispose of the
// outcome.
func (w *Watcher) handle(ctx context.Context, job Job) {
	info, err := os.Stat(job.Path)
	if err != nil {
		// Vanished between discovery and processing.
		w.logger.Warn("ingest.file_vanished", "path", job.Path, "error", err)
		w.forget(job.Path)
		return
	}
	if info.IsDir() {
		return
	}

	out := w.processor.ProcessDocument(ctx, document.SourceDocument{
		Path:         job.Path,
		Size:         info.Size(),
		Format:       constants.MapExtToFormat(constants.NormalizeExt(filepath.Ext(job.Path))),
		DiscoveredAt: time.Now(),
	})

	switch out.Kind {
	case document.OutcomeSucceeded:
		w.dispose(ctx, job.Path, out.Transaction)
	case document.OutcomeTransient:
		w.logger.Warn("ingest.transient_failure", "path", job.Path, "reason", out.Reason)
		w.forget(job.Path)
	case document.OutcomeQuarantined:
		// Left in place on purpose; no automatic retry.
		w.logger.Error("ingest.quarantined", "path", job.Path, "reason", out.Reason)
	}
}

// dispose archives a succeeded document and persists its transaction.
// The archive move happens first so a crash cannot double-process; a
// store failure afterwards is logged with the full payload for manual
// re-entry.
func (w *Watcher) dispose(ctx context.Context, path string, tx *document.ValidatedTransaction) {
	archived, err := w.archive(path)
	if err != nil {
		w.logger.Error("ingest.archive_failed", "path", path, "error", err)
		return
	}
	if w.txStore == nil {
		w.logger.Info("ingest.archived", "path", path, "archived_path", archived)
		return
	}
	id, err := w.txStore.Create(ctx, tx, archived)
	if err != nil {
		w.logger.Error("ingest.store_failed",
			"archived_path", archived,
			"error", err,
			"document_class", string(tx.DocumentClass),
			"direction", string(tx.Direction),
			"date", tx.Date,
			"amount", tx.Amount,
			"tax_amount", tx.TaxAmount,
			"counterparty", tx.Counterparty,
			"category", tx.Category,
		)
		return
	}
	w.logger.Info("ingest.archived", "path", path, "archived_path", archived, "transaction_id", id)
}

// archive moves a processed file into the archive directory under a
// timestamped name, appending a counter on collision.
func (w *Watcher) archive(path string) (string, error) {
	stamp := time.Now().UTC().Format("20060102T150405")
	base := filepath.Base(path)
	target := filepath.Join(w.cfg.ArchiveDir, stamp+"_"+base)
	for i := 1; ; i++ {
		if _, err := os.Stat(target); os.IsNotExist(err) {
			break
		}
		target = filepath.Join(w.cfg.ArchiveDir, fmt.Sprintf("%s_%d_%s", stamp, i, base))
	}
	if err := os.Rename(path, target); err != nil {
		return "", err
	}
	return target, nil
}
