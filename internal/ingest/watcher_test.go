package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ledgerscan/constants"
	"ledgerscan/internal/document"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubOrchestrator struct {
	mu      sync.Mutex
	outcome func(path string) document.Outcome
	paths   []string
}

func (s *stubOrchestrator) ProcessDocument(_ context.Context, src document.SourceDocument) document.Outcome {
	s.mu.Lock()
	s.paths = append(s.paths, src.Path)
	s.mu.Unlock()
	return s.outcome(src.Path)
}

func (s *stubOrchestrator) processed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

func alwaysSucceed(string) document.Outcome {
	return document.Succeeded(&document.ValidatedTransaction{
		DocumentClass: constants.ClassReceipt,
		Direction:     constants.DirectionExpense,
		Date:          "2024-04-02",
		Amount:        10,
	})
}

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func newTestWatcher(t *testing.T, watchDir, archiveDir string, orch Orchestrator) *Watcher {
	t.Helper()
	w, err := NewWatcher(Config{
		WatchDir:   watchDir,
		ArchiveDir: archiveDir,
	}, orch, nil, quietLogger(), WithWorkers(2))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	return w
}

func archivedCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

func TestProcessExisting_SubmitsEligibleFilesOnce(t *testing.T) {
	watchDir := t.TempDir()
	archiveDir := t.TempDir()
	writeFile(t, watchDir, "a.pdf")
	writeFile(t, watchDir, "b.png")
	writeFile(t, watchDir, "notes.txt")
	writeFile(t, watchDir, ".hidden.pdf")

	orch := &stubOrchestrator{outcome: alwaysSucceed}
	w := newTestWatcher(t, watchDir, archiveDir, orch)

	ctx := context.Background()
	n, err := w.ProcessExisting(ctx)
	if err != nil {
		t.Fatalf("ProcessExisting: %v", err)
	}
	if n != 2 {
		t.Fatalf("submitted = %d, want 2", n)
	}

	waitFor(t, func() bool { return archivedCount(t, archiveDir) == 2 })

	// Both originals moved out of the watch directory.
	for _, name := range []string{"a.pdf", "b.png"} {
		if _, err := os.Stat(filepath.Join(watchDir, name)); !os.IsNotExist(err) {
			t.Errorf("%s still present in watch dir", name)
		}
	}
	if _, err := os.Stat(filepath.Join(watchDir, "notes.txt")); err != nil {
		t.Errorf("ineligible file should be untouched: %v", err)
	}

	// A second scan finds nothing new: archived files are gone and the
	// seen set guards against double submission anyway.
	n, err = w.ProcessExisting(ctx)
	if err != nil {
		t.Fatalf("second ProcessExisting: %v", err)
	}
	if n != 0 {
		t.Errorf("second scan submitted %d, want 0", n)
	}

	w.Stop(ctx)
	if got := len(orch.processed()); got != 2 {
		t.Errorf("orchestrator saw %d documents, want 2", got)
	}
}

func TestQuarantinedFileStaysInPlace(t *testing.T) {
	watchDir := t.TempDir()
	archiveDir := t.TempDir()
	path := writeFile(t, watchDir, "broken.pdf")

	orch := &stubOrchestrator{outcome: func(string) document.Outcome {
		return document.Quarantined("cannot decode document")
	}}
	w := newTestWatcher(t, watchDir, archiveDir, orch)

	ctx := context.Background()
	if _, err := w.ProcessExisting(ctx); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(orch.processed()) == 1 })

	if _, err := os.Stat(path); err != nil {
		t.Errorf("quarantined file should remain in watch dir: %v", err)
	}
	if n := archivedCount(t, archiveDir); n != 0 {
		t.Errorf("archive has %d entries, want 0", n)
	}

	// Quarantined paths are not resubmitted.
	n, err := w.ProcessExisting(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("resubmitted quarantined file, n = %d", n)
	}
	w.Stop(ctx)
}

func TestTransientFailureIsRediscoverable(t *testing.T) {
	watchDir := t.TempDir()
	archiveDir := t.TempDir()
	writeFile(t, watchDir, "flaky.pdf")

	orch := &stubOrchestrator{outcome: func(string) document.Outcome {
		return document.Transient("interrupted")
	}}
	w := newTestWatcher(t, watchDir, archiveDir, orch)

	ctx := context.Background()
	if _, err := w.ProcessExisting(ctx); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(orch.processed()) == 1 })

	// The seen set releases the path once the transient outcome lands,
	// so a rescan eventually picks it up again.
	waitFor(t, func() bool {
		n, err := w.ProcessExisting(ctx)
		return err == nil && n == 1
	})
	waitFor(t, func() bool { return len(orch.processed()) >= 2 })
	w.Stop(ctx)
}

func TestWatcherPicksUpNewFiles(t *testing.T) {
	watchDir := t.TempDir()
	archiveDir := t.TempDir()

	orch := &stubOrchestrator{outcome: alwaysSucceed}
	w := newTestWatcher(t, watchDir, archiveDir, orch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	writeFile(t, watchDir, "incoming.jpg")

	waitFor(t, func() bool { return archivedCount(t, archiveDir) == 1 })
	cancel()
	w.Stop(context.Background())
}

func TestArchiveCollisionGetsCounter(t *testing.T) {
	watchDir := t.TempDir()
	archiveDir := t.TempDir()

	w := newTestWatcher(t, watchDir, archiveDir, &stubOrchestrator{outcome: alwaysSucceed})

	p1 := writeFile(t, watchDir, "same.pdf")
	a1, err := w.archive(p1)
	if err != nil {
		t.Fatal(err)
	}
	p2 := writeFile(t, watchDir, "same.pdf")
	a2, err := w.archive(p2)
	if err != nil {
		t.Fatal(err)
	}
	if a1 == a2 {
		t.Fatalf("archive produced colliding path %s", a1)
	}
	if _, err := os.Stat(a1); err != nil {
		t.Error(err)
	}
	if _, err := os.Stat(a2); err != nil {
		t.Error(err)
	}
	w.Stop(context.Background())
}
