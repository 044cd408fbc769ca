package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/freeradical/mcp-gateway/pkg/types"
)

type fakeStore struct {
	mu         sync.Mutex
	inserted   []*types.ExecutionRecord
	folds      []foldCall
	insertErrs int // fail this many inserts before succeeding
	block      chan struct{}
}

type foldCall struct {
	toolID  string
	success bool
	ms      int64
}

func (f *fakeStore) InsertExecution(_ context.Context, rec *types.ExecutionRecord) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErrs > 0 {
		f.insertErrs--
		return errors.New("datastore down")
	}
	f.inserted = append(f.inserted, rec)
	return nil
}

func (f *fakeStore) FoldStats(_ context.Context, toolID string, success bool, ms int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.folds = append(f.folds, foldCall{toolID, success, ms})
	return nil
}

func (f *fakeStore) insertedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inserted)
}

func (f *fakeStore) foldCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.folds)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rec(toolID string, success bool) *types.ExecutionRecord {
	status := types.StatusSuccess
	if !success {
		status = types.StatusError
	}
	return &types.ExecutionRecord{
		ToolID:          toolID,
		TenantID:        "tenant-1",
		Status:          status,
		ExecutionTimeMS: 120,
	}
}

func TestRecordPersistsAndFoldsStats(t *testing.T) {
	store := &fakeStore{}
	r := NewRecorder(store, testLogger(), WithWorkers(2))

	r.Record(rec("tool-a", true))
	r.Record(rec("tool-a", false))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	if store.insertedCount() != 2 {
		t.Errorf("inserted = %d, want 2", store.insertedCount())
	}
	if store.foldCount() != 2 {
		t.Errorf("folds = %d, want 2", store.foldCount())
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	successes := 0
	for _, f := range store.folds {
		if f.toolID != "tool-a" || f.ms != 120 {
			t.Errorf("fold = %+v", f)
		}
		if f.success {
			successes++
		}
	}
	if successes != 1 {
		t.Errorf("success folds = %d, want 1", successes)
	}
}

func TestRecordNeverBlocksWhenQueueFull(t *testing.T) {
	store := &fakeStore{block: make(chan struct{})}
	r := NewRecorder(store, testLogger(), WithQueueSize(1), WithWorkers(1))

	// First record occupies the worker, second fills the queue; the rest
	// must be dropped without blocking.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			r.Record(rec("tool-a", true))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a full queue")
	}

	close(store.block)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	if n := store.insertedCount(); n > 3 {
		t.Errorf("inserted = %d, expected drops with queue size 1", n)
	}
}

func TestInsertFailureRetriedOnce(t *testing.T) {
	store := &fakeStore{insertErrs: 1}
	r := NewRecorder(store, testLogger(), WithWorkers(1))

	r.Record(rec("tool-a", true))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	if store.insertedCount() != 1 {
		t.Errorf("inserted = %d, want 1 after retry", store.insertedCount())
	}
	if store.foldCount() != 1 {
		t.Errorf("folds = %d, want 1", store.foldCount())
	}
}

func TestPersistentInsertFailureSkipsStats(t *testing.T) {
	store := &fakeStore{insertErrs: 10}
	r := NewRecorder(store, testLogger(), WithWorkers(1))

	r.Record(rec("tool-a", true))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	if store.insertedCount() != 0 {
		t.Errorf("inserted = %d, want 0", store.insertedCount())
	}
	if store.foldCount() != 0 {
		t.Errorf("folds = %d, want 0 when the insert never landed", store.foldCount())
	}
}
