// Package audit writes execution records and statistics off the request
// path. Recording is fire-and-forget: a slow or unreachable datastore never
// delays a tool response, and a full queue drops records rather than block.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/freeradical/mcp-gateway/pkg/types"
)

// RecorderStore is the slice of the datastore the recorder needs.
type RecorderStore interface {
	InsertExecution(ctx context.Context, rec *types.ExecutionRecord) error
	FoldStats(ctx context.Context, toolID string, success bool, executionMS int64) error
}

// Recorder fans execution records out to a bounded queue drained by worker
// goroutines. Each record produces one chain append and one stats fold.
type Recorder struct {
	store RecorderStore
	log   *slog.Logger
	queue chan *types.ExecutionRecord
	wg    sync.WaitGroup

	dropped metric.Int64Counter
	written metric.Int64Counter
}

// Option configures a Recorder.
type Option func(*options)

type options struct {
	queueSize int
	workers   int
}

// WithQueueSize sets the bounded queue capacity.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithWorkers sets the number of drain goroutines.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// NewRecorder starts the worker pool. Call Close to drain and stop.
func NewRecorder(store RecorderStore, log *slog.Logger, opts ...Option) *Recorder {
	o := options{queueSize: 1024, workers: 4}
	for _, opt := range opts {
		opt(&o)
	}

	meter := otel.Meter("mcp-gateway/audit")
	dropped, _ := meter.Int64Counter("mcp.audit.dropped",
		metric.WithDescription("Execution records dropped because the audit queue was full"))
	written, _ := meter.Int64Counter("mcp.audit.written",
		metric.WithDescription("Execution records persisted"))

	r := &Recorder{
		store:   store,
		log:     log,
		queue:   make(chan *types.ExecutionRecord, o.queueSize),
		dropped: dropped,
		written: written,
	}
	for i := 0; i < o.workers; i++ {
		r.wg.Add(1)
		go r.drain()
	}
	return r
}

// Record enqueues one execution record. It never blocks: when the queue is
// full the record is dropped and counted.
func (r *Recorder) Record(rec *types.ExecutionRecord) {
	select {
	case r.queue <- rec:
	default:
		r.dropped.Add(context.Background(), 1)
		r.log.Warn("audit queue full, dropping execution record",
			"tool_id", rec.ToolID, "tenant_id", rec.TenantID)
	}
}

func (r *Recorder) drain() {
	defer r.wg.Done()
	for rec := range r.queue {
		r.persist(rec)
	}
}

func (r *Recorder) persist(rec *types.ExecutionRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.insertWithRetry(ctx, rec); err != nil {
		r.log.Error("audit insert failed", "tool_id", rec.ToolID,
			"tenant_id", rec.TenantID, "error", err)
		return
	}
	r.written.Add(ctx, 1)

	if err := r.store.FoldStats(ctx, rec.ToolID, rec.Status == types.StatusSuccess, rec.ExecutionTimeMS); err != nil {
		r.log.Error("audit stats fold failed", "tool_id", rec.ToolID, "error", err)
	}
}

func (r *Recorder) insertWithRetry(ctx context.Context, rec *types.ExecutionRecord) error {
	err := r.store.InsertExecution(ctx, rec)
	if err == nil {
		return nil
	}
	select {
	case <-time.After(250 * time.Millisecond):
	case <-ctx.Done():
		return err
	}
	return r.store.InsertExecution(ctx, rec)
}

// Close stops accepting records and waits for the queue to drain, up to the
// context deadline.
func (r *Recorder) Close(ctx context.Context) error {
	close(r.queue)
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
