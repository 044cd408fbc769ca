package executor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/freeradical/mcp-gateway/pkg/types"
)

type fakeRateStore struct {
	mu      sync.Mutex
	allow   bool
	err     error
	windows []time.Time
}

func (f *fakeRateStore) ConsumeRateSlot(_ context.Context, _, _ string, windowStart time.Time, _ int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = append(f.windows, windowStart)
	return f.allow, f.err
}

type fakeAudit struct {
	mu      sync.Mutex
	records []*types.ExecutionRecord
}

func (f *fakeAudit) Record(rec *types.ExecutionRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
}

func (f *fakeAudit) all() []*types.ExecutionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.ExecutionRecord(nil), f.records...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTool(url string) *types.CustomTool {
	return &types.CustomTool{
		ID:              "11111111-1111-1111-1111-111111111111",
		TenantID:        "tenant-1",
		Name:            "lookup_weather",
		WebhookURL:      url,
		WebhookMethod:   "POST",
		TimeoutSeconds:  5,
		MaxCallsPerHour: 100,
	}
}

func newTestEngine(allow bool, rateErr error) (*Engine, *fakeAudit) {
	audit := &fakeAudit{}
	engine := NewEngine(&fakeRateStore{allow: allow, err: rateErr}, audit, testLogger())
	return engine, audit
}

func TestExecuteSuccess(t *testing.T) {
	var gotBody []byte
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Api-Key")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"temp_c":21}`))
	}))
	defer srv.Close()

	engine, audit := newTestEngine(true, nil)
	tool := testTool(srv.URL)
	tool.WebhookHeaders = map[string]string{"X-Api-Key": "k1"}

	input := json.RawMessage(`{"city":"Oslo"}`)
	out, err := engine.Execute(context.Background(), tool, input, "tenant-1", "user-1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if string(out) != `{"temp_c":21}` {
		t.Errorf("output = %s", out)
	}
	if gotHeader != "k1" {
		t.Errorf("custom header not sent, got %q", gotHeader)
	}
	if string(gotBody) != `{"city":"Oslo"}` {
		t.Errorf("webhook body = %s", gotBody)
	}

	recs := audit.all()
	if len(recs) != 1 {
		t.Fatalf("got %d audit records, want 1", len(recs))
	}
	rec := recs[0]
	if rec.Status != types.StatusSuccess || rec.HTTPStatusCode != 200 {
		t.Errorf("record = %+v", rec)
	}
	if rec.TenantID != "tenant-1" || rec.UserID != "user-1" {
		t.Errorf("record identity = %s/%s", rec.TenantID, rec.UserID)
	}
}

func TestExecuteNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	engine, audit := newTestEngine(true, nil)
	_, err := engine.Execute(context.Background(), testTool(srv.URL), nil, "tenant-1", "")
	if err == nil {
		t.Fatal("expected error for 502")
	}
	var rpcErr *types.RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != types.CodeExecutionFailed {
		t.Fatalf("error = %v", err)
	}
	if !strings.Contains(rpcErr.Message, "502") {
		t.Errorf("message does not carry status: %s", rpcErr.Message)
	}

	recs := audit.all()
	if len(recs) != 1 {
		t.Fatalf("got %d audit records, want 1", len(recs))
	}
	if recs[0].Status != types.StatusError || recs[0].HTTPStatusCode != 502 {
		t.Errorf("record = %+v", recs[0])
	}
	if recs[0].Output != nil {
		t.Error("error record carries output")
	}
}

func TestExecuteNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	engine, audit := newTestEngine(true, nil)
	_, err := engine.Execute(context.Background(), testTool(srv.URL), nil, "tenant-1", "")
	if err == nil {
		t.Fatal("expected error for non-JSON 2xx body")
	}
	recs := audit.all()
	if len(recs) != 1 || recs[0].Status != types.StatusError {
		t.Fatalf("records = %+v", recs)
	}
	if recs[0].HTTPStatusCode != 200 {
		t.Errorf("status code = %d, want 200", recs[0].HTTPStatusCode)
	}
}

func TestExecuteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(3 * time.Second)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	engine, audit := newTestEngine(true, nil)
	tool := testTool(srv.URL)
	tool.TimeoutSeconds = 1

	start := time.Now()
	_, err := engine.Execute(context.Background(), tool, nil, "tenant-1", "")
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed > 2*time.Second {
		t.Errorf("deadline not enforced, took %s", elapsed)
	}
	var rpcErr *types.RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != types.CodeExecutionFailed {
		t.Fatalf("error = %v", err)
	}
	if !strings.Contains(rpcErr.Message, "timed out") {
		t.Errorf("message = %s", rpcErr.Message)
	}

	recs := audit.all()
	if len(recs) != 1 {
		t.Fatalf("got %d audit records, want 1", len(recs))
	}
	if recs[0].HTTPStatusCode != 0 {
		t.Errorf("timeout record status code = %d, want 0", recs[0].HTTPStatusCode)
	}
}

func TestExecuteTransportFailure(t *testing.T) {
	engine, audit := newTestEngine(true, nil)
	tool := testTool("http://127.0.0.1:1") // nothing listens here

	_, err := engine.Execute(context.Background(), tool, nil, "tenant-1", "")
	if err == nil {
		t.Fatal("expected transport error")
	}
	recs := audit.all()
	if len(recs) != 1 || recs[0].HTTPStatusCode != 0 {
		t.Fatalf("records = %+v", recs)
	}
}

func TestExecuteRateLimited(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	engine, audit := newTestEngine(false, nil)
	_, err := engine.Execute(context.Background(), testTool(srv.URL), nil, "tenant-1", "")

	var rpcErr *types.RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != types.CodeRateLimited {
		t.Fatalf("error = %v", err)
	}
	if called {
		t.Error("webhook was called despite rate denial")
	}
	if len(audit.all()) != 0 {
		t.Error("rate denial produced an audit record")
	}
}

func TestExecuteRateCheckFailureFailsClosed(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	engine, audit := newTestEngine(true, errors.New("connection refused"))
	_, err := engine.Execute(context.Background(), testTool(srv.URL), nil, "tenant-1", "")

	var rpcErr *types.RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != types.CodeInternal {
		t.Fatalf("error = %v", err)
	}
	if called {
		t.Error("webhook was called despite rate check failure")
	}
	if len(audit.all()) != 0 {
		t.Error("failed rate check produced an audit record")
	}
}

func TestExecuteSurvivesCallerCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"done":true}`))
	}))
	defer srv.Close()

	engine, audit := newTestEngine(true, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		out, err := engine.Execute(ctx, testTool(srv.URL), nil, "tenant-1", "")
		if err != nil {
			t.Errorf("execute after caller cancel: %v", err)
			return
		}
		if string(out) != `{"done":true}` {
			t.Errorf("output = %s", out)
		}
	}()

	cancel() // simulate client disconnect mid-call
	close(release)
	<-done

	if len(audit.all()) != 1 {
		t.Errorf("got %d audit records, want 1", len(audit.all()))
	}
}

func TestExecuteHourWindow(t *testing.T) {
	store := &fakeRateStore{allow: false}
	engine := NewEngine(store, &fakeAudit{}, testLogger())

	_, _ = engine.Execute(context.Background(), testTool("http://example.invalid"), nil, "tenant-1", "")

	if len(store.windows) != 1 {
		t.Fatalf("rate store called %d times", len(store.windows))
	}
	w := store.windows[0]
	if w.Minute() != 0 || w.Second() != 0 || w.Nanosecond() != 0 {
		t.Errorf("window not hour-aligned: %s", w)
	}
	if w.Location() != time.UTC {
		t.Errorf("window not UTC: %s", w)
	}
}
