// Package executor dispatches custom tool calls to tenant webhooks. It owns
// rate-limit enforcement, the per-tool timeout, outcome classification, and
// handing the result to the audit path.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/freeradical/mcp-gateway/pkg/types"
)

const (
	// Hard cap on how much of a webhook response is read.
	maxResponseBody = 1 << 20
	// Error messages embed at most this much of the failing body.
	maxErrorSnippet = 2 << 10
)

var allowedMethods = map[string]bool{
	http.MethodGet: true, http.MethodPost: true, http.MethodPut: true,
	http.MethodPatch: true, http.MethodDelete: true,
}

// EngineStore is the rate-limit slice of the datastore.
type EngineStore interface {
	ConsumeRateSlot(ctx context.Context, toolID, tenantID string, windowStart time.Time, maxPerHour int) (bool, error)
}

// AuditSink receives one record per dispatched call.
type AuditSink interface {
	Record(rec *types.ExecutionRecord)
}

// Engine executes custom tools. One Engine is shared by all connections.
type Engine struct {
	store  EngineStore
	audit  AuditSink
	client *http.Client
	log    *slog.Logger

	calls       metric.Int64Counter
	rateLimited metric.Int64Counter
	duration    metric.Float64Histogram
}

// NewEngine creates an engine. The client's own Timeout is left at zero; the
// per-tool deadline governs each request.
func NewEngine(store EngineStore, audit AuditSink, log *slog.Logger) *Engine {
	meter := otel.Meter("mcp-gateway/executor")
	calls, _ := meter.Int64Counter("mcp.tool.calls",
		metric.WithDescription("Custom tool calls by outcome"))
	rateLimited, _ := meter.Int64Counter("mcp.tool.rate_limited",
		metric.WithDescription("Custom tool calls denied by the hourly window"))
	duration, _ := meter.Float64Histogram("mcp.webhook.duration",
		metric.WithDescription("Webhook round-trip time in seconds"))

	return &Engine{
		store:  store,
		audit:  audit,
		client: &http.Client{},
		log:    log,
		calls:  calls, rateLimited: rateLimited, duration: duration,
	}
}

// Execute runs one custom tool call end to end: claim a rate slot, dispatch
// the webhook under the tool's deadline, classify the outcome, and emit
// exactly one audit record for the dispatch. A rate-limit denial emits no
// record. Any datastore failure during the rate check is a denial.
func (e *Engine) Execute(ctx context.Context, tool *types.CustomTool, input json.RawMessage, tenantID, userID string) (json.RawMessage, error) {
	ok, err := e.store.ConsumeRateSlot(ctx, tool.ID, tenantID, types.HourWindow(time.Now()), tool.MaxCallsPerHour)
	if err != nil {
		e.log.Error("rate check failed, denying call", "tool", tool.Name, "error", err)
		return nil, types.RPCInternal("rate limit check unavailable")
	}
	if !ok {
		e.rateLimited.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", tool.Name)))
		e.log.Warn("rate limit exceeded", "tool", tool.Name, "tenant_id", tenantID,
			"max_calls_per_hour", tool.MaxCallsPerHour)
		return nil, types.RPCRateLimited(tool.Name, tool.MaxCallsPerHour)
	}

	// Detach from the connection context so a client disconnect mid-call
	// cannot abort the webhook or lose the audit record. The tool's own
	// timeout is the only deadline.
	timeout := time.Duration(tool.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = types.DefaultTimeoutSeconds * time.Second
	}
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	started := time.Now()
	output, httpStatus, callErr := e.dispatch(callCtx, tool, input)
	elapsed := time.Since(started)

	rec := &types.ExecutionRecord{
		ToolID:          tool.ID,
		TenantID:        tenantID,
		UserID:          userID,
		Input:           input,
		Output:          output,
		ExecutionTimeMS: elapsed.Milliseconds(),
		HTTPStatusCode:  httpStatus,
		Status:          types.StatusSuccess,
		ExecutedAt:      started.UTC(),
	}
	outcome := "success"
	if callErr != nil {
		rec.Status = types.StatusError
		rec.ErrorMessage = callErr.Error()
		rec.Output = nil
		outcome = "error"
	}
	e.audit.Record(rec)

	attrs := metric.WithAttributes(
		attribute.String("tool", tool.Name),
		attribute.String("outcome", outcome),
	)
	e.calls.Add(ctx, 1, attrs)
	e.duration.Record(ctx, elapsed.Seconds(), attrs)

	if callErr != nil {
		e.log.Warn("tool execution failed", "tool", tool.Name, "tenant_id", tenantID,
			"http_status", httpStatus, "elapsed_ms", elapsed.Milliseconds(), "error", callErr)
		return nil, types.RPCExecutionFailed(callErr.Error(), httpStatus)
	}
	e.log.Info("tool executed", "tool", tool.Name, "tenant_id", tenantID,
		"elapsed_ms", elapsed.Milliseconds())
	return output, nil
}

// dispatch performs the webhook request and classifies the outcome. The
// returned status is 0 for timeouts and transport failures.
func (e *Engine) dispatch(ctx context.Context, tool *types.CustomTool, input json.RawMessage) (json.RawMessage, int, error) {
	method := tool.WebhookMethod
	if method == "" {
		method = http.MethodPost
	}
	if !allowedMethods[method] {
		return nil, 0, fmt.Errorf("webhook method %q not allowed", method)
	}

	var body io.Reader
	if len(input) > 0 {
		body = bytes.NewReader(input)
	}
	req, err := http.NewRequestWithContext(ctx, method, tool.WebhookURL, body)
	if err != nil {
		return nil, 0, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range tool.WebhookHeaders {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, 0, fmt.Errorf("webhook timed out after %ds", tool.TimeoutSeconds)
		}
		return nil, 0, fmt.Errorf("webhook unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read webhook response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, snippet(raw))
	}
	if !json.Valid(raw) || len(bytes.TrimSpace(raw)) == 0 {
		return nil, resp.StatusCode, fmt.Errorf("webhook returned status %d with a non-JSON body", resp.StatusCode)
	}
	return json.RawMessage(raw), resp.StatusCode, nil
}

func snippet(b []byte) string {
	if len(b) > maxErrorSnippet {
		b = b[:maxErrorSnippet]
	}
	return string(b)
}
