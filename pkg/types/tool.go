package types

import (
	"encoding/json"
	"time"
)

// Defaults applied when a tool definition omits the field.
const (
	DefaultTimeoutSeconds  = 30
	DefaultMaxCallsPerHour = 100
)

// CustomTool is a tenant-defined tool executed via an outbound webhook.
// Statistics columns are folded in by the audit path only; the admin CRUD
// path never touches them.
type CustomTool struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id,omitempty"` // empty when the tool is public
	Name        string `json:"name"`
	Description string `json:"description"`

	InputSchema json.RawMessage `json:"input_schema"`

	WebhookURL     string            `json:"webhook_url"`
	WebhookMethod  string            `json:"webhook_method"`
	WebhookHeaders map[string]string `json:"webhook_headers,omitempty"`

	RequiredRole    Role `json:"required_role"`
	TimeoutSeconds  int  `json:"timeout_seconds"`
	MaxCallsPerHour int  `json:"max_calls_per_hour"`
	IsPublic        bool `json:"is_public"`
	IsEnabled       bool `json:"is_enabled"`

	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TotalCalls     int64      `json:"total_calls"`
	SuccessCount   int64      `json:"success_count"`
	ErrorCount     int64      `json:"error_count"`
	AvgExecutionMS int64      `json:"avg_execution_ms"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
}

// Descriptor renders the tool as a tools/list entry.
func (t *CustomTool) Descriptor() ToolDescriptor {
	schema := t.InputSchema
	if len(schema) == 0 {
		schema = json.RawMessage(`{"type":"object"}`)
	}
	return ToolDescriptor{Name: t.Name, Description: t.Description, InputSchema: schema}
}

// VisibleTo applies the tenant-visibility invariant: private tools belong to
// exactly one tenant.
func (t *CustomTool) VisibleTo(tenantID string) bool {
	return t.IsPublic || (tenantID != "" && t.TenantID == tenantID)
}

// Execution outcome statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ExecutionRecord is the append-only audit row written for every webhook
// dispatch. Hash/PrevHash link records into a per-tenant chain.
type ExecutionRecord struct {
	ID       string `json:"id"`
	ToolID   string `json:"tool_id"`
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id,omitempty"`

	Input        json.RawMessage `json:"input,omitempty"`
	Output       json.RawMessage `json:"output,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`

	ExecutionTimeMS int64  `json:"execution_time_ms"`
	HTTPStatusCode  int    `json:"http_status_code"`
	Status          string `json:"status"`

	ExecutedAt time.Time `json:"executed_at"`

	Hash     string `json:"hash,omitempty"`
	PrevHash string `json:"prev_hash,omitempty"`
}

// RateLimitWindow is one persisted fixed-hour counter row.
type RateLimitWindow struct {
	ToolID      string    `json:"tool_id"`
	TenantID    string    `json:"tenant_id"`
	WindowStart time.Time `json:"window_start"`
	CallCount   int       `json:"call_count"`
}

// HourWindow truncates t to the top of its UTC hour.
func HourWindow(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}
