package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/freeradical/mcp-gateway/pkg/types"
)

const toolColumns = `id, tenant_id, name, description, input_schema,
	webhook_url, webhook_method, webhook_headers,
	required_role, timeout_seconds, max_calls_per_hour,
	is_public, is_enabled, created_by, created_at, updated_at,
	total_calls, success_count, error_count, avg_execution_ms, last_used_at`

// CreateTool inserts a new custom tool. ID and timestamps are assigned here;
// defaults are applied for omitted limits.
func (s *Store) CreateTool(ctx context.Context, t *types.CustomTool) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.WebhookMethod == "" {
		t.WebhookMethod = "POST"
	}
	if t.RequiredRole == "" {
		t.RequiredRole = types.RoleViewer
	}
	if t.TimeoutSeconds <= 0 {
		t.TimeoutSeconds = types.DefaultTimeoutSeconds
	}
	if t.MaxCallsPerHour <= 0 {
		t.MaxCallsPerHour = types.DefaultMaxCallsPerHour
	}
	if len(t.InputSchema) == 0 {
		t.InputSchema = json.RawMessage(`{"type":"object"}`)
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	headers, err := json.Marshal(headersOrEmpty(t.WebhookHeaders))
	if err != nil {
		return fmt.Errorf("store.CreateTool marshal headers: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO mcp_custom_tools (
			id, tenant_id, name, description, input_schema,
			webhook_url, webhook_method, webhook_headers,
			required_role, timeout_seconds, max_calls_per_hour,
			is_public, is_enabled, created_by, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		t.ID, nullable(t.TenantID), t.Name, t.Description, t.InputSchema,
		t.WebhookURL, t.WebhookMethod, headers,
		string(t.RequiredRole), t.TimeoutSeconds, t.MaxCallsPerHour,
		t.IsPublic, t.IsEnabled, nullable(t.CreatedBy), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store.CreateTool insert: %w", err)
	}
	return nil
}

// GetTool fetches a tool by id, visible to the given tenant (owned or public).
// Returns nil when not found or not visible.
func (s *Store) GetTool(ctx context.Context, id, tenantID string) (*types.CustomTool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+toolColumns+`
		FROM mcp_custom_tools
		WHERE id = $1 AND (tenant_id = $2 OR is_public)`, id, tenantID)
	return scanTool(row)
}

// GetToolByName resolves a callable tool by name for a tenant: visibility
// (owned or public) and is_enabled both apply. Tenant-owned tools win over
// public ones of the same name.
func (s *Store) GetToolByName(ctx context.Context, name, tenantID string) (*types.CustomTool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+toolColumns+`
		FROM mcp_custom_tools
		WHERE name = $1 AND (tenant_id = $2 OR is_public) AND is_enabled
		ORDER BY (tenant_id = $2) DESC
		LIMIT 1`, name, tenantID)
	return scanTool(row)
}

// ListVisible returns enabled tools the caller may see: owned-or-public
// visibility plus the role ordering gate, in stable store order.
// An anonymous caller (empty tenant) sees nothing.
func (s *Store) ListVisible(ctx context.Context, tenantID string, role types.Role) ([]types.CustomTool, error) {
	if tenantID == "" {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+toolColumns+`
		FROM mcp_custom_tools
		WHERE (tenant_id = $1 OR is_public) AND is_enabled
		ORDER BY created_at, id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("store.ListVisible: %w", err)
	}
	defer rows.Close()

	var out []types.CustomTool
	for rows.Next() {
		t, err := scanTool(rows)
		if err != nil {
			return nil, err
		}
		if role.AtLeast(t.RequiredRole) {
			out = append(out, *t)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store.ListVisible iteration: %w", err)
	}
	return out, nil
}

// ListForTenant returns every tool an admin can manage or inspect: the
// tenant's own tools plus public ones, including disabled entries.
func (s *Store) ListForTenant(ctx context.Context, tenantID string) ([]types.CustomTool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+toolColumns+`
		FROM mcp_custom_tools
		WHERE tenant_id = $1 OR is_public
		ORDER BY created_at, id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("store.ListForTenant: %w", err)
	}
	defer rows.Close()

	var out []types.CustomTool
	for rows.Next() {
		t, err := scanTool(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store.ListForTenant iteration: %w", err)
	}
	return out, nil
}

// ToolUpdate carries the admin-editable fields; nil means leave unchanged.
// Statistics are deliberately absent — only the audit path writes them.
type ToolUpdate struct {
	Description     *string
	InputSchema     json.RawMessage
	WebhookURL      *string
	WebhookMethod   *string
	WebhookHeaders  map[string]string
	RequiredRole    *types.Role
	TimeoutSeconds  *int
	MaxCallsPerHour *int
	IsPublic        *bool
	IsEnabled       *bool
}

// UpdateTool applies a partial update to a tool owned by the tenant.
// Returns false when no owned row matched.
func (s *Store) UpdateTool(ctx context.Context, id, tenantID string, u ToolUpdate) (bool, error) {
	var headers []byte
	if u.WebhookHeaders != nil {
		var err error
		headers, err = json.Marshal(u.WebhookHeaders)
		if err != nil {
			return false, fmt.Errorf("store.UpdateTool marshal headers: %w", err)
		}
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE mcp_custom_tools SET
			description        = COALESCE($3, description),
			input_schema       = COALESCE($4, input_schema),
			webhook_url        = COALESCE($5, webhook_url),
			webhook_method     = COALESCE($6, webhook_method),
			webhook_headers    = COALESCE($7, webhook_headers),
			required_role      = COALESCE($8, required_role),
			timeout_seconds    = COALESCE($9, timeout_seconds),
			max_calls_per_hour = COALESCE($10, max_calls_per_hour),
			is_public          = COALESCE($11, is_public),
			is_enabled         = COALESCE($12, is_enabled),
			updated_at         = NOW()
		WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
		u.Description, u.InputSchema, u.WebhookURL, u.WebhookMethod, headers,
		roleString(u.RequiredRole), u.TimeoutSeconds, u.MaxCallsPerHour,
		u.IsPublic, u.IsEnabled,
	)
	if err != nil {
		return false, fmt.Errorf("store.UpdateTool: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteTool removes a tool owned by the tenant. Returns false when no owned
// row matched.
func (s *Store) DeleteTool(ctx context.Context, id, tenantID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM mcp_custom_tools WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return false, fmt.Errorf("store.DeleteTool: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Scan helpers
// ──────────────────────────────────────────────────────────────────────────────

func scanTool(row pgx.Row) (*types.CustomTool, error) {
	var (
		t         types.CustomTool
		tenantID  *string
		createdBy *string
		role      string
		headers   []byte
	)
	err := row.Scan(
		&t.ID, &tenantID, &t.Name, &t.Description, &t.InputSchema,
		&t.WebhookURL, &t.WebhookMethod, &headers,
		&role, &t.TimeoutSeconds, &t.MaxCallsPerHour,
		&t.IsPublic, &t.IsEnabled, &createdBy, &t.CreatedAt, &t.UpdatedAt,
		&t.TotalCalls, &t.SuccessCount, &t.ErrorCount, &t.AvgExecutionMS, &t.LastUsedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store scan tool: %w", err)
	}
	if tenantID != nil {
		t.TenantID = *tenantID
	}
	if createdBy != nil {
		t.CreatedBy = *createdBy
	}
	t.RequiredRole = types.ParseRole(role)
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &t.WebhookHeaders); err != nil {
			return nil, fmt.Errorf("store unmarshal headers: %w", err)
		}
	}
	return &t, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func roleString(r *types.Role) *string {
	if r == nil {
		return nil
	}
	s := string(*r)
	return &s
}

func headersOrEmpty(h map[string]string) map[string]string {
	if h == nil {
		return map[string]string{}
	}
	return h
}
