// Package admin exposes the tenant-scoped custom tool management API under
// /v1/api/mcp/tools. Every route requires an admin bearer token.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/freeradical/mcp-gateway/pkg/auth"
	"github.com/freeradical/mcp-gateway/pkg/store"
	"github.com/freeradical/mcp-gateway/pkg/types"
)

// ToolAdminStore is the datastore slice the admin API needs.
type ToolAdminStore interface {
	CreateTool(ctx context.Context, t *types.CustomTool) error
	GetTool(ctx context.Context, id, tenantID string) (*types.CustomTool, error)
	ListForTenant(ctx context.Context, tenantID string) ([]types.CustomTool, error)
	UpdateTool(ctx context.Context, id, tenantID string, u store.ToolUpdate) (bool, error)
	DeleteTool(ctx context.Context, id, tenantID string) (bool, error)
	ListExecutions(ctx context.Context, toolID, tenantID string, limit, offset int) ([]types.ExecutionRecord, error)
}

// Handlers serves the custom tool CRUD routes.
type Handlers struct {
	store ToolAdminStore
	log   *slog.Logger
}

func NewHandlers(store ToolAdminStore, log *slog.Logger) *Handlers {
	return &Handlers{store: store, log: log}
}

// Routes returns the admin router. Mount under /v1/api/mcp/tools behind
// auth.RequireAdmin.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Get("/{id}/executions", h.executions)
	return r
}

// ──────────────────────────────────────────────────────────────────────────────
// Request shapes and validation
// ──────────────────────────────────────────────────────────────────────────────

var nameRe = regexp.MustCompile(`^[a-z0-9_]+$`)

var methodWhitelist = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true, "DELETE": true,
}

type toolRequest struct {
	Name            string            `json:"name"`
	Description     string            `json:"description"`
	InputSchema     json.RawMessage   `json:"input_schema"`
	WebhookURL      string            `json:"webhook_url"`
	WebhookMethod   string            `json:"webhook_method"`
	WebhookHeaders  map[string]string `json:"webhook_headers"`
	RequiredRole    string            `json:"required_role"`
	TimeoutSeconds  *int              `json:"timeout_seconds"`
	MaxCallsPerHour *int              `json:"max_calls_per_hour"`
	IsPublic        *bool             `json:"is_public"`
	IsEnabled       *bool             `json:"is_enabled"`
}

func validateName(name string) *types.ValidationError {
	if name == "" {
		return &types.ValidationError{Field: "name", Reason: "required"}
	}
	if len(name) > 64 || !nameRe.MatchString(name) {
		return &types.ValidationError{Field: "name", Reason: "must match [a-z0-9_]+ and be at most 64 characters"}
	}
	return nil
}

func validateWebhookURL(raw string) *types.ValidationError {
	if raw == "" {
		return &types.ValidationError{Field: "webhook_url", Reason: "required"}
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &types.ValidationError{Field: "webhook_url", Reason: "must be an absolute http(s) URL"}
	}
	return nil
}

func validateMethod(m string) *types.ValidationError {
	if m != "" && !methodWhitelist[m] {
		return &types.ValidationError{Field: "webhook_method", Reason: "must be one of GET, POST, PUT, PATCH, DELETE"}
	}
	return nil
}

func validateTimeout(v *int) *types.ValidationError {
	if v != nil && (*v < 1 || *v > 300) {
		return &types.ValidationError{Field: "timeout_seconds", Reason: "must be between 1 and 300"}
	}
	return nil
}

func validateMaxCalls(v *int) *types.ValidationError {
	if v != nil && (*v < 1 || *v > 10000) {
		return &types.ValidationError{Field: "max_calls_per_hour", Reason: "must be between 1 and 10000"}
	}
	return nil
}

func validateSchema(raw json.RawMessage) *types.ValidationError {
	if len(raw) > 0 && !json.Valid(raw) {
		return &types.ValidationError{Field: "input_schema", Reason: "must be valid JSON"}
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Handlers
// ──────────────────────────────────────────────────────────────────────────────

func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())

	var req toolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		types.ErrBadRequest("invalid JSON body: " + err.Error()).WriteJSON(w)
		return
	}

	for _, verr := range []*types.ValidationError{
		validateName(req.Name),
		validateWebhookURL(req.WebhookURL),
		validateMethod(req.WebhookMethod),
		validateTimeout(req.TimeoutSeconds),
		validateMaxCalls(req.MaxCallsPerHour),
		validateSchema(req.InputSchema),
	} {
		if verr != nil {
			types.ErrValidation(verr).WriteJSON(w)
			return
		}
	}

	tool := &types.CustomTool{
		TenantID:       id.TenantID,
		Name:           req.Name,
		Description:    req.Description,
		InputSchema:    req.InputSchema,
		WebhookURL:     req.WebhookURL,
		WebhookMethod:  req.WebhookMethod,
		WebhookHeaders: req.WebhookHeaders,
		RequiredRole:   types.ParseRole(req.RequiredRole),
		CreatedBy:      id.UserID,
		IsEnabled:      true,
	}
	if req.TimeoutSeconds != nil {
		tool.TimeoutSeconds = *req.TimeoutSeconds
	}
	if req.MaxCallsPerHour != nil {
		tool.MaxCallsPerHour = *req.MaxCallsPerHour
	}
	if req.IsPublic != nil {
		tool.IsPublic = *req.IsPublic
	}
	if req.IsEnabled != nil {
		tool.IsEnabled = *req.IsEnabled
	}

	if err := h.store.CreateTool(r.Context(), tool); err != nil {
		if isUniqueViolation(err) {
			types.ErrConflict("a tool with this name already exists").WriteJSON(w)
			return
		}
		h.log.ErrorContext(r.Context(), "create tool failed", "tenant_id", id.TenantID, "error", err)
		types.ErrInternal("could not create tool").WriteJSON(w)
		return
	}

	h.log.InfoContext(r.Context(), "tool created",
		"tool", tool.Name, "tool_id", tool.ID, "tenant_id", id.TenantID)
	writeJSON(w, http.StatusCreated, tool)
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())

	tools, err := h.store.ListForTenant(r.Context(), id.TenantID)
	if err != nil {
		h.log.ErrorContext(r.Context(), "list tools failed", "tenant_id", id.TenantID, "error", err)
		types.ErrInternal("could not list tools").WriteJSON(w)
		return
	}
	if tools == nil {
		tools = []types.CustomTool{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	toolID := chi.URLParam(r, "id")

	tool, err := h.store.GetTool(r.Context(), toolID, id.TenantID)
	if err != nil {
		h.log.ErrorContext(r.Context(), "get tool failed", "tool_id", toolID, "error", err)
		types.ErrInternal("could not fetch tool").WriteJSON(w)
		return
	}
	if tool == nil {
		types.ErrNotFound("tool not found").WriteJSON(w)
		return
	}
	writeJSON(w, http.StatusOK, tool)
}

func (h *Handlers) update(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	toolID := chi.URLParam(r, "id")

	var req toolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		types.ErrBadRequest("invalid JSON body: " + err.Error()).WriteJSON(w)
		return
	}

	for _, verr := range []*types.ValidationError{
		validateMethod(req.WebhookMethod),
		validateTimeout(req.TimeoutSeconds),
		validateMaxCalls(req.MaxCallsPerHour),
		validateSchema(req.InputSchema),
	} {
		if verr != nil {
			types.ErrValidation(verr).WriteJSON(w)
			return
		}
	}
	if req.WebhookURL != "" {
		if verr := validateWebhookURL(req.WebhookURL); verr != nil {
			types.ErrValidation(verr).WriteJSON(w)
			return
		}
	}

	upd := store.ToolUpdate{
		InputSchema:     req.InputSchema,
		WebhookHeaders:  req.WebhookHeaders,
		TimeoutSeconds:  req.TimeoutSeconds,
		MaxCallsPerHour: req.MaxCallsPerHour,
		IsPublic:        req.IsPublic,
		IsEnabled:       req.IsEnabled,
	}
	if req.Description != "" {
		upd.Description = &req.Description
	}
	if req.WebhookURL != "" {
		upd.WebhookURL = &req.WebhookURL
	}
	if req.WebhookMethod != "" {
		upd.WebhookMethod = &req.WebhookMethod
	}
	if req.RequiredRole != "" {
		role := types.ParseRole(req.RequiredRole)
		upd.RequiredRole = &role
	}

	ok, err := h.store.UpdateTool(r.Context(), toolID, id.TenantID, upd)
	if err != nil {
		h.log.ErrorContext(r.Context(), "update tool failed", "tool_id", toolID, "error", err)
		types.ErrInternal("could not update tool").WriteJSON(w)
		return
	}
	if !ok {
		types.ErrNotFound("tool not found").WriteJSON(w)
		return
	}

	tool, err := h.store.GetTool(r.Context(), toolID, id.TenantID)
	if err != nil || tool == nil {
		types.ErrInternal("could not fetch updated tool").WriteJSON(w)
		return
	}
	h.log.InfoContext(r.Context(), "tool updated", "tool_id", toolID, "tenant_id", id.TenantID)
	writeJSON(w, http.StatusOK, tool)
}

func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	toolID := chi.URLParam(r, "id")

	ok, err := h.store.DeleteTool(r.Context(), toolID, id.TenantID)
	if err != nil {
		h.log.ErrorContext(r.Context(), "delete tool failed", "tool_id", toolID, "error", err)
		types.ErrInternal("could not delete tool").WriteJSON(w)
		return
	}
	if !ok {
		types.ErrNotFound("tool not found").WriteJSON(w)
		return
	}
	h.log.InfoContext(r.Context(), "tool deleted", "tool_id", toolID, "tenant_id", id.TenantID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) executions(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	toolID := chi.URLParam(r, "id")

	tool, err := h.store.GetTool(r.Context(), toolID, id.TenantID)
	if err != nil {
		types.ErrInternal("could not fetch tool").WriteJSON(w)
		return
	}
	if tool == nil {
		types.ErrNotFound("tool not found").WriteJSON(w)
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	records, err := h.store.ListExecutions(r.Context(), toolID, id.TenantID, limit, offset)
	if err != nil {
		h.log.ErrorContext(r.Context(), "list executions failed", "tool_id", toolID, "error", err)
		types.ErrInternal("could not list executions").WriteJSON(w)
		return
	}
	if records == nil {
		records = []types.ExecutionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": records})
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
