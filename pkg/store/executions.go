package store

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/freeradical/mcp-gateway/pkg/types"
)

// tenantLockID derives a stable advisory lock key from the tenant id so
// chain appends for the same tenant serialize without blocking other tenants.
func tenantLockID(tenantID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(tenantID))
	return int64(h.Sum64())
}

// InsertExecution appends a record to the tenant's execution chain. The
// advisory transaction lock serializes appends per tenant; the chain head is
// the hash of the newest record.
func (s *Store) InsertExecution(ctx context.Context, rec *types.ExecutionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ExecutedAt.IsZero() {
		rec.ExecutedAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store.InsertExecution begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, tenantLockID(rec.TenantID)); err != nil {
		return fmt.Errorf("store.InsertExecution lock: %w", err)
	}

	var prev string
	err = tx.QueryRow(ctx, `
		SELECT hash FROM mcp_tool_executions
		WHERE tenant_id = $1
		ORDER BY executed_at DESC, id DESC
		LIMIT 1`, rec.TenantID).Scan(&prev)
	if err != nil && err != pgx.ErrNoRows {
		return fmt.Errorf("store.InsertExecution head: %w", err)
	}
	rec.PrevHash = prev

	canon, err := canonicalRecord(rec)
	if err != nil {
		return fmt.Errorf("store.InsertExecution canonicalize: %w", err)
	}
	rec.Hash = chainHash(prev, canon)

	_, err = tx.Exec(ctx, `
		INSERT INTO mcp_tool_executions (
			id, tool_id, tenant_id, user_id, input, output,
			error_message, execution_time_ms, http_status_code, status,
			executed_at, hash, prev_hash
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		rec.ID, rec.ToolID, rec.TenantID, nullable(rec.UserID),
		rawOrNil(rec.Input), rawOrNil(rec.Output),
		nullable(rec.ErrorMessage), rec.ExecutionTimeMS, rec.HTTPStatusCode, rec.Status,
		rec.ExecutedAt, rec.Hash, rec.PrevHash,
	)
	if err != nil {
		return fmt.Errorf("store.InsertExecution insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store.InsertExecution commit: %w", err)
	}
	return nil
}

// ListExecutions returns a tool's execution history for a tenant, newest
// first.
func (s *Store) ListExecutions(ctx context.Context, toolID, tenantID string, limit, offset int) ([]types.ExecutionRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, tool_id, tenant_id, user_id, input, output,
			error_message, execution_time_ms, http_status_code, status,
			executed_at, hash, prev_hash
		FROM mcp_tool_executions
		WHERE tool_id = $1 AND tenant_id = $2
		ORDER BY executed_at DESC, id DESC
		LIMIT $3 OFFSET $4`, toolID, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store.ListExecutions: %w", err)
	}
	defer rows.Close()

	var out []types.ExecutionRecord
	for rows.Next() {
		var (
			rec     types.ExecutionRecord
			userID  *string
			errMsg  *string
			inBody  []byte
			outBody []byte
		)
		err := rows.Scan(
			&rec.ID, &rec.ToolID, &rec.TenantID, &userID, &inBody, &outBody,
			&errMsg, &rec.ExecutionTimeMS, &rec.HTTPStatusCode, &rec.Status,
			&rec.ExecutedAt, &rec.Hash, &rec.PrevHash,
		)
		if err != nil {
			return nil, fmt.Errorf("store.ListExecutions scan: %w", err)
		}
		if userID != nil {
			rec.UserID = *userID
		}
		if errMsg != nil {
			rec.ErrorMessage = *errMsg
		}
		rec.Input = inBody
		rec.Output = outBody
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store.ListExecutions iteration: %w", err)
	}
	return out, nil
}

// FoldStats folds one execution outcome into the tool's aggregate counters.
// The running average is updated in the same statement so concurrent folds
// never read stale values.
func (s *Store) FoldStats(ctx context.Context, toolID string, success bool, executionMS int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE mcp_custom_tools SET
			total_calls      = total_calls + 1,
			success_count    = success_count + CASE WHEN $2 THEN 1 ELSE 0 END,
			error_count      = error_count + CASE WHEN $2 THEN 0 ELSE 1 END,
			avg_execution_ms = (avg_execution_ms * total_calls + $3) / (total_calls + 1),
			last_used_at     = NOW()
		WHERE id = $1`, toolID, success, executionMS)
	if err != nil {
		return fmt.Errorf("store.FoldStats: %w", err)
	}
	return nil
}

func rawOrNil(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
