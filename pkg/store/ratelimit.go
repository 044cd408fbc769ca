package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ConsumeRateSlot atomically claims one call in the (tool, tenant, hour)
// window. The single INSERT ... ON CONFLICT statement is the race guard: the
// conditional DO UPDATE only fires while call_count is below the limit, so
// two concurrent calls arriving at exactly the limit can never both pass.
//
// Returns false when the window is exhausted. Any datastore error must be
// treated by the caller as a denial (fail closed).
func (s *Store) ConsumeRateSlot(ctx context.Context, toolID, tenantID string, windowStart time.Time, maxPerHour int) (bool, error) {
	if maxPerHour <= 0 {
		return false, nil
	}

	var count int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO mcp_tool_rate_limits (tool_id, tenant_id, window_start, call_count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (tool_id, tenant_id, window_start) DO UPDATE
			SET call_count = mcp_tool_rate_limits.call_count + 1
			WHERE mcp_tool_rate_limits.call_count < $4
		RETURNING call_count`,
		toolID, tenantID, windowStart.UTC(), maxPerHour,
	).Scan(&count)
	if err == pgx.ErrNoRows {
		// Conflict row exists and the conditional update declined: limited.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store.ConsumeRateSlot: %w", err)
	}
	return count <= maxPerHour, nil
}
