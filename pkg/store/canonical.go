package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/freeradical/mcp-gateway/pkg/types"
)

// Execution records form a per-tenant hash chain, the platform's audit
// design: hash = SHA-256(prevHash || canonical record core). Canonical form
// sorts object keys so the hash is independent of map iteration order.

// chainHash computes the next hash in a tenant's execution chain.
func chainHash(prevHash string, canonRecord []byte) string {
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write(canonRecord)
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalRecord serializes the hash-relevant core of an execution record
// deterministically. The hash fields themselves are excluded.
func canonicalRecord(rec *types.ExecutionRecord) ([]byte, error) {
	core := map[string]any{
		"id":                rec.ID,
		"tool_id":           rec.ToolID,
		"tenant_id":         rec.TenantID,
		"user_id":           rec.UserID,
		"input":             rawOrNull(rec.Input),
		"output":            rawOrNull(rec.Output),
		"error_message":     rec.ErrorMessage,
		"execution_time_ms": rec.ExecutionTimeMS,
		"http_status_code":  rec.HTTPStatusCode,
		"status":            rec.Status,
		"executed_at":       rec.ExecutedAt.UTC(),
	}
	return canonicalJSON(core)
}

func rawOrNull(b json.RawMessage) json.RawMessage {
	if len(b) == 0 {
		return json.RawMessage("null")
	}
	return b
}

// VerifyChain walks records in chronological order and checks every hash
// link, starting from an empty previous hash.
func VerifyChain(records []types.ExecutionRecord) error {
	prev := ""
	for i := range records {
		canon, err := canonicalRecord(&records[i])
		if err != nil {
			return fmt.Errorf("store.VerifyChain canonicalize %d: %w", i, err)
		}
		want := chainHash(prev, canon)
		if records[i].Hash != want {
			return fmt.Errorf("store.VerifyChain: chain broken at index %d (record %s)", i, records[i].ID)
		}
		prev = records[i].Hash
	}
	return nil
}

// canonicalJSON produces a stable byte representation: keys sorted
// lexicographically at every nesting level, no extraneous whitespace.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical marshal: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonical decode: %w", err)
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}
