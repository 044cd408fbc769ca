package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/freeradical/mcp-gateway/pkg/types"
)

func TestCanonicalJSONSortsKeys(t *testing.T) {
	a, err := canonicalJSON(map[string]any{"b": 1, "a": map[string]any{"z": true, "y": false}})
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	want := `{"a":{"y":false,"z":true},"b":1}`
	if string(a) != want {
		t.Errorf("canonical = %s, want %s", a, want)
	}
}

func TestCanonicalJSONDeterministic(t *testing.T) {
	input := map[string]any{"x": []any{1, 2, 3}, "name": "tool", "nested": map[string]any{"k": "v"}}
	first, err := canonicalJSON(input)
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := canonicalJSON(input)
		if err != nil {
			t.Fatalf("canonicalize: %v", err)
		}
		if string(again) != string(first) {
			t.Fatalf("iteration %d differs: %s vs %s", i, again, first)
		}
	}
}

func TestCanonicalJSONPreservesLargeNumbers(t *testing.T) {
	raw := json.RawMessage(`{"n":9007199254740993}`)
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatal(err)
	}
	out, err := canonicalJSON(map[string]any{"payload": raw})
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if string(out) != `{"payload":{"n":9007199254740993}}` {
		t.Errorf("large integer mangled: %s", out)
	}
}

func buildChain(t *testing.T, n int) []types.ExecutionRecord {
	t.Helper()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	records := make([]types.ExecutionRecord, 0, n)
	prev := ""
	for i := 0; i < n; i++ {
		rec := types.ExecutionRecord{
			ID:              string(rune('a' + i)),
			ToolID:          "tool-1",
			TenantID:        "tenant-1",
			Input:           json.RawMessage(`{"i":` + string(rune('0'+i)) + `}`),
			ExecutionTimeMS: int64(100 + i),
			HTTPStatusCode:  200,
			Status:          types.StatusSuccess,
			ExecutedAt:      base.Add(time.Duration(i) * time.Second),
			PrevHash:        prev,
		}
		canon, err := canonicalRecord(&rec)
		if err != nil {
			t.Fatalf("canonicalize record %d: %v", i, err)
		}
		rec.Hash = chainHash(prev, canon)
		prev = rec.Hash
		records = append(records, rec)
	}
	return records
}

func TestVerifyChainAcceptsValidChain(t *testing.T) {
	records := buildChain(t, 5)
	if err := VerifyChain(records); err != nil {
		t.Fatalf("valid chain rejected: %v", err)
	}
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	records := buildChain(t, 5)
	records[2].ExecutionTimeMS = 9999
	if err := VerifyChain(records); err == nil {
		t.Fatal("tampered record not detected")
	}

	records = buildChain(t, 5)
	records[3].Hash = records[2].Hash
	if err := VerifyChain(records); err == nil {
		t.Fatal("broken link not detected")
	}
}

func TestChainHashDependsOnPrev(t *testing.T) {
	canon := []byte(`{"a":1}`)
	if chainHash("", canon) == chainHash("prior", canon) {
		t.Error("hash ignores previous link")
	}
	if chainHash("x", canon) != chainHash("x", canon) {
		t.Error("hash not deterministic")
	}
}
