package types

import (
	"encoding/json"
	"testing"
)

func TestResponseEchoesRequestID(t *testing.T) {
	cases := []struct {
		name string
		id   string
	}{
		{"string id", `"req-1"`},
		{"numeric id", `42`},
		{"null id", `null`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := Result(json.RawMessage(tc.id), map[string]any{"ok": true})
			data, err := json.Marshal(resp)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var echoed struct {
				ID json.RawMessage `json:"id"`
			}
			if err := json.Unmarshal(data, &echoed); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if string(echoed.ID) != tc.id {
				t.Errorf("id = %s, want %s", echoed.ID, tc.id)
			}
		})
	}
}

func TestResponseMissingIDRendersNull(t *testing.T) {
	resp := Errorf(nil, RPCParseError("bad frame"))
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	id, ok := raw["id"]
	if !ok {
		t.Fatal("response omits the id key")
	}
	if string(id) != "null" {
		t.Errorf("id = %s, want null", id)
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	frame := []byte(`{"protocol_version":"2.0","method":"ping","id":7}`)
	var req Request
	if err := json.Unmarshal(frame, &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.Method != "ping" {
		t.Errorf("method = %q", req.Method)
	}
	if string(req.ID) != "7" {
		t.Errorf("id = %s, want 7", req.ID)
	}
}

func TestRPCErrorCodesStable(t *testing.T) {
	cases := []struct {
		err  *RPCError
		code int
	}{
		{RPCParseError("x"), -32700},
		{RPCMethodNotFound("x"), -32601},
		{RPCInvalidParams("x"), -32602},
		{RPCInternal("x"), -32603},
		{RPCAuthRequired(), -32001},
		{RPCForbidden(RoleAdmin, RoleViewer), -32002},
		{RPCUnknownTool("x"), -32003},
		{RPCRateLimited("x", 10), -32004},
		{RPCExecutionFailed("x", 500), -32005},
	}
	for _, tc := range cases {
		if tc.err.Code != tc.code {
			t.Errorf("%s: code = %d, want %d", tc.err.Message, tc.err.Code, tc.code)
		}
	}
}
