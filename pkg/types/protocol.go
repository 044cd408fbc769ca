// Package types defines the protocol envelopes and tool models shared by the
// gateway, the admin API, and the client SDK.
package types

import (
	"encoding/json"
)

// ProtocolVersion is the only envelope version this server speaks.
const ProtocolVersion = "2.0"

// ──────────────────────────────────────────────────────────────────────────────
// Request / Response envelopes
// ──────────────────────────────────────────────────────────────────────────────

// Request is one inbound frame on a connection. ID is kept raw so string,
// number, and null ids all round-trip unchanged.
type Request struct {
	ProtocolVersion string          `json:"protocol_version"`
	Method          string          `json:"method"`
	Params          json.RawMessage `json:"params,omitempty"`
	ID              json.RawMessage `json:"id,omitempty"`
}

// Response is the reply to a single Request. Exactly one of Result/Error is
// set; ID always echoes the request id (null when it could not be recovered).
type Response struct {
	ProtocolVersion string          `json:"protocol_version"`
	Result          any             `json:"result,omitempty"`
	Error           *RPCError       `json:"error,omitempty"`
	ID              json.RawMessage `json:"id"`
}

// Result builds a success response for the given request id.
func Result(id json.RawMessage, result any) *Response {
	return &Response{ProtocolVersion: ProtocolVersion, Result: result, ID: normalizeID(id)}
}

// Errorf builds an error response for the given request id.
func Errorf(id json.RawMessage, rpcErr *RPCError) *Response {
	return &Response{ProtocolVersion: ProtocolVersion, Error: rpcErr, ID: normalizeID(id)}
}

// normalizeID maps an absent id to explicit JSON null so the "id" key is
// always present in responses.
func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

// ──────────────────────────────────────────────────────────────────────────────
// Method params
// ──────────────────────────────────────────────────────────────────────────────

// CallParams is the params shape for tools/call.
type CallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ReadResourceParams is the params shape for resources/read.
type ReadResourceParams struct {
	URI string `json:"uri"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Result payloads
// ──────────────────────────────────────────────────────────────────────────────

// ToolDescriptor is one entry in a tools/list result.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ContentBlock is one element of a tools/call result.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallResult is the result payload of tools/call.
type CallResult struct {
	Content []ContentBlock `json:"content"`
}

// TextResult wraps plain text as a single-block CallResult.
func TextResult(text string) *CallResult {
	return &CallResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

// Resource describes one readable resource in resources/list.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MimeType    string `json:"mime_type"`
}

// ResourceContent is one element of a resources/read result.
type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mime_type"`
	Text     string `json:"text"`
}
