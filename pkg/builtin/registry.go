// Package builtin holds the static table of platform tools. Built-in tools
// are never executed by the gateway: tools/call returns calling guidance so
// the agent makes the real request through the platform's authenticated REST
// API, where validation, audit, and business rules already live.
package builtin

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/freeradical/mcp-gateway/pkg/types"
)

// Spec is one row of the built-in tool table. Adding a tool is a data change,
// not a control-flow change.
type Spec struct {
	Name             string
	Description      string
	RequiredRole     types.Role
	Method           string
	EndpointTemplate string
	InputSchema      json.RawMessage
}

// Descriptor renders the spec as a tools/list entry.
func (s *Spec) Descriptor() types.ToolDescriptor {
	schema := s.InputSchema
	if len(schema) == 0 {
		schema = json.RawMessage(`{"type":"object"}`)
	}
	return types.ToolDescriptor{Name: s.Name, Description: s.Description, InputSchema: schema}
}

// Lookup finds a built-in spec by name.
func Lookup(name string) (*Spec, bool) {
	for i := range Table {
		if Table[i].Name == name {
			return &Table[i], true
		}
	}
	return nil, false
}

// Descriptors returns all built-in tools in table order.
func Descriptors() []types.ToolDescriptor {
	out := make([]types.ToolDescriptor, 0, len(Table))
	for i := range Table {
		out = append(out, Table[i].Descriptor())
	}
	return out
}

// DescriptorsFor returns the built-in tools the given role may call, in
// table order. Listing applies the same role gate as calling.
func DescriptorsFor(role types.Role) []types.ToolDescriptor {
	var out []types.ToolDescriptor
	for i := range Table {
		if role.AtLeast(Table[i].RequiredRole) {
			out = append(out, Table[i].Descriptor())
		}
	}
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Template fill
// ──────────────────────────────────────────────────────────────────────────────

// FilledCall is a built-in endpoint template resolved against call arguments.
type FilledCall struct {
	Method   string
	Endpoint string // path placeholders substituted, query appended for bodyless methods
	Body     []byte // JSON body for methods that carry one, nil otherwise
}

// bodyless reports whether the HTTP method carries its arguments in the URL.
func bodyless(method string) bool {
	return method == "GET" || method == "DELETE"
}

// Fill substitutes `{x}` placeholders in the spec's endpoint template from
// arguments. For bodyless methods the unused argument keys become query
// parameters; otherwise they are serialized as the JSON request body.
func (s *Spec) Fill(arguments map[string]any) (*FilledCall, error) {
	endpoint := s.EndpointTemplate
	used := map[string]bool{}

	for {
		open := strings.Index(endpoint, "{")
		if open < 0 {
			break
		}
		close := strings.Index(endpoint[open:], "}")
		if close < 0 {
			return nil, fmt.Errorf("builtin.Fill: unterminated placeholder in template %q", s.EndpointTemplate)
		}
		key := endpoint[open+1 : open+close]
		val, ok := arguments[key]
		if !ok {
			return nil, &types.ValidationError{Field: key, Reason: "required path parameter missing"}
		}
		endpoint = endpoint[:open] + url.PathEscape(argString(val)) + endpoint[open+close+1:]
		used[key] = true
	}

	rest := map[string]any{}
	for k, v := range arguments {
		if !used[k] {
			rest[k] = v
		}
	}

	call := &FilledCall{Method: s.Method, Endpoint: endpoint}
	if bodyless(s.Method) {
		if len(rest) > 0 {
			q := url.Values{}
			keys := make([]string, 0, len(rest))
			for k := range rest {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				q.Set(k, argString(rest[k]))
			}
			call.Endpoint += "?" + q.Encode()
		}
		return call, nil
	}

	body, err := json.Marshal(rest)
	if err != nil {
		return nil, fmt.Errorf("builtin.Fill: marshal body: %w", err)
	}
	call.Body = body
	return call, nil
}

// argString formats an argument value for use in a path or query component.
// JSON numbers arrive as float64; integers must not pick up a decimal point.
func argString(v any) string {
	switch n := v.(type) {
	case float64:
		if n == float64(int64(n)) {
			return fmt.Sprintf("%d", int64(n))
		}
		return fmt.Sprintf("%g", n)
	case string:
		return n
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Guidance rendering
// ──────────────────────────────────────────────────────────────────────────────

// Guidance renders the calling instructions returned to the agent instead of
// executing the call.
func Guidance(s *Spec, call *FilledCall, id types.Identity) string {
	var b strings.Builder

	fmt.Fprintf(&b, "To run %s, call the platform REST API directly:\n\n", s.Name)
	fmt.Fprintf(&b, "  %s %s\n\n", call.Method, call.Endpoint)
	b.WriteString("Required headers:\n")
	b.WriteString("  Authorization: Bearer <your platform token>\n")
	if call.Body != nil {
		b.WriteString("  Content-Type: application/json\n")
	}
	b.WriteString("\nExample request:\n")
	if call.Body != nil {
		fmt.Fprintf(&b, "  curl -X %s '%s' \\\n    -H 'Authorization: Bearer <token>' \\\n    -H 'Content-Type: application/json' \\\n    -d '%s'\n", call.Method, call.Endpoint, string(call.Body))
	} else {
		fmt.Fprintf(&b, "  curl -X %s '%s' -H 'Authorization: Bearer <token>'\n", call.Method, call.Endpoint)
	}
	fmt.Fprintf(&b, "\nCaller context: tenant=%s user=%s role=%s\n", id.TenantID, orDash(id.UserID), id.Role)
	b.WriteString("The gateway does not execute built-in tools; the REST API applies the platform's validation and audit rules.")

	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
