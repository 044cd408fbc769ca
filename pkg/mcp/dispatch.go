package mcp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/freeradical/mcp-gateway/pkg/builtin"
	"github.com/freeradical/mcp-gateway/pkg/types"
)

// ServerName and ServerVersion identify the gateway in initialize responses.
const (
	ServerName    = "freeradical-mcp-gateway"
	ServerVersion = "1.0.0"
)

// dispatch routes one request to its method handler and always produces a
// response echoing the request id.
func (s *Server) dispatch(ctx context.Context, id types.Identity, req *types.Request) *types.Response {
	if req.ProtocolVersion != "" && req.ProtocolVersion != types.ProtocolVersion {
		return types.Errorf(req.ID, types.RPCInvalidParams("unsupported protocol_version "+req.ProtocolVersion))
	}

	switch req.Method {
	case "initialize":
		return types.Result(req.ID, map[string]any{
			"protocol_version": types.ProtocolVersion,
			"server_info": map[string]any{
				"name":    ServerName,
				"version": ServerVersion,
			},
			"capabilities": map[string]any{
				"tools":     map[string]any{},
				"resources": map[string]any{},
			},
		})

	case "ping":
		return types.Result(req.ID, map[string]any{})

	case "tools/list":
		return s.handleToolsList(ctx, id, req)

	case "tools/call":
		return s.handleToolsCall(ctx, id, req)

	case "resources/list":
		return types.Result(req.ID, map[string]any{"resources": platformResources()})

	case "resources/read":
		return s.handleResourcesRead(req)

	default:
		return types.Errorf(req.ID, types.RPCMethodNotFound(req.Method))
	}
}

// handleToolsList returns the built-ins the caller's role may call, in table
// order, followed by the caller's visible custom tools in store order.
// Anonymous callers see viewer-level built-ins only.
func (s *Server) handleToolsList(ctx context.Context, id types.Identity, req *types.Request) *types.Response {
	tools := builtin.DescriptorsFor(id.Role)

	custom, err := s.store.ListVisible(ctx, id.TenantID, id.Role)
	if err != nil {
		s.log.ErrorContext(ctx, "list custom tools failed", "tenant_id", id.TenantID, "error", err)
		return types.Errorf(req.ID, types.RPCInternal("could not list tools"))
	}
	for i := range custom {
		tools = append(tools, custom[i].Descriptor())
	}

	return types.Result(req.ID, map[string]any{"tools": tools})
}

// handleToolsCall routes a call to the built-in guidance path or the custom
// executor. Authentication is required before any name resolution so an
// anonymous caller cannot probe which tools exist.
func (s *Server) handleToolsCall(ctx context.Context, id types.Identity, req *types.Request) *types.Response {
	var params types.CallParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return types.Errorf(req.ID, types.RPCInvalidParams("tools/call requires a tool name"))
	}

	if !id.Authenticated() {
		return types.Errorf(req.ID, types.RPCAuthRequired())
	}

	if spec, ok := builtin.Lookup(params.Name); ok {
		return s.callBuiltin(id, req, spec, params.Arguments)
	}

	tool, err := s.store.GetToolByName(ctx, params.Name, id.TenantID)
	if err != nil {
		s.log.ErrorContext(ctx, "tool lookup failed", "tool", params.Name, "error", err)
		return types.Errorf(req.ID, types.RPCInternal("tool lookup failed"))
	}
	if tool == nil {
		return types.Errorf(req.ID, types.RPCUnknownTool(params.Name))
	}
	if !id.Role.AtLeast(tool.RequiredRole) {
		return types.Errorf(req.ID, types.RPCForbidden(tool.RequiredRole, id.Role))
	}

	output, err := s.exec.Execute(ctx, tool, params.Arguments, id.TenantID, id.UserID)
	if err != nil {
		var rpcErr *types.RPCError
		if errors.As(err, &rpcErr) {
			return types.Errorf(req.ID, rpcErr)
		}
		return types.Errorf(req.ID, types.RPCInternal(err.Error()))
	}
	return types.Result(req.ID, types.TextResult(string(output)))
}

// callBuiltin resolves a built-in tool to guidance text. No network call is
// made on this path.
func (s *Server) callBuiltin(id types.Identity, req *types.Request, spec *builtin.Spec, rawArgs json.RawMessage) *types.Response {
	if !id.Role.AtLeast(spec.RequiredRole) {
		return types.Errorf(req.ID, types.RPCForbidden(spec.RequiredRole, id.Role))
	}

	args := map[string]any{}
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return types.Errorf(req.ID, types.RPCInvalidParams("arguments must be a JSON object"))
		}
	}

	call, err := spec.Fill(args)
	if err != nil {
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			return types.Errorf(req.ID, types.RPCInvalidParams(verr.Error()))
		}
		return types.Errorf(req.ID, types.RPCInternal(err.Error()))
	}

	return types.Result(req.ID, types.TextResult(builtin.Guidance(spec, call, id)))
}
