package mcp

import (
	"encoding/json"

	"github.com/freeradical/mcp-gateway/pkg/types"
)

// Resource payloads are fixed descriptive documents; nothing here is
// tenant-specific, so resources need no authentication.

const capabilitiesURI = "freeradical://platform/capabilities"
const usageGuideURI = "freeradical://tools/usage-guide"

const capabilitiesText = `{
  "platform": "FreeRadical",
  "surfaces": {
    "content": "articles and pages, full CRUD through the REST API",
    "customers": "CRM records, list/get/create",
    "products": "catalog entries, list/get/create/update",
    "orders": "order lookup and listing",
    "campaigns": "marketing campaigns, list/create"
  },
  "tool_kinds": {
    "builtin": "platform tools; calls return REST calling guidance, never executed by the gateway",
    "custom": "tenant-registered webhooks; executed by the gateway with rate limits and an audit trail"
  }
}`

const usageGuideText = `{
  "steps": [
    "initialize: open a session and read server capabilities",
    "tools/list: discover built-in tools plus the custom tools your token can see",
    "tools/call: built-in tools return the exact REST request to make; custom tools run and return the webhook's JSON response",
    "resources/read: fetch these descriptive documents"
  ],
  "auth": "send Authorization: Bearer <jwt> on the upgrade request; anonymous sessions can initialize and list built-ins but cannot call tools",
  "errors": "responses carry stable numeric codes; -32004 means the tool's hourly rate window is exhausted"
}`

func platformResources() []types.Resource {
	return []types.Resource{
		{
			URI:         capabilitiesURI,
			Name:        "platform-capabilities",
			Description: "What the FreeRadical platform exposes through this gateway",
			MimeType:    "application/json",
		},
		{
			URI:         usageGuideURI,
			Name:        "tools-usage-guide",
			Description: "How to discover and call tools over this connection",
			MimeType:    "application/json",
		},
	}
}

func (s *Server) handleResourcesRead(req *types.Request) *types.Response {
	var params types.ReadResourceParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.URI == "" {
		return types.Errorf(req.ID, types.RPCInvalidParams("resources/read requires a uri"))
	}

	var text string
	switch params.URI {
	case capabilitiesURI:
		text = capabilitiesText
	case usageGuideURI:
		text = usageGuideText
	default:
		return types.Errorf(req.ID, types.RPCInvalidParams("unknown resource uri: "+params.URI))
	}

	return types.Result(req.ID, map[string]any{
		"contents": []types.ResourceContent{{
			URI:      params.URI,
			MimeType: "application/json",
			Text:     text,
		}},
	})
}
