package builtin

import "encoding/json"

func schema(s string) json.RawMessage { return json.RawMessage(s) }

// Table is the static registry of built-in platform tools, in presentation
// order: content, customers, products, orders, campaigns.
var Table = []Spec{
	{
		Name:             "list_content",
		Description:      "List content pages for the tenant. Supports status and pagination filters.",
		RequiredRole:     "viewer",
		Method:           "GET",
		EndpointTemplate: "/v1/api/content",
		InputSchema: schema(`{"type":"object","properties":{
			"status":{"type":"string","enum":["draft","published","archived"]},
			"limit":{"type":"integer","minimum":1,"maximum":100},
			"offset":{"type":"integer","minimum":0}}}`),
	},
	{
		Name:             "get_content",
		Description:      "Fetch a single content page by id.",
		RequiredRole:     "viewer",
		Method:           "GET",
		EndpointTemplate: "/v1/api/content/{id}",
		InputSchema: schema(`{"type":"object","properties":{
			"id":{"type":"integer","description":"Content page id"}},"required":["id"]}`),
	},
	{
		Name:             "create_content",
		Description:      "Create a content page. Body fields: title, body, status.",
		RequiredRole:     "editor",
		Method:           "POST",
		EndpointTemplate: "/v1/api/content",
		InputSchema: schema(`{"type":"object","properties":{
			"title":{"type":"string"},
			"body":{"type":"string"},
			"status":{"type":"string","enum":["draft","published"]}},"required":["title","body"]}`),
	},
	{
		Name:             "update_content",
		Description:      "Update an existing content page.",
		RequiredRole:     "editor",
		Method:           "PUT",
		EndpointTemplate: "/v1/api/content/{id}",
		InputSchema: schema(`{"type":"object","properties":{
			"id":{"type":"integer"},
			"title":{"type":"string"},
			"body":{"type":"string"},
			"status":{"type":"string"}},"required":["id"]}`),
	},
	{
		Name:             "delete_content",
		Description:      "Delete a content page.",
		RequiredRole:     "admin",
		Method:           "DELETE",
		EndpointTemplate: "/v1/api/content/{id}",
		InputSchema:      schema(`{"type":"object","properties":{"id":{"type":"integer"}},"required":["id"]}`),
	},
	{
		Name:             "list_customers",
		Description:      "List CRM customers for the tenant.",
		RequiredRole:     "viewer",
		Method:           "GET",
		EndpointTemplate: "/v1/api/crm/customers",
		InputSchema: schema(`{"type":"object","properties":{
			"search":{"type":"string"},
			"limit":{"type":"integer"},
			"offset":{"type":"integer"}}}`),
	},
	{
		Name:             "get_customer",
		Description:      "Fetch a single CRM customer by id.",
		RequiredRole:     "viewer",
		Method:           "GET",
		EndpointTemplate: "/v1/api/crm/customers/{id}",
		InputSchema:      schema(`{"type":"object","properties":{"id":{"type":"integer"}},"required":["id"]}`),
	},
	{
		Name:             "create_customer",
		Description:      "Create a CRM customer. Body fields: email, name, tags.",
		RequiredRole:     "editor",
		Method:           "POST",
		EndpointTemplate: "/v1/api/crm/customers",
		InputSchema: schema(`{"type":"object","properties":{
			"email":{"type":"string","format":"email"},
			"name":{"type":"string"},
			"tags":{"type":"array","items":{"type":"string"}}},"required":["email"]}`),
	},
	{
		Name:             "list_products",
		Description:      "List commerce products for the tenant.",
		RequiredRole:     "viewer",
		Method:           "GET",
		EndpointTemplate: "/v1/api/products",
		InputSchema: schema(`{"type":"object","properties":{
			"category":{"type":"string"},
			"limit":{"type":"integer"},
			"offset":{"type":"integer"}}}`),
	},
	{
		Name:             "get_product",
		Description:      "Fetch a single product by id.",
		RequiredRole:     "viewer",
		Method:           "GET",
		EndpointTemplate: "/v1/api/products/{id}",
		InputSchema:      schema(`{"type":"object","properties":{"id":{"type":"integer"}},"required":["id"]}`),
	},
	{
		Name:             "create_product",
		Description:      "Create a product. Body fields: name, price_cents, sku, inventory.",
		RequiredRole:     "editor",
		Method:           "POST",
		EndpointTemplate: "/v1/api/products",
		InputSchema: schema(`{"type":"object","properties":{
			"name":{"type":"string"},
			"price_cents":{"type":"integer","minimum":0},
			"sku":{"type":"string"},
			"inventory":{"type":"integer","minimum":0}},"required":["name","price_cents"]}`),
	},
	{
		Name:             "update_product",
		Description:      "Update an existing product.",
		RequiredRole:     "editor",
		Method:           "PUT",
		EndpointTemplate: "/v1/api/products/{id}",
		InputSchema: schema(`{"type":"object","properties":{
			"id":{"type":"integer"},
			"name":{"type":"string"},
			"price_cents":{"type":"integer"},
			"inventory":{"type":"integer"}},"required":["id"]}`),
	},
	{
		Name:             "list_orders",
		Description:      "List commerce orders for the tenant.",
		RequiredRole:     "viewer",
		Method:           "GET",
		EndpointTemplate: "/v1/api/orders",
		InputSchema: schema(`{"type":"object","properties":{
			"status":{"type":"string","enum":["pending","paid","shipped","cancelled"]},
			"limit":{"type":"integer"},
			"offset":{"type":"integer"}}}`),
	},
	{
		Name:             "get_order",
		Description:      "Fetch a single order by id, including line items.",
		RequiredRole:     "viewer",
		Method:           "GET",
		EndpointTemplate: "/v1/api/orders/{id}",
		InputSchema:      schema(`{"type":"object","properties":{"id":{"type":"integer"}},"required":["id"]}`),
	},
	{
		Name:             "list_campaigns",
		Description:      "List marketing campaigns for the tenant.",
		RequiredRole:     "viewer",
		Method:           "GET",
		EndpointTemplate: "/v1/api/campaigns",
		InputSchema:      schema(`{"type":"object","properties":{"limit":{"type":"integer"},"offset":{"type":"integer"}}}`),
	},
	{
		Name:             "create_campaign",
		Description:      "Create a marketing campaign. Body fields: name, subject, segment.",
		RequiredRole:     "editor",
		Method:           "POST",
		EndpointTemplate: "/v1/api/campaigns",
		InputSchema: schema(`{"type":"object","properties":{
			"name":{"type":"string"},
			"subject":{"type":"string"},
			"segment":{"type":"string"}},"required":["name","subject"]}`),
	},
}
