package tenants

// Tenant is the organisation snapshot returned at login. One tenant may own several businesses.
type Tenant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Business is a single shop or outlet within a tenant. Sales are always recorded against a business.
type Business struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId,omitempty"`
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
}

// Context is the multi-tenant scope attached to every outbound call.
type Context struct {
	TenantID   string
	BusinessID string
}

func (c Context) IsZero() bool {
	return c.TenantID == "" && c.BusinessID == ""
}
