package model

// Tenant is a company workspace. Tenants are created and deleted through the
// tenant directory and never mutated locally.
type Tenant struct {
	ID             string `json:"_id"`
	Name           string `json:"company_name"`
	RegistrationNo string `json:"pan_no"`
}

// CreateTenantRequest is the request to register a new tenant.
type CreateTenantRequest struct {
	Name           string `json:"company_name"`
	RegistrationNo string `json:"pan_no"`
}

// SetActiveTenantRequest selects the active tenant.
type SetActiveTenantRequest struct {
	TenantID string `json:"tenant_id"`
}
