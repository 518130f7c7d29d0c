package model

// LinkState is the state of a tenant's spreadsheet link.
type LinkState string

const (
	LinkChecking     LinkState = "checking"
	LinkConnected    LinkState = "connected"
	LinkDisconnected LinkState = "disconnected"
)

// SheetLink identifies one spreadsheet.
type SheetLink struct {
	ID   string `json:"spreadsheet_id"`
	Name string `json:"spreadsheet_name"`
	URL  string `json:"spreadsheet_url"`
}

// SheetStatus is the remote view of a tenant's spreadsheet connection.
type SheetStatus struct {
	Connected bool `json:"connected"`
	SheetLink
	History []SheetLink `json:"history"`
}

// SheetView is the local state of a tenant's spreadsheet connection.
type SheetView struct {
	TenantID string      `json:"tenant_id"`
	State    LinkState   `json:"state"`
	Active   SheetLink   `json:"active"`
	History  []SheetLink `json:"history"`
	Busy     bool        `json:"busy"`
}

// SwitchSheetRequest selects a spreadsheet from the history.
type SwitchSheetRequest struct {
	ID string `json:"spreadsheet_id"`
}
