package remote

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/capitalize-ai/docsession/internal/model"
)

// SheetClient manages a tenant's spreadsheet link on the document service.
type SheetClient struct {
	c *client
}

// NewSheetClient creates a spreadsheet link client.
func NewSheetClient(opts Options) *SheetClient {
	return &SheetClient{c: newClient("sheets", opts)}
}

type connectResponse struct {
	AuthURL string `json:"auth_url"`
}

type sheetActionResponse struct {
	Status    string `json:"status"`
	SheetName string `json:"sheet_name"`
}

// Status returns the tenant's link and its history.
func (s *SheetClient) Status(ctx context.Context, tenantID string) (*model.SheetStatus, error) {
	var out model.SheetStatus
	_, err := s.c.call(ctx, "sheets.status", tenantID, func(ctx context.Context) (*resty.Response, error) {
		return s.c.request(ctx, tenantID).
			SetResult(&out).
			Get("/api/sheets/status")
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Connect starts the authorization flow and returns its URL.
func (s *SheetClient) Connect(ctx context.Context, tenantID, tenantName string) (string, error) {
	var out connectResponse
	_, err := s.c.call(ctx, "sheets.connect", tenantID, func(ctx context.Context) (*resty.Response, error) {
		return s.c.request(ctx, tenantID).
			SetHeader(HeaderTenantName, tenantName).
			SetResult(&out).
			Get("/api/sheets/connect")
	})
	if err != nil {
		return "", err
	}
	return out.AuthURL, nil
}

// CreateAlternate creates a spreadsheet and returns it. The service only
// reports the new name, so the link is read back from the status.
func (s *SheetClient) CreateAlternate(ctx context.Context, tenantID, tenantName string) (*model.SheetLink, error) {
	var out sheetActionResponse
	_, err := s.c.call(ctx, "sheets.create", tenantID, func(ctx context.Context) (*resty.Response, error) {
		return s.c.request(ctx, tenantID).
			SetHeader(HeaderTenantName, tenantName).
			SetResult(&out).
			Post("/api/sheets/create_new_sheet")
	})
	if err != nil {
		return nil, err
	}

	status, err := s.Status(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if status.ID == "" {
		return nil, fmt.Errorf("sheets.create: created sheet %q is not active", out.SheetName)
	}
	link := status.SheetLink
	return &link, nil
}

// SwitchActive makes linkID the tenant's active spreadsheet.
func (s *SheetClient) SwitchActive(ctx context.Context, tenantID, linkID string) error {
	_, err := s.c.call(ctx, "sheets.switch", tenantID, func(ctx context.Context) (*resty.Response, error) {
		return s.c.request(ctx, tenantID).
			SetHeader("Content-Type", "application/json").
			SetBody(model.SwitchSheetRequest{ID: linkID}).
			SetResult(&sheetActionResponse{}).
			Post("/api/sheets/switch_sheet")
	})
	return err
}

// Disconnect removes the tenant's link.
func (s *SheetClient) Disconnect(ctx context.Context, tenantID string) error {
	_, err := s.c.call(ctx, "sheets.disconnect", tenantID, func(ctx context.Context) (*resty.Response, error) {
		return s.c.request(ctx, tenantID).
			Post("/api/sheets/disconnect")
	})
	return err
}
