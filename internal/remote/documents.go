package remote

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/capitalize-ai/docsession/internal/model"
)

// searchDateLayout is the date format of the search bounds.
const searchDateLayout = "2006-01-02"

// DocumentClient talks to the document service: uploads, questions over
// the tenant's documents, listing and spreadsheet export.
type DocumentClient struct {
	c *client
}

// NewDocumentClient creates a document service client.
func NewDocumentClient(opts Options) *DocumentClient {
	return &DocumentClient{c: newClient("documents", opts)}
}

// Submit uploads one file for extraction.
func (d *DocumentClient) Submit(ctx context.Context, tenantID, tenantName string, file model.UploadFile) (*model.UploadResult, error) {
	var out model.UploadResult
	_, err := d.c.call(ctx, "documents.submit", tenantID, func(ctx context.Context) (*resty.Response, error) {
		return d.c.request(ctx, tenantID).
			SetHeader(HeaderTenantName, tenantName).
			SetFileReader("file", file.Name, bytes.NewReader(file.Content)).
			SetResult(&out).
			Post("/process-image")
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type chatRequest struct {
	Query string `json:"query"`
}

type chatResponse struct {
	Response string `json:"response"`
}

// Reply answers text from the tenant's documents.
func (d *DocumentClient) Reply(ctx context.Context, tenantID, text string) (string, error) {
	var out chatResponse
	_, err := d.c.call(ctx, "documents.reply", tenantID, func(ctx context.Context) (*resty.Response, error) {
		return d.c.request(ctx, tenantID).
			SetHeader("Content-Type", "application/json").
			SetBody(chatRequest{Query: text}).
			SetResult(&out).
			Post("/api/chat")
	})
	if err != nil {
		return "", err
	}
	if out.Response == "" {
		return "", fmt.Errorf("documents.reply: empty response")
	}
	return out.Response, nil
}

// Search lists the tenant's documents created between from and to. Zero
// bounds are omitted.
func (d *DocumentClient) Search(ctx context.Context, tenantID string, from, to time.Time) ([]model.Receipt, error) {
	var out []model.Receipt
	_, err := d.c.call(ctx, "documents.search", tenantID, func(ctx context.Context) (*resty.Response, error) {
		req := d.c.request(ctx, tenantID).SetResult(&out)
		if !from.IsZero() {
			req.SetQueryParam("start_date", from.Format(searchDateLayout))
		}
		if !to.IsZero() {
			req.SetQueryParam("end_date", to.Format(searchDateLayout))
		}
		return req.Get("/search-documents")
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Receipt{}
	}
	return out, nil
}

// Export renders one document as a spreadsheet. The file name comes from
// the Content-Disposition header.
func (d *DocumentClient) Export(ctx context.Context, tenantID, docID string) (*model.Export, error) {
	resp, err := d.c.call(ctx, "documents.export", tenantID, func(ctx context.Context) (*resty.Response, error) {
		return d.c.request(ctx, tenantID).
			SetPathParam("id", docID).
			Get("/generate-excel/{id}")
	})
	if err != nil {
		return nil, err
	}

	name := docID + ".xlsx"
	if _, params, err := mime.ParseMediaType(resp.Header().Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return &model.Export{
		FileName:    name,
		ContentType: contentType,
		Content:     resp.Body(),
	}, nil
}
