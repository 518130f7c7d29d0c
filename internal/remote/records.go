package remote

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/capitalize-ai/docsession/internal/model"
)

// TenantClient is the tenant directory of the record store.
type TenantClient struct {
	c *client
}

// NewTenantClient creates a tenant directory client.
func NewTenantClient(opts Options) *TenantClient {
	return &TenantClient{c: newClient("tenants", opts)}
}

type tenantsResponse struct {
	Message string         `json:"message"`
	Tenants []model.Tenant `json:"companies"`
}

type tenantResponse struct {
	Message string       `json:"message"`
	Tenant  model.Tenant `json:"company"`
}

// List returns the tenants of the caller.
func (t *TenantClient) List(ctx context.Context) ([]model.Tenant, error) {
	var out tenantsResponse
	_, err := t.c.call(ctx, "tenants.list", "", func(ctx context.Context) (*resty.Response, error) {
		return t.c.request(ctx, "").
			SetResult(&out).
			Get("/api/company/get-companies")
	})
	if err != nil {
		return nil, err
	}
	if out.Tenants == nil {
		out.Tenants = []model.Tenant{}
	}
	return out.Tenants, nil
}

// Create registers a tenant.
func (t *TenantClient) Create(ctx context.Context, req model.CreateTenantRequest) (*model.Tenant, error) {
	var out tenantResponse
	_, err := t.c.call(ctx, "tenants.create", "", func(ctx context.Context) (*resty.Response, error) {
		return t.c.request(ctx, "").
			SetHeader("Content-Type", "application/json").
			SetBody(req).
			SetResult(&out).
			Post("/api/company/set-company")
	})
	if err != nil {
		return nil, err
	}
	if out.Tenant.Name == "" {
		out.Tenant.Name = req.Name
		out.Tenant.RegistrationNo = req.RegistrationNo
	}
	return &out.Tenant, nil
}

// Delete removes a tenant.
func (t *TenantClient) Delete(ctx context.Context, tenantID string) error {
	_, err := t.c.call(ctx, "tenants.delete", tenantID, func(ctx context.Context) (*resty.Response, error) {
		return t.c.request(ctx, "").
			SetPathParam("id", tenantID).
			Delete("/api/company/delete-company/{id}")
	})
	return err
}

// ConversationClient is the conversation history of the record store.
type ConversationClient struct {
	c *client
}

// NewConversationClient creates a conversation store client.
func NewConversationClient(opts Options) *ConversationClient {
	return &ConversationClient{c: newClient("conversations", opts)}
}

// List returns the tenant's conversations, newest first.
func (cc *ConversationClient) List(ctx context.Context, tenantID string) ([]model.Conversation, error) {
	var out []model.Conversation
	_, err := cc.c.call(ctx, "conversations.list", tenantID, func(ctx context.Context) (*resty.Response, error) {
		return cc.c.request(ctx, tenantID).
			SetResult(&out).
			Get("/api/chat/chat-history")
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Create creates a conversation. The store evicts the tenant's oldest
// conversation when it already holds model.MaxConversations.
func (cc *ConversationClient) Create(ctx context.Context, tenantID string, req model.CreateConversationRequest) (*model.CreateConversationResponse, error) {
	var out model.CreateConversationResponse
	_, err := cc.c.call(ctx, "conversations.create", tenantID, func(ctx context.Context) (*resty.Response, error) {
		return cc.c.request(ctx, tenantID).
			SetHeader("Content-Type", "application/json").
			SetBody(req).
			SetResult(&out).
			Post("/api/chat/chat-history")
	})
	if err != nil {
		return nil, err
	}
	if out.Conversation.ID == "" {
		return nil, fmt.Errorf("conversations.create: response has no conversation id")
	}
	return &out, nil
}

// Get returns one conversation.
func (cc *ConversationClient) Get(ctx context.Context, tenantID, conversationID string) (*model.Conversation, error) {
	var out model.Conversation
	_, err := cc.c.call(ctx, "conversations.get", tenantID, func(ctx context.Context) (*resty.Response, error) {
		return cc.c.request(ctx, tenantID).
			SetPathParam("id", conversationID).
			SetResult(&out).
			Get("/api/chat/chat-history/{id}")
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces a conversation's title and messages.
func (cc *ConversationClient) Update(ctx context.Context, tenantID, conversationID string, req model.UpdateConversationRequest) (*model.Conversation, error) {
	var out model.Conversation
	_, err := cc.c.call(ctx, "conversations.update", tenantID, func(ctx context.Context) (*resty.Response, error) {
		return cc.c.request(ctx, tenantID).
			SetPathParam("id", conversationID).
			SetHeader("Content-Type", "application/json").
			SetBody(req).
			SetResult(&out).
			Patch("/api/chat/chat-history/{id}")
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a conversation.
func (cc *ConversationClient) Delete(ctx context.Context, tenantID, conversationID string) error {
	_, err := cc.c.call(ctx, "conversations.delete", tenantID, func(ctx context.Context) (*resty.Response, error) {
		return cc.c.request(ctx, tenantID).
			SetPathParam("id", conversationID).
			Delete("/api/chat/chat-history/{id}")
	})
	return err
}
