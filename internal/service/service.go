// Package service holds the per-principal session containers: the tenant
// coordinator and the tenant-scoped stores it gates.
package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/capitalize-ai/docsession/internal/model"
)

var (
	// ErrBusy is returned when a tenant switch is refused because work is in flight.
	ErrBusy = errors.New("another operation is in progress")
	// ErrUnknownTenant is returned when a tenant id is not in the directory listing.
	ErrUnknownTenant = errors.New("unknown tenant")
	// ErrDeleteActive is returned when deleting the active tenant.
	ErrDeleteActive = errors.New("cannot delete the active tenant")
	// ErrNoActiveTenant is returned by tenant-scoped operations before a tenant is active.
	ErrNoActiveTenant = errors.New("no active tenant")
	// ErrStale is returned when a result is discarded because the tenant or
	// conversation it was issued for is no longer current.
	ErrStale = errors.New("result discarded: session context changed")
	// ErrQueueFull is returned when the upload queue has no free slot.
	ErrQueueFull = errors.New("upload queue is full")
	// ErrInvalidLinkState is returned for a sheet operation that is not valid in the current state.
	ErrInvalidLinkState = errors.New("operation not valid in current link state")
	// ErrUnknownLink is returned when switching to a sheet that is not in the history.
	ErrUnknownLink = errors.New("sheet not found in history")
	// ErrInvalidRange is returned when a search range ends before it starts.
	ErrInvalidRange = errors.New("invalid date range")
	// ErrInvalidInput is returned for requests missing required fields.
	ErrInvalidInput = errors.New("invalid input")
)

// TenantDirectory lists, creates and deletes the tenants of the authenticated principal.
type TenantDirectory interface {
	List(ctx context.Context) ([]model.Tenant, error)
	Create(ctx context.Context, req model.CreateTenantRequest) (*model.Tenant, error)
	Delete(ctx context.Context, tenantID string) error
}

// ConversationBackend is the remote conversation store. Get, Update and
// Delete return model.ErrNotFound for records that no longer exist.
type ConversationBackend interface {
	List(ctx context.Context, tenantID string) ([]model.Conversation, error)
	Create(ctx context.Context, tenantID string, req model.CreateConversationRequest) (*model.CreateConversationResponse, error)
	Get(ctx context.Context, tenantID, conversationID string) (*model.Conversation, error)
	Update(ctx context.Context, tenantID, conversationID string, req model.UpdateConversationRequest) (*model.Conversation, error)
	Delete(ctx context.Context, tenantID, conversationID string) error
}

// Replier generates an assistant reply for a tenant's documents.
type Replier interface {
	Reply(ctx context.Context, tenantID, text string) (string, error)
}

// DocumentProcessor accepts files for extraction.
type DocumentProcessor interface {
	Submit(ctx context.Context, tenantID, tenantName string, file model.UploadFile) (*model.UploadResult, error)
}

// SheetBackend manages a tenant's spreadsheet link.
type SheetBackend interface {
	Status(ctx context.Context, tenantID string) (*model.SheetStatus, error)
	Connect(ctx context.Context, tenantID, tenantName string) (string, error)
	CreateAlternate(ctx context.Context, tenantID, tenantName string) (*model.SheetLink, error)
	SwitchActive(ctx context.Context, tenantID, linkID string) error
	Disconnect(ctx context.Context, tenantID string) error
}

// ReceiptBackend lists processed documents and renders them as spreadsheets.
type ReceiptBackend interface {
	Search(ctx context.Context, tenantID string, from, to time.Time) ([]model.Receipt, error)
	Export(ctx context.Context, tenantID, docID string) (*model.Export, error)
}

// HintStore keeps the last active tenant of a principal for the session.
type HintStore interface {
	Load(ctx context.Context, principal string) (string, error)
	Save(ctx context.Context, principal, tenantID string) error
	Clear(ctx context.Context, principal string) error
}

// BusySource reports whether a container has work in flight.
type BusySource interface {
	Name() string
	Busy() bool
}

// TenantScoped containers reset their state when a tenant becomes active.
type TenantScoped interface {
	Activate(ctx context.Context, tenant model.Tenant) error
}

// Subsystem is a container gated by the tenant coordinator.
type Subsystem interface {
	BusySource
	TenantScoped
}

// inflight counts operations holding a busy flag.
type inflight struct {
	n atomic.Int32
}

// begin raises the flag; the returned func releases it.
func (f *inflight) begin() func() {
	f.n.Add(1)
	return func() { f.n.Add(-1) }
}

func (f *inflight) active() bool {
	return f.n.Load() > 0
}
