package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/docsession/internal/model"
	"github.com/capitalize-ai/docsession/pkg/logger"
)

// Gallery lists the active tenant's processed documents and exports them.
type Gallery struct {
	backend  ReceiptBackend
	announce announcer
	logger   *logger.Logger

	loading inflight

	mu       sync.Mutex
	tenantID string
	receipts []model.Receipt
}

// NewGallery creates a gallery.
func NewGallery(backend ReceiptBackend, principal string, notifier Notifier, log *logger.Logger) *Gallery {
	return &Gallery{
		backend:  backend,
		announce: announcer{principal: principal, notifier: notifier},
		logger:   log.Named("gallery"),
	}
}

// Name implements BusySource.
func (g *Gallery) Name() string { return "gallery" }

// Busy reports whether a listing or export is in flight.
func (g *Gallery) Busy() bool { return g.loading.active() }

// Activate clears the listing and loads the tenant's documents.
func (g *Gallery) Activate(ctx context.Context, tenant model.Tenant) error {
	g.mu.Lock()
	g.tenantID = tenant.ID
	g.receipts = nil
	g.mu.Unlock()

	return g.Search(ctx, time.Time{}, time.Time{})
}

// Refresh reloads the full listing of the active tenant.
func (g *Gallery) Refresh(ctx context.Context) error {
	return g.Search(ctx, time.Time{}, time.Time{})
}

// Search lists documents created between from and to. Zero bounds are open.
func (g *Gallery) Search(ctx context.Context, from, to time.Time) error {
	g.mu.Lock()
	tenantID := g.tenantID
	g.mu.Unlock()

	if tenantID == "" {
		return ErrNoActiveTenant
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		g.announce.send(ctx, tenantID, model.NoticeError, "From date should be earlier than To date!")
		return ErrInvalidRange
	}

	done := g.loading.begin()
	defer done()

	receipts, err := g.backend.Search(ctx, tenantID, from, to)
	if err != nil {
		g.logger.Error("failed to fetch documents", zap.String("tenant_id", tenantID), zap.Error(err))
		g.announce.send(ctx, tenantID, model.NoticeError, "Failed to fetch documents.")
		return fmt.Errorf("search documents: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.tenantID != tenantID {
		return ErrStale
	}
	g.receipts = receipts
	return nil
}

// Export renders one document as a spreadsheet.
func (g *Gallery) Export(ctx context.Context, docID string) (*model.Export, error) {
	g.mu.Lock()
	tenantID := g.tenantID
	g.mu.Unlock()

	if tenantID == "" {
		return nil, ErrNoActiveTenant
	}

	done := g.loading.begin()
	defer done()

	export, err := g.backend.Export(ctx, tenantID, docID)
	if err != nil {
		g.logger.Error("failed to export document",
			zap.String("tenant_id", tenantID),
			zap.String("doc_id", docID),
			zap.Error(err),
		)
		g.announce.send(ctx, tenantID, model.NoticeError, "Failed to download Excel. Please try again.")
		return nil, fmt.Errorf("export document: %w", err)
	}
	return export, nil
}

// Receipts returns the current listing.
func (g *Gallery) Receipts() []model.Receipt {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]model.Receipt, len(g.receipts))
	copy(out, g.receipts)
	return out
}
