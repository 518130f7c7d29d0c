package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/docsession/internal/model"
	"github.com/capitalize-ai/docsession/pkg/logger"
)

// SheetConnection tracks the active tenant's spreadsheet link. It only moves
// between states on explicit operations, and re-checks on tenant activation.
type SheetConnection struct {
	backend  SheetBackend
	announce announcer
	logger   *logger.Logger

	processing inflight
	switching  inflight

	mu      sync.Mutex
	tenant  model.Tenant
	state   model.LinkState
	active  model.SheetLink
	history []model.SheetLink
}

// NewSheetConnection creates a sheet connection in the checking state.
func NewSheetConnection(backend SheetBackend, principal string, notifier Notifier, log *logger.Logger) *SheetConnection {
	return &SheetConnection{
		backend:  backend,
		announce: announcer{principal: principal, notifier: notifier},
		logger:   log.Named("sheets"),
		state:    model.LinkChecking,
	}
}

// Name implements BusySource.
func (c *SheetConnection) Name() string { return "sheets" }

// Busy reports whether a link operation is in flight.
func (c *SheetConnection) Busy() bool {
	return c.processing.active() || c.switching.active()
}

// Activate resets to checking for the new tenant and fetches its status.
func (c *SheetConnection) Activate(ctx context.Context, tenant model.Tenant) error {
	c.mu.Lock()
	c.tenant = tenant
	c.resetLocked(model.LinkChecking)
	c.mu.Unlock()

	return c.Check(ctx)
}

// Check fetches the link status. A failed check leaves the link disconnected.
func (c *SheetConnection) Check(ctx context.Context) error {
	done := c.processing.begin()
	defer done()

	tenant := c.currentTenant()
	if tenant.ID == "" {
		return ErrNoActiveTenant
	}

	status, err := c.backend.Status(ctx, tenant.ID)

	c.mu.Lock()
	if c.tenant.ID != tenant.ID {
		c.mu.Unlock()
		return ErrStale
	}
	if err != nil {
		c.resetLocked(model.LinkDisconnected)
		c.mu.Unlock()
		c.logger.Error("failed to check sheet status", zap.String("tenant_id", tenant.ID), zap.Error(err))
		c.announce.send(ctx, tenant.ID, model.NoticeError, "%s", remoteMessage(err))
		return fmt.Errorf("check sheet status: %w", err)
	}
	if !status.Connected {
		c.resetLocked(model.LinkDisconnected)
	} else {
		c.state = model.LinkConnected
		c.active = status.SheetLink
		c.history = append([]model.SheetLink(nil), status.History...)
	}
	c.mu.Unlock()
	return nil
}

// Connect starts the external authorization flow and returns the URL the
// user must visit. The link state is only known after a later Check.
func (c *SheetConnection) Connect(ctx context.Context) (string, error) {
	tenant, err := c.require(model.LinkDisconnected)
	if err != nil {
		return "", err
	}

	done := c.processing.begin()
	defer done()

	url, err := c.backend.Connect(ctx, tenant.ID, tenant.Name)
	if err != nil {
		c.logger.Error("failed to start sheet authorization", zap.String("tenant_id", tenant.ID), zap.Error(err))
		c.announce.send(ctx, tenant.ID, model.NoticeError, "Failed to connect Google Sheets. Please try again.")
		return "", fmt.Errorf("connect sheets: %w", err)
	}
	if url == "" {
		c.announce.send(ctx, tenant.ID, model.NoticeError, "Failed to initiate Google OAuth.")
		return "", fmt.Errorf("connect sheets: empty authorization url")
	}
	return url, nil
}

// CreateAlternate creates a new spreadsheet and makes it the active link.
func (c *SheetConnection) CreateAlternate(ctx context.Context) error {
	tenant, err := c.require(model.LinkConnected)
	if err != nil {
		return err
	}

	done := c.processing.begin()
	defer done()

	link, err := c.backend.CreateAlternate(ctx, tenant.ID, tenant.Name)
	if err != nil {
		c.logger.Error("failed to create sheet", zap.String("tenant_id", tenant.ID), zap.Error(err))
		c.announce.send(ctx, tenant.ID, model.NoticeError, "%s", remoteMessage(err))
		return fmt.Errorf("create sheet: %w", err)
	}

	c.mu.Lock()
	if c.tenant.ID != tenant.ID {
		c.mu.Unlock()
		return ErrStale
	}
	history := []model.SheetLink{*link}
	for _, h := range c.history {
		if h.ID != link.ID {
			history = append(history, h)
		}
	}
	c.history = history
	c.active = *link
	c.mu.Unlock()

	c.announce.send(ctx, tenant.ID, model.NoticeSuccess, "New sheet: %s created successfully.", link.Name)
	return nil
}

// SwitchActive makes a spreadsheet from the history the active link.
// Switching to the already active link makes no remote call.
func (c *SheetConnection) SwitchActive(ctx context.Context, linkID string) error {
	c.mu.Lock()
	if c.state != model.LinkConnected {
		c.mu.Unlock()
		return ErrInvalidLinkState
	}
	tenant := c.tenant
	if linkID == c.active.ID {
		c.mu.Unlock()
		c.announce.send(ctx, tenant.ID, model.NoticeInfo, "This sheet is already active")
		return nil
	}
	var target *model.SheetLink
	for i := range c.history {
		if c.history[i].ID == linkID {
			link := c.history[i]
			target = &link
			break
		}
	}
	c.mu.Unlock()

	if target == nil {
		c.announce.send(ctx, tenant.ID, model.NoticeError, "Sheet not found in history")
		return ErrUnknownLink
	}

	done := c.switching.begin()
	defer done()

	if err := c.backend.SwitchActive(ctx, tenant.ID, linkID); err != nil {
		c.logger.Error("failed to switch sheet",
			zap.String("tenant_id", tenant.ID),
			zap.String("spreadsheet_id", linkID),
			zap.Error(err),
		)
		c.announce.send(ctx, tenant.ID, model.NoticeError, "Failed to switch sheets. Please try again.")
		return fmt.Errorf("switch sheet: %w", err)
	}

	c.mu.Lock()
	if c.tenant.ID != tenant.ID {
		c.mu.Unlock()
		return ErrStale
	}
	c.active = *target
	c.mu.Unlock()

	c.announce.send(ctx, tenant.ID, model.NoticeSuccess, "Switched to %s", target.Name)
	return nil
}

// Disconnect removes the link and its history from view.
func (c *SheetConnection) Disconnect(ctx context.Context) error {
	tenant, err := c.require(model.LinkConnected)
	if err != nil {
		return err
	}

	done := c.processing.begin()
	defer done()

	if err := c.backend.Disconnect(ctx, tenant.ID); err != nil {
		c.logger.Error("failed to disconnect sheet", zap.String("tenant_id", tenant.ID), zap.Error(err))
		c.announce.send(ctx, tenant.ID, model.NoticeError, "%s", remoteMessage(err))
		return fmt.Errorf("disconnect sheet: %w", err)
	}

	c.mu.Lock()
	if c.tenant.ID != tenant.ID {
		c.mu.Unlock()
		return ErrStale
	}
	c.resetLocked(model.LinkDisconnected)
	c.mu.Unlock()

	c.announce.send(ctx, tenant.ID, model.NoticeSuccess, "Sheet disconnected successfully.")
	return nil
}

// View returns a snapshot of the link.
func (c *SheetConnection) View() model.SheetView {
	c.mu.Lock()
	defer c.mu.Unlock()

	history := make([]model.SheetLink, len(c.history))
	copy(history, c.history)
	return model.SheetView{
		TenantID: c.tenant.ID,
		State:    c.state,
		Active:   c.active,
		History:  history,
		Busy:     c.Busy(),
	}
}

func (c *SheetConnection) require(state model.LinkState) (model.Tenant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tenant.ID == "" {
		return model.Tenant{}, ErrNoActiveTenant
	}
	if c.state != state {
		return model.Tenant{}, ErrInvalidLinkState
	}
	return c.tenant, nil
}

func (c *SheetConnection) currentTenant() model.Tenant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tenant
}

func (c *SheetConnection) resetLocked(state model.LinkState) {
	c.state = state
	c.active = model.SheetLink{}
	c.history = nil
}
