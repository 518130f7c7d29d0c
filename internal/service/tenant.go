package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/capitalize-ai/docsession/internal/model"
	"github.com/capitalize-ai/docsession/pkg/logger"
	"github.com/capitalize-ai/docsession/pkg/metrics"
)

// DefaultMinSwitchDuration is the shortest a tenant switch is shown as in progress.
const DefaultMinSwitchDuration = 500 * time.Millisecond

// TenantView is a snapshot of the coordinator for the UI.
type TenantView struct {
	Tenants    []model.Tenant `json:"tenants"`
	Active     *model.Tenant  `json:"active,omitempty"`
	Switching  bool           `json:"switching"`
	Busy       bool           `json:"busy"`
	BusyReason []string       `json:"busy_reason,omitempty"`
}

// TenantCoordinator owns the active tenant of one principal and refuses to
// switch it while any attached subsystem has work in flight.
type TenantCoordinator struct {
	principal string
	directory TenantDirectory
	hints     HintStore
	announce  announcer
	logger    *logger.Logger

	subsystems []Subsystem
	minSwitch  time.Duration

	performing inflight
	loading    inflight

	mu        sync.Mutex
	tenants   []model.Tenant
	active    model.Tenant
	switching bool
}

// TenantOption configures a TenantCoordinator.
type TenantOption func(*TenantCoordinator)

// WithMinSwitchDuration sets the minimum visible switch duration.
func WithMinSwitchDuration(d time.Duration) TenantOption {
	return func(c *TenantCoordinator) { c.minSwitch = d }
}

// NewTenantCoordinator creates a coordinator for principal.
func NewTenantCoordinator(directory TenantDirectory, hints HintStore, principal string, notifier Notifier, log *logger.Logger, opts ...TenantOption) *TenantCoordinator {
	c := &TenantCoordinator{
		principal: principal,
		directory: directory,
		hints:     hints,
		announce:  announcer{principal: principal, notifier: notifier},
		logger:    log.Named("tenants").With(zap.String("principal", principal)),
		minSwitch: DefaultMinSwitchDuration,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attach registers subsystems that are gated by and activated on switches.
func (c *TenantCoordinator) Attach(subsystems ...Subsystem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subsystems = append(c.subsystems, subsystems...)
}

// Busy reports whether a switch would be refused right now.
func (c *TenantCoordinator) Busy() bool {
	return len(c.BusyReason()) > 0
}

// BusyReason names everything currently holding a busy flag.
func (c *TenantCoordinator) BusyReason() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busyLocked()
}

func (c *TenantCoordinator) busyLocked() []string {
	var reasons []string
	if c.switching {
		reasons = append(reasons, "switching")
	}
	if c.performing.active() || c.loading.active() {
		reasons = append(reasons, "tenants")
	}
	for _, s := range c.subsystems {
		if s.Busy() {
			reasons = append(reasons, s.Name())
		}
	}
	return reasons
}

// Active returns the active tenant.
func (c *TenantCoordinator) Active() (model.Tenant, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.active.ID != ""
}

// ListTenants fetches the principal's tenants. If no tenant is active yet, or
// the active one is gone, it selects the remembered tenant or the first one.
func (c *TenantCoordinator) ListTenants(ctx context.Context) ([]model.Tenant, error) {
	done := c.loading.begin()
	defer done()

	tenants, err := c.directory.List(ctx)
	if err != nil {
		c.logger.Error("failed to fetch tenants", zap.Error(err))
		c.announce.send(ctx, c.activeID(), model.NoticeError, "%s", remoteMessage(err))
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	c.mu.Lock()
	c.tenants = tenants
	current, ok := findTenant(tenants, c.active.ID)
	if ok {
		c.active = current
		c.mu.Unlock()
		return cloneTenants(tenants), nil
	}
	c.mu.Unlock()

	seed, ok := c.seed(ctx, tenants)
	if !ok {
		c.mu.Lock()
		c.active = model.Tenant{}
		c.mu.Unlock()
		return cloneTenants(tenants), nil
	}

	c.mu.Lock()
	c.active = seed
	c.mu.Unlock()

	c.activate(ctx, seed)
	return cloneTenants(tenants), nil
}

func (c *TenantCoordinator) seed(ctx context.Context, tenants []model.Tenant) (model.Tenant, bool) {
	if len(tenants) == 0 {
		return model.Tenant{}, false
	}
	if c.hints != nil {
		hint, err := c.hints.Load(ctx, c.principal)
		if err != nil {
			c.logger.Warn("failed to load active tenant hint", zap.Error(err))
		} else if t, ok := findTenant(tenants, hint); ok {
			return t, true
		}
	}
	return tenants[0], true
}

// SetActiveTenant switches the active tenant. It is refused with ErrBusy
// while anything is in flight, and is a no-op for the current tenant.
func (c *TenantCoordinator) SetActiveTenant(ctx context.Context, tenantID string) error {
	c.mu.Lock()
	if reasons := c.busyLocked(); len(reasons) > 0 {
		tenant := c.active.ID
		c.mu.Unlock()
		metrics.TenantSwitchesTotal.WithLabelValues("busy").Inc()
		c.logger.Warn("tenant switch blocked", zap.Strings("busy", reasons))
		c.announce.send(ctx, tenant, model.NoticeWarning, "Please wait for the current operation to complete.")
		return ErrBusy
	}
	if c.active.ID != "" && c.active.ID == tenantID {
		active := c.active
		c.mu.Unlock()
		metrics.TenantSwitchesTotal.WithLabelValues("noop").Inc()
		c.announce.send(ctx, active.ID, model.NoticeInfo, "Already on %s", active.Name)
		return nil
	}
	target, ok := findTenant(c.tenants, tenantID)
	if !ok {
		c.mu.Unlock()
		metrics.TenantSwitchesTotal.WithLabelValues("unknown").Inc()
		return ErrUnknownTenant
	}
	c.switching = true
	c.active = target
	c.mu.Unlock()

	started := time.Now()
	defer func() {
		c.mu.Lock()
		c.switching = false
		c.mu.Unlock()
	}()

	if c.hints != nil {
		if err := c.hints.Save(ctx, c.principal, target.ID); err != nil {
			c.logger.Error("failed to persist active tenant hint", zap.String("tenant_id", target.ID), zap.Error(err))
		}
	}

	c.activate(ctx, target)

	if wait := c.minSwitch - time.Since(started); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	metrics.TenantSwitchesTotal.WithLabelValues("switched").Inc()
	c.logger.Info("tenant switched", zap.String("tenant_id", target.ID))
	c.announce.send(ctx, target.ID, model.NoticeSuccess, "Switched to %s", target.Name)
	return nil
}

// activate resets every attached subsystem for tenant. Failures are logged;
// each subsystem reports its own failures to the user.
func (c *TenantCoordinator) activate(ctx context.Context, tenant model.Tenant) {
	c.mu.Lock()
	subsystems := append([]Subsystem(nil), c.subsystems...)
	c.mu.Unlock()

	var g errgroup.Group
	for _, s := range subsystems {
		s := s
		g.Go(func() error {
			if err := s.Activate(ctx, tenant); err != nil {
				c.logger.Warn("subsystem activation failed",
					zap.String("subsystem", s.Name()),
					zap.String("tenant_id", tenant.ID),
					zap.Error(err),
				)
				return fmt.Errorf("%s: %w", s.Name(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, ErrStale) {
		c.logger.Debug("tenant activation incomplete", zap.Error(err))
	}
}

// CreateTenant registers a tenant and refreshes the listing.
func (c *TenantCoordinator) CreateTenant(ctx context.Context, req model.CreateTenantRequest) (*model.Tenant, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.RegistrationNo = strings.TrimSpace(req.RegistrationNo)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: company name is required", ErrInvalidInput)
	}

	done := c.performing.begin()
	defer done()

	tenant, err := c.directory.Create(ctx, req)
	if err != nil {
		c.logger.Error("failed to create tenant", zap.String("name", req.Name), zap.Error(err))
		c.announce.send(ctx, c.activeID(), model.NoticeError, "%s", remoteMessage(err))
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	c.announce.send(ctx, c.activeID(), model.NoticeSuccess, "Company added successfully!")

	if _, err := c.ListTenants(ctx); err != nil {
		c.logger.Warn("failed to refresh tenants after create", zap.Error(err))
	}
	return tenant, nil
}

// DeleteTenant deletes a tenant other than the active one.
func (c *TenantCoordinator) DeleteTenant(ctx context.Context, tenantID string) error {
	c.mu.Lock()
	active := c.active.ID
	tenant, known := findTenant(c.tenants, tenantID)
	c.mu.Unlock()

	if active != "" && active == tenantID {
		c.announce.send(ctx, active, model.NoticeWarning, "Switch to another company before deleting this one.")
		return ErrDeleteActive
	}
	if !known {
		tenant = model.Tenant{ID: tenantID, Name: tenantID}
	}

	done := c.performing.begin()
	defer done()

	if err := c.directory.Delete(ctx, tenantID); err != nil {
		c.logger.Error("failed to delete tenant", zap.String("tenant_id", tenantID), zap.Error(err))
		c.announce.send(ctx, active, model.NoticeError, "%s", remoteMessage(err))
		return fmt.Errorf("delete tenant: %w", err)
	}
	c.announce.send(ctx, active, model.NoticeSuccess, "Company: %s deleted successfully", tenant.Name)

	if c.hints != nil {
		hint, err := c.hints.Load(ctx, c.principal)
		if err == nil && hint == tenantID {
			if err := c.hints.Clear(ctx, c.principal); err != nil {
				c.logger.Warn("failed to clear active tenant hint", zap.Error(err))
			}
		}
	}

	if _, err := c.ListTenants(ctx); err != nil {
		c.logger.Warn("failed to refresh tenants after delete", zap.Error(err))
	}
	return nil
}

// View returns a snapshot of the coordinator.
func (c *TenantCoordinator) View() TenantView {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := TenantView{
		Tenants:   cloneTenants(c.tenants),
		Switching: c.switching,
	}
	if c.active.ID != "" {
		active := c.active
		view.Active = &active
	}
	view.BusyReason = c.busyLocked()
	view.Busy = len(view.BusyReason) > 0
	return view
}

func (c *TenantCoordinator) activeID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active.ID
}

func findTenant(tenants []model.Tenant, id string) (model.Tenant, bool) {
	if id == "" {
		return model.Tenant{}, false
	}
	for _, t := range tenants {
		if t.ID == id {
			return t, true
		}
	}
	return model.Tenant{}, false
}

func cloneTenants(tenants []model.Tenant) []model.Tenant {
	out := make([]model.Tenant, len(tenants))
	copy(out, tenants)
	return out
}
