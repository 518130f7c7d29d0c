package service

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/capitalize-ai/docsession/pkg/logger"
	"github.com/capitalize-ai/docsession/pkg/metrics"
)

// Backends are the remote collaborators shared by every workspace.
type Backends struct {
	Tenants       TenantDirectory
	Conversations ConversationBackend
	Replier       Replier
	Documents     DocumentProcessor
	Sheets        SheetBackend
	Receipts      ReceiptBackend
	Hints         HintStore
}

// WorkspaceConfig tunes the containers of a workspace.
type WorkspaceConfig struct {
	UploadRemoveDelay time.Duration
	UploadErrorTTL    time.Duration
	MinSwitchDuration time.Duration
	InboxSize         int
}

// Workspace is the session state of one principal.
type Workspace struct {
	Principal     string
	Tenants       *TenantCoordinator
	Uploads       *UploadQueue
	Conversations *ConversationStore
	Sheets        *SheetConnection
	Gallery       *Gallery
	Inbox         *Inbox
}

// NewWorkspace wires the containers of principal. Notices go to the
// workspace inbox and to extra, if set.
func NewWorkspace(principal string, b Backends, cfg WorkspaceConfig, extra Notifier, log *logger.Logger) *Workspace {
	inbox := NewInbox(cfg.InboxSize)
	notifier := MultiNotifier{inbox, extra}

	var uploadOpts []UploadOption
	if cfg.UploadRemoveDelay > 0 {
		uploadOpts = append(uploadOpts, WithRemoveDelay(cfg.UploadRemoveDelay))
	}
	if cfg.UploadErrorTTL > 0 {
		uploadOpts = append(uploadOpts, WithErrorTTL(cfg.UploadErrorTTL))
	}
	var tenantOpts []TenantOption
	if cfg.MinSwitchDuration > 0 {
		tenantOpts = append(tenantOpts, WithMinSwitchDuration(cfg.MinSwitchDuration))
	}

	ws := &Workspace{
		Principal:     principal,
		Uploads:       NewUploadQueue(b.Documents, principal, notifier, log, uploadOpts...),
		Conversations: NewConversationStore(b.Conversations, b.Replier, principal, notifier, log),
		Sheets:        NewSheetConnection(b.Sheets, principal, notifier, log),
		Gallery:       NewGallery(b.Receipts, principal, notifier, log),
		Inbox:         inbox,
	}
	ws.Tenants = NewTenantCoordinator(b.Tenants, b.Hints, principal, notifier, log, tenantOpts...)
	ws.Tenants.Attach(ws.Uploads, ws.Conversations, ws.Sheets, ws.Gallery)
	return ws
}

// Registry keeps the most recently used workspaces.
type Registry struct {
	mu      sync.Mutex
	cache   *lru.Cache
	factory func(principal string) *Workspace
}

// NewRegistry creates a registry holding at most size workspaces. An
// evicted workspace is rebuilt from the remote stores on its next use.
func NewRegistry(size int, factory func(principal string) *Workspace, log *logger.Logger) (*Registry, error) {
	log = log.Named("registry")
	cache, err := lru.NewWithEvict(size, func(key, _ interface{}) {
		metrics.WorkspacesActive.Dec()
		log.Debug("workspace evicted", zap.Any("principal", key))
	})
	if err != nil {
		return nil, fmt.Errorf("create workspace cache: %w", err)
	}
	return &Registry{cache: cache, factory: factory}, nil
}

// Get returns the workspace of principal, creating it on first use.
func (r *Registry) Get(principal string) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.cache.Get(principal); ok {
		return v.(*Workspace)
	}
	ws := r.factory(principal)
	r.cache.Add(principal, ws)
	metrics.WorkspacesActive.Inc()
	return ws
}

// Len returns the number of live workspaces.
func (r *Registry) Len() int {
	return r.cache.Len()
}
