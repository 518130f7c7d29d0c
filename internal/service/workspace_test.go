package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/docsession/internal/model"
	"github.com/capitalize-ai/docsession/pkg/logger"
)

func testBackends() (Backends, *fakeProcessor) {
	processor := &fakeProcessor{release: make(chan struct{})}
	return Backends{
		Tenants:       &fakeDirectory{tenants: []model.Tenant{acme, globex}},
		Conversations: newFakeConversations(),
		Replier:       &fakeReplier{},
		Documents:     processor,
		Sheets:        connectedSheets(),
		Receipts:      &fakeReceipts{},
		Hints:         newMemHints(),
	}, processor
}

func TestWorkspace_UploadsGateTenantSwitch(t *testing.T) {
	b, processor := testBackends()
	rec := &recorder{}
	ws := NewWorkspace("alice", b, WorkspaceConfig{
		UploadRemoveDelay: time.Millisecond,
		MinSwitchDuration: time.Millisecond,
	}, rec, logger.Nop())

	_, err := ws.Tenants.ListTenants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.LinkConnected, ws.Sheets.View().State)
	assert.Equal(t, "t1", ws.Conversations.View().TenantID)

	_, err = ws.Uploads.Submit(context.Background(), files("a.png"), "t1", "Acme")
	require.NoError(t, err)

	assert.ErrorIs(t, ws.Tenants.SetActiveTenant(context.Background(), "t2"), ErrBusy)
	assert.Contains(t, ws.Tenants.BusyReason(), "uploads")

	close(processor.release)
	ws.Uploads.Wait()

	require.NoError(t, ws.Tenants.SetActiveTenant(context.Background(), "t2"))
	assert.Equal(t, "t2", ws.Conversations.View().TenantID)
	assert.Equal(t, "t2", ws.Sheets.View().TenantID)

	notices := ws.Inbox.Drain()
	assert.NotEmpty(t, notices)
	assert.Equal(t, len(rec.all()), len(notices))
}

func startWorkspace(t *testing.T, b Backends) *Workspace {
	t.Helper()
	ws := NewWorkspace("alice", b, WorkspaceConfig{
		UploadRemoveDelay: time.Millisecond,
		MinSwitchDuration: time.Millisecond,
	}, &recorder{}, logger.Nop())
	_, err := ws.Tenants.ListTenants(context.Background())
	require.NoError(t, err)
	require.Equal(t, "t1", ws.Conversations.View().TenantID)
	return ws
}

func TestWorkspace_PendingReplyGatesTenantSwitch(t *testing.T) {
	b, _ := testBackends()
	replier := &fakeReplier{reply: "hi", entered: make(chan struct{}), release: make(chan struct{})}
	b.Replier = replier
	ws := startWorkspace(t, b)

	sent := make(chan error, 1)
	go func() { sent <- ws.Conversations.SendMessage(context.Background(), "hello") }()
	<-replier.entered

	assert.ErrorIs(t, ws.Tenants.SetActiveTenant(context.Background(), "t2"), ErrBusy)
	assert.Contains(t, ws.Tenants.BusyReason(), "conversations")

	close(replier.release)
	require.NoError(t, <-sent)

	require.NoError(t, ws.Tenants.SetActiveTenant(context.Background(), "t2"))
	assert.Equal(t, "t2", ws.Conversations.View().TenantID)
}

func TestWorkspace_PersistGatesTenantSwitch(t *testing.T) {
	b, _ := testBackends()
	backend := b.Conversations.(*fakeConversations)
	ws := startWorkspace(t, b)
	require.NoError(t, ws.Conversations.SendMessage(context.Background(), "hello"))

	backend.updateEntered = make(chan struct{})
	backend.updateRelease = make(chan struct{})

	persisted := make(chan PersistResult, 1)
	go func() { persisted <- ws.Conversations.Persist(context.Background(), nil) }()
	<-backend.updateEntered

	assert.ErrorIs(t, ws.Tenants.SetActiveTenant(context.Background(), "t2"), ErrBusy)
	assert.Contains(t, ws.Tenants.BusyReason(), "conversations")

	close(backend.updateRelease)
	assert.Equal(t, PersistApplied, (<-persisted).Outcome)

	require.NoError(t, ws.Tenants.SetActiveTenant(context.Background(), "t2"))
	assert.Equal(t, "t2", ws.Conversations.View().TenantID)
}

func TestWorkspace_SheetSwitchGatesTenantSwitch(t *testing.T) {
	b, _ := testBackends()
	sheets := b.Sheets.(*fakeSheets)
	sheets.switchEntered = make(chan struct{})
	sheets.switchRelease = make(chan struct{})
	ws := startWorkspace(t, b)
	require.Equal(t, model.LinkConnected, ws.Sheets.View().State)

	switched := make(chan error, 1)
	go func() { switched <- ws.Sheets.SwitchActive(context.Background(), linkB.ID) }()
	<-sheets.switchEntered

	assert.ErrorIs(t, ws.Tenants.SetActiveTenant(context.Background(), "t2"), ErrBusy)
	assert.Contains(t, ws.Tenants.BusyReason(), "sheets")

	close(sheets.switchRelease)
	require.NoError(t, <-switched)
	assert.Equal(t, linkB, ws.Sheets.View().Active)

	require.NoError(t, ws.Tenants.SetActiveTenant(context.Background(), "t2"))
}

func TestRegistry_ReusesAndEvicts(t *testing.T) {
	b, _ := testBackends()
	built := 0
	reg, err := NewRegistry(2, func(principal string) *Workspace {
		built++
		return NewWorkspace(principal, b, WorkspaceConfig{}, nil, logger.Nop())
	}, logger.Nop())
	require.NoError(t, err)

	alice := reg.Get("alice")
	assert.Same(t, alice, reg.Get("alice"))
	reg.Get("bob")
	reg.Get("carol")

	assert.Equal(t, 2, reg.Len())
	assert.NotSame(t, alice, reg.Get("alice"))
	assert.Equal(t, 4, built)
}

func TestRegistry_RejectsInvalidSize(t *testing.T) {
	_, err := NewRegistry(0, nil, logger.Nop())
	assert.Error(t, err)
}
