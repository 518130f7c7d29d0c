package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/docsession/internal/model"
	"github.com/capitalize-ai/docsession/pkg/logger"
)

func newTestStore(t *testing.T, backend *fakeConversations, replier *fakeReplier, rec *recorder) *ConversationStore {
	t.Helper()
	s := NewConversationStore(backend, replier, "alice", rec, logger.Nop())
	require.NoError(t, s.Activate(context.Background(), model.Tenant{ID: "t1", Name: "Acme"}))
	return s
}

func roles(messages []model.Message) []model.Role {
	out := make([]model.Role, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.Role)
	}
	return out
}

func TestConversationStore_SendMessageIgnoresBlankInput(t *testing.T) {
	backend := newFakeConversations()
	replier := &fakeReplier{}
	s := newTestStore(t, backend, replier, &recorder{})

	require.NoError(t, s.SendMessage(context.Background(), "   \n\t"))

	assert.Empty(t, s.View().Transcript)
	assert.EqualValues(t, 0, backend.creates.Load())
	assert.EqualValues(t, 0, replier.calls.Load())
}

func TestConversationStore_SendMessageCreatesAndPersists(t *testing.T) {
	backend := newFakeConversations()
	replier := &fakeReplier{reply: "42"}
	s := newTestStore(t, backend, replier, &recorder{})

	long := strings.Repeat("a", 60)
	require.NoError(t, s.SendMessage(context.Background(), long))

	view := s.View()
	require.NotEmpty(t, view.OpenID)
	assert.Equal(t, []model.Role{model.RoleUser, model.RoleAssistant}, roles(view.Transcript))
	assert.Equal(t, "42", view.Transcript[1].Text)
	require.Len(t, view.Conversations, 1)

	rec, ok := backend.record("t1", view.OpenID)
	require.True(t, ok)
	assert.Equal(t, strings.Repeat("a", 50)+"...", rec.Title)
	assert.Len(t, rec.Messages, 2)
	assert.EqualValues(t, 1, backend.updates.Load())
}

func TestConversationStore_CreateFailureKeepsUserMessage(t *testing.T) {
	backend := newFakeConversations()
	backend.createErr = &userError{msg: "Database unavailable"}
	replier := &fakeReplier{}
	rec := &recorder{}
	s := newTestStore(t, backend, replier, rec)

	err := s.SendMessage(context.Background(), "hi")
	require.Error(t, err)

	view := s.View()
	require.Len(t, view.Transcript, 1)
	assert.Equal(t, model.RoleUser, view.Transcript[0].Role)
	assert.Equal(t, "hi", view.Transcript[0].Text)
	assert.Empty(t, view.OpenID)
	assert.EqualValues(t, 0, replier.calls.Load())
	assert.Equal(t, model.NoticeError, rec.last().Level)
	assert.Contains(t, rec.last().Message, "Database unavailable")
	assert.False(t, s.Busy())
}

func TestConversationStore_ReplyFailureAppendsApology(t *testing.T) {
	backend := newFakeConversations()
	replier := &fakeReplier{err: errRemote}
	s := newTestStore(t, backend, replier, &recorder{})

	require.NoError(t, s.SendMessage(context.Background(), "hello"))

	view := s.View()
	require.Len(t, view.Transcript, 2)
	assert.Equal(t, model.ApologyText, view.Transcript[1].Text)
	assert.EqualValues(t, 0, backend.updates.Load())

	rec, ok := backend.record("t1", view.OpenID)
	require.True(t, ok)
	assert.Len(t, rec.Messages, 1)
}

func TestConversationStore_PersistSkipsWithoutOpenConversation(t *testing.T) {
	backend := newFakeConversations()
	s := newTestStore(t, backend, &fakeReplier{}, &recorder{})

	res := s.Persist(context.Background(), nil)
	assert.Equal(t, PersistSkipped, res.Outcome)
	assert.EqualValues(t, 0, backend.updates.Load())
}

func TestConversationStore_PersistReconcilesDeletedRecord(t *testing.T) {
	backend := newFakeConversations()
	rec := &recorder{}
	s := newTestStore(t, backend, &fakeReplier{}, rec)

	require.NoError(t, s.SendMessage(context.Background(), "hello"))
	openID := s.View().OpenID
	require.NoError(t, backend.Delete(context.Background(), "t1", openID))
	before := len(rec.all())

	res := s.Persist(context.Background(), nil)
	assert.Equal(t, PersistStaleRemoved, res.Outcome)
	assert.NoError(t, res.Err)

	view := s.View()
	assert.Empty(t, view.OpenID)
	assert.Empty(t, view.Conversations)
	assert.Len(t, rec.all(), before)
}

func TestConversationStore_PersistFailureIsReported(t *testing.T) {
	backend := newFakeConversations()
	s := newTestStore(t, backend, &fakeReplier{}, &recorder{})

	require.NoError(t, s.SendMessage(context.Background(), "hello"))
	backend.updateErr = errRemote

	res := s.Persist(context.Background(), nil)
	assert.Equal(t, PersistFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, errRemote)
	assert.NotEmpty(t, s.View().OpenID)
}

func TestConversationStore_PersistDerivesTitleFromPlaceholder(t *testing.T) {
	backend := newFakeConversations()
	s := newTestStore(t, backend, &fakeReplier{}, &recorder{})

	require.NoError(t, s.CreateNew(context.Background()))
	openID := s.View().OpenID

	override := []model.Message{newMessage(model.RoleUser, "quarterly totals")}
	res := s.Persist(context.Background(), override)
	require.Equal(t, PersistApplied, res.Outcome)

	rec, ok := backend.record("t1", openID)
	require.True(t, ok)
	assert.Equal(t, "quarterly totals", rec.Title)
	assert.Equal(t, "quarterly totals", s.View().Conversations[0].Title)
}

func TestConversationStore_CreateNewEvictsOldest(t *testing.T) {
	backend := newFakeConversations()
	seeded := backend.seed("t1", model.MaxConversations)
	rec := &recorder{}
	s := newTestStore(t, backend, &fakeReplier{}, rec)
	require.Len(t, s.View().Conversations, model.MaxConversations)

	require.NoError(t, s.CreateNew(context.Background()))

	view := s.View()
	assert.Len(t, view.Conversations, model.MaxConversations)
	assert.Equal(t, model.MaxConversations, backend.count("t1"))
	for _, c := range view.Conversations {
		assert.NotEqual(t, seeded[0].ID, c.ID)
	}
	assert.Equal(t, view.OpenID, view.Conversations[0].ID)

	var evicted bool
	for _, n := range rec.all() {
		if strings.Contains(n.Message, seeded[0].Title) {
			evicted = true
		}
	}
	assert.True(t, evicted, "eviction notice should name %q", seeded[0].Title)
}

func TestConversationStore_CreateNewBelowLimitPrepends(t *testing.T) {
	backend := newFakeConversations()
	backend.seed("t1", 2)
	s := newTestStore(t, backend, &fakeReplier{}, &recorder{})

	require.NoError(t, s.CreateNew(context.Background()))

	view := s.View()
	require.Len(t, view.Conversations, 3)
	assert.Equal(t, view.OpenID, view.Conversations[0].ID)
	assert.Equal(t, model.DefaultConversationTitle, view.Conversations[0].Title)
	assert.Empty(t, view.Transcript)
}

func TestConversationStore_LoadSavesUnsavedTranscript(t *testing.T) {
	backend := newFakeConversations()
	seeded := backend.seed("t1", 1)
	replier := &fakeReplier{err: errRemote}
	s := newTestStore(t, backend, replier, &recorder{})

	require.NoError(t, s.SendMessage(context.Background(), "hello"))
	first := s.View().OpenID
	require.EqualValues(t, 0, backend.updates.Load())

	require.NoError(t, s.Load(context.Background(), seeded[0].ID))

	assert.EqualValues(t, 1, backend.updates.Load())
	rec, ok := backend.record("t1", first)
	require.True(t, ok)
	assert.Equal(t, []model.Role{model.RoleUser, model.RoleAssistant}, roles(rec.Messages))
	assert.Equal(t, seeded[0].ID, s.View().OpenID)
}

func TestConversationStore_LoadMissingRecordRemovesIt(t *testing.T) {
	backend := newFakeConversations()
	seeded := backend.seed("t1", 2)
	rec := &recorder{}
	s := newTestStore(t, backend, &fakeReplier{}, rec)
	require.NoError(t, backend.Delete(context.Background(), "t1", seeded[0].ID))

	err := s.Load(context.Background(), seeded[0].ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	view := s.View()
	require.Len(t, view.Conversations, 1)
	assert.Equal(t, seeded[1].ID, view.Conversations[0].ID)
	assert.Equal(t, model.NoticeInfo, rec.last().Level)
}

func TestConversationStore_DeleteOpenConversationClearsTranscript(t *testing.T) {
	backend := newFakeConversations()
	rec := &recorder{}
	s := newTestStore(t, backend, &fakeReplier{}, rec)

	require.NoError(t, s.SendMessage(context.Background(), "hello"))
	openID := s.View().OpenID

	require.NoError(t, s.DeleteConversation(context.Background(), openID))

	view := s.View()
	assert.Empty(t, view.OpenID)
	assert.Empty(t, view.Transcript)
	assert.Empty(t, view.Conversations)
	assert.Equal(t, "Chat deleted successfully.", rec.last().Message)
}

func TestConversationStore_DeleteMissingRecordCountsAsDeleted(t *testing.T) {
	backend := newFakeConversations()
	seeded := backend.seed("t1", 1)
	s := newTestStore(t, backend, &fakeReplier{}, &recorder{})
	require.NoError(t, backend.Delete(context.Background(), "t1", seeded[0].ID))

	require.NoError(t, s.DeleteConversation(context.Background(), seeded[0].ID))
	assert.Empty(t, s.View().Conversations)
}

func TestConversationStore_DiscardsReplyAfterTenantChange(t *testing.T) {
	backend := newFakeConversations()
	replier := &fakeReplier{entered: make(chan struct{}), release: make(chan struct{})}
	s := newTestStore(t, backend, replier, &recorder{})

	errc := make(chan error, 1)
	go func() { errc <- s.SendMessage(context.Background(), "hello") }()

	<-replier.entered
	assert.True(t, s.Busy())
	assert.True(t, s.Replying())
	require.NoError(t, s.Activate(context.Background(), model.Tenant{ID: "t2", Name: "Other"}))
	close(replier.release)

	assert.ErrorIs(t, <-errc, ErrStale)
	view := s.View()
	assert.Equal(t, "t2", view.TenantID)
	assert.Empty(t, view.Transcript)
	assert.False(t, s.Busy())
}

func TestConversationStore_ActivateLoadsOnlyTenantRecords(t *testing.T) {
	backend := newFakeConversations()
	backend.seed("t1", 2)
	backend.seed("t2", 1)
	s := newTestStore(t, backend, &fakeReplier{}, &recorder{})
	require.Len(t, s.View().Conversations, 2)

	require.NoError(t, s.Activate(context.Background(), model.Tenant{ID: "t2"}))
	view := s.View()
	require.Len(t, view.Conversations, 1)
	assert.Equal(t, "t2", view.Conversations[0].TenantID)
}
