package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/docsession/internal/model"
	"github.com/capitalize-ai/docsession/pkg/logger"
	"github.com/capitalize-ai/docsession/pkg/metrics"
)

// PersistOutcome describes what a Persist call did.
type PersistOutcome string

const (
	// PersistSkipped means there was nothing to save.
	PersistSkipped PersistOutcome = "skipped"
	// PersistApplied means the remote record now matches the transcript.
	PersistApplied PersistOutcome = "applied"
	// PersistStaleRemoved means the remote record was gone and the local
	// reference was dropped.
	PersistStaleRemoved PersistOutcome = "stale_removed"
	// PersistFailed means the save failed; Err holds the cause.
	PersistFailed PersistOutcome = "failed"
)

// PersistResult is returned by ConversationStore.Persist.
type PersistResult struct {
	Outcome PersistOutcome
	Err     error
}

// ConversationView is a snapshot of the store for the UI.
type ConversationView struct {
	TenantID      string               `json:"tenant_id"`
	Conversations []model.Conversation `json:"conversations"`
	OpenID        string               `json:"open_id,omitempty"`
	Transcript    []model.Message      `json:"transcript"`
	Replying      bool                 `json:"replying"`
	Busy          bool                 `json:"busy"`
}

// ConversationStore caches the active tenant's conversations and the open
// transcript, and keeps both in line with the remote store.
type ConversationStore struct {
	backend  ConversationBackend
	replier  Replier
	announce announcer
	logger   *logger.Logger

	mutating inflight
	replying inflight

	mu            sync.Mutex
	tenantID      string
	conversations []model.Conversation
	openID        string
	transcript    []model.Message
	revision      int
	savedRevision int
}

// NewConversationStore creates a conversation store.
func NewConversationStore(backend ConversationBackend, replier Replier, principal string, notifier Notifier, log *logger.Logger) *ConversationStore {
	return &ConversationStore{
		backend:  backend,
		replier:  replier,
		announce: announcer{principal: principal, notifier: notifier},
		logger:   log.Named("conversations"),
	}
}

// Name implements BusySource.
func (s *ConversationStore) Name() string { return "conversations" }

// Busy reports whether a mutation or a reply is in flight.
func (s *ConversationStore) Busy() bool {
	return s.mutating.active() || s.replying.active()
}

// Replying reports whether a reply is being generated.
func (s *ConversationStore) Replying() bool {
	return s.replying.active()
}

// Activate clears the transcript and loads the tenant's conversations.
func (s *ConversationStore) Activate(ctx context.Context, tenant model.Tenant) error {
	s.mu.Lock()
	s.tenantID = tenant.ID
	s.conversations = nil
	s.openID = ""
	s.transcript = nil
	s.revision, s.savedRevision = 0, 0
	s.mu.Unlock()

	return s.Refresh(ctx)
}

// Refresh replaces the cached list with the remote one.
func (s *ConversationStore) Refresh(ctx context.Context) error {
	done := s.mutating.begin()
	defer done()

	tenantID := s.currentTenant()
	if tenantID == "" {
		return ErrNoActiveTenant
	}
	return s.refreshList(ctx, tenantID)
}

func (s *ConversationStore) refreshList(ctx context.Context, tenantID string) error {
	list, err := s.backend.List(ctx, tenantID)
	if err != nil {
		s.logger.Error("failed to list conversations", zap.String("tenant_id", tenantID), zap.Error(err))
		s.announce.send(ctx, tenantID, model.NoticeError, "Failed to fetch chat histories.")
		return fmt.Errorf("list conversations: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tenantID != tenantID {
		return ErrStale
	}
	if len(list) > model.MaxConversations {
		list = list[:model.MaxConversations]
	}
	s.conversations = list
	return nil
}

// SendMessage appends a user message, creating a conversation first when
// none is open, and then appends the assistant reply. A failed reply leaves
// an apology in the transcript and returns nil.
func (s *ConversationStore) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	done := s.replying.begin()
	defer done()

	s.mu.Lock()
	tenantID := s.tenantID
	if tenantID == "" {
		s.mu.Unlock()
		return ErrNoActiveTenant
	}
	s.appendLocked(newMessage(model.RoleUser, text))
	openID := s.openID
	snapshot := s.transcriptLocked()
	s.mu.Unlock()

	if openID == "" {
		resp, err := s.backend.Create(ctx, tenantID, model.CreateConversationRequest{
			Title:    model.DeriveTitle(text),
			Messages: snapshot,
		})
		if err != nil {
			s.logger.Error("failed to create conversation", zap.String("tenant_id", tenantID), zap.Error(err))
			s.announce.send(ctx, tenantID, model.NoticeError, "Failed to create chat: %s", remoteMessage(err))
			return fmt.Errorf("create conversation: %w", err)
		}

		s.mu.Lock()
		if s.tenantID != tenantID {
			s.mu.Unlock()
			return ErrStale
		}
		if s.openID == "" {
			s.openID = resp.Conversation.ID
			s.savedRevision = len(snapshot)
		}
		openID = s.openID
		s.mu.Unlock()

		s.absorbCreated(ctx, tenantID, resp)
	}

	reply, err := s.replier.Reply(ctx, tenantID, text)

	s.mu.Lock()
	if s.tenantID != tenantID || s.openID != openID {
		s.mu.Unlock()
		s.logger.Info("discarding reply for closed conversation",
			zap.String("tenant_id", tenantID),
			zap.String("conversation_id", openID),
		)
		return ErrStale
	}
	if err != nil {
		s.appendLocked(newMessage(model.RoleAssistant, model.ApologyText))
		s.mu.Unlock()
		s.logger.Warn("reply failed", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil
	}
	s.appendLocked(newMessage(model.RoleAssistant, reply))
	s.mu.Unlock()

	s.Persist(ctx, nil)
	return nil
}

// Persist writes the open transcript, or override when given, to the
// remote record.
func (s *ConversationStore) Persist(ctx context.Context, override []model.Message) PersistResult {
	done := s.mutating.begin()
	defer done()

	s.mu.Lock()
	if s.openID == "" {
		s.mu.Unlock()
		return PersistResult{Outcome: PersistSkipped}
	}
	tenantID, openID := s.tenantID, s.openID
	revision := s.revision
	messages := override
	if messages == nil {
		messages = s.transcriptLocked()
	}
	title := model.DefaultConversationTitle
	if rec, ok := s.findLocked(openID); ok && rec.Title != "" {
		title = rec.Title
	}
	s.mu.Unlock()

	if title == model.DefaultConversationTitle {
		if first, ok := model.FirstUserMessage(messages); ok {
			title = model.DeriveTitle(first.Text)
		}
	}

	updated, err := s.backend.Update(ctx, tenantID, openID, model.UpdateConversationRequest{
		Title:    title,
		Messages: messages,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tenantID != tenantID {
		return PersistResult{Outcome: PersistSkipped, Err: ErrStale}
	}

	switch {
	case errors.Is(err, model.ErrNotFound):
		s.removeLocked(openID)
		if s.openID == openID {
			s.openID = ""
		}
		metrics.ConversationReconciliationsTotal.WithLabelValues("persist_not_found").Inc()
		s.logger.Info("conversation no longer exists, dropped local reference",
			zap.String("tenant_id", tenantID),
			zap.String("conversation_id", openID),
		)
		return PersistResult{Outcome: PersistStaleRemoved}
	case err != nil:
		s.logger.Error("failed to save conversation",
			zap.String("tenant_id", tenantID),
			zap.String("conversation_id", openID),
			zap.Error(err),
		)
		return PersistResult{Outcome: PersistFailed, Err: err}
	}

	for i := range s.conversations {
		if s.conversations[i].ID == openID {
			s.conversations[i].Title = updated.Title
			s.conversations[i].Messages = updated.Messages
			s.conversations[i].UpdatedAt = updated.UpdatedAt
		}
	}
	if s.openID == openID && override == nil && revision > s.savedRevision {
		s.savedRevision = revision
	}
	return PersistResult{Outcome: PersistApplied}
}

// Load opens a conversation, saving the current one first if it has
// unsaved messages.
func (s *ConversationStore) Load(ctx context.Context, conversationID string) error {
	done := s.mutating.begin()
	defer done()

	s.flush(ctx)

	tenantID := s.currentTenant()
	if tenantID == "" {
		return ErrNoActiveTenant
	}

	rec, err := s.backend.Get(ctx, tenantID, conversationID)
	if errors.Is(err, model.ErrNotFound) {
		s.mu.Lock()
		if s.tenantID == tenantID {
			s.removeLocked(conversationID)
		}
		s.mu.Unlock()
		metrics.ConversationReconciliationsTotal.WithLabelValues("load_not_found").Inc()
		s.announce.send(ctx, tenantID, model.NoticeInfo, "This chat no longer exists.")
		return err
	}
	if err != nil {
		s.logger.Error("failed to load conversation",
			zap.String("tenant_id", tenantID),
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		s.announce.send(ctx, tenantID, model.NoticeError, "%s", remoteMessage(err))
		return fmt.Errorf("load conversation: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tenantID != tenantID {
		return ErrStale
	}
	s.openID = rec.ID
	s.transcript = append([]model.Message(nil), rec.Messages...)
	s.revision = len(s.transcript)
	s.savedRevision = s.revision
	return nil
}

// CreateNew saves the open conversation if needed and opens a fresh one.
// When the remote store evicted its oldest record to make room, the list
// is refetched.
func (s *ConversationStore) CreateNew(ctx context.Context) error {
	done := s.mutating.begin()
	defer done()

	s.flush(ctx)

	tenantID := s.currentTenant()
	if tenantID == "" {
		return ErrNoActiveTenant
	}

	resp, err := s.backend.Create(ctx, tenantID, model.CreateConversationRequest{
		Title:    model.DefaultConversationTitle,
		Messages: []model.Message{},
	})
	if err != nil {
		s.logger.Error("failed to create conversation", zap.String("tenant_id", tenantID), zap.Error(err))
		s.announce.send(ctx, tenantID, model.NoticeError, "%s", remoteMessage(err))
		return fmt.Errorf("create conversation: %w", err)
	}

	s.mu.Lock()
	if s.tenantID != tenantID {
		s.mu.Unlock()
		return ErrStale
	}
	s.openID = resp.Conversation.ID
	s.transcript = nil
	s.revision, s.savedRevision = 0, 0
	s.mu.Unlock()

	s.announce.send(ctx, tenantID, model.NoticeSuccess, "New chat created.")
	s.absorbCreated(ctx, tenantID, resp)
	return nil
}

// absorbCreated mirrors a remote create into the cached list.
func (s *ConversationStore) absorbCreated(ctx context.Context, tenantID string, resp *model.CreateConversationResponse) {
	if resp.EvictedTitle != nil {
		metrics.ConversationReconciliationsTotal.WithLabelValues("evicted").Inc()
		s.announce.send(ctx, tenantID, model.NoticeInfo, "Oldest chat %q was removed to make room.", *resp.EvictedTitle)
		if err := s.refreshList(ctx, tenantID); err != nil {
			s.logger.Warn("refetch after eviction failed", zap.String("tenant_id", tenantID), zap.Error(err))
		}
		return
	}

	s.mu.Lock()
	if s.tenantID != tenantID {
		s.mu.Unlock()
		return
	}
	if len(s.conversations)+1 <= model.MaxConversations {
		s.conversations = append([]model.Conversation{resp.Conversation}, s.conversations...)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	metrics.ConversationReconciliationsTotal.WithLabelValues("overflow").Inc()
	if err := s.refreshList(ctx, tenantID); err != nil {
		s.logger.Warn("refetch after create failed", zap.String("tenant_id", tenantID), zap.Error(err))
	}
}

// DeleteConversation removes a conversation remotely and locally. A record
// that is already gone counts as deleted.
func (s *ConversationStore) DeleteConversation(ctx context.Context, conversationID string) error {
	done := s.mutating.begin()
	defer done()

	tenantID := s.currentTenant()
	if tenantID == "" {
		return ErrNoActiveTenant
	}

	err := s.backend.Delete(ctx, tenantID, conversationID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		s.logger.Error("failed to delete conversation",
			zap.String("tenant_id", tenantID),
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		s.announce.send(ctx, tenantID, model.NoticeError, "%s", remoteMessage(err))
		return fmt.Errorf("delete conversation: %w", err)
	}
	if err != nil {
		metrics.ConversationReconciliationsTotal.WithLabelValues("delete_not_found").Inc()
	}

	s.mu.Lock()
	if s.tenantID != tenantID {
		s.mu.Unlock()
		return ErrStale
	}
	s.removeLocked(conversationID)
	if s.openID == conversationID {
		s.openID = ""
		s.transcript = nil
		s.revision, s.savedRevision = 0, 0
	}
	s.mu.Unlock()

	s.announce.send(ctx, tenantID, model.NoticeSuccess, "Chat deleted successfully.")
	return nil
}

// View returns a snapshot of the store.
func (s *ConversationStore) View() ConversationView {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]model.Conversation, len(s.conversations))
	copy(list, s.conversations)
	return ConversationView{
		TenantID:      s.tenantID,
		Conversations: list,
		OpenID:        s.openID,
		Transcript:    s.transcriptLocked(),
		Replying:      s.replying.active(),
		Busy:          s.Busy(),
	}
}

// flush saves the open conversation when it has unsaved messages. Errors
// are logged only.
func (s *ConversationStore) flush(ctx context.Context) {
	s.mu.Lock()
	dirty := s.openID != "" && s.revision > s.savedRevision
	s.mu.Unlock()
	if !dirty {
		return
	}

	if res := s.Persist(ctx, nil); res.Outcome == PersistFailed {
		s.logger.Warn("best-effort save before switching conversation failed", zap.Error(res.Err))
	}
}

func (s *ConversationStore) currentTenant() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tenantID
}

func (s *ConversationStore) appendLocked(m model.Message) {
	s.transcript = append(s.transcript, m)
	s.revision++
	metrics.MessagesTotal.WithLabelValues(string(m.Role)).Inc()
}

func (s *ConversationStore) transcriptLocked() []model.Message {
	out := make([]model.Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

func (s *ConversationStore) findLocked(id string) (model.Conversation, bool) {
	for _, c := range s.conversations {
		if c.ID == id {
			return c, true
		}
	}
	return model.Conversation{}, false
}

func (s *ConversationStore) removeLocked(id string) {
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			s.conversations = append(s.conversations[:i], s.conversations[i+1:]...)
			return
		}
	}
}

func newMessage(role model.Role, text string) model.Message {
	return model.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Role:      role,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

// remoteMessage extracts a user-facing message from a remote error.
func remoteMessage(err error) string {
	var re interface{ UserMessage() string }
	if errors.As(err, &re) {
		return re.UserMessage()
	}
	return "Something went wrong."
}
