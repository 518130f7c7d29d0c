package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/capitalize-ai/docsession/internal/model"
)

var errRemote = errors.New("remote unavailable")

// userError mimics a remote error carrying a user-facing message.
type userError struct{ msg string }

func (e *userError) Error() string       { return "remote: " + e.msg }
func (e *userError) UserMessage() string { return e.msg }

// recorder collects notices.
type recorder struct {
	mu      sync.Mutex
	notices []model.Notice
}

func (r *recorder) Notify(_ context.Context, n model.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) all() []model.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Notice(nil), r.notices...)
}

func (r *recorder) last() model.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return model.Notice{}
	}
	return r.notices[len(r.notices)-1]
}

func (r *recorder) count(level model.NoticeLevel) int {
	n := 0
	for _, notice := range r.all() {
		if notice.Level == level {
			n++
		}
	}
	return n
}

type fakeDirectory struct {
	mu        sync.Mutex
	tenants   []model.Tenant
	listErr   error
	createErr error
	deleteErr error
	release   chan struct{}
	entered   chan struct{}

	lists   atomic.Int32
	deletes atomic.Int32
}

func (d *fakeDirectory) List(context.Context) ([]model.Tenant, error) {
	d.lists.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listErr != nil {
		return nil, d.listErr
	}
	return append([]model.Tenant(nil), d.tenants...), nil
}

func (d *fakeDirectory) Create(_ context.Context, req model.CreateTenantRequest) (*model.Tenant, error) {
	if d.entered != nil {
		d.entered <- struct{}{}
	}
	if d.release != nil {
		<-d.release
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createErr != nil {
		return nil, d.createErr
	}
	t := model.Tenant{ID: fmt.Sprintf("t%d", len(d.tenants)+1), Name: req.Name, RegistrationNo: req.RegistrationNo}
	d.tenants = append(d.tenants, t)
	return &t, nil
}

func (d *fakeDirectory) Delete(_ context.Context, tenantID string) error {
	d.deletes.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deleteErr != nil {
		return d.deleteErr
	}
	for i, t := range d.tenants {
		if t.ID == tenantID {
			d.tenants = append(d.tenants[:i], d.tenants[i+1:]...)
			return nil
		}
	}
	return model.ErrNotFound
}

type memHints struct {
	mu      sync.Mutex
	hints   map[string]string
	saveErr error
}

func newMemHints() *memHints { return &memHints{hints: map[string]string{}} }

func (h *memHints) Load(_ context.Context, principal string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hints[principal], nil
}

func (h *memHints) Save(_ context.Context, principal, tenantID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.saveErr != nil {
		return h.saveErr
	}
	h.hints[principal] = tenantID
	return nil
}

func (h *memHints) Clear(_ context.Context, principal string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.hints, principal)
	return nil
}

// fakeConversations is an in-memory record store that evicts the oldest
// record by updatedAt when a tenant would exceed MaxConversations.
type fakeConversations struct {
	mu        sync.Mutex
	records   map[string][]model.Conversation
	seq       int
	clock     time.Time
	createErr error
	updateErr error
	listErr   error

	// updateEntered and updateRelease gate Update when set.
	updateEntered chan struct{}
	updateRelease chan struct{}

	creates atomic.Int32
	updates atomic.Int32
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{
		records: map[string][]model.Conversation{},
		clock:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeConversations) tick() time.Time {
	f.clock = f.clock.Add(time.Minute)
	return f.clock
}

func (f *fakeConversations) seed(tenantID string, n int) []model.Conversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < n; i++ {
		f.seq++
		now := f.tick()
		f.records[tenantID] = append(f.records[tenantID], model.Conversation{
			ID:        fmt.Sprintf("c%d", f.seq),
			TenantID:  tenantID,
			Title:     fmt.Sprintf("chat %d", f.seq),
			Messages:  []model.Message{},
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return append([]model.Conversation(nil), f.records[tenantID]...)
}

func (f *fakeConversations) sortedLocked(tenantID string) []model.Conversation {
	out := append([]model.Conversation(nil), f.records[tenantID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

func (f *fakeConversations) List(_ context.Context, tenantID string) ([]model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.sortedLocked(tenantID), nil
}

func (f *fakeConversations) Create(_ context.Context, tenantID string, req model.CreateConversationRequest) (*model.CreateConversationResponse, error) {
	f.creates.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}

	resp := &model.CreateConversationResponse{}
	list := f.sortedLocked(tenantID)
	if len(list) >= model.MaxConversations {
		oldest := list[len(list)-1]
		f.removeLocked(tenantID, oldest.ID)
		title := oldest.Title
		resp.EvictedTitle = &title
	}

	f.seq++
	now := f.tick()
	rec := model.Conversation{
		ID:        fmt.Sprintf("c%d", f.seq),
		TenantID:  tenantID,
		Title:     req.Title,
		Messages:  append([]model.Message(nil), req.Messages...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.records[tenantID] = append(f.records[tenantID], rec)
	resp.Conversation = rec
	return resp, nil
}

func (f *fakeConversations) Get(_ context.Context, tenantID, id string) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.records[tenantID] {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *fakeConversations) Update(_ context.Context, tenantID, id string, req model.UpdateConversationRequest) (*model.Conversation, error) {
	f.updates.Add(1)
	if f.updateEntered != nil {
		f.updateEntered <- struct{}{}
	}
	if f.updateRelease != nil {
		<-f.updateRelease
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	for i := range f.records[tenantID] {
		c := &f.records[tenantID][i]
		if c.ID == id {
			c.Title = req.Title
			c.Messages = append([]model.Message(nil), req.Messages...)
			c.UpdatedAt = f.tick()
			out := *c
			return &out, nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *fakeConversations) Delete(_ context.Context, tenantID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.removeLocked(tenantID, id) {
		return model.ErrNotFound
	}
	return nil
}

func (f *fakeConversations) removeLocked(tenantID, id string) bool {
	list := f.records[tenantID]
	for i := range list {
		if list[i].ID == id {
			f.records[tenantID] = append(list[:i], list[i+1:]...)
			return true
		}
	}
	return false
}

func (f *fakeConversations) record(tenantID, id string) (model.Conversation, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.records[tenantID] {
		if c.ID == id {
			return c, true
		}
	}
	return model.Conversation{}, false
}

func (f *fakeConversations) count(tenantID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records[tenantID])
}

type fakeReplier struct {
	reply   string
	err     error
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (r *fakeReplier) Reply(_ context.Context, _, text string) (string, error) {
	r.calls.Add(1)
	if r.entered != nil {
		r.entered <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}
	if r.err != nil {
		return "", r.err
	}
	if r.reply != "" {
		return r.reply, nil
	}
	return "echo: " + text, nil
}

type fakeProcessor struct {
	release chan struct{}
	fail    map[string]bool
	calls   atomic.Int32
	ctxErrs atomic.Int32
}

func (p *fakeProcessor) Submit(ctx context.Context, _, _ string, file model.UploadFile) (*model.UploadResult, error) {
	p.calls.Add(1)
	if p.release != nil {
		<-p.release
	}
	if ctx.Err() != nil {
		p.ctxErrs.Add(1)
	}
	if p.fail[file.Name] {
		return nil, errRemote
	}
	return &model.UploadResult{DocumentKey: "doc-" + file.Name, Category: "receipt"}, nil
}

type fakeSheets struct {
	mu        sync.Mutex
	status    model.SheetStatus
	statusErr error
	connect   string
	switchErr error
	created   model.SheetLink

	switchEntered chan struct{}
	switchRelease chan struct{}

	switches    atomic.Int32
	disconnects atomic.Int32
}

func (s *fakeSheets) Status(context.Context, string) (*model.SheetStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	st := s.status
	return &st, nil
}

func (s *fakeSheets) Connect(context.Context, string, string) (string, error) {
	return s.connect, nil
}

func (s *fakeSheets) CreateAlternate(context.Context, string, string) (*model.SheetLink, error) {
	link := s.created
	return &link, nil
}

func (s *fakeSheets) SwitchActive(context.Context, string, string) error {
	s.switches.Add(1)
	if s.switchEntered != nil {
		s.switchEntered <- struct{}{}
	}
	if s.switchRelease != nil {
		<-s.switchRelease
	}
	return s.switchErr
}

func (s *fakeSheets) Disconnect(context.Context, string) error {
	s.disconnects.Add(1)
	return nil
}

type fakeReceipts struct {
	receipts []model.Receipt
	calls    atomic.Int32
}

func (r *fakeReceipts) Search(context.Context, string, time.Time, time.Time) ([]model.Receipt, error) {
	r.calls.Add(1)
	return r.receipts, nil
}

func (r *fakeReceipts) Export(_ context.Context, _, docID string) (*model.Export, error) {
	if docID == "" {
		return nil, errRemote
	}
	return &model.Export{FileName: docID + ".xlsx", ContentType: "application/octet-stream", Content: []byte("x")}, nil
}

// stubSubsystem is a gated subsystem whose busy flag is set by the test.
type stubSubsystem struct {
	name string
	busy atomic.Bool

	mu          sync.Mutex
	activations []string
}

func (s *stubSubsystem) Name() string { return s.name }
func (s *stubSubsystem) Busy() bool   { return s.busy.Load() }

func (s *stubSubsystem) Activate(_ context.Context, tenant model.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activations = append(s.activations, tenant.ID)
	return nil
}

func (s *stubSubsystem) activated() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.activations...)
}

func files(names ...string) []model.UploadFile {
	out := make([]model.UploadFile, 0, len(names))
	for _, n := range names {
		out = append(out, model.UploadFile{Name: n, Content: []byte(strings.ToUpper(n))})
	}
	return out
}
