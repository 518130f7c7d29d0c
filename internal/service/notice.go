package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/capitalize-ai/docsession/internal/model"
	"github.com/capitalize-ai/docsession/pkg/metrics"
)

// Notifier delivers user-visible notices.
type Notifier interface {
	Notify(ctx context.Context, n model.Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n model.Notice)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n model.Notice) {
	f(ctx, n)
}

// MultiNotifier fans a notice out to several notifiers.
type MultiNotifier []Notifier

// Notify delivers n to every notifier in order.
func (m MultiNotifier) Notify(ctx context.Context, n model.Notice) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}

// Inbox buffers notices until the UI drains them. When full, the oldest
// notice is dropped.
type Inbox struct {
	mu      sync.Mutex
	notices []model.Notice
	limit   int
}

// NewInbox creates an inbox holding at most limit notices.
func NewInbox(limit int) *Inbox {
	if limit <= 0 {
		limit = 50
	}
	return &Inbox{limit: limit}
}

// Notify appends n.
func (b *Inbox) Notify(_ context.Context, n model.Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.notices) == b.limit {
		b.notices = b.notices[1:]
	}
	b.notices = append(b.notices, n)
}

// Drain returns the buffered notices and empties the inbox.
func (b *Inbox) Drain() []model.Notice {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.notices
	b.notices = nil
	if out == nil {
		out = []model.Notice{}
	}
	return out
}

// Peek returns a copy of the buffered notices.
func (b *Inbox) Peek() []model.Notice {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]model.Notice, len(b.notices))
	copy(out, b.notices)
	return out
}

// announcer stamps notices with the principal and active tenant.
type announcer struct {
	principal string
	notifier  Notifier
}

func (a announcer) send(ctx context.Context, tenantID string, level model.NoticeLevel, format string, args ...any) {
	if a.notifier == nil {
		return
	}
	metrics.NoticesTotal.WithLabelValues(string(level)).Inc()
	a.notifier.Notify(ctx, model.Notice{
		Level:     level,
		Principal: a.principal,
		TenantID:  tenantID,
		Message:   fmt.Sprintf(format, args...),
		CreatedAt: time.Now().UTC(),
	})
}
