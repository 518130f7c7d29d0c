package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/docsession/internal/model"
	"github.com/capitalize-ai/docsession/pkg/logger"
	"github.com/capitalize-ai/docsession/pkg/metrics"
)

const (
	// DefaultUploadRemoveDelay is how long a finished item stays visible.
	DefaultUploadRemoveDelay = 1500 * time.Millisecond
	// DefaultUploadErrorTTL is how long the queue-level error message stays set.
	DefaultUploadErrorTTL = 5 * time.Second
)

// UploadQueue tracks file submissions for the active tenant. At most
// model.MaxUploads items are visible; each accepted file is submitted on its own.
type UploadQueue struct {
	processor DocumentProcessor
	announce  announcer
	logger    *logger.Logger

	removeDelay time.Duration
	errorTTL    time.Duration

	seq atomic.Uint64
	wg  sync.WaitGroup

	mu       sync.Mutex
	items    []model.UploadItem
	errMsg   string
	errTimer *time.Timer
}

// UploadOption configures an UploadQueue.
type UploadOption func(*UploadQueue)

// WithRemoveDelay sets how long finished items stay in the queue.
func WithRemoveDelay(d time.Duration) UploadOption {
	return func(q *UploadQueue) { q.removeDelay = d }
}

// WithErrorTTL sets how long the queue-level error message is shown.
func WithErrorTTL(d time.Duration) UploadOption {
	return func(q *UploadQueue) { q.errorTTL = d }
}

// NewUploadQueue creates an upload queue.
func NewUploadQueue(processor DocumentProcessor, principal string, notifier Notifier, log *logger.Logger, opts ...UploadOption) *UploadQueue {
	q := &UploadQueue{
		processor:   processor,
		announce:    announcer{principal: principal, notifier: notifier},
		logger:      log.Named("uploads"),
		removeDelay: DefaultUploadRemoveDelay,
		errorTTL:    DefaultUploadErrorTTL,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Name implements BusySource.
func (q *UploadQueue) Name() string { return "uploads" }

// Busy reports whether any item is still processing.
func (q *UploadQueue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, item := range q.items {
		if item.Status == model.UploadProcessing {
			return true
		}
	}
	return false
}

// IsDisabled reports whether the queue has no free slot.
func (q *UploadQueue) IsDisabled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) >= model.MaxUploads
}

// Activate drops finished items that belong to another tenant.
func (q *UploadQueue) Activate(_ context.Context, tenant model.Tenant) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.items[:0]
	for _, item := range q.items {
		if item.TenantID == tenant.ID || !item.Status.Terminal() {
			kept = append(kept, item)
		}
	}
	q.items = kept
	return nil
}

// Submit queues as many files as there are free slots, in input order, and
// starts one submission per accepted file. The remaining files are rejected.
// Submissions outlive ctx's cancellation but keep its values.
func (q *UploadQueue) Submit(ctx context.Context, files []model.UploadFile, tenantID, tenantName string) (*model.SubmitResult, error) {
	if tenantID == "" {
		return nil, ErrNoActiveTenant
	}

	q.mu.Lock()
	available := model.MaxUploads - len(q.items)
	if available <= 0 {
		q.setErrorLocked(fmt.Sprintf("Maximum %d files allowed. Please wait for current uploads to complete.", model.MaxUploads))
		q.mu.Unlock()
		return nil, ErrQueueFull
	}

	accepted := files
	var rejected []string
	if len(files) > available {
		accepted = files[:available]
		for _, f := range files[available:] {
			rejected = append(rejected, f.Name)
		}
		q.setErrorLocked(fmt.Sprintf("You can only upload %d more file(s). Maximum %d files at a time.", available, model.MaxUploads))
	}

	result := &model.SubmitResult{Rejected: rejected}
	now := time.Now().UTC()
	for _, f := range accepted {
		id := q.seq.Add(1)
		q.items = append(q.items, model.UploadItem{
			ID:        id,
			TenantID:  tenantID,
			FileName:  f.Name,
			Status:    model.UploadProcessing,
			Timestamp: now,
		})
		result.Accepted = append(result.Accepted, id)
	}
	q.mu.Unlock()

	if len(rejected) > 0 {
		q.announce.send(ctx, tenantID, model.NoticeError, "Failed to upload: %s", strings.Join(rejected, ", "))
	}

	bg := context.WithoutCancel(ctx)
	for i, f := range accepted {
		id := result.Accepted[i]
		q.wg.Add(1)
		metrics.UploadsActive.Inc()
		go q.process(bg, id, f, tenantID, tenantName)
	}

	return result, nil
}

func (q *UploadQueue) process(ctx context.Context, id uint64, file model.UploadFile, tenantID, tenantName string) {
	res, err := q.processor.Submit(ctx, tenantID, tenantName, file)
	metrics.UploadsActive.Dec()

	status := model.UploadSuccess
	if err != nil {
		status = model.UploadError
		q.logger.Warn("upload failed",
			zap.Uint64("item_id", id),
			zap.String("tenant_id", tenantID),
			zap.String("file", file.Name),
			zap.Error(err),
		)
	}
	metrics.UploadsTotal.WithLabelValues(string(status)).Inc()

	q.mu.Lock()
	for i := range q.items {
		if q.items[i].ID != id {
			continue
		}
		q.items[i].Status = status
		if err != nil {
			q.items[i].Error = "Upload failed"
		} else {
			q.items[i].Result = res
		}
		break
	}
	q.mu.Unlock()

	time.AfterFunc(q.removeDelay, func() {
		defer q.wg.Done()
		q.remove(id)
	})
}

func (q *UploadQueue) remove(id uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.items {
		if q.items[i].ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}

// setErrorLocked sets the queue-level message and schedules it to clear.
func (q *UploadQueue) setErrorLocked(msg string) {
	q.errMsg = msg
	if q.errTimer != nil {
		q.errTimer.Stop()
	}
	q.errTimer = time.AfterFunc(q.errorTTL, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if q.errMsg == msg {
			q.errMsg = ""
		}
	})
}

// Items returns a snapshot of the visible queue.
func (q *UploadQueue) Items() []model.UploadItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]model.UploadItem, len(q.items))
	copy(out, q.items)
	return out
}

// ErrorMessage returns the transient queue-level message, if any.
func (q *UploadQueue) ErrorMessage() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.errMsg
}

// Wait blocks until every accepted item has finished and been removed.
func (q *UploadQueue) Wait() {
	q.wg.Wait()
}
