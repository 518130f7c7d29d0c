package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/docsession/internal/model"
	"github.com/capitalize-ai/docsession/pkg/logger"
)

func newTestQueue(p DocumentProcessor, rec *recorder, removeDelay time.Duration) *UploadQueue {
	return NewUploadQueue(p, "alice", rec, logger.Nop(),
		WithRemoveDelay(removeDelay),
		WithErrorTTL(time.Hour),
	)
}

func TestUploadQueue_ItemsReachTerminalStatus(t *testing.T) {
	p := &fakeProcessor{fail: map[string]bool{"bad.png": true}}
	q := newTestQueue(p, &recorder{}, time.Hour)

	res, err := q.Submit(context.Background(), files("a.png", "bad.png"), "t1", "Acme")
	require.NoError(t, err)
	require.Len(t, res.Accepted, 2)
	assert.Empty(t, res.Rejected)

	require.Eventually(t, func() bool {
		for _, item := range q.Items() {
			if !item.Status.Terminal() {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)

	items := q.Items()
	require.Len(t, items, 2)
	assert.Equal(t, model.UploadSuccess, items[0].Status)
	assert.Equal(t, "doc-a.png", items[0].Result.DocumentKey)
	assert.Equal(t, model.UploadError, items[1].Status)
	assert.Equal(t, "Upload failed", items[1].Error)
	assert.Nil(t, items[1].Result)
	assert.False(t, q.Busy())
}

func TestUploadQueue_FinishedItemsAreRemoved(t *testing.T) {
	p := &fakeProcessor{}
	q := newTestQueue(p, &recorder{}, 10*time.Millisecond)

	_, err := q.Submit(context.Background(), files("a.png", "b.png", "c.png"), "t1", "Acme")
	require.NoError(t, err)

	q.Wait()
	assert.Empty(t, q.Items())
	assert.False(t, q.IsDisabled())
	assert.EqualValues(t, 3, p.calls.Load())
}

func TestUploadQueue_RejectsWhenFull(t *testing.T) {
	p := &fakeProcessor{release: make(chan struct{})}
	q := newTestQueue(p, &recorder{}, time.Millisecond)

	_, err := q.Submit(context.Background(), files("a.png", "b.png", "c.png"), "t1", "Acme")
	require.NoError(t, err)
	require.True(t, q.IsDisabled())
	require.True(t, q.Busy())

	res, err := q.Submit(context.Background(), files("fileA.png"), "t1", "Acme")
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Nil(t, res)
	assert.Len(t, q.Items(), 3)
	assert.NotEmpty(t, q.ErrorMessage())

	close(p.release)
	q.Wait()
	assert.EqualValues(t, 3, p.calls.Load())
}

func TestUploadQueue_AcceptsPrefixAndRejectsRest(t *testing.T) {
	p := &fakeProcessor{release: make(chan struct{})}
	rec := &recorder{}
	q := newTestQueue(p, rec, time.Millisecond)

	_, err := q.Submit(context.Background(), files("a.png"), "t1", "Acme")
	require.NoError(t, err)

	res, err := q.Submit(context.Background(), files("b.png", "c.png", "d.png", "e.png"), "t1", "Acme")
	require.NoError(t, err)
	assert.Len(t, res.Accepted, 2)
	assert.Equal(t, []string{"d.png", "e.png"}, res.Rejected)
	assert.Equal(t, "Failed to upload: d.png, e.png", rec.last().Message)
	assert.Equal(t, model.NoticeError, rec.last().Level)

	names := []string{}
	for _, item := range q.Items() {
		names = append(names, item.FileName)
	}
	assert.Equal(t, []string{"a.png", "b.png", "c.png"}, names)

	close(p.release)
	q.Wait()
}

func TestUploadQueue_DuplicateNamesAreIndependent(t *testing.T) {
	p := &fakeProcessor{}
	q := newTestQueue(p, &recorder{}, time.Hour)

	res, err := q.Submit(context.Background(), files("same.png", "same.png"), "t1", "Acme")
	require.NoError(t, err)
	require.Len(t, res.Accepted, 2)
	assert.NotEqual(t, res.Accepted[0], res.Accepted[1])
	assert.Less(t, res.Accepted[0], res.Accepted[1])
}

func TestUploadQueue_ConcurrentSubmitsStayBounded(t *testing.T) {
	p := &fakeProcessor{release: make(chan struct{})}
	q := newTestQueue(p, &recorder{}, time.Millisecond)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := q.Submit(context.Background(), files("x.png", "y.png"), "t1", "Acme")
			if err != nil {
				return
			}
			mu.Lock()
			accepted += len(res.Accepted)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, model.MaxUploads, accepted)
	assert.Len(t, q.Items(), model.MaxUploads)

	close(p.release)
	q.Wait()
	assert.Empty(t, q.Items())
}

func TestUploadQueue_SubmissionOutlivesRequest(t *testing.T) {
	p := &fakeProcessor{release: make(chan struct{})}
	q := newTestQueue(p, &recorder{}, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := q.Submit(ctx, files("a.png"), "t1", "Acme")
	require.NoError(t, err)
	cancel()

	close(p.release)
	q.Wait()
	assert.EqualValues(t, 0, p.ctxErrs.Load())
}

func TestUploadQueue_RequiresTenant(t *testing.T) {
	q := newTestQueue(&fakeProcessor{}, &recorder{}, time.Millisecond)

	_, err := q.Submit(context.Background(), files("a.png"), "", "")
	assert.ErrorIs(t, err, ErrNoActiveTenant)
}

func TestUploadQueue_ActivateDropsOtherTenantsFinishedItems(t *testing.T) {
	p := &fakeProcessor{}
	q := newTestQueue(p, &recorder{}, time.Hour)

	_, err := q.Submit(context.Background(), files("a.png"), "t1", "Acme")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return !q.Busy() }, time.Second, 5*time.Millisecond)

	require.NoError(t, q.Activate(context.Background(), model.Tenant{ID: "t2"}))
	assert.Empty(t, q.Items())
}
