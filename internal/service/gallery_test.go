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

func TestGallery_SearchRejectsInvertedRange(t *testing.T) {
	backend := &fakeReceipts{receipts: []model.Receipt{{DocID: "d1"}}}
	rec := &recorder{}
	g := NewGallery(backend, "alice", rec, logger.Nop())
	require.NoError(t, g.Activate(context.Background(), model.Tenant{ID: "t1"}))
	require.Len(t, g.Receipts(), 1)

	to := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	err := g.Search(context.Background(), to.AddDate(0, 0, 1), to)

	assert.ErrorIs(t, err, ErrInvalidRange)
	assert.EqualValues(t, 1, backend.calls.Load())
	assert.Equal(t, "From date should be earlier than To date!", rec.last().Message)
}

func TestGallery_ExportAndFailures(t *testing.T) {
	g := NewGallery(&fakeReceipts{}, "alice", &recorder{}, logger.Nop())

	_, err := g.Export(context.Background(), "d1")
	assert.ErrorIs(t, err, ErrNoActiveTenant)

	require.NoError(t, g.Activate(context.Background(), model.Tenant{ID: "t1"}))
	export, err := g.Export(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "d1.xlsx", export.FileName)

	_, err = g.Export(context.Background(), "")
	assert.ErrorIs(t, err, errRemote)
	assert.False(t, g.Busy())
}

func TestGallery_Refresh(t *testing.T) {
	backend := &fakeReceipts{}
	g := NewGallery(backend, "alice", &recorder{}, logger.Nop())

	assert.ErrorIs(t, g.Refresh(context.Background()), ErrNoActiveTenant)

	require.NoError(t, g.Activate(context.Background(), model.Tenant{ID: "t1"}))
	assert.Empty(t, g.Receipts())

	backend.receipts = []model.Receipt{{DocID: "d1"}, {DocID: "d2"}}
	require.NoError(t, g.Refresh(context.Background()))
	assert.Len(t, g.Receipts(), 2)
	assert.EqualValues(t, 2, backend.calls.Load())
}
