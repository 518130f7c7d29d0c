package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/docsession/internal/middleware"
	"github.com/capitalize-ai/docsession/internal/model"
	"github.com/capitalize-ai/docsession/pkg/logger"
)

// NoticeJournal reads the durable notice history of a principal.
type NoticeJournal interface {
	Notices(ctx context.Context, principal string, afterSequence uint64, limit int) ([]model.Notice, uint64, bool, error)
}

// NoticeHandler handles notice endpoints.
type NoticeHandler struct {
	base
	journal NoticeJournal
}

// NewNoticeHandler creates a new notice handler. journal may be nil.
func NewNoticeHandler(workspaces Workspaces, journal NoticeJournal, log *logger.Logger) *NoticeHandler {
	return &NoticeHandler{
		base:    base{workspaces: workspaces, logger: log.Named("handler.notices")},
		journal: journal,
	}
}

// Routes mounts the notice endpoints.
func (h *NoticeHandler) Routes(r chi.Router) {
	r.Get("/", h.Drain)
	r.Get("/history", h.History)
}

// Drain handles GET /api/v1/notices
func (h *NoticeHandler) Drain(w http.ResponseWriter, r *http.Request) {
	ws := h.workspaces.Get(middleware.GetPrincipal(r.Context()))
	notices := ws.Inbox.Drain()
	if notices == nil {
		notices = []model.Notice{}
	}
	writeJSON(w, http.StatusOK, notices)
}

// HistoryResponse is a page of the notice journal.
type HistoryResponse struct {
	Notices      []model.Notice `json:"notices"`
	LastSequence uint64         `json:"last_sequence"`
	HasMore      bool           `json:"has_more"`
}

// History handles GET /api/v1/notices/history
// Supports ?after_sequence=N for resuming from a specific point
func (h *NoticeHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, http.StatusNotFound, "notice history is not enabled")
		return
	}

	var afterSequence uint64
	limit := 50

	if seq := r.URL.Query().Get("after_sequence"); seq != "" {
		if parsed, err := strconv.ParseUint(seq, 10, 64); err == nil {
			afterSequence = parsed
		}
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	principal := middleware.GetPrincipal(r.Context())
	notices, last, more, err := h.journal.Notices(r.Context(), principal, afterSequence, limit)
	if err != nil {
		h.log(r).Error("failed to read notice history", zap.String("principal", principal), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read notice history")
		return
	}
	if notices == nil {
		notices = []model.Notice{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Notices: notices, LastSequence: last, HasMore: more})
}
