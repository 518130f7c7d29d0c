package handler

import (
	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/docsession/pkg/logger"
)

// API groups the handlers of the authenticated surface.
type API struct {
	Tenants       *TenantHandler
	Conversations *ConversationHandler
	Uploads       *UploadHandler
	Sheets        *SheetHandler
	Receipts      *ReceiptHandler
	Notices       *NoticeHandler
}

// NewAPI creates the session API handlers. journal may be nil.
func NewAPI(workspaces Workspaces, journal NoticeJournal, log *logger.Logger) *API {
	return &API{
		Tenants:       NewTenantHandler(workspaces, log),
		Conversations: NewConversationHandler(workspaces, log),
		Uploads:       NewUploadHandler(workspaces, log),
		Sheets:        NewSheetHandler(workspaces, log),
		Receipts:      NewReceiptHandler(workspaces, log),
		Notices:       NewNoticeHandler(workspaces, journal, log),
	}
}

// Routes mounts every endpoint on r. Authentication is applied by the caller.
func (a *API) Routes(r chi.Router) {
	r.Get("/session", a.Tenants.Session)
	r.Route("/tenants", a.Tenants.Routes)
	a.Conversations.Routes(r)
	r.Route("/uploads", a.Uploads.Routes)
	r.Route("/sheets", a.Sheets.Routes)
	r.Route("/receipts", a.Receipts.Routes)
	r.Route("/notices", a.Notices.Routes)
}
