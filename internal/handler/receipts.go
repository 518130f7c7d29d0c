package handler

import (
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/docsession/internal/middleware"
	"github.com/capitalize-ai/docsession/pkg/logger"
)

// DateLayout is the format of the from/to query parameters.
const DateLayout = "2006-01-02"

// ReceiptHandler handles gallery endpoints.
type ReceiptHandler struct {
	base
}

// NewReceiptHandler creates a new receipt handler.
func NewReceiptHandler(workspaces Workspaces, log *logger.Logger) *ReceiptHandler {
	return &ReceiptHandler{base{workspaces: workspaces, logger: log.Named("handler.receipts")}}
}

// Routes mounts the gallery endpoints.
func (h *ReceiptHandler) Routes(r chi.Router) {
	r.Get("/", h.Search)
	r.Get("/{id}/export", h.Export)
}

// Search handles GET /api/v1/receipts?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *ReceiptHandler) Search(w http.ResponseWriter, r *http.Request) {
	from, err := parseDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date")
		return
	}
	to, err := parseDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date")
		return
	}

	ws, err := h.workspace(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if from.IsZero() && to.IsZero() {
		err = ws.Gallery.Refresh(r.Context())
	} else {
		err = ws.Gallery.Search(r.Context(), from, to)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.Gallery.Receipts())
}

// Export handles GET /api/v1/receipts/:id/export
func (h *ReceiptHandler) Export(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "id")
	if err := middleware.ValidateRecordID(docID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ws, err := h.workspace(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	export, err := ws.Gallery.Export(r.Context(), docID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	contentType := export.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(export.Content)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": export.FileName}))
	w.WriteHeader(http.StatusOK)
	w.Write(export.Content)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(DateLayout, s)
}
