package handler

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/docsession/internal/model"
	"github.com/capitalize-ai/docsession/internal/service"
	"github.com/capitalize-ai/docsession/pkg/logger"
)

const (
	// UploadField is the multipart field carrying the files.
	UploadField = "files"

	maxUploadMemory = 32 << 20
	maxUploadBytes  = 3 * maxUploadMemory
)

// UploadsView is the visible state of the upload queue.
type UploadsView struct {
	Items    []model.UploadItem `json:"items"`
	Error    string             `json:"error,omitempty"`
	Disabled bool               `json:"disabled"`
}

func uploadsView(q *service.UploadQueue) UploadsView {
	return UploadsView{
		Items:    q.Items(),
		Error:    q.ErrorMessage(),
		Disabled: q.IsDisabled(),
	}
}

// UploadHandler handles document upload endpoints.
type UploadHandler struct {
	base
}

// NewUploadHandler creates a new upload handler.
func NewUploadHandler(workspaces Workspaces, log *logger.Logger) *UploadHandler {
	return &UploadHandler{base{workspaces: workspaces, logger: log.Named("handler.uploads")}}
}

// Routes mounts the upload endpoints.
func (h *UploadHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Submit)
}

// List handles GET /api/v1/uploads
func (h *UploadHandler) List(w http.ResponseWriter, r *http.Request) {
	ws, err := h.workspace(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadsView(ws.Uploads))
}

// Submit handles POST /api/v1/uploads
func (h *UploadHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[UploadField]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no files provided")
		return
	}

	files := make([]model.UploadFile, 0, len(headers))
	for _, fh := range headers {
		content, err := readPart(fh)
		if err != nil {
			h.log(r).Warn("failed to read upload part", zap.String("file", fh.Filename), zap.Error(err))
			writeError(w, http.StatusBadRequest, "failed to read "+fh.Filename)
			return
		}
		files = append(files, model.UploadFile{Name: fh.Filename, Content: content})
	}

	ws, err := h.workspace(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	tenant, ok := ws.Tenants.Active()
	if !ok {
		writeServiceError(w, service.ErrNoActiveTenant)
		return
	}

	res, err := ws.Uploads.Submit(r.Context(), files, tenant.ID, tenant.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
