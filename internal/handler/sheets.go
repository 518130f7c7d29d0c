package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/docsession/internal/middleware"
	"github.com/capitalize-ai/docsession/internal/model"
	"github.com/capitalize-ai/docsession/pkg/logger"
)

// SheetHandler handles spreadsheet link endpoints.
type SheetHandler struct {
	base
}

// NewSheetHandler creates a new sheet handler.
func NewSheetHandler(workspaces Workspaces, log *logger.Logger) *SheetHandler {
	return &SheetHandler{base{workspaces: workspaces, logger: log.Named("handler.sheets")}}
}

// Routes mounts the sheet endpoints.
func (h *SheetHandler) Routes(r chi.Router) {
	r.Get("/", h.Status)
	r.Post("/check", h.Check)
	r.Post("/connect", h.Connect)
	r.Post("/alternate", h.CreateAlternate)
	r.Put("/active", h.SwitchActive)
	r.Delete("/", h.Disconnect)
}

// Status handles GET /api/v1/sheets
func (h *SheetHandler) Status(w http.ResponseWriter, r *http.Request) {
	ws, err := h.workspace(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.Sheets.View())
}

// Check handles POST /api/v1/sheets/check
func (h *SheetHandler) Check(w http.ResponseWriter, r *http.Request) {
	ws, err := h.workspace(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := ws.Sheets.Check(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.Sheets.View())
}

type connectResponse struct {
	AuthURL string `json:"auth_url"`
}

// Connect handles POST /api/v1/sheets/connect
func (h *SheetHandler) Connect(w http.ResponseWriter, r *http.Request) {
	ws, err := h.workspace(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	url, err := ws.Sheets.Connect(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, connectResponse{AuthURL: url})
}

// CreateAlternate handles POST /api/v1/sheets/alternate
func (h *SheetHandler) CreateAlternate(w http.ResponseWriter, r *http.Request) {
	ws, err := h.workspace(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := ws.Sheets.CreateAlternate(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ws.Sheets.View())
}

// SwitchActive handles PUT /api/v1/sheets/active
func (h *SheetHandler) SwitchActive(w http.ResponseWriter, r *http.Request) {
	var req model.SwitchSheetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateRecordID(req.ID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ws, err := h.workspace(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := ws.Sheets.SwitchActive(r.Context(), req.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.Sheets.View())
}

// Disconnect handles DELETE /api/v1/sheets
func (h *SheetHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	ws, err := h.workspace(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := ws.Sheets.Disconnect(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.Sheets.View())
}
