package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/docsession/internal/middleware"
	"github.com/capitalize-ai/docsession/internal/model"
	"github.com/capitalize-ai/docsession/internal/service"
	"github.com/capitalize-ai/docsession/pkg/logger"
)

// TenantHandler handles tenant endpoints.
type TenantHandler struct {
	base
}

// NewTenantHandler creates a new tenant handler.
func NewTenantHandler(workspaces Workspaces, log *logger.Logger) *TenantHandler {
	return &TenantHandler{base{workspaces: workspaces, logger: log.Named("handler.tenants")}}
}

// Routes mounts the tenant endpoints.
func (h *TenantHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Put("/active", h.SetActive)
	r.Delete("/{id}", h.Delete)
}

// List handles GET /api/v1/tenants
func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	ws := h.workspaces.Get(middleware.GetPrincipal(r.Context()))
	if _, err := ws.Tenants.ListTenants(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.Tenants.View())
}

// Create handles POST /api/v1/tenants
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateTenantName(req.Name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ws, err := h.workspace(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	tenant, err := ws.Tenants.CreateTenant(r.Context(), req)
	if err != nil {
		h.log(r).Warn("failed to create tenant", zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tenant)
}

// SetActive handles PUT /api/v1/tenants/active
func (h *TenantHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req model.SetActiveTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateRecordID(req.TenantID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ws, err := h.workspace(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if err := ws.Tenants.SetActiveTenant(r.Context(), req.TenantID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.Tenants.View())
}

// Delete handles DELETE /api/v1/tenants/:id
func (h *TenantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "id")
	if err := middleware.ValidateRecordID(tenantID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ws, err := h.workspace(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if err := ws.Tenants.DeleteTenant(r.Context(), tenantID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SessionView is the combined state of a workspace.
type SessionView struct {
	Tenants       service.TenantView       `json:"tenants"`
	Uploads       UploadsView              `json:"uploads"`
	Conversations service.ConversationView `json:"conversations"`
	Sheets        model.SheetView          `json:"sheets"`
	Receipts      []model.Receipt          `json:"receipts"`
}

// Session handles GET /api/v1/session
func (h *TenantHandler) Session(w http.ResponseWriter, r *http.Request) {
	ws, err := h.workspace(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionView{
		Tenants:       ws.Tenants.View(),
		Uploads:       uploadsView(ws.Uploads),
		Conversations: ws.Conversations.View(),
		Sheets:        ws.Sheets.View(),
		Receipts:      ws.Gallery.Receipts(),
	})
}
