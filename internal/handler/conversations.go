package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/docsession/internal/middleware"
	"github.com/capitalize-ai/docsession/internal/model"
	"github.com/capitalize-ai/docsession/internal/service"
	"github.com/capitalize-ai/docsession/pkg/logger"
)

// ConversationHandler handles conversation and transcript endpoints.
type ConversationHandler struct {
	base
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(workspaces Workspaces, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{base{workspaces: workspaces, logger: log.Named("handler.conversations")}}
}

// Routes mounts the conversation endpoints.
func (h *ConversationHandler) Routes(r chi.Router) {
	r.Get("/conversations", h.List)
	r.Post("/conversations", h.Create)
	r.Get("/conversations/{id}", h.Load)
	r.Delete("/conversations/{id}", h.Delete)

	r.Get("/transcript", h.Transcript)
	r.Post("/transcript/messages", h.Send)
	r.Post("/transcript/persist", h.Persist)
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	ws, err := h.workspace(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := ws.Conversations.Refresh(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.Conversations.View())
}

// Create handles POST /api/v1/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ws, err := h.workspace(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := ws.Conversations.CreateNew(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ws.Conversations.View())
}

// Load handles GET /api/v1/conversations/:id
func (h *ConversationHandler) Load(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateRecordID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ws, err := h.workspace(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := ws.Conversations.Load(r.Context(), conversationID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.Conversations.View())
}

// Delete handles DELETE /api/v1/conversations/:id
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateRecordID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ws, err := h.workspace(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := ws.Conversations.DeleteConversation(r.Context(), conversationID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Transcript handles GET /api/v1/transcript
func (h *ConversationHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	ws, err := h.workspace(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.Conversations.View())
}

// Send handles POST /api/v1/transcript/messages
func (h *ConversationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageText(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ws, err := h.workspace(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := ws.Conversations.SendMessage(r.Context(), req.Text); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.Conversations.View())
}

type persistResponse struct {
	Outcome service.PersistOutcome `json:"outcome"`
	Error   string                 `json:"error,omitempty"`
}

// Persist handles POST /api/v1/transcript/persist
func (h *ConversationHandler) Persist(w http.ResponseWriter, r *http.Request) {
	ws, err := h.workspace(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	res := ws.Conversations.Persist(r.Context(), nil)
	if res.Outcome == service.PersistFailed {
		writeServiceError(w, res.Err)
		return
	}
	resp := persistResponse{Outcome: res.Outcome}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
