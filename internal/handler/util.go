// Package handler provides HTTP handlers for the session API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/docsession/internal/middleware"
	"github.com/capitalize-ai/docsession/internal/model"
	"github.com/capitalize-ai/docsession/internal/service"
	"github.com/capitalize-ai/docsession/pkg/logger"
)

// Workspaces resolves the workspace of a principal.
type Workspaces interface {
	Get(principal string) *service.Workspace
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeServiceError maps container errors to status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var userErr interface{ UserMessage() string }

	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnknownTenant), errors.Is(err, service.ErrUnknownLink),
		errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrBusy), errors.Is(err, service.ErrDeleteActive),
		errors.Is(err, service.ErrInvalidLinkState), errors.Is(err, service.ErrStale),
		errors.Is(err, service.ErrNoActiveTenant):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.As(err, &userErr):
		writeError(w, http.StatusBadGateway, userErr.UserMessage())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// base is shared by the handlers that act on the caller's workspace.
type base struct {
	workspaces Workspaces
	logger     *logger.Logger
}

// workspace returns the caller's workspace, loading its tenants on first use.
func (b base) workspace(r *http.Request) (*service.Workspace, error) {
	ws := b.workspaces.Get(middleware.GetPrincipal(r.Context()))
	if _, ok := ws.Tenants.Active(); !ok {
		if _, err := ws.Tenants.ListTenants(r.Context()); err != nil {
			return nil, err
		}
	}
	return ws, nil
}

func (b base) log(r *http.Request) *logger.Logger {
	return b.logger.With(zap.String("correlation_id", middleware.GetCorrelationID(r.Context())))
}
